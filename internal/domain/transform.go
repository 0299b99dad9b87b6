package domain

import (
	"math"
)

// Octant is one of the 8 compass sectors used for wind-direction binning.
type Octant int

// Compass octants in clockwise order starting from north.
const (
	OctantN Octant = iota
	OctantNE
	OctantE
	OctantSE
	OctantS
	OctantSW
	OctantW
	OctantNW

	OctantCount = 8
)

var octantNames = [OctantCount]string{"n", "ne", "e", "se", "s", "sw", "w", "nw"}

func (o Octant) String() string {
	if o < 0 || o >= OctantCount {
		return "invalid"
	}
	return octantNames[o]
}

// OctaCount is the number of cloud-cover buckets (octas 0 through 8).
const OctaCount = 9

// WeatherGroup is a coarse classification of a WMO weather code. Groups are
// independent tags, not a partition: a code may carry several.
type WeatherGroup string

const (
	GroupFog         WeatherGroup = "fog"
	GroupStorm       WeatherGroup = "storm"
	GroupSevereStorm WeatherGroup = "severe_storm"
)

// WeatherGroups lists the groups in their fixed output order.
var WeatherGroups = []WeatherGroup{GroupFog, GroupStorm, GroupSevereStorm}

// weatherCodeGroups is the static rule table mapping each WMO WW code emitted
// by the Open-Meteo API to its group set. Codes absent from the table are
// known codes with no group; codes outside the defined space map to no group
// rather than failing the pipeline.
var weatherCodeGroups = map[int][]WeatherGroup{
	45: {GroupFog},
	48: {GroupFog},
	95: {GroupStorm},
	96: {GroupStorm, GroupSevereStorm},
	99: {GroupStorm, GroupSevereStorm},
}

// definedWeatherCodes is the WW code space Open-Meteo documents for its
// models. The grouping table must be total over this set: every code here
// resolves to a (possibly empty) group set. Validated by tests.
var definedWeatherCodes = []int{
	0, 1, 2, 3, // clear to overcast
	45, 48, // fog
	51, 53, 55, 56, 57, // drizzle
	61, 63, 65, 66, 67, // rain
	71, 73, 75, 77, // snow
	80, 81, 82, 85, 86, // showers
	95, 96, 99, // thunderstorms
}

// GroupsForCode returns the weather groups a coded weather state belongs to.
// Unrecognized codes return an empty set.
func GroupsForCode(code int) []WeatherGroup {
	return weatherCodeGroups[code]
}

// CloudOcta discretizes a cloud-cover percentage into an octa 0-8.
func CloudOcta(percent float64) int {
	octa := int(math.Round(percent / 100 * 8))
	if octa < 0 {
		return 0
	}
	if octa > 8 {
		return 8
	}
	return octa
}

// OctantFor maps a direction in degrees to its compass octant. Sector k
// covers [k*45 - 22.5, k*45 + 22.5) degrees, with north wrapping through 0.
func OctantFor(degrees float64) Octant {
	deg := math.Mod(degrees, 360)
	if deg < 0 {
		deg += 360
	}
	return Octant(int(math.Floor(deg/45+0.5)) % OctantCount)
}

// WindFromComponents derives wind speed and meteorological direction (degrees
// the wind blows from, in [0, 360)) from the eastward (u) and northward (v)
// components. Speed is in the components' unit.
func WindFromComponents(u, v float64) (speed, direction float64) {
	speed = math.Hypot(u, v)
	direction = math.Atan2(-u, -v) * 180 / math.Pi
	if direction < 0 {
		direction += 360
	}
	return speed, direction
}

// IntervalFromCumulative converts a cumulative precipitation series into
// per-step amounts. Negative differences (model accumulation resets) clamp
// to zero; nil readings stay nil and the next defined step diffs against the
// last defined reading. The first defined reading is kept as-is.
func IntervalFromCumulative(values []*float64) []*float64 {
	interval := make([]*float64, len(values))
	var last *float64
	for i, v := range values {
		if v == nil {
			continue
		}
		if last == nil {
			interval[i] = ptr(*v)
		} else {
			step := *v - *last
			if step < 0 {
				step = 0
			}
			interval[i] = ptr(step)
		}
		last = v
	}
	return interval
}

// Source variable names recognized by NormalizeRawSeries.
const (
	varWindU            = "wind_u_component_10m"
	varWindV            = "wind_v_component_10m"
	varWindSpeed        = "wind_speed_10m"
	varWindDirection    = "wind_direction_10m"
	varPrecipCumulative = "precipitation_cumulative"
	varPrecipitation    = "precipitation"
)

// NormalizeRawSeries rewrites source-specific raw variables into the semantic
// variables the statistics stages consume: wind components become speed and
// direction, cumulative precipitation becomes interval precipitation. Series
// already in semantic form pass through untouched. Purely functional; the
// input is not modified.
func NormalizeRawSeries(raw RawSeries) RawSeries {
	variables := make(map[string][]MemberSeries, len(raw.Variables))
	for name, members := range raw.Variables {
		variables[name] = members
	}

	if us, ok := variables[varWindU]; ok {
		if vs, ok := variables[varWindV]; ok && len(us) == len(vs) {
			speeds := make([]MemberSeries, len(us))
			directions := make([]MemberSeries, len(us))
			for i := range us {
				speed, dir := memberWind(us[i], vs[i])
				speeds[i] = speed
				directions[i] = dir
			}
			if _, has := variables[varWindSpeed]; !has {
				variables[varWindSpeed] = speeds
			}
			if _, has := variables[varWindDirection]; !has {
				variables[varWindDirection] = directions
			}
			delete(variables, varWindU)
			delete(variables, varWindV)
		}
	}

	if cumulative, ok := variables[varPrecipCumulative]; ok {
		if _, has := variables[varPrecipitation]; !has {
			interval := make([]MemberSeries, len(cumulative))
			for i, member := range cumulative {
				interval[i] = MemberSeries{
					Member: member.Member,
					Times:  member.Times,
					Values: IntervalFromCumulative(member.Values),
				}
			}
			variables[varPrecipitation] = interval
		}
		delete(variables, varPrecipCumulative)
	}

	return RawSeries{Run: raw.Run, Times: raw.Times, Variables: variables}
}

func memberWind(u, v MemberSeries) (speed, direction MemberSeries) {
	speeds := make([]*float64, len(u.Values))
	directions := make([]*float64, len(u.Values))
	for t := range u.Values {
		if u.Values[t] == nil || t >= len(v.Values) || v.Values[t] == nil {
			continue
		}
		s, d := WindFromComponents(*u.Values[t], *v.Values[t])
		speeds[t] = ptr(s)
		directions[t] = ptr(d)
	}
	speed = MemberSeries{Member: u.Member, Times: u.Times, Values: speeds}
	direction = MemberSeries{Member: u.Member, Times: u.Times, Values: directions}
	return speed, direction
}

func ptr(v float64) *float64 { return &v }
