package domain

import (
	"fmt"
	"time"
)

// StatOptions tunes the statistical classifiers.
type StatOptions struct {
	// PrecipThresholdMM is the minimum interval precipitation a member must
	// exceed to count as wet.
	PrecipThresholdMM float64
	// MinSample is the minimum number of defined members required to compute
	// percentiles; below it the statistic is undefined rather than computed
	// from an inadequate sample.
	MinSample int
	// CalmWindBelow excludes members from wind-octant binning when their
	// speed is under this value (same unit as the speed variable).
	CalmWindBelow float64
}

// DefaultStatOptions returns the conservative defaults: any single member is
// enough for percentiles, 0.1 mm wet threshold, 0.5 km/h calm cutoff.
func DefaultStatOptions() StatOptions {
	return StatOptions{PrecipThresholdMM: 0.1, MinSample: 1, CalmWindBelow: 0.5}
}

// VariableKind selects the statistical treatment of a variable.
type VariableKind int

const (
	// KindContinuous yields p10/median/p90 percentile columns.
	KindContinuous VariableKind = iota
	// KindPrecipitation yields probability and conditional average columns.
	KindPrecipitation
	// KindCloudCover yields one probability column per octa bucket.
	KindCloudCover
	// KindWindDirection yields one probability column per compass octant.
	KindWindDirection
	// KindWeatherCode yields one probability column per weather group.
	KindWeatherCode
)

// KindOf classifies a semantic variable name.
func KindOf(variable string) VariableKind {
	switch variable {
	case varPrecipitation:
		return KindPrecipitation
	case "cloud_cover":
		return KindCloudCover
	case varWindDirection:
		return KindWindDirection
	case "weather_code":
		return KindWeatherCode
	default:
		return KindContinuous
	}
}

// StatColumns returns the output column names a variable produces, in their
// fixed order. Column names follow the {variable}_{statistic} convention.
func StatColumns(variable string) []string {
	switch KindOf(variable) {
	case KindPrecipitation:
		return []string{variable + "_probability", variable + "_conditional_average"}
	case KindCloudCover:
		columns := make([]string, OctaCount)
		for octa := range columns {
			columns[octa] = fmt.Sprintf("%s_octa_%d_prob", variable, octa)
		}
		return columns
	case KindWindDirection:
		columns := make([]string, OctantCount)
		for octant := range columns {
			columns[octant] = fmt.Sprintf("%s_%s_prob", variable, Octant(octant))
		}
		return columns
	case KindWeatherCode:
		columns := make([]string, len(WeatherGroups))
		for i, group := range WeatherGroups {
			columns[i] = fmt.Sprintf("%s_%s_prob", variable, group)
		}
		return columns
	default:
		return []string{variable + "_p10", variable + "_median", variable + "_p90"}
	}
}

// Summary is one model run's per-timestep statistics in wide column form.
// Column names already carry the {variable}_{statistic} convention so the
// cross-model merge can average like columns directly. Nil cells are
// undefined statistics. Immutable once computed.
type Summary struct {
	Run     ModelRun
	Times   []time.Time
	Columns map[string][]*float64
}

// ComputeSummary derives the full statistical summary of one model run.
// The raw series should already be in semantic form (see NormalizeRawSeries).
// Purely functional: depends only on the raw values and options.
func ComputeSummary(raw RawSeries, opts StatOptions) Summary {
	if opts.MinSample < 1 {
		opts.MinSample = 1
	}

	summary := Summary{
		Run:     raw.Run,
		Times:   raw.Times,
		Columns: make(map[string][]*float64),
	}
	steps := len(raw.Times)
	for _, variable := range sortedVariableNames(raw.Variables) {
		for _, column := range StatColumns(variable) {
			summary.Columns[column] = make([]*float64, steps)
		}
	}

	for t := 0; t < steps; t++ {
		for _, variable := range sortedVariableNames(raw.Variables) {
			values := raw.valuesAt(variable, t)
			switch KindOf(variable) {
			case KindPrecipitation:
				stats := CalculatePrecipitation(values, opts.PrecipThresholdMM)
				summary.Columns[variable+"_probability"][t] = stats.Probability
				summary.Columns[variable+"_conditional_average"][t] = stats.ConditionalAverage
			case KindCloudCover:
				probs := CalculateOctaProbabilities(values)
				for octa, p := range probs {
					summary.Columns[fmt.Sprintf("%s_octa_%d_prob", variable, octa)][t] = p
				}
			case KindWindDirection:
				var speeds []*float64
				if raw.MemberCount(varWindSpeed) > 0 {
					speeds = raw.valuesAt(varWindSpeed, t)
				}
				probs := CalculateOctantProbabilities(values, speeds, opts.CalmWindBelow)
				for octant, p := range probs {
					summary.Columns[fmt.Sprintf("%s_%s_prob", variable, Octant(octant))][t] = p
				}
			case KindWeatherCode:
				probs := CalculateGroupProbabilities(values)
				for _, group := range WeatherGroups {
					summary.Columns[fmt.Sprintf("%s_%s_prob", variable, group)][t] = probs[group]
				}
			default:
				pct := CalculatePercentiles(values, opts.MinSample)
				summary.Columns[variable+"_p10"][t] = pct.P10
				summary.Columns[variable+"_median"][t] = pct.Median
				summary.Columns[variable+"_p90"][t] = pct.P90
			}
		}
	}

	return summary
}
