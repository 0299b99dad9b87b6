package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrMisalignedMembers reports a model run whose ensemble members disagree on
// the timestamp axis. Such a run is rejected wholesale.
var ErrMisalignedMembers = errors.New("ensemble members have misaligned timestamps")

// ModelRun identifies one fetch of one model's ensemble. Immutable; a newer
// initialization time supersedes the previous run for the same model.
type ModelRun struct {
	Model         string
	InitializedAt time.Time
}

// MemberSeries holds one ensemble member's values for one variable.
// A nil value means the member reported nothing at that timestep.
type MemberSeries struct {
	Member int
	Times  []time.Time
	Values []*float64
}

// RawSeries is the canonical aligned form of one model run's raw data:
// a shared UTC time axis and, per variable, one value series per member
// indexed against that axis. Construct via NewRawSeries, which enforces
// the alignment invariant.
type RawSeries struct {
	Run       ModelRun
	Times     []time.Time
	Variables map[string][]MemberSeries
}

// NewRawSeries validates that every member of every variable carries the
// same timestamp sequence and returns the canonical series. Timestamps are
// normalized to UTC. A single disagreeing member rejects the whole run with
// ErrMisalignedMembers; the caller reports it and continues with other models.
func NewRawSeries(run ModelRun, variables map[string][]MemberSeries) (RawSeries, error) {
	var axis []time.Time
	for _, name := range sortedVariableNames(variables) {
		for _, member := range variables[name] {
			if len(member.Values) != len(member.Times) {
				return RawSeries{}, fmt.Errorf("model %s variable %s member %d: %d values for %d timestamps: %w",
					run.Model, name, member.Member, len(member.Values), len(member.Times), ErrMisalignedMembers)
			}
			if axis == nil {
				axis = toUTC(member.Times)
				continue
			}
			if !sameAxis(axis, member.Times) {
				return RawSeries{}, fmt.Errorf("model %s variable %s member %d: %w",
					run.Model, name, member.Member, ErrMisalignedMembers)
			}
		}
	}

	canonical := make(map[string][]MemberSeries, len(variables))
	for name, members := range variables {
		aligned := make([]MemberSeries, len(members))
		for i, member := range members {
			aligned[i] = MemberSeries{Member: member.Member, Times: axis, Values: member.Values}
		}
		canonical[name] = aligned
	}

	return RawSeries{Run: ModelRun{Model: run.Model, InitializedAt: run.InitializedAt.UTC()}, Times: axis, Variables: canonical}, nil
}

// MemberCount returns the number of members carried for the given variable.
func (r RawSeries) MemberCount(variable string) int {
	return len(r.Variables[variable])
}

// valuesAt collects each member's value for a variable at timestep index t.
// Missing members yield nil entries, preserving positional correspondence
// across variables (member i of wind speed is member i of wind direction).
func (r RawSeries) valuesAt(variable string, t int) []*float64 {
	members := r.Variables[variable]
	values := make([]*float64, len(members))
	for i, member := range members {
		values[i] = member.Values[t]
	}
	return values
}

func sortedVariableNames(variables map[string][]MemberSeries) []string {
	names := make([]string, 0, len(variables))
	for name := range variables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sameAxis(axis, times []time.Time) bool {
	if len(axis) != len(times) {
		return false
	}
	for i := range axis {
		if !axis[i].Equal(times[i]) {
			return false
		}
	}
	return true
}

func toUTC(times []time.Time) []time.Time {
	utc := make([]time.Time, len(times))
	for i, t := range times {
		utc[i] = t.UTC()
	}
	return utc
}
