package domain

import (
	"errors"
	"sort"
	"time"
)

// ErrNoSummaries reports a merge with no per-model input, i.e. every
// configured model failed for this run. The pipeline fails the run rather
// than emit a model-less consolidated table.
var ErrNoSummaries = errors.New("no model summaries to merge")

// Consolidated is the cross-model merged forecast table on a UTC time axis.
// Created fresh on every successful pipeline run, never mutated.
type Consolidated struct {
	Models  []string
	Times   []time.Time
	Columns map[string][]*float64
}

// Merge combines per-model summaries into one consolidated table.
//
// The merge policy is the unweighted arithmetic mean of like columns at
// matching timestamps over whichever models define them: every model counts
// as one equally credible ensemble regardless of its member count. This is a
// deliberate simplification, not a pooling of underlying members. The time
// axis is the union of the inputs' axes; a model without a given timestamp,
// or with an undefined value there, contributes nothing (it is not treated
// as zero). A column present in only some models merges over that subset; a
// column no model provides is absent. Merging a single summary reproduces
// it, and the result does not depend on input order.
func Merge(summaries []Summary) (Consolidated, error) {
	if len(summaries) == 0 {
		return Consolidated{}, ErrNoSummaries
	}

	axis := unionTimes(summaries)
	index := make(map[time.Time]int, len(axis))
	for i, t := range axis {
		index[t] = i
	}

	sums := make(map[string][]float64)
	counts := make(map[string][]int)
	models := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		models = append(models, summary.Run.Model)
		for column, values := range summary.Columns {
			if sums[column] == nil {
				sums[column] = make([]float64, len(axis))
				counts[column] = make([]int, len(axis))
			}
			for t, v := range values {
				if v == nil {
					continue
				}
				i := index[summary.Times[t].UTC()]
				sums[column][i] += *v
				counts[column][i]++
			}
		}
	}
	sort.Strings(models)

	columns := make(map[string][]*float64, len(sums))
	for column := range sums {
		merged := make([]*float64, len(axis))
		for i := range axis {
			if counts[column][i] > 0 {
				merged[i] = ptr(sums[column][i] / float64(counts[column][i]))
			}
		}
		columns[column] = merged
	}

	return Consolidated{Models: models, Times: axis, Columns: columns}, nil
}

func unionTimes(summaries []Summary) []time.Time {
	seen := make(map[time.Time]struct{})
	var axis []time.Time
	for _, summary := range summaries {
		for _, t := range summary.Times {
			utc := t.UTC()
			if _, ok := seen[utc]; !ok {
				seen[utc] = struct{}{}
				axis = append(axis, utc)
			}
		}
	}
	sort.Slice(axis, func(i, j int) bool { return axis[i].Before(axis[j]) })
	return axis
}
