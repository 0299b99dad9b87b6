package domain

import (
	"math"
	"sort"
)

// Percentiles holds the per-timestep distributional statistics of a
// continuous variable across ensemble members. Nil means undefined.
type Percentiles struct {
	P10    *float64
	Median *float64
	P90    *float64
}

// CalculatePercentiles computes p10, median and p90 over the defined subset
// of member values using R-7 linear interpolation. If fewer than minSample
// members report a value the result is entirely undefined; a minSample below
// 1 is treated as 1. The result depends only on the multiset of values, not
// on member order.
func CalculatePercentiles(values []*float64, minSample int) Percentiles {
	if minSample < 1 {
		minSample = 1
	}
	defined := definedValues(values)
	if len(defined) < minSample {
		return Percentiles{}
	}
	sort.Float64s(defined)
	return Percentiles{
		P10:    ptr(quantileR7(defined, 0.10)),
		Median: ptr(quantileR7(defined, 0.50)),
		P90:    ptr(quantileR7(defined, 0.90)),
	}
}

// quantileR7 evaluates the q-quantile of sorted values with the R-7 rule:
// h = (n-1)*q, linearly interpolated between the bracketing order statistics.
func quantileR7(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * q
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// definedValues copies the non-nil values so callers can sort freely.
func definedValues(values []*float64) []float64 {
	defined := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			defined = append(defined, *v)
		}
	}
	return defined
}
