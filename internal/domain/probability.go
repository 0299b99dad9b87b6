package domain

// PrecipitationStats holds the categorical precipitation statistics for one
// timestep. Probability is the fraction of defined members above the
// threshold; ConditionalAverage is the mean over only those members and is
// undefined (nil) when none exceed the threshold.
type PrecipitationStats struct {
	Probability        *float64
	ConditionalAverage *float64
}

// CalculatePrecipitation classifies member precipitation values against a
// minimum threshold. The denominator is the count of members with a defined
// value, not the nominal ensemble size, so partial data degrades the sample
// rather than the fraction. With zero defined members both statistics are
// undefined.
func CalculatePrecipitation(values []*float64, thresholdMM float64) PrecipitationStats {
	var defined, wet int
	var wetSum float64
	for _, v := range values {
		if v == nil {
			continue
		}
		defined++
		if *v > thresholdMM {
			wet++
			wetSum += *v
		}
	}
	if defined == 0 {
		return PrecipitationStats{}
	}
	stats := PrecipitationStats{Probability: ptr(float64(wet) / float64(defined))}
	if wet > 0 {
		stats.ConditionalAverage = ptr(wetSum / float64(wet))
	}
	return stats
}

// CalculateOctaProbabilities bins member cloud-cover percentages into octas
// and returns the probability of each of the 9 buckets. The buckets form a
// partition: defined results sum to 1 within numerical tolerance. With zero
// defined members every bucket is undefined.
func CalculateOctaProbabilities(coverPercents []*float64) [OctaCount]*float64 {
	var counts [OctaCount]int
	defined := 0
	for _, v := range coverPercents {
		if v == nil {
			continue
		}
		counts[CloudOcta(*v)]++
		defined++
	}

	var probs [OctaCount]*float64
	if defined == 0 {
		return probs
	}
	for octa, count := range counts {
		probs[octa] = ptr(float64(count) / float64(defined))
	}
	return probs
}

// CalculateOctantProbabilities bins member wind directions into compass
// octants. Members blowing below calmBelow (or with an undefined speed when
// speeds are provided) are excluded entirely: direction is undefined at
// near-zero speed, so calm members count neither in any octant nor in the
// denominator. Pass nil speeds to bin every defined direction. With zero
// binnable members every octant is undefined.
func CalculateOctantProbabilities(directions, speeds []*float64, calmBelow float64) [OctantCount]*float64 {
	var counts [OctantCount]int
	defined := 0
	for i, dir := range directions {
		if dir == nil {
			continue
		}
		if speeds != nil {
			if i >= len(speeds) || speeds[i] == nil || *speeds[i] < calmBelow {
				continue
			}
		}
		counts[OctantFor(*dir)]++
		defined++
	}

	var probs [OctantCount]*float64
	if defined == 0 {
		return probs
	}
	for octant, count := range counts {
		probs[octant] = ptr(float64(count) / float64(defined))
	}
	return probs
}

// CalculateGroupProbabilities returns, for each weather group, the fraction
// of defined members whose coded weather state belongs to that group. The
// groups are independent tags and need not sum to 1. With zero defined
// members every group is undefined.
func CalculateGroupProbabilities(codes []*float64) map[WeatherGroup]*float64 {
	counts := make(map[WeatherGroup]int, len(WeatherGroups))
	defined := 0
	for _, c := range codes {
		if c == nil {
			continue
		}
		defined++
		for _, group := range GroupsForCode(int(*c)) {
			counts[group]++
		}
	}

	probs := make(map[WeatherGroup]*float64, len(WeatherGroups))
	if defined == 0 {
		for _, group := range WeatherGroups {
			probs[group] = nil
		}
		return probs
	}
	for _, group := range WeatherGroups {
		probs[group] = ptr(float64(counts[group]) / float64(defined))
	}
	return probs
}
