// Package stats provides the robust numeric primitives used by recurrence
// detection: median, median absolute deviation, and population variance.
package stats

import "sort"

// Median returns the median of values. For even-length input the two middle
// values are averaged. Returns 0 for empty input; callers are expected to
// guard for emptiness when 0 is a meaningful value.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// MedianAbsoluteDeviation returns the median of |v - center| across values.
// It is far more outlier-resistant than standard deviation, which matters
// when one late payment would otherwise swamp an interval estimate.
func MedianAbsoluteDeviation(values []float64, center float64) float64 {
	if len(values) == 0 {
		return 0
	}

	deviations := make([]float64, len(values))
	for i, v := range values {
		d := v - center
		if d < 0 {
			d = -d
		}
		deviations[i] = d
	}

	return Median(deviations)
}

// Variance returns the mean squared deviation from center (population
// variance against a supplied center rather than the sample mean).
func Variance(values []float64, center float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		d := v - center
		sum += d * d
	}
	return sum / float64(len(values))
}
