package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{
			name:   "empty input",
			values: nil,
			want:   0,
		},
		{
			name:   "single value",
			values: []float64{42},
			want:   42,
		},
		{
			name:   "odd count",
			values: []float64{3, 1, 2},
			want:   2,
		},
		{
			name:   "even count averages middle pair",
			values: []float64{4, 1, 3, 2},
			want:   2.5,
		},
		{
			name:   "unsorted with duplicates",
			values: []float64{30, 30, 31, 29, 30},
			want:   30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Median(tt.values), 1e-9)
		})
	}
}

func TestMedianDoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	_ = Median(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestMedianAbsoluteDeviation(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		center float64
		want   float64
	}{
		{
			name:   "empty input",
			values: nil,
			center: 10,
			want:   0,
		},
		{
			name:   "perfectly regular",
			values: []float64{30, 30, 30, 30},
			center: 30,
			want:   0,
		},
		{
			name:   "one outlier stays contained",
			values: []float64{30, 30, 30, 90},
			center: 30,
			want:   0,
		},
		{
			name:   "symmetric spread",
			values: []float64{28, 30, 32},
			center: 30,
			want:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MedianAbsoluteDeviation(tt.values, tt.center), 1e-9)
		})
	}
}

func TestVariance(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		center float64
		want   float64
	}{
		{
			name:   "empty input",
			values: nil,
			center: 5,
			want:   0,
		},
		{
			name:   "no spread",
			values: []float64{9.99, 9.99, 9.99},
			center: 9.99,
			want:   0,
		},
		{
			name:   "spread around center",
			values: []float64{8, 12},
			center: 10,
			want:   4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Variance(tt.values, tt.center), 1e-9)
		})
	}
}
