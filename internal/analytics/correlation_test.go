package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPearsonCorrelation(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		ys   []float64
		want float64
	}{
		{name: "perfect positive", xs: []float64{1, 2, 3, 4}, ys: []float64{2, 4, 6, 8}, want: 1},
		{name: "perfect negative", xs: []float64{1, 2, 3, 4}, ys: []float64{8, 6, 4, 2}, want: -1},
		{name: "constant series", xs: []float64{1, 2, 3}, ys: []float64{5, 5, 5}, want: 0},
		{name: "single point", xs: []float64{1}, ys: []float64{2}, want: 0},
		{name: "mismatched lengths", xs: []float64{1, 2, 3}, ys: []float64{1, 2}, want: 0},
		{name: "empty", xs: nil, ys: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PearsonCorrelation(tt.xs, tt.ys), 1e-9)
		})
	}
}

func TestPearsonCorrelation_Bounded(t *testing.T) {
	xs := []float64{1.1, 2.3, 3.7, 4.2, 5.9, 6.1}
	ys := []float64{0.9, 2.5, 3.1, 4.8, 5.2, 6.7}

	r := PearsonCorrelation(xs, ys)
	assert.GreaterOrEqual(t, r, -1.0)
	assert.LessOrEqual(t, r, 1.0)
	assert.Greater(t, r, 0.9)
}
