package indicators

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	return out
}

// rollingMean computes a windowed mean. Positions before the first full
// window hold NaN, and a NaN anywhere inside a window makes that window NaN.
func rollingMean(values []float64, period int) []float64 {
	out := nanSlice(len(values))

	for i := period - 1; i < len(values); i++ {
		mean, err := stats.Mean(values[i+1-period : i+1])
		if err != nil {
			continue
		}

		out[i] = mean
	}

	return out
}

// Sma returns the simple moving average of values, aligned with the input.
func Sma(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("Sma: period %d must be positive", period)
	}

	return rollingMean(values, period), nil
}
