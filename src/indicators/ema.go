package indicators

import "fmt"

// Ema returns the exponential moving average of values, aligned with the
// input. The series is seeded with the first value and smoothed with a
// multiplier of 2/(period+1), so it is defined from the first position on.
func Ema(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("Ema: period %d must be positive", period)
	}

	out := make([]float64, len(values))
	if len(values) == 0 {
		return out, nil
	}

	multiplier := 2.0 / (float64(period) + 1.0)

	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*multiplier + out[i-1]*(1-multiplier)
	}

	return out, nil
}
