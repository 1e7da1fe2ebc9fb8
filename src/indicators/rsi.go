package indicators

import "fmt"

// Rsi returns the relative strength index of values, aligned with the input.
// Average gain and loss are plain rolling means over the lookback window.
// The first position contributes a zero change since it has no predecessor.
// An all-gain window reads 100; a window with neither gains nor losses has
// no defined strength and stays NaN.
func Rsi(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("Rsi: period %d must be positive", period)
	}

	gains := make([]float64, len(values))
	losses := make([]float64, len(values))

	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	avgGains := rollingMean(gains, period)
	avgLosses := rollingMean(losses, period)

	out := nanSlice(len(values))
	for i := range out {
		rs := avgGains[i] / avgLosses[i]
		out[i] = 100 - 100/(1+rs)
	}

	return out, nil
}
