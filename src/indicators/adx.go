package indicators

import (
	"fmt"
	"math"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

// Adx returns the average directional index of the candles, aligned with the
// input. Directional movement is smoothed with plain rolling means, so the
// first defined value appears after two full lookback windows.
func Adx(candles models.Candles, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("Adx: period %d must be positive", period)
	}

	n := len(candles)

	plusDM := nanSlice(n)
	minusDM := nanSlice(n)

	for i := 1; i < n; i++ {
		up := candles[i].High - candles[i-1].High
		if up < 0 {
			up = 0
		}
		plusDM[i] = up

		down := candles[i].Low - candles[i-1].Low
		if down > 0 {
			down = 0
		}
		minusDM[i] = math.Abs(down)
	}

	atr := rollingMean(trueRanges(candles), period)
	plusSmoothed := rollingMean(plusDM, period)
	minusSmoothed := rollingMean(minusDM, period)

	dx := make([]float64, n)
	for i := range dx {
		plusDI := 100 * plusSmoothed[i] / atr[i]
		minusDI := 100 * minusSmoothed[i] / atr[i]

		dx[i] = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	}

	return rollingMean(dx, period), nil
}
