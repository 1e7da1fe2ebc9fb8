package indicators

import (
	"fmt"
	"math"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

// trueRanges computes the per-bar true range. The first bar has no prior
// close, so its range is simply high minus low.
func trueRanges(candles models.Candles) []float64 {
	ranges := make([]float64, len(candles))

	for i, candle := range candles {
		if i == 0 {
			ranges[0] = candle.High - candle.Low
			continue
		}

		prevClose := candles[i-1].Close

		ranges[i] = math.Max(candle.High-candle.Low, math.Max(
			math.Abs(candle.High-prevClose),
			math.Abs(candle.Low-prevClose),
		))
	}

	return ranges
}

// Atr returns the average true range of the candles, aligned with the input.
func Atr(candles models.Candles, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("Atr: period %d must be positive", period)
	}

	return rollingMean(trueRanges(candles), period), nil
}
