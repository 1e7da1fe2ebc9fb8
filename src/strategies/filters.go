package strategies

import (
	"math"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

const atrRatioWindow = 20

// volatilityInBand reports whether the latest ATR sits between minRatio and
// maxRatio of its mean over the last twenty bars. Markets below the band are
// too quiet to follow through, markets above it are too erratic to size.
func volatilityInBand(history []*models.Candle, minRatio, maxRatio float64) bool {
	if len(history) < atrRatioWindow+1 {
		return false
	}

	current := history[len(history)-1].ATR14
	if math.IsNaN(current) || current == 0 {
		return false
	}

	sum := 0.0
	for _, candle := range history[len(history)-atrRatioWindow:] {
		sum += candle.ATR14
	}

	mean := sum / atrRatioWindow
	if math.IsNaN(mean) || mean == 0 {
		return false
	}

	ratio := current / mean

	return ratio >= minRatio && ratio <= maxRatio
}

// swingRange returns the lowest low and highest high over the last lookback
// bars, including the current one.
func swingRange(history []*models.Candle, lookback int) (float64, float64) {
	start := len(history) - lookback
	if start < 0 {
		start = 0
	}

	low := math.Inf(1)
	high := math.Inf(-1)

	for _, candle := range history[start:] {
		low = math.Min(low, candle.Low)
		high = math.Max(high, candle.High)
	}

	return low, high
}

// meanVolume averages volume over the last period bars, including the
// current one.
func meanVolume(history []*models.Candle, period int) float64 {
	start := len(history) - period
	if start < 0 {
		start = 0
	}

	window := history[start:]
	if len(window) == 0 {
		return 0
	}

	sum := 0.0
	for _, candle := range window {
		sum += candle.Volume
	}

	return sum / float64(len(window))
}
