package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

func syntheticSeries(n int) models.Candles {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	candles := make(models.Candles, 0, n)
	for i := 0; i < n; i++ {
		base := 100 + 0.3*float64(i) + 5*math.Sin(float64(i)/7)

		candle := models.NewCandle(
			"BTCUSDT",
			start.Add(time.Duration(i)*time.Hour),
			base,
			base+1.6,
			base-1.6,
			base+0.5,
			1000+10*float64(i%13),
		)

		candles = append(candles, candle)
	}

	return candles
}

func TestEnrich(t *testing.T) {
	candles := syntheticSeries(250)

	require.NoError(t, Enrich(candles))

	t.Run("trend ema is defined from the first bar", func(t *testing.T) {
		assert.False(t, math.IsNaN(candles[0].EMA200))
		assert.False(t, math.IsNaN(candles[249].EMA200))
	})

	t.Run("atr and rsi appear after one window", func(t *testing.T) {
		assert.True(t, math.IsNaN(candles[12].ATR14))
		assert.False(t, math.IsNaN(candles[13].ATR14))

		assert.True(t, math.IsNaN(candles[12].RSI14))
		assert.False(t, math.IsNaN(candles[13].RSI14))
	})

	t.Run("bands and volume ma appear after twenty bars", func(t *testing.T) {
		assert.True(t, math.IsNaN(candles[18].BBUpper))
		assert.False(t, math.IsNaN(candles[19].BBUpper))
		assert.False(t, math.IsNaN(candles[19].BBWidth))

		assert.True(t, math.IsNaN(candles[18].VolumeMA20))
		assert.False(t, math.IsNaN(candles[19].VolumeMA20))
	})

	t.Run("adx needs two windows", func(t *testing.T) {
		assert.True(t, math.IsNaN(candles[26].ADX14))
		assert.False(t, math.IsNaN(candles[27].ADX14))
	})

	t.Run("warmed up values are coherent", func(t *testing.T) {
		for _, candle := range candles[30:] {
			assert.GreaterOrEqual(t, candle.RSI14, 0.0)
			assert.LessOrEqual(t, candle.RSI14, 100.0)
			assert.Greater(t, candle.BBUpper, candle.BBLower)
			assert.Greater(t, candle.BBWidth, 0.0)
			assert.Greater(t, candle.ATR14, 0.0)
		}
	})

	t.Run("empty series is a no-op", func(t *testing.T) {
		assert.NoError(t, Enrich(nil))
	})
}
