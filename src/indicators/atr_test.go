package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

func testCandles(bars [][3]float64) models.Candles {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	candles := make(models.Candles, 0, len(bars))
	for i, bar := range bars {
		candles = append(candles, models.NewCandle("BTCUSDT", start.Add(time.Duration(i)*time.Hour), bar[0], bar[0], bar[1], bar[2], 1000))
	}

	return candles
}

func TestAtr(t *testing.T) {
	t.Run("gaps count against the prior close", func(t *testing.T) {
		candles := testCandles([][3]float64{
			// high, low, close
			{10, 8, 9},
			{11, 9, 10},
			{14, 12, 13},
		})

		out, err := Atr(candles, 2)

		require.NoError(t, err)
		require.Len(t, out, 3)

		assert.True(t, math.IsNaN(out[0]))
		assert.InDelta(t, 2, out[1], 1e-9)

		// the third bar gapped up: true range is high minus the prior close
		assert.InDelta(t, 3, out[2], 1e-9)
	})

	t.Run("the first bar ranges high to low", func(t *testing.T) {
		candles := testCandles([][3]float64{
			{10, 8, 9},
			{10.5, 9.5, 10},
		})

		ranges := trueRanges(candles)

		assert.InDelta(t, 2, ranges[0], 1e-9)
		assert.InDelta(t, 1.5, ranges[1], 1e-9)
	})
}
