package strategies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

func reversionHistory(n int) []*models.Candle {
	history := flatHistory("BTCUSDT", n, 100.5)

	for _, candle := range history {
		candle.EMA200 = 95
		candle.ATR14 = 1
		candle.RSI14 = 50
		candle.BBUpper = 103
		candle.BBMiddle = 101
		candle.BBLower = 99.6
	}

	return history
}

// flushDown turns the last bar into an oversold test of the lower band on
// elevated volume, inside the macro uptrend the base history carries.
func flushDown(history []*models.Candle) {
	last := history[len(history)-1]

	last.Close = 99.5
	last.RSI14 = 35
	last.Volume = 3000
}

func TestMeanReversion(t *testing.T) {
	strategy := NewMeanReversion(DefaultMeanReversionParams())

	t.Run("an oversold flush at the lower band goes long", func(t *testing.T) {
		history := reversionHistory(210)
		flushDown(history)

		signal := strategy.Evaluate(history)

		require.NotNil(t, signal)
		assert.Equal(t, models.DirectionLong, signal.Direction)
		assert.Equal(t, "BTCUSDT", signal.Symbol)
		assert.InDelta(t, 99.5, signal.EntryPrice, 1e-9)

		// swing support at 99.5 shaded 0.5% beats the wider atr stop
		assert.InDelta(t, 99.0025, signal.StopPrice, 1e-9)

		require.Len(t, signal.TakeProfits, 2)
		assert.InDelta(t, 101, signal.TakeProfits[0].Price, 1e-9)
		assert.Equal(t, 0.5, signal.TakeProfits[0].Fraction)
		assert.InDelta(t, 102.5, signal.TakeProfits[1].Price, 1e-9)
		assert.Equal(t, 0.5, signal.TakeProfits[1].Fraction)

		assert.Equal(t, 48*time.Hour, signal.MaxHold)
		assert.Equal(t, 3.0, signal.Leverage)
	})

	t.Run("an overbought test of the upper band goes short", func(t *testing.T) {
		history := reversionHistory(210)

		for _, candle := range history {
			candle.EMA200 = 110
			candle.ATR14 = 1.5
			candle.BBUpper = 103
			candle.BBMiddle = 100
			candle.BBLower = 97
		}

		last := history[209]
		last.Close = 103
		last.High = 104
		last.RSI14 = 65
		last.Volume = 3000

		signal := strategy.Evaluate(history)

		require.NotNil(t, signal)
		assert.Equal(t, models.DirectionShort, signal.Direction)
		assert.InDelta(t, 103, signal.EntryPrice, 1e-9)

		// swing resistance at 104 shaded 0.5% beats the wider atr stop
		assert.InDelta(t, 104.52, signal.StopPrice, 1e-9)

		require.Len(t, signal.TakeProfits, 2)
		assert.InDelta(t, 100, signal.TakeProfits[0].Price, 1e-9)
		assert.InDelta(t, 98.5, signal.TakeProfits[1].Price, 1e-9)

		assert.Equal(t, 48*time.Hour, signal.MaxHold)
	})

	t.Run("too little history never signals", func(t *testing.T) {
		history := reversionHistory(200)
		flushDown(history)

		assert.Nil(t, strategy.Evaluate(history))
	})

	t.Run("a capitulating rsi vetoes the long", func(t *testing.T) {
		history := reversionHistory(210)
		flushDown(history)
		history[209].RSI14 = 20

		assert.Nil(t, strategy.Evaluate(history))
	})

	t.Run("the oversold boundary is exclusive", func(t *testing.T) {
		history := reversionHistory(210)
		flushDown(history)
		history[209].RSI14 = 45

		assert.Nil(t, strategy.Evaluate(history))
	})

	t.Run("no long against the macro trend", func(t *testing.T) {
		history := reversionHistory(210)
		flushDown(history)

		for _, candle := range history {
			candle.EMA200 = 100
		}

		assert.Nil(t, strategy.Evaluate(history))
	})

	t.Run("no long far above swing support", func(t *testing.T) {
		history := reversionHistory(210)
		flushDown(history)

		for _, candle := range history[len(history)-20:] {
			candle.Low = 95
		}

		assert.Nil(t, strategy.Evaluate(history))
	})

	t.Run("quiet volume vetoes the entry", func(t *testing.T) {
		history := reversionHistory(210)
		flushDown(history)
		history[209].Volume = 1000

		assert.Nil(t, strategy.Evaluate(history))
	})

	t.Run("an atr spike outside the band vetoes the entry", func(t *testing.T) {
		history := reversionHistory(210)
		flushDown(history)
		history[209].ATR14 = 3

		assert.Nil(t, strategy.Evaluate(history))
	})
}
