package strategies

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

func squeezeHistory(n int) []*models.Candle {
	history := flatHistory("SOLUSDT", n, 100)

	for _, candle := range history {
		candle.ATR14 = 1
		candle.RSI14 = 55
		candle.ADX14 = 25
		candle.BBUpper = 102
		candle.BBMiddle = 100
		candle.BBLower = 98
		candle.BBWidth = 0.02
		candle.VolumeMA20 = 1000
	}

	return history
}

func breakoutUp(history []*models.Candle) {
	last := history[len(history)-1]
	prev := history[len(history)-2]

	prev.Close = 102.5
	last.Close = 103
	last.Volume = 2000
}

func TestSqueezeBreakout(t *testing.T) {
	strategy := NewSqueezeBreakout(DefaultSqueezeBreakoutParams())

	t.Run("a confirmed breakout above the bands goes long", func(t *testing.T) {
		history := squeezeHistory(40)
		breakoutUp(history)

		signal := strategy.Evaluate(history)

		require.NotNil(t, signal)
		assert.Equal(t, models.DirectionLong, signal.Direction)
		assert.Equal(t, "SOLUSDT", signal.Symbol)
		assert.InDelta(t, 103, signal.EntryPrice, 1e-9)
		assert.InDelta(t, 101, signal.StopPrice, 1e-9)

		require.Len(t, signal.TakeProfits, 2)
		assert.InDelta(t, 105, signal.TakeProfits[0].Price, 1e-9)
		assert.Equal(t, 0.5, signal.TakeProfits[0].Fraction)
		assert.InDelta(t, 107, signal.TakeProfits[1].Price, 1e-9)
		assert.Equal(t, 0.5, signal.TakeProfits[1].Fraction)

		assert.Zero(t, signal.MaxHold)
		assert.Equal(t, 5.0, signal.Leverage)
	})

	t.Run("the middle band caps how far the stop sits below entry", func(t *testing.T) {
		history := squeezeHistory(40)
		breakoutUp(history)
		history[39].ATR14 = 1
		history[39].BBMiddle = 101.5

		signal := strategy.Evaluate(history)

		require.NotNil(t, signal)
		assert.InDelta(t, 101.5, signal.StopPrice, 1e-9)
	})

	t.Run("a breakdown below the bands goes short without prior confirmation", func(t *testing.T) {
		history := squeezeHistory(40)
		last := history[39]
		last.Close = 97
		last.RSI14 = 45
		last.Volume = 2000

		signal := strategy.Evaluate(history)

		require.NotNil(t, signal)
		assert.Equal(t, models.DirectionShort, signal.Direction)
		assert.InDelta(t, 99, signal.StopPrice, 1e-9)

		require.Len(t, signal.TakeProfits, 2)
		assert.InDelta(t, 95, signal.TakeProfits[0].Price, 1e-9)
		assert.InDelta(t, 93, signal.TakeProfits[1].Price, 1e-9)
	})

	t.Run("too little history never signals", func(t *testing.T) {
		history := squeezeHistory(32)
		breakoutUp(history)

		assert.Nil(t, strategy.Evaluate(history))
	})

	t.Run("a single close above the band is not confirmation", func(t *testing.T) {
		history := squeezeHistory(40)
		history[39].Close = 103
		history[39].Volume = 2000

		assert.Nil(t, strategy.Evaluate(history))
	})

	t.Run("a broken squeeze window vetoes the entry", func(t *testing.T) {
		history := squeezeHistory(40)
		breakoutUp(history)
		history[34].BBWidth = 0.05

		assert.Nil(t, strategy.Evaluate(history))
	})

	t.Run("a weak adx vetoes the entry", func(t *testing.T) {
		history := squeezeHistory(40)
		breakoutUp(history)
		history[39].ADX14 = 15

		assert.Nil(t, strategy.Evaluate(history))
	})

	t.Run("an undefined adx does not veto the breakout", func(t *testing.T) {
		history := squeezeHistory(40)
		breakoutUp(history)
		history[39].ADX14 = math.NaN()

		assert.NotNil(t, strategy.Evaluate(history))
	})

	t.Run("average volume on the breakout bar vetoes the entry", func(t *testing.T) {
		history := squeezeHistory(40)
		breakoutUp(history)
		history[39].Volume = 1200

		assert.Nil(t, strategy.Evaluate(history))
	})

	t.Run("a soft rsi vetoes the long", func(t *testing.T) {
		history := squeezeHistory(40)
		breakoutUp(history)
		history[39].RSI14 = 48

		assert.Nil(t, strategy.Evaluate(history))
	})

	t.Run("an undefined width inside the window vetoes the entry", func(t *testing.T) {
		history := squeezeHistory(40)
		breakoutUp(history)
		history[30].BBWidth = math.NaN()

		assert.Nil(t, strategy.Evaluate(history))
	})
}
