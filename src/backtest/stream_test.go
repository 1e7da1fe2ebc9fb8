package backtest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

func TestSeriesStream(t *testing.T) {
	t.Run("yields candles in order and then stops", func(t *testing.T) {
		stream := NewSeriesStream("BTCUSDT", models.Candles{
			hourlyBar("BTCUSDT", 0, 100, 101, 99, 100),
			hourlyBar("BTCUSDT", 1, 100, 102, 100, 101),
		})

		first, ok := stream.Next()
		require.True(t, ok)
		assert.Equal(t, testStart, first.Timestamp)

		second, ok := stream.Next()
		require.True(t, ok)
		assert.Equal(t, testStart.Add(time.Hour), second.Timestamp)

		_, ok = stream.Next()
		assert.False(t, ok)
	})
}

func TestMergedStream(t *testing.T) {
	t.Run("interleaves symbols chronologically", func(t *testing.T) {
		btc := NewSeriesStream("BTCUSDT", models.Candles{
			hourlyBar("BTCUSDT", 0, 100, 101, 99, 100),
			hourlyBar("BTCUSDT", 2, 100, 102, 100, 101),
		})
		sol := NewSeriesStream("SOLUSDT", models.Candles{
			hourlyBar("SOLUSDT", 1, 20, 21, 19, 20),
		})

		merged, err := newMergedStream([]BarStream{btc, sol})
		require.NoError(t, err)

		var symbols []string
		for {
			bar, ok, err := merged.Next()
			require.NoError(t, err)

			if !ok {
				break
			}

			symbols = append(symbols, bar.Symbol)
		}

		assert.Equal(t, []string{"BTCUSDT", "SOLUSDT", "BTCUSDT"}, symbols)
	})

	t.Run("equal timestamps come out in lexical symbol order", func(t *testing.T) {
		sol := NewSeriesStream("SOLUSDT", models.Candles{
			hourlyBar("SOLUSDT", 0, 20, 21, 19, 20),
		})
		btc := NewSeriesStream("BTCUSDT", models.Candles{
			hourlyBar("BTCUSDT", 0, 100, 101, 99, 100),
		})

		merged, err := newMergedStream([]BarStream{sol, btc})
		require.NoError(t, err)

		first, ok, err := merged.Next()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "BTCUSDT", first.Symbol)

		second, ok, err := merged.Next()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "SOLUSDT", second.Symbol)
	})

	t.Run("a timestamp that does not advance is a data gap", func(t *testing.T) {
		btc := NewSeriesStream("BTCUSDT", models.Candles{
			hourlyBar("BTCUSDT", 0, 100, 101, 99, 100),
			hourlyBar("BTCUSDT", 0, 100, 102, 100, 101),
		})

		merged, err := newMergedStream([]BarStream{btc})
		require.NoError(t, err)

		_, ok, err := merged.Next()
		require.NoError(t, err)
		require.True(t, ok)

		_, _, err = merged.Next()
		require.Error(t, err)

		var gapErr *models.DataGapError
		require.True(t, errors.As(err, &gapErr))
		assert.Equal(t, "BTCUSDT", gapErr.Symbol)
		assert.Equal(t, testStart, gapErr.Timestamp)
		assert.True(t, errors.Is(err, models.ErrDataGap))
	})

	t.Run("duplicate symbol streams are rejected", func(t *testing.T) {
		first := NewSeriesStream("BTCUSDT", nil)
		second := NewSeriesStream("BTCUSDT", nil)

		_, err := newMergedStream([]BarStream{first, second})

		assert.Error(t, err)
	})

	t.Run("exhausted streams end the merge", func(t *testing.T) {
		merged, err := newMergedStream([]BarStream{NewSeriesStream("BTCUSDT", nil)})
		require.NoError(t, err)

		_, ok, err := merged.Next()
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
