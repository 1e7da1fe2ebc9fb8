package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

var testStart = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func hourlyBar(symbol string, hour int, open, high, low, closePrice float64) *models.Candle {
	return models.NewCandle(symbol, testStart.Add(time.Duration(hour)*time.Hour), open, high, low, closePrice, 1500)
}

func newTestConfig() Config {
	return Config{
		InitialEquity:    10000,
		RiskFraction:     0.005,
		MaxOpenPositions: 2,
		LeverageCap:      3,
	}
}

func singleTarget(price float64) []models.TakeProfitLevel {
	return []models.TakeProfitLevel{{Price: price, Fraction: 1}}
}

func longSignal(symbol string, entry, stop float64, targets []models.TakeProfitLevel, maxHold time.Duration) *models.Signal {
	return &models.Signal{
		Symbol:      symbol,
		Direction:   models.DirectionLong,
		EntryPrice:  entry,
		StopPrice:   stop,
		TakeProfits: targets,
		MaxHold:     maxHold,
		Reason:      "scripted entry",
		Timestamp:   testStart,
	}
}

// scriptedSource fires canned signals keyed by bar timestamp, or whatever
// the build callback returns when set.
type scriptedSource struct {
	name    string
	signals map[int64]*models.Signal
	build   func(last *models.Candle) *models.Signal
}

func (s *scriptedSource) Name() string {
	return s.name
}

func (s *scriptedSource) Evaluate(history []*models.Candle) *models.Signal {
	last := history[len(history)-1]

	if s.build != nil {
		return s.build(last)
	}

	if signal, ok := s.signals[last.Timestamp.Unix()]; ok {
		return signal
	}

	return nil
}

func scriptedAt(name string, hour int, signal *models.Signal) *scriptedSource {
	return &scriptedSource{
		name: name,
		signals: map[int64]*models.Signal{
			testStart.Add(time.Duration(hour) * time.Hour).Unix(): signal,
		},
	}
}

func TestEngineLadderExits(t *testing.T) {
	t.Run("targets fill in order and breakeven converts the stop", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.BreakevenAfterFirstTarget = true

		targets := []models.TakeProfitLevel{
			{Price: 110, Fraction: 0.5},
			{Price: 120, Fraction: 0.5},
		}

		source := scriptedAt("ladder", 0, longSignal("BTCUSDT", 100, 95, targets, 0))

		engine, err := NewEngine(cfg, []Binding{{Symbol: "BTCUSDT", Source: source}})
		require.NoError(t, err)

		stream := NewSeriesStream("BTCUSDT", models.Candles{
			hourlyBar("BTCUSDT", 0, 100, 101, 99, 100),
			hourlyBar("BTCUSDT", 1, 105, 111, 99, 108),
			hourlyBar("BTCUSDT", 2, 101, 102, 99, 101),
		})

		result, err := engine.Run(context.Background(), []BarStream{stream})
		require.NoError(t, err)

		require.Len(t, result.Trades, 2)

		first := result.Trades[0]
		assert.Equal(t, models.ExitReasonTakeProfit1, first.ExitReason)
		assert.InDelta(t, 5, first.Quantity, 1e-9)
		assert.InDelta(t, 110, first.ExitPrice, 1e-9)
		assert.InDelta(t, 50, first.GrossPnL, 1e-9)

		second := result.Trades[1]
		assert.Equal(t, models.ExitReasonTrailingStop, second.ExitReason)
		assert.InDelta(t, 5, second.Quantity, 1e-9)
		assert.InDelta(t, 100, second.ExitPrice, 1e-9)
		assert.InDelta(t, 0, second.GrossPnL, 1e-9)

		// both fills are fractions of the original ten units
		assert.InDelta(t, 10, first.Quantity+second.Quantity, 1e-9)
		assert.InDelta(t, 10050, result.FinalEquity, 1e-9)
	})
}

func TestEngineCapacity(t *testing.T) {
	t.Run("signals beyond capacity are dropped in symbol order", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.MaxOpenPositions = 2

		symbols := []string{"AAAUSDT", "BBBUSDT", "CCCUSDT"}

		var bindings []Binding
		var streams []BarStream

		for _, symbol := range symbols {
			signal := longSignal(symbol, 100, 95, singleTarget(500), 0)
			bindings = append(bindings, Binding{Symbol: symbol, Source: scriptedAt("capacity-"+symbol, 0, signal)})

			streams = append(streams, NewSeriesStream(symbol, models.Candles{
				hourlyBar(symbol, 0, 100, 101, 99, 100),
				hourlyBar(symbol, 1, 100, 102, 98, 101),
			}))
		}

		engine, err := NewEngine(cfg, bindings)
		require.NoError(t, err)

		result, err := engine.Run(context.Background(), streams)
		require.NoError(t, err)

		require.Len(t, result.Trades, 2)

		var traded []string
		for _, record := range result.Trades {
			traded = append(traded, record.Symbol)
			assert.Equal(t, models.ExitReasonEndOfData, record.ExitReason)
		}

		assert.ElementsMatch(t, []string{"AAAUSDT", "BBBUSDT"}, traded)
	})
}

func TestEngineSignalGating(t *testing.T) {
	t.Run("a binding is not evaluated while its position is open", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.MaxOpenPositions = 5

		source := &scriptedSource{
			name: "eager",
			build: func(last *models.Candle) *models.Signal {
				return &models.Signal{
					Direction:   models.DirectionLong,
					EntryPrice:  last.Close,
					StopPrice:   last.Close * 0.9,
					TakeProfits: singleTarget(last.Close * 10),
				}
			},
		}

		engine, err := NewEngine(cfg, []Binding{{Symbol: "BTCUSDT", Source: source}})
		require.NoError(t, err)

		stream := NewSeriesStream("BTCUSDT", models.Candles{
			hourlyBar("BTCUSDT", 0, 100, 101, 99, 100),
			hourlyBar("BTCUSDT", 1, 100, 102, 98, 101),
			hourlyBar("BTCUSDT", 2, 101, 103, 99, 102),
			hourlyBar("BTCUSDT", 3, 102, 104, 100, 103),
		})

		result, err := engine.Run(context.Background(), []BarStream{stream})
		require.NoError(t, err)

		// the source wanted to enter on every bar
		require.Len(t, result.Trades, 1)
		assert.Equal(t, models.ExitReasonEndOfData, result.Trades[0].ExitReason)
	})

	t.Run("a notional below the minimum skips the signal silently", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.MinNotional = 1e6

		source := scriptedAt("dust", 0, longSignal("BTCUSDT", 100, 95, singleTarget(110), 0))

		engine, err := NewEngine(cfg, []Binding{{Symbol: "BTCUSDT", Source: source}})
		require.NoError(t, err)

		stream := NewSeriesStream("BTCUSDT", models.Candles{
			hourlyBar("BTCUSDT", 0, 100, 101, 99, 100),
			hourlyBar("BTCUSDT", 1, 100, 120, 98, 110),
		})

		result, err := engine.Run(context.Background(), []BarStream{stream})
		require.NoError(t, err)

		assert.Empty(t, result.Trades)
		assert.InDelta(t, cfg.InitialEquity, result.FinalEquity, 1e-9)
	})
}

func TestEngineDataGap(t *testing.T) {
	t.Run("a stalled timestamp aborts the run with the offending bar", func(t *testing.T) {
		source := scriptedAt("gap", 0, longSignal("BTCUSDT", 100, 95, singleTarget(500), 0))

		engine, err := NewEngine(newTestConfig(), []Binding{{Symbol: "BTCUSDT", Source: source}})
		require.NoError(t, err)

		stream := NewSeriesStream("BTCUSDT", models.Candles{
			hourlyBar("BTCUSDT", 0, 100, 101, 99, 100),
			hourlyBar("BTCUSDT", 0, 100, 102, 98, 101),
		})

		result, err := engine.Run(context.Background(), []BarStream{stream})
		require.Error(t, err)
		assert.Nil(t, result)

		var gapErr *models.DataGapError
		require.True(t, errors.As(err, &gapErr))
		assert.Equal(t, "BTCUSDT", gapErr.Symbol)
		assert.Equal(t, testStart, gapErr.Timestamp)
	})
}

func TestEngineEndOfData(t *testing.T) {
	t.Run("leftover positions liquidate at the final close", func(t *testing.T) {
		source := scriptedAt("leftover", 0, longSignal("BTCUSDT", 100, 90, singleTarget(500), 0))

		engine, err := NewEngine(newTestConfig(), []Binding{{Symbol: "BTCUSDT", Source: source}})
		require.NoError(t, err)

		stream := NewSeriesStream("BTCUSDT", models.Candles{
			hourlyBar("BTCUSDT", 0, 100, 101, 99, 100),
			hourlyBar("BTCUSDT", 1, 100, 102, 98, 101),
			hourlyBar("BTCUSDT", 2, 101, 103, 100, 102),
		})

		result, err := engine.Run(context.Background(), []BarStream{stream})
		require.NoError(t, err)

		require.Len(t, result.Trades, 1)

		record := result.Trades[0]
		assert.Equal(t, models.ExitReasonEndOfData, record.ExitReason)
		assert.InDelta(t, 102, record.ExitPrice, 1e-9)
		assert.Equal(t, testStart.Add(2*time.Hour), record.ExitTimestamp)

		assert.InDelta(t, 10020, result.FinalEquity, 1e-9)

		// the last curve point already marked the position at the final close
		last := result.EquityCurve.Last()
		require.NotNil(t, last)
		assert.InDelta(t, result.FinalEquity, last.Equity, 1e-9)
	})
}

func TestEngineFunding(t *testing.T) {
	fundingBars := func() models.Candles {
		plain := hourlyBar("BTCUSDT", 0, 100, 101, 99, 100)

		funded := hourlyBar("BTCUSDT", 1, 100, 101, 99, 100)
		funded.FundingRate = 0.0001
		funded.FundingEvent = true

		final := hourlyBar("BTCUSDT", 2, 100, 101, 99, 100)

		return models.Candles{plain, funded, final}
	}

	t.Run("funding accrues against longs when enabled", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.ApplyFundingCosts = true

		source := scriptedAt("funded", 0, longSignal("BTCUSDT", 100, 95, singleTarget(500), 0))

		engine, err := NewEngine(cfg, []Binding{{Symbol: "BTCUSDT", Source: source}})
		require.NoError(t, err)

		result, err := engine.Run(context.Background(), []BarStream{NewSeriesStream("BTCUSDT", fundingBars())})
		require.NoError(t, err)

		// 0.0001 * 10 units * close 100
		require.Len(t, result.Trades, 1)
		assert.InDelta(t, 0.1, result.Trades[0].FundingPaid, 1e-9)
		assert.InDelta(t, 10000-0.1, result.FinalEquity, 1e-9)

		assert.InDelta(t, 10000, result.EquityCurve[0].Realized, 1e-9)
		assert.InDelta(t, 9999.9, result.EquityCurve[1].Realized, 1e-9)
	})

	t.Run("funding is ignored when disabled", func(t *testing.T) {
		source := scriptedAt("unfunded", 0, longSignal("BTCUSDT", 100, 95, singleTarget(500), 0))

		engine, err := NewEngine(newTestConfig(), []Binding{{Symbol: "BTCUSDT", Source: source}})
		require.NoError(t, err)

		result, err := engine.Run(context.Background(), []BarStream{NewSeriesStream("BTCUSDT", fundingBars())})
		require.NoError(t, err)

		require.Len(t, result.Trades, 1)
		assert.Zero(t, result.Trades[0].FundingPaid)
		assert.InDelta(t, 10000, result.FinalEquity, 1e-9)
	})
}

func TestEngineFeeAccounting(t *testing.T) {
	t.Run("fees and slippage flow through realized equity", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.RiskFraction = 0.01
		cfg.TakerFeeRate = 0.0004
		cfg.SlippageRate = 0.0005

		source := scriptedAt("fees", 0, longSignal("BTCUSDT", 100, 95, singleTarget(110), 0))

		engine, err := NewEngine(cfg, []Binding{{Symbol: "BTCUSDT", Source: source}})
		require.NoError(t, err)

		stream := NewSeriesStream("BTCUSDT", models.Candles{
			hourlyBar("BTCUSDT", 0, 100, 101, 99, 100),
			hourlyBar("BTCUSDT", 1, 105, 111, 104, 108),
		})

		result, err := engine.Run(context.Background(), []BarStream{stream})
		require.NoError(t, err)

		// quantity 20 at entry fill 100.05, entry fee 0.8004
		entryFee := 100.05 * 20 * 0.0004
		assert.InDelta(t, 10000-entryFee, result.EquityCurve[0].Realized, 1e-9)

		require.Len(t, result.Trades, 1)
		record := result.Trades[0]

		exitFill := 110 * 0.9995
		exitFee := exitFill * 20 * 0.0004
		gross := (exitFill - 100.05) * 20

		assert.InDelta(t, exitFill, record.ExitPrice, 1e-9)
		assert.InDelta(t, gross, record.GrossPnL, 1e-9)
		assert.InDelta(t, entryFee+exitFee, record.Fees, 1e-9)
		assert.InDelta(t, gross-entryFee-exitFee, record.NetPnL(), 1e-9)
		assert.InDelta(t, 10000-entryFee+gross-exitFee, result.FinalEquity, 1e-9)
	})
}

func TestEngineDeterminism(t *testing.T) {
	build := func() (*Engine, []BarStream) {
		cfg := newTestConfig()
		cfg.TakerFeeRate = 0.0004
		cfg.SlippageRate = 0.0005
		cfg.ApplyFundingCosts = true
		cfg.BreakevenAfterFirstTarget = true

		ladder := []models.TakeProfitLevel{
			{Price: 110, Fraction: 0.5},
			{Price: 120, Fraction: 0.5},
		}

		btcSource := scriptedAt("btc-long", 0, longSignal("BTCUSDT", 100, 95, ladder, 0))

		solSignal := &models.Signal{
			Symbol:      "SOLUSDT",
			Direction:   models.DirectionShort,
			EntryPrice:  20,
			StopPrice:   22,
			TakeProfits: singleTarget(10),
		}
		solSource := scriptedAt("sol-short", 1, solSignal)

		bindings := []Binding{
			{Symbol: "BTCUSDT", Source: btcSource},
			{Symbol: "SOLUSDT", Source: solSource},
		}

		engine, err := NewEngine(cfg, bindings)
		require.NoError(t, err)

		funded := hourlyBar("BTCUSDT", 1, 105, 111, 99, 108)
		funded.FundingRate = 0.0001
		funded.FundingEvent = true

		btcStream := NewSeriesStream("BTCUSDT", models.Candles{
			hourlyBar("BTCUSDT", 0, 100, 101, 99, 100),
			funded,
			hourlyBar("BTCUSDT", 2, 101, 102, 99, 101),
		})

		solStream := NewSeriesStream("SOLUSDT", models.Candles{
			hourlyBar("SOLUSDT", 0, 20, 20.5, 19.5, 20),
			hourlyBar("SOLUSDT", 1, 20, 20.4, 19.6, 20),
			hourlyBar("SOLUSDT", 2, 20, 20.3, 19.4, 19.5),
		})

		return engine, []BarStream{btcStream, solStream}
	}

	t.Run("identical inputs reproduce the ledger and curve exactly", func(t *testing.T) {
		engineA, streamsA := build()
		resultA, err := engineA.Run(context.Background(), streamsA)
		require.NoError(t, err)

		engineB, streamsB := build()
		resultB, err := engineB.Run(context.Background(), streamsB)
		require.NoError(t, err)

		// position ids are minted per run
		for _, record := range resultA.Trades {
			record.PositionID = uuid.Nil
		}
		for _, record := range resultB.Trades {
			record.PositionID = uuid.Nil
		}

		require.Equal(t, resultA, resultB)
		require.Len(t, resultA.Trades, 3)
		assert.Len(t, resultA.EquityCurve, 6)
	})
}

func TestEngineCancellation(t *testing.T) {
	t.Run("a cancelled context stops the run between bars", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		source := scriptedAt("cancelled", 0, longSignal("BTCUSDT", 100, 95, singleTarget(110), 0))

		engine, err := NewEngine(newTestConfig(), []Binding{{Symbol: "BTCUSDT", Source: source}})
		require.NoError(t, err)

		stream := NewSeriesStream("BTCUSDT", models.Candles{
			hourlyBar("BTCUSDT", 0, 100, 101, 99, 100),
		})

		_, err = engine.Run(ctx, []BarStream{stream})

		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestEngineValidation(t *testing.T) {
	t.Run("a broken config is rejected up front", func(t *testing.T) {
		_, err := NewEngine(Config{}, []Binding{{Symbol: "BTCUSDT", Source: &scriptedSource{name: "noop"}}})

		assert.Error(t, err)
	})

	t.Run("at least one binding is required", func(t *testing.T) {
		_, err := NewEngine(newTestConfig(), nil)

		assert.Error(t, err)
	})

	t.Run("signals that fail validation are dropped without side effects", func(t *testing.T) {
		broken := &models.Signal{
			Direction:   models.DirectionLong,
			EntryPrice:  100,
			StopPrice:   105,
			TakeProfits: singleTarget(110),
		}

		source := scriptedAt("broken", 0, broken)

		engine, err := NewEngine(newTestConfig(), []Binding{{Symbol: "BTCUSDT", Source: source}})
		require.NoError(t, err)

		stream := NewSeriesStream("BTCUSDT", models.Candles{
			hourlyBar("BTCUSDT", 0, 100, 101, 99, 100),
			hourlyBar("BTCUSDT", 1, 100, 102, 98, 101),
		})

		result, err := engine.Run(context.Background(), []BarStream{stream})
		require.NoError(t, err)

		assert.Empty(t, result.Trades)
		assert.InDelta(t, 10000, result.FinalEquity, 1e-9)
	})
}
