package strategies

import (
	"fmt"
	"math"
	"time"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

// FundingDivergence trades crowded positioning on perpetual futures. A
// deeply negative funding rate while price holds above its long trend EMA
// means shorts are paying to stay trapped, so it goes long the squeeze. The
// mirrored setup shorts euphoric longs below the trend.
type FundingDivergence struct {
	params FundingDivergenceParams
}

func NewFundingDivergence(params FundingDivergenceParams) *FundingDivergence {
	return &FundingDivergence{params: params}
}

func (s *FundingDivergence) Name() string {
	return "funding-divergence"
}

func (s *FundingDivergence) Evaluate(history []*models.Candle) *models.Signal {
	idx := len(history) - 1
	if idx < s.params.TrendEmaPeriod {
		return nil
	}

	if !volatilityInBand(history, s.params.MinAtrRatio, s.params.MaxAtrRatio) {
		return nil
	}

	bar := history[idx]

	if math.IsNaN(bar.ATR14) || bar.ATR14 == 0 {
		return nil
	}

	// a NaN funding rate crosses neither threshold
	if bar.FundingRate < s.params.FundingLongThreshold && bar.Close > bar.EMA200 {
		if !math.IsNaN(bar.OIChangePct) && bar.OIChangePct < s.params.OiDropThreshold {
			return nil
		}

		return s.newSignal(bar, models.DirectionLong,
			fmt.Sprintf("short squeeze setup: funding=%.4f%% price>%.0f", bar.FundingRate*100, bar.EMA200))
	}

	if bar.FundingRate > s.params.FundingShortThreshold && bar.Close < bar.EMA200 {
		if !math.IsNaN(bar.OIChangePct) && bar.OIChangePct < s.params.OiDropThreshold {
			return nil
		}

		return s.newSignal(bar, models.DirectionShort,
			fmt.Sprintf("long squeeze setup: funding=%.4f%% price<%.0f", bar.FundingRate*100, bar.EMA200))
	}

	return nil
}

func (s *FundingDivergence) newSignal(bar *models.Candle, direction models.Direction, reason string) *models.Signal {
	sign := direction.Sign()

	return &models.Signal{
		Symbol:     bar.Symbol,
		Direction:  direction,
		EntryPrice: bar.Close,
		StopPrice:  bar.Close - sign*bar.ATR14*s.params.StopAtrMultiplier,
		TakeProfits: []models.TakeProfitLevel{
			{Price: bar.Close + sign*bar.ATR14*s.params.TargetAtrMultiplier, Fraction: 1},
		},
		MaxHold:   time.Duration(s.params.MaxHoldDays) * 24 * time.Hour,
		Leverage:  s.params.Leverage,
		Reason:    reason,
		Timestamp: bar.Timestamp,
	}
}
