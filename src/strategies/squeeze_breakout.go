package strategies

import (
	"fmt"
	"math"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

// SqueezeBreakout waits for a Bollinger band squeeze, then enters in the
// direction of the breakout once volume and RSI confirm it. Half the
// position exits at the first target, the rest rides to the second with the
// stop trailed to breakeven.
type SqueezeBreakout struct {
	params SqueezeBreakoutParams
}

func NewSqueezeBreakout(params SqueezeBreakoutParams) *SqueezeBreakout {
	return &SqueezeBreakout{params: params}
}

func (s *SqueezeBreakout) Name() string {
	return "squeeze-breakout"
}

func (s *SqueezeBreakout) Evaluate(history []*models.Candle) *models.Signal {
	idx := len(history) - 1
	if idx < s.params.BollingerPeriod+s.params.SqueezeMinCandles {
		return nil
	}

	bar := history[idx]
	prev := history[idx-1]

	if bar.ADX14 < s.params.AdxThreshold {
		return nil
	}

	if math.IsNaN(bar.ATR14) || math.IsNaN(bar.RSI14) || math.IsNaN(bar.BBWidth) || math.IsNaN(bar.VolumeMA20) {
		return nil
	}

	if bar.ATR14 == 0 || bar.VolumeMA20 == 0 {
		return nil
	}

	// every width in the squeeze window must be compressed
	for _, candle := range history[idx-s.params.SqueezeMinCandles:] {
		if !(candle.BBWidth < s.params.SqueezeThreshold) {
			return nil
		}
	}

	volumeRatio := bar.Volume / bar.VolumeMA20
	if volumeRatio <= s.params.VolumeMultiplier {
		return nil
	}

	if bar.Close > bar.BBUpper && prev.Close > prev.BBUpper && bar.RSI14 > 50 {
		stopPrice := math.Max(bar.Close-bar.ATR14*s.params.StopAtrMultiplier, bar.BBMiddle)

		return s.newSignal(bar, models.DirectionLong, stopPrice,
			fmt.Sprintf("squeeze breakout up: rsi=%.1f vol=%.1fx", bar.RSI14, volumeRatio))
	}

	if bar.Close < bar.BBLower && bar.RSI14 < 50 {
		stopPrice := math.Min(bar.Close+bar.ATR14*s.params.StopAtrMultiplier, bar.BBMiddle)

		return s.newSignal(bar, models.DirectionShort, stopPrice,
			fmt.Sprintf("squeeze breakout down: rsi=%.1f vol=%.1fx", bar.RSI14, volumeRatio))
	}

	return nil
}

func (s *SqueezeBreakout) newSignal(bar *models.Candle, direction models.Direction, stopPrice float64, reason string) *models.Signal {
	sign := direction.Sign()

	return &models.Signal{
		Symbol:     bar.Symbol,
		Direction:  direction,
		EntryPrice: bar.Close,
		StopPrice:  stopPrice,
		TakeProfits: []models.TakeProfitLevel{
			{Price: bar.Close + sign*bar.ATR14*s.params.Tp1AtrMultiplier, Fraction: 0.5},
			{Price: bar.Close + sign*bar.ATR14*s.params.Tp2AtrMultiplier, Fraction: 0.5},
		},
		Leverage:  s.params.Leverage,
		Reason:    reason,
		Timestamp: bar.Timestamp,
	}
}
