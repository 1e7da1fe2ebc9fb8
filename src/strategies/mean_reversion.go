package strategies

import (
	"fmt"
	"math"
	"time"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

// MeanReversion fades extremes back to the Bollinger middle band. Longs
// need an oversold but not capitulating RSI at the lower band near swing
// support inside a macro uptrend, with a volume spike marking the flush.
// Shorts mirror the setup at the upper band. Half the position exits at the
// middle band, the rest at an ATR multiple, and the trade is abandoned if
// price has not reverted within the hold window.
type MeanReversion struct {
	params MeanReversionParams
}

func NewMeanReversion(params MeanReversionParams) *MeanReversion {
	return &MeanReversion{params: params}
}

func (s *MeanReversion) Name() string {
	return "mean-reversion"
}

func (s *MeanReversion) Evaluate(history []*models.Candle) *models.Signal {
	idx := len(history) - 1

	warmup := s.params.TrendEmaPeriod
	if s.params.BollingerPeriod > warmup {
		warmup = s.params.BollingerPeriod
	}
	if s.params.SwingLookback > warmup {
		warmup = s.params.SwingLookback
	}

	if idx < warmup {
		return nil
	}

	if !volatilityInBand(history, s.params.MinAtrRatio, s.params.MaxAtrRatio) {
		return nil
	}

	bar := history[idx]

	if math.IsNaN(bar.ATR14) || bar.ATR14 == 0 {
		return nil
	}

	volumeMA := meanVolume(history, s.params.VolumeMaPeriod)

	volumeRatio := 1.0
	if volumeMA > 0 {
		volumeRatio = bar.Volume / volumeMA
	}

	swingLow, swingHigh := swingRange(history, s.params.SwingLookback)

	if s.longConditions(bar, swingLow, volumeRatio) {
		stopPrice := math.Max(bar.Close-bar.ATR14*s.params.StopAtrMultiplier, swingLow*0.995)

		return s.newSignal(bar, models.DirectionLong, stopPrice, bar.BBMiddle,
			fmt.Sprintf("mean reversion long: rsi=%.1f lower band vol=%.1fx", bar.RSI14, volumeRatio))
	}

	if s.shortConditions(bar, swingHigh, volumeRatio) {
		stopPrice := math.Min(bar.Close+bar.ATR14*s.params.StopAtrMultiplier, swingHigh*1.005)

		return s.newSignal(bar, models.DirectionShort, stopPrice, bar.BBMiddle,
			fmt.Sprintf("mean reversion short: rsi=%.1f upper band vol=%.1fx", bar.RSI14, volumeRatio))
	}

	return nil
}

func (s *MeanReversion) longConditions(bar *models.Candle, swingLow, volumeRatio float64) bool {
	atLowerBand := bar.Close <= bar.BBLower*1.005
	rsiValid := bar.RSI14 > s.params.RsiExtremeLow && bar.RSI14 < s.params.RsiOversold
	macroUptrend := bar.Close > bar.EMA200
	nearSupport := bar.Close <= swingLow*(1+s.params.SwingTolerance)
	volumeSpike := volumeRatio > s.params.VolumeSpikeMult

	return atLowerBand && rsiValid && macroUptrend && nearSupport && volumeSpike
}

func (s *MeanReversion) shortConditions(bar *models.Candle, swingHigh, volumeRatio float64) bool {
	atUpperBand := bar.Close >= bar.BBUpper*0.995
	rsiValid := bar.RSI14 > s.params.RsiOverbought && bar.RSI14 < s.params.RsiExtremeHigh
	macroDowntrend := bar.Close < bar.EMA200
	nearResistance := bar.Close >= swingHigh*(1-s.params.SwingTolerance)
	volumeSpike := volumeRatio > s.params.VolumeSpikeMult

	return atUpperBand && rsiValid && macroDowntrend && nearResistance && volumeSpike
}

func (s *MeanReversion) newSignal(bar *models.Candle, direction models.Direction, stopPrice, firstTarget float64, reason string) *models.Signal {
	sign := direction.Sign()

	return &models.Signal{
		Symbol:     bar.Symbol,
		Direction:  direction,
		EntryPrice: bar.Close,
		StopPrice:  stopPrice,
		TakeProfits: []models.TakeProfitLevel{
			{Price: firstTarget, Fraction: 0.5},
			{Price: bar.Close + sign*bar.ATR14*s.params.Tp2AtrMultiplier, Fraction: 0.5},
		},
		MaxHold:   time.Duration(s.params.MaxHoldHours) * time.Hour,
		Leverage:  s.params.Leverage,
		Reason:    reason,
		Timestamp: bar.Timestamp,
	}
}
