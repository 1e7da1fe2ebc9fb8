package indicators

import (
	"fmt"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

const (
	AtrPeriod       = 14
	RsiPeriod       = 14
	AdxPeriod       = 14
	VolumePeriod    = 20
	TrendEmaPeriod  = 200
	BollingerPeriod = 20
	BollingerStdDev = 2.0
)

// Enrich stamps the standard indicator set onto each candle in place.
// Positions before an indicator's warmup keep NaN, so strategies can gate on
// completeness instead of counting bars themselves.
func Enrich(candles models.Candles) error {
	if len(candles) == 0 {
		return nil
	}

	closes := candles.Closes()

	ema, err := Ema(closes, TrendEmaPeriod)
	if err != nil {
		return fmt.Errorf("Enrich: %w", err)
	}

	atr, err := Atr(candles, AtrPeriod)
	if err != nil {
		return fmt.Errorf("Enrich: %w", err)
	}

	rsi, err := Rsi(closes, RsiPeriod)
	if err != nil {
		return fmt.Errorf("Enrich: %w", err)
	}

	bands, err := NewBollingerBands(closes, BollingerPeriod, BollingerStdDev)
	if err != nil {
		return fmt.Errorf("Enrich: %w", err)
	}

	adx, err := Adx(candles, AdxPeriod)
	if err != nil {
		return fmt.Errorf("Enrich: %w", err)
	}

	volumeMA, err := Sma(candles.Volumes(), VolumePeriod)
	if err != nil {
		return fmt.Errorf("Enrich: %w", err)
	}

	for i, candle := range candles {
		candle.EMA200 = ema[i]
		candle.ATR14 = atr[i]
		candle.RSI14 = rsi[i]
		candle.BBUpper = bands.Upper[i]
		candle.BBMiddle = bands.Middle[i]
		candle.BBLower = bands.Lower[i]
		candle.BBWidth = bands.Width[i]
		candle.ADX14 = adx[i]
		candle.VolumeMA20 = volumeMA[i]
	}

	return nil
}
