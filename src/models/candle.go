package models

import (
	"fmt"
	"math"
	"time"
)

// Candle is one bar of market data. Funding, open interest and indicator
// fields hold NaN until the merge and enrichment passes populate them.
// FundingRate is forward-filled across bars; FundingEvent is true only on
// bars where a funding settlement actually landed.
type Candle struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64

	FundingRate  float64
	FundingEvent bool
	OpenInterest float64
	OIChangePct  float64

	EMA200     float64
	ATR14      float64
	RSI14      float64
	BBUpper    float64
	BBMiddle   float64
	BBLower    float64
	BBWidth    float64
	ADX14      float64
	VolumeMA20 float64
}

func NewCandle(symbol string, timestamp time.Time, open, high, low, closePrice, volume float64) *Candle {
	nan := math.NaN()
	return &Candle{
		Symbol:       symbol,
		Timestamp:    timestamp,
		Open:         open,
		High:         high,
		Low:          low,
		Close:        closePrice,
		Volume:       volume,
		FundingRate:  nan,
		OpenInterest: nan,
		OIChangePct:  nan,
		EMA200:       nan,
		ATR14:        nan,
		RSI14:        nan,
		BBUpper:      nan,
		BBMiddle:     nan,
		BBLower:      nan,
		BBWidth:      nan,
		ADX14:        nan,
		VolumeMA20:   nan,
	}
}

func (c *Candle) HasFunding() bool {
	return !math.IsNaN(c.FundingRate)
}

func (c *Candle) HasOpenInterest() bool {
	return !math.IsNaN(c.OpenInterest)
}

// Candles is a chronologically ordered series for a single symbol.
type Candles []*Candle

func (cs Candles) Last() *Candle {
	if len(cs) == 0 {
		return nil
	}
	return cs[len(cs)-1]
}

func (cs Candles) Closes() []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}

func (cs Candles) Volumes() []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Volume
	}
	return out
}

// Validate checks that timestamps are strictly increasing.
func (cs Candles) Validate() error {
	for i := 1; i < len(cs); i++ {
		if !cs[i].Timestamp.After(cs[i-1].Timestamp) {
			return fmt.Errorf("Candles.Validate: %w", &DataGapError{
				Symbol:    cs[i].Symbol,
				Timestamp: cs[i].Timestamp,
				Previous:  cs[i-1].Timestamp,
			})
		}
	}
	return nil
}
