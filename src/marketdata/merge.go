package marketdata

import (
	"math"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

// MergeFundingRates stamps each candle with the most recent funding rate at
// or before its timestamp, forward-filling between settlements. Bars that
// consumed at least one new settlement are flagged as funding events so the
// engine charges funding once per settlement, not once per bar. Candles
// before the first sample keep NaN. Both series must be sorted by timestamp.
func MergeFundingRates(candles models.Candles, rates []FundingRate) {
	i := 0
	current := math.NaN()

	for _, candle := range candles {
		settled := false

		for i < len(rates) && !rates[i].Timestamp.After(candle.Timestamp) {
			current = rates[i].Rate
			settled = true
			i++
		}

		candle.FundingRate = current
		candle.FundingEvent = settled && !math.IsNaN(current)
	}
}

// MergeOpenInterest stamps each candle with the most recent open-interest
// sample at or before its timestamp and derives the bar-to-bar change
// percent of the filled series. Both series must be sorted by timestamp.
func MergeOpenInterest(candles models.Candles, points []OpenInterestPoint) {
	i := 0
	current := math.NaN()
	previous := math.NaN()

	for _, candle := range candles {
		for i < len(points) && !points[i].Timestamp.After(candle.Timestamp) {
			current = points[i].Value
			i++
		}

		candle.OpenInterest = current

		if !math.IsNaN(previous) && previous != 0 && !math.IsNaN(current) {
			candle.OIChangePct = current/previous - 1
		} else {
			candle.OIChangePct = math.NaN()
		}

		previous = current
	}
}
