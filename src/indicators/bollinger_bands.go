package indicators

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

type BollingerBands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64

	// Width is the band spread normalized by the middle band, comparable
	// across price levels.
	Width []float64
}

// rollingStd computes a windowed sample standard deviation with the same
// NaN alignment as rollingMean.
func rollingStd(values []float64, period int) []float64 {
	out := nanSlice(len(values))

	for i := period - 1; i < len(values); i++ {
		sd, err := stats.StandardDeviationSample(values[i+1-period : i+1])
		if err != nil {
			continue
		}

		out[i] = sd
	}

	return out
}

// NewBollingerBands computes bands around a simple moving average of values,
// offset by deviations sample standard deviations.
func NewBollingerBands(values []float64, period int, deviations float64) (*BollingerBands, error) {
	if period <= 1 {
		return nil, fmt.Errorf("NewBollingerBands: period %d must exceed one", period)
	}

	middle := rollingMean(values, period)
	sd := rollingStd(values, period)

	bands := &BollingerBands{
		Upper:  make([]float64, len(values)),
		Middle: middle,
		Lower:  make([]float64, len(values)),
		Width:  make([]float64, len(values)),
	}

	for i := range values {
		bands.Upper[i] = middle[i] + deviations*sd[i]
		bands.Lower[i] = middle[i] - deviations*sd[i]
		bands.Width[i] = (bands.Upper[i] - bands.Lower[i]) / middle[i]
	}

	return bands, nil
}
