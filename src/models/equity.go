package models

import "time"

// EquityPoint is one sample of account value recorded after a processed bar.
// Drawdown is the fractional decline from the running peak, never negative.
type EquityPoint struct {
	Timestamp  time.Time `json:"timestamp"`
	Realized   float64   `json:"realized"`
	Unrealized float64   `json:"unrealized"`
	Equity     float64   `json:"equity"`
	Peak       float64   `json:"peak"`
	Drawdown   float64   `json:"drawdown"`
	OpenCount  int       `json:"open_positions"`
}

// EquityCurve is append-only and ordered by timestamp.
type EquityCurve []EquityPoint

func (ec EquityCurve) Last() *EquityPoint {
	if len(ec) == 0 {
		return nil
	}
	return &ec[len(ec)-1]
}

func (ec EquityCurve) FinalEquity() float64 {
	if last := ec.Last(); last != nil {
		return last.Equity
	}
	return 0
}
