package backtest

import (
	"fmt"
	"math"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

// RiskSizer converts entry intents into position quantities such that a
// stop-loss hit loses a fixed fraction of account equity.
type RiskSizer struct {
	riskFraction float64
	minNotional  float64
}

func NewRiskSizer(cfg Config) *RiskSizer {
	return &RiskSizer{
		riskFraction: cfg.RiskFraction,
		minNotional:  cfg.MinNotional,
	}
}

// Size returns the quantity to trade for the given equity and stop layout.
// The raw risk-based quantity is capped so that notional exposure never
// exceeds leverageCap times equity. A zero quantity with a nil error means
// the capped notional fell below the minimum and the trade is skipped.
func (r *RiskSizer) Size(equity, entryPrice, stopPrice float64, direction models.Direction, leverageCap float64) (float64, error) {
	if err := direction.Validate(); err != nil {
		return 0, fmt.Errorf("RiskSizer.Size: %w", err)
	}

	if entryPrice <= 0 {
		return 0, fmt.Errorf("RiskSizer.Size: entry price %v must be positive", entryPrice)
	}

	if stopPrice <= 0 {
		return 0, fmt.Errorf("RiskSizer.Size: stop price %v must be positive: %w", stopPrice, models.ErrInvalidStop)
	}

	if direction == models.DirectionLong && stopPrice >= entryPrice {
		return 0, fmt.Errorf("RiskSizer.Size: long stop %v is not below entry %v: %w", stopPrice, entryPrice, models.ErrInvalidStop)
	}

	if direction == models.DirectionShort && stopPrice <= entryPrice {
		return 0, fmt.Errorf("RiskSizer.Size: short stop %v is not above entry %v: %w", stopPrice, entryPrice, models.ErrInvalidStop)
	}

	if leverageCap <= 0 {
		return 0, fmt.Errorf("RiskSizer.Size: leverage cap %v must be positive", leverageCap)
	}

	if equity <= 0 {
		return 0, nil
	}

	perUnitRisk := math.Abs(entryPrice - stopPrice)
	quantity := equity * r.riskFraction / perUnitRisk

	maxQuantity := leverageCap * equity / entryPrice
	if quantity > maxQuantity {
		quantity = maxQuantity
	}

	if quantity*entryPrice < r.minNotional {
		return 0, nil
	}

	return quantity, nil
}
