package backtest

import "fmt"

// Config is the immutable engine configuration. It is passed by value at
// construction; the engine never mutates it to work around bad input.
type Config struct {
	InitialEquity    float64 `json:"initial_equity"`
	RiskFraction     float64 `json:"risk_fraction"`
	MaxOpenPositions int     `json:"max_open_positions"`
	LeverageCap      float64 `json:"leverage_cap"`
	MinNotional      float64 `json:"min_notional"`

	MakerFeeRate float64 `json:"maker_fee"`
	TakerFeeRate float64 `json:"taker_fee"`
	SlippageRate float64 `json:"slippage"`

	BreakevenAfterFirstTarget bool `json:"breakeven_after_first_target"`
	ApplyFundingCosts         bool `json:"apply_funding_costs"`
}

func (c Config) Validate() error {
	if c.InitialEquity <= 0 {
		return fmt.Errorf("Config.Validate: initial equity %v must be positive", c.InitialEquity)
	}

	if c.RiskFraction <= 0 || c.RiskFraction >= 1 {
		return fmt.Errorf("Config.Validate: risk fraction %v must be inside (0, 1)", c.RiskFraction)
	}

	if c.MaxOpenPositions <= 0 {
		return fmt.Errorf("Config.Validate: max open positions %d must be positive", c.MaxOpenPositions)
	}

	if c.LeverageCap <= 0 {
		return fmt.Errorf("Config.Validate: leverage cap %v must be positive", c.LeverageCap)
	}

	if c.MinNotional < 0 {
		return fmt.Errorf("Config.Validate: min notional %v must not be negative", c.MinNotional)
	}

	if c.MakerFeeRate < 0 || c.TakerFeeRate < 0 {
		return fmt.Errorf("Config.Validate: fee rates must not be negative")
	}

	if c.SlippageRate < 0 || c.SlippageRate >= 1 {
		return fmt.Errorf("Config.Validate: slippage rate %v must be inside [0, 1)", c.SlippageRate)
	}

	return nil
}
