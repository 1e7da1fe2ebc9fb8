package backtest

import "github.com/jiaming2012/crypto-backtest/src/models"

// ExecutionSimulator turns an intended order at a reference price into the
// fill price and fee rate the exchange would have produced. Slippage always
// works against the trader: buys fill above the reference, sells below it.
type ExecutionSimulator struct {
	slippageRate float64
	makerFeeRate float64
	takerFeeRate float64
}

func NewExecutionSimulator(cfg Config) *ExecutionSimulator {
	return &ExecutionSimulator{
		slippageRate: cfg.SlippageRate,
		makerFeeRate: cfg.MakerFeeRate,
		takerFeeRate: cfg.TakerFeeRate,
	}
}

func (e *ExecutionSimulator) Fill(referencePrice float64, side models.OrderSide, isMaker bool) (fillPrice float64, feeRate float64) {
	if side == models.OrderSideBuy {
		fillPrice = referencePrice * (1 + e.slippageRate)
	} else {
		fillPrice = referencePrice * (1 - e.slippageRate)
	}

	feeRate = e.takerFeeRate
	if isMaker {
		feeRate = e.makerFeeRate
	}

	return fillPrice, feeRate
}
