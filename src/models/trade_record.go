package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ExitReason string

const (
	ExitReasonStopLoss     ExitReason = "stop-loss"
	ExitReasonTrailingStop ExitReason = "trailing-stop"
	ExitReasonTakeProfit1  ExitReason = "take-profit-1"
	ExitReasonTakeProfit2  ExitReason = "take-profit-2"
	ExitReasonTimeStop     ExitReason = "time-stop"
	ExitReasonEndOfData    ExitReason = "end-of-data"
)

// TakeProfitExitReason maps a zero-based ladder index to its exit reason.
func TakeProfitExitReason(level int) ExitReason {
	return ExitReason(fmt.Sprintf("take-profit-%d", level+1))
}

// TradeRecord is appended to the ledger on every full or partial close. It
// is immutable once written. Fees carries the proportional entry-fee share
// plus the exit fee for the closed quantity; FundingPaid is reported on the
// final close only.
type TradeRecord struct {
	PositionID     uuid.UUID  `json:"position_id"`
	Symbol         string     `json:"symbol"`
	StrategyTag    string     `json:"strategy_tag"`
	Direction      Direction  `json:"direction"`
	Leverage       float64    `json:"leverage"`
	EntryTimestamp time.Time  `json:"entry_timestamp"`
	ExitTimestamp  time.Time  `json:"exit_timestamp"`
	EntryPrice     float64    `json:"entry_price"`
	ExitPrice      float64    `json:"exit_price"`
	Quantity       float64    `json:"quantity"`
	GrossPnL       float64    `json:"gross_pnl"`
	Fees           float64    `json:"fees"`
	FundingPaid    float64    `json:"funding_paid"`
	ExitReason     ExitReason `json:"exit_reason"`
}

func (t *TradeRecord) NetPnL() float64 {
	return t.GrossPnL - t.Fees - t.FundingPaid
}

func (t *TradeRecord) IsWin() bool {
	return t.NetPnL() > 0
}

func (t *TradeRecord) HoldDuration() time.Duration {
	return t.ExitTimestamp.Sub(t.EntryTimestamp)
}

// ReturnOnMarginPct is the net return on the margin backing the closed
// quantity, in percent.
func (t *TradeRecord) ReturnOnMarginPct() float64 {
	leverage := t.Leverage
	if leverage <= 0 {
		leverage = 1
	}

	margin := t.EntryPrice * t.Quantity / leverage
	if margin == 0 {
		return 0
	}
	return t.NetPnL() / margin * 100
}
