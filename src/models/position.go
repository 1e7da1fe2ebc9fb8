package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PositionStatus string

const (
	PositionStatusOpen            PositionStatus = "OPEN"
	PositionStatusPartiallyClosed PositionStatus = "PARTIALLY_CLOSED"
	PositionStatusClosed          PositionStatus = "CLOSED"
)

const quantityTolerance = 1e-9

// Position is an open simulated trade. Only the engine's replay goroutine
// mutates it.
type Position struct {
	ID            uuid.UUID
	Symbol        string
	StrategyTag   string
	Direction     Direction
	OpenTimestamp time.Time

	EntryPrice        float64
	OriginalQuantity  float64
	RemainingQuantity float64
	EntryFee          float64
	Leverage          float64

	StopPrice   float64
	InitialStop float64
	StopMoved   bool

	TakeProfits []TakeProfitLevel
	Deadline    time.Time

	FundingPaid float64

	EntryReason string
}

// NewPosition creates an open position from an accepted signal. fillPrice is
// the slippage-adjusted entry, quantity the sized amount in base currency.
func NewPosition(signal *Signal, strategyTag string, quantity, fillPrice, entryFee float64, openedAt time.Time) *Position {
	ladder := make([]TakeProfitLevel, len(signal.TakeProfits))
	copy(ladder, signal.TakeProfits)

	pos := &Position{
		ID:                uuid.New(),
		Symbol:            signal.Symbol,
		StrategyTag:       strategyTag,
		Direction:         signal.Direction,
		OpenTimestamp:     openedAt,
		EntryPrice:        fillPrice,
		OriginalQuantity:  quantity,
		RemainingQuantity: quantity,
		EntryFee:          entryFee,
		Leverage:          signal.Leverage,
		StopPrice:         signal.StopPrice,
		InitialStop:       signal.StopPrice,
		TakeProfits:       ladder,
		EntryReason:       signal.Reason,
	}

	if signal.MaxHold > 0 {
		pos.Deadline = openedAt.Add(signal.MaxHold)
	}

	return pos
}

func (p *Position) Status() PositionStatus {
	switch {
	case p.RemainingQuantity <= 0:
		return PositionStatusClosed
	case p.RemainingQuantity < p.OriginalQuantity:
		return PositionStatusPartiallyClosed
	default:
		return PositionStatusOpen
	}
}

func (p *Position) ClosedFraction() float64 {
	if p.OriginalQuantity == 0 {
		return 0
	}
	return 1 - p.RemainingQuantity/p.OriginalQuantity
}

func (p *Position) RemainingFraction() float64 {
	if p.OriginalQuantity == 0 {
		return 0
	}
	return p.RemainingQuantity / p.OriginalQuantity
}

func (p *Position) HasDeadline() bool {
	return !p.Deadline.IsZero()
}

// NextTakeProfit returns the nearest unfilled ladder level and its index, or
// (-1, nil) when the ladder is exhausted.
func (p *Position) NextTakeProfit() (int, *TakeProfitLevel) {
	for i := range p.TakeProfits {
		if !p.TakeProfits[i].Filled {
			return i, &p.TakeProfits[i]
		}
	}
	return -1, nil
}

func (p *Position) FilledTargets() int {
	count := 0
	for _, tp := range p.TakeProfits {
		if tp.Filled {
			count++
		}
	}
	return count
}

// MoveStop tightens the stop price. Long stops only move up, short stops
// only move down.
func (p *Position) MoveStop(price float64) error {
	if p.Direction == DirectionLong && price < p.StopPrice {
		return fmt.Errorf("MoveStop: %v loosens long stop %v", price, p.StopPrice)
	}
	if p.Direction == DirectionShort && price > p.StopPrice {
		return fmt.Errorf("MoveStop: %v loosens short stop %v", price, p.StopPrice)
	}
	if price == p.StopPrice {
		return nil
	}

	p.StopPrice = price
	p.StopMoved = true
	return nil
}

// Reduce removes quantity from the position after a full or partial close.
func (p *Position) Reduce(quantity float64) error {
	if quantity <= 0 {
		return fmt.Errorf("Reduce: quantity %v must be positive", quantity)
	}
	if quantity > p.RemainingQuantity+quantityTolerance*p.OriginalQuantity {
		return fmt.Errorf("Reduce: quantity %v exceeds remaining %v", quantity, p.RemainingQuantity)
	}

	p.RemainingQuantity -= quantity
	if p.RemainingQuantity < quantityTolerance*p.OriginalQuantity {
		p.RemainingQuantity = 0
	}
	return nil
}

// UnrealizedPnL marks the remaining quantity against the given price.
func (p *Position) UnrealizedPnL(markPrice float64) float64 {
	return p.Direction.Sign() * (markPrice - p.EntryPrice) * p.RemainingQuantity
}
