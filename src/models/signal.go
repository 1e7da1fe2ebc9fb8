package models

import (
	"fmt"
	"math"
	"time"
)

type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

func (d Direction) Validate() error {
	switch d {
	case DirectionLong, DirectionShort:
		return nil
	default:
		return fmt.Errorf("unknown direction: %v", d)
	}
}

// Sign is the multiplier that turns a price move into signed P&L: +1 for
// longs, -1 for shorts.
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// EntrySide is the order side that opens a position in this direction.
func (d Direction) EntrySide() OrderSide {
	if d == DirectionShort {
		return OrderSideSell
	}
	return OrderSideBuy
}

// ExitSide is the order side that closes a position in this direction.
func (d Direction) ExitSide() OrderSide {
	if d == DirectionShort {
		return OrderSideBuy
	}
	return OrderSideSell
}

// TakeProfitLevel is one rung of a take-profit ladder. Fraction refers to
// the original position quantity, not the remaining one.
type TakeProfitLevel struct {
	Price    float64 `json:"price"`
	Fraction float64 `json:"fraction"`
	Filled   bool    `json:"filled"`
}

const fractionTolerance = 1e-9

// Signal is a strategy's entry intent for the bar it was produced on. It is
// consumed immediately by the engine or discarded.
type Signal struct {
	Symbol      string
	Direction   Direction
	EntryPrice  float64
	StopPrice   float64
	TakeProfits []TakeProfitLevel
	MaxHold     time.Duration
	Leverage    float64
	Reason      string
	Timestamp   time.Time
}

func (s *Signal) Validate() error {
	if err := s.Direction.Validate(); err != nil {
		return fmt.Errorf("Signal.Validate: %w", err)
	}

	if s.EntryPrice <= 0 {
		return fmt.Errorf("Signal.Validate: entry price %v must be positive", s.EntryPrice)
	}

	if s.StopPrice <= 0 {
		return fmt.Errorf("Signal.Validate: stop price %v must be positive: %w", s.StopPrice, ErrInvalidStop)
	}

	if s.Direction == DirectionLong && s.StopPrice >= s.EntryPrice {
		return fmt.Errorf("Signal.Validate: long stop %v is not below entry %v: %w", s.StopPrice, s.EntryPrice, ErrInvalidStop)
	}

	if s.Direction == DirectionShort && s.StopPrice <= s.EntryPrice {
		return fmt.Errorf("Signal.Validate: short stop %v is not above entry %v: %w", s.StopPrice, s.EntryPrice, ErrInvalidStop)
	}

	if len(s.TakeProfits) < 1 || len(s.TakeProfits) > 2 {
		return fmt.Errorf("Signal.Validate: take-profit ladder must have one or two levels, found %d", len(s.TakeProfits))
	}

	fractionSum := 0.0
	prev := s.EntryPrice
	for i, tp := range s.TakeProfits {
		if tp.Fraction <= 0 || tp.Fraction > 1 {
			return fmt.Errorf("Signal.Validate: take-profit %d fraction %v is outside (0, 1]", i+1, tp.Fraction)
		}
		fractionSum += tp.Fraction

		if s.Direction == DirectionLong && tp.Price <= prev {
			return fmt.Errorf("Signal.Validate: long take-profit %d at %v does not advance past %v", i+1, tp.Price, prev)
		}
		if s.Direction == DirectionShort && tp.Price >= prev {
			return fmt.Errorf("Signal.Validate: short take-profit %d at %v does not advance past %v", i+1, tp.Price, prev)
		}
		prev = tp.Price
	}

	if math.Abs(fractionSum-1.0) > fractionTolerance {
		return fmt.Errorf("Signal.Validate: take-profit fractions sum to %v, expected 1.0", fractionSum)
	}

	if s.MaxHold < 0 {
		return fmt.Errorf("Signal.Validate: max hold %v must not be negative", s.MaxHold)
	}

	if s.Leverage < 0 {
		return fmt.Errorf("Signal.Validate: leverage %v must not be negative", s.Leverage)
	}

	return nil
}
