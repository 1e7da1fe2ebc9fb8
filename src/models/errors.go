package models

import (
	"fmt"
	"time"
)

var (
	ErrInvalidStop      = fmt.Errorf("stop price has zero distance from entry or sits on the wrong side")
	ErrInsufficientSize = fmt.Errorf("sized quantity is below the minimum notional")
	ErrCapacityExceeded = fmt.Errorf("max open positions reached")
	ErrDataGap          = fmt.Errorf("bar stream timestamps do not advance")
)

// DataGapError aborts a replay: equity accounting cannot be trusted once a
// symbol's timeline repeats itself or goes backwards.
type DataGapError struct {
	Symbol    string
	Timestamp time.Time
	Previous  time.Time
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap on %s: bar at %s does not advance past %s", e.Symbol, e.Timestamp.Format(time.RFC3339), e.Previous.Format(time.RFC3339))
}

func (e *DataGapError) Unwrap() error {
	return ErrDataGap
}
