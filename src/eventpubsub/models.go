package eventpubsub

import "time"

// BacktestStarted is published once per run before the first bar is
// processed.
type BacktestStarted struct {
	Strategies    []string
	Symbols       []string
	InitialEquity float64
}

// SignalRejected is published whenever a solicited signal is dropped before
// reaching the fill stage.
type SignalRejected struct {
	Strategy  string
	Symbol    string
	Timestamp time.Time
	Reason    string
}

// BacktestCompleted is published after the final bar and end-of-data
// liquidation.
type BacktestCompleted struct {
	Strategies    []string
	BarsProcessed int
	Trades        int
	FinalEquity   float64
}
