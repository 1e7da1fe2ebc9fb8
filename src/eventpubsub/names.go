package eventpubsub

const (
	BacktestStartedEvent   = "BacktestStartedEvent"
	SignalRejectedEvent    = "SignalRejectedEvent"
	TradeClosedEvent       = "TradeClosedEvent"
	BacktestCompletedEvent = "BacktestCompletedEvent"
	Error                  = "DefaultError"
)
