package backtest

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/crypto-backtest/src/eventpubsub"
	"github.com/jiaming2012/crypto-backtest/src/models"
)

// SignalSource is implemented by strategies. Evaluate receives the bar
// history of the bound symbol up to and including the current bar, oldest
// first, and returns an entry intent or nil. Sources never see bars beyond
// the one being processed.
type SignalSource interface {
	Name() string
	Evaluate(history []*models.Candle) *models.Signal
}

// Binding attaches a signal source to the symbol whose bars it evaluates.
type Binding struct {
	Symbol string
	Source SignalSource
}

type Engine struct {
	cfg      Config
	bindings []Binding
	sizer    *RiskSizer
	exec     *ExecutionSimulator
	tracker  *EquityTracker
	manager  *PositionManager
}

func NewEngine(cfg Config, bindings []Binding) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("NewEngine: %w", err)
	}

	if len(bindings) == 0 {
		return nil, fmt.Errorf("NewEngine: at least one binding is required")
	}

	for _, binding := range bindings {
		if binding.Symbol == "" || binding.Source == nil {
			return nil, fmt.Errorf("NewEngine: binding must carry a symbol and a source")
		}
	}

	sorted := make([]Binding, len(bindings))
	copy(sorted, bindings)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Symbol != sorted[j].Symbol {
			return sorted[i].Symbol < sorted[j].Symbol
		}

		return sorted[i].Source.Name() < sorted[j].Source.Name()
	})

	exec := NewExecutionSimulator(cfg)
	tracker := NewEquityTracker(cfg)

	return &Engine{
		cfg:      cfg,
		bindings: sorted,
		sizer:    NewRiskSizer(cfg),
		exec:     exec,
		tracker:  tracker,
		manager:  NewPositionManager(cfg, exec, tracker),
	}, nil
}

// Result is the complete outcome of a run: the trade ledger in close order
// and one equity point per processed bar.
type Result struct {
	Trades        []*models.TradeRecord `json:"trades"`
	EquityCurve   models.EquityCurve    `json:"equity_curve"`
	InitialEquity float64               `json:"initial_equity"`
	FinalEquity   float64               `json:"final_equity"`
	BarsProcessed int                   `json:"bars_processed"`
}

// Run replays the streams in timestamp order and returns the accumulated
// ledger and equity curve. The same config, bindings and bars always produce
// the same result. Cancellation is honored between bars, never inside one.
func (e *Engine) Run(ctx context.Context, streams []BarStream) (*Result, error) {
	merged, err := newMergedStream(streams)
	if err != nil {
		return nil, fmt.Errorf("Engine.Run: %w", err)
	}

	eventpubsub.PublishResult("Engine", eventpubsub.BacktestStartedEvent, &eventpubsub.BacktestStarted{
		Strategies:    e.strategyNames(),
		Symbols:       e.symbols(),
		InitialEquity: e.cfg.InitialEquity,
	})

	lastBars := make(map[string]*models.Candle)
	histories := make(map[string]models.Candles)
	barsProcessed := 0

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("Engine.Run: interrupted after %d bars: %w", barsProcessed, ctx.Err())
		default:
		}

		bar, ok, err := merged.Next()
		if err != nil {
			return nil, fmt.Errorf("Engine.Run: %w", err)
		}

		if !ok {
			break
		}

		lastBars[bar.Symbol] = bar
		histories[bar.Symbol] = append(histories[bar.Symbol], bar)

		if e.cfg.ApplyFundingCosts && bar.FundingEvent {
			e.manager.AccrueFunding(bar)
		}

		for _, record := range e.manager.Advance(bar) {
			eventpubsub.PublishResult("Engine", eventpubsub.TradeClosedEvent, record)
		}

		for i := range e.bindings {
			binding := &e.bindings[i]
			if binding.Symbol != bar.Symbol {
				continue
			}

			if e.manager.HasOpenFor(binding.Symbol, binding.Source.Name()) {
				continue
			}

			signal := binding.Source.Evaluate(histories[bar.Symbol])
			if signal == nil {
				continue
			}

			e.handleSignal(signal, binding.Source.Name(), bar)
		}

		e.tracker.RecordPoint(bar, e.manager.OpenPositions())
		barsProcessed++
	}

	for _, record := range e.manager.CloseAll(lastBars) {
		eventpubsub.PublishResult("Engine", eventpubsub.TradeClosedEvent, record)
	}

	result := &Result{
		Trades:        e.tracker.Ledger(),
		EquityCurve:   e.tracker.Curve(),
		InitialEquity: e.cfg.InitialEquity,
		FinalEquity:   e.tracker.Realized(),
		BarsProcessed: barsProcessed,
	}

	eventpubsub.PublishResult("Engine", eventpubsub.BacktestCompletedEvent, &eventpubsub.BacktestCompleted{
		Strategies:    e.strategyNames(),
		BarsProcessed: result.BarsProcessed,
		Trades:        len(result.Trades),
		FinalEquity:   result.FinalEquity,
	})

	log.Infof("backtest complete: %d bars, %d trades, final equity %.2f", result.BarsProcessed, len(result.Trades), result.FinalEquity)

	return result, nil
}

func (e *Engine) handleSignal(signal *models.Signal, strategyTag string, bar *models.Candle) {
	if signal.Symbol == "" {
		signal.Symbol = bar.Symbol
	}

	if signal.Timestamp.IsZero() {
		signal.Timestamp = bar.Timestamp
	}

	if err := signal.Validate(); err != nil {
		log.WithFields(log.Fields{
			"strategy": strategyTag,
			"symbol":   signal.Symbol,
		}).Warnf("rejecting signal: %v", err)

		e.publishRejection(signal, strategyTag, err.Error())
		return
	}

	if !e.manager.HasCapacity() {
		log.Debugf("dropping %s signal on %s: %v", strategyTag, signal.Symbol, models.ErrCapacityExceeded)

		e.publishRejection(signal, strategyTag, models.ErrCapacityExceeded.Error())
		return
	}

	leverage := signal.Leverage
	if leverage == 0 {
		leverage = e.cfg.LeverageCap
	}

	if leverage > e.cfg.LeverageCap {
		leverage = e.cfg.LeverageCap
	}

	quantity, err := e.sizer.Size(e.tracker.Realized(), signal.EntryPrice, signal.StopPrice, signal.Direction, leverage)
	if err != nil {
		log.WithFields(log.Fields{
			"strategy": strategyTag,
			"symbol":   signal.Symbol,
		}).Warnf("rejecting signal: %v", err)

		e.publishRejection(signal, strategyTag, err.Error())
		return
	}

	if quantity == 0 {
		log.Debugf("skipping %s signal on %s: %v", strategyTag, signal.Symbol, models.ErrInsufficientSize)
		return
	}

	signal.Leverage = leverage

	position, err := e.manager.Open(signal, strategyTag, quantity)
	if err != nil {
		log.Warnf("failed to open %s position on %s: %v", strategyTag, signal.Symbol, err)

		e.publishRejection(signal, strategyTag, err.Error())
		return
	}

	log.WithFields(log.Fields{
		"strategy": strategyTag,
		"symbol":   position.Symbol,
		"id":       position.ID,
	}).Infof("opened %s qty=%.6f entry=%.4f stop=%.4f", position.Direction, position.OriginalQuantity, position.EntryPrice, position.StopPrice)
}

func (e *Engine) publishRejection(signal *models.Signal, strategyTag string, reason string) {
	eventpubsub.PublishResult("Engine", eventpubsub.SignalRejectedEvent, &eventpubsub.SignalRejected{
		Strategy:  strategyTag,
		Symbol:    signal.Symbol,
		Timestamp: signal.Timestamp,
		Reason:    reason,
	})
}

func (e *Engine) strategyNames() []string {
	var names []string
	seen := make(map[string]bool)

	for _, binding := range e.bindings {
		if seen[binding.Source.Name()] {
			continue
		}

		seen[binding.Source.Name()] = true
		names = append(names, binding.Source.Name())
	}

	return names
}

func (e *Engine) symbols() []string {
	var symbols []string
	seen := make(map[string]bool)

	for _, binding := range e.bindings {
		if seen[binding.Symbol] {
			continue
		}

		seen[binding.Symbol] = true
		symbols = append(symbols, binding.Symbol)
	}

	return symbols
}
