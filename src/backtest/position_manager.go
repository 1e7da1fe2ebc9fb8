package backtest

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

// PositionManager owns the open position list. It opens positions from sized
// signals, walks exit rules bar by bar, accrues funding and liquidates
// whatever is left when the data runs out. At most one exit event fires per
// position per bar.
type PositionManager struct {
	cfg     Config
	exec    *ExecutionSimulator
	tracker *EquityTracker
	open    []*models.Position
}

func NewPositionManager(cfg Config, exec *ExecutionSimulator, tracker *EquityTracker) *PositionManager {
	return &PositionManager{
		cfg:     cfg,
		exec:    exec,
		tracker: tracker,
	}
}

func (pm *PositionManager) OpenPositions() []*models.Position {
	return pm.open
}

func (pm *PositionManager) OpenCount() int {
	return len(pm.open)
}

func (pm *PositionManager) HasCapacity() bool {
	return len(pm.open) < pm.cfg.MaxOpenPositions
}

// HasOpenFor reports whether a position opened by the given strategy on the
// given symbol is still live.
func (pm *PositionManager) HasOpenFor(symbol string, strategyTag string) bool {
	for _, position := range pm.open {
		if position.Symbol == symbol && position.StrategyTag == strategyTag {
			return true
		}
	}

	return false
}

// Open fills the signal's entry at the simulated price, charges the entry
// fee against realized equity and registers the position.
func (pm *PositionManager) Open(signal *models.Signal, strategyTag string, quantity float64) (*models.Position, error) {
	if !pm.HasCapacity() {
		return nil, fmt.Errorf("PositionManager.Open: %w", models.ErrCapacityExceeded)
	}

	if quantity <= 0 {
		return nil, fmt.Errorf("PositionManager.Open: quantity %v must be positive", quantity)
	}

	fillPrice, feeRate := pm.exec.Fill(signal.EntryPrice, signal.Direction.EntrySide(), false)
	entryFee := fillPrice * quantity * feeRate

	position := models.NewPosition(signal, strategyTag, quantity, fillPrice, entryFee, signal.Timestamp)

	pm.open = append(pm.open, position)
	pm.tracker.ApplyOpen(position)

	return position, nil
}

// AccrueFunding charges each open position on the bar's symbol the funding
// amount implied by the bar's rate. Longs pay positive rates, shorts collect
// them. Returns the total amount charged.
func (pm *PositionManager) AccrueFunding(bar *models.Candle) float64 {
	total := 0.0

	if !bar.HasFunding() {
		return total
	}

	for _, position := range pm.open {
		if position.Symbol != bar.Symbol {
			continue
		}

		amount := bar.FundingRate * position.RemainingQuantity * bar.Close * position.Direction.Sign()

		position.FundingPaid += amount
		pm.tracker.ApplyFunding(amount)
		total += amount
	}

	return total
}

// Advance runs the exit rules for every open position on the bar's symbol
// and returns the trade records produced.
func (pm *PositionManager) Advance(bar *models.Candle) []*models.TradeRecord {
	var records []*models.TradeRecord

	snapshot := make([]*models.Position, len(pm.open))
	copy(snapshot, pm.open)

	for _, position := range snapshot {
		if position.Symbol != bar.Symbol {
			continue
		}

		if record := pm.evaluateExits(position, bar); record != nil {
			records = append(records, record)
		}
	}

	return records
}

// CloseAll liquidates every remaining position at the close of the last bar
// seen on its symbol.
func (pm *PositionManager) CloseAll(lastBars map[string]*models.Candle) []*models.TradeRecord {
	var records []*models.TradeRecord

	snapshot := make([]*models.Position, len(pm.open))
	copy(snapshot, pm.open)

	for _, position := range snapshot {
		bar, ok := lastBars[position.Symbol]
		if !ok {
			log.Errorf("CloseAll: no final bar for %s, position %s left open", position.Symbol, position.ID)
			continue
		}

		record := pm.closeQuantity(position, position.RemainingQuantity, bar.Close, models.ExitReasonEndOfData, bar.Timestamp)
		records = append(records, record)
	}

	return records
}

func (pm *PositionManager) evaluateExits(position *models.Position, bar *models.Candle) *models.TradeRecord {
	// When the bar's range reaches both the stop and a take-profit level the
	// stop exit is booked: intrabar ordering is unknowable from OHLC data,
	// so the loss-side outcome is assumed.
	stopHit := false
	if position.Direction == models.DirectionLong {
		stopHit = bar.Low <= position.StopPrice
	} else {
		stopHit = bar.High >= position.StopPrice
	}

	if stopHit {
		reason := models.ExitReasonStopLoss
		if position.StopMoved {
			reason = models.ExitReasonTrailingStop
		}

		return pm.closeQuantity(position, position.RemainingQuantity, position.StopPrice, reason, bar.Timestamp)
	}

	if position.HasDeadline() && !bar.Timestamp.Before(position.Deadline) {
		return pm.closeQuantity(position, position.RemainingQuantity, bar.Close, models.ExitReasonTimeStop, bar.Timestamp)
	}

	index, target := position.NextTakeProfit()
	if target == nil {
		return nil
	}

	targetHit := false
	if position.Direction == models.DirectionLong {
		targetHit = bar.High >= target.Price
	} else {
		targetHit = bar.Low <= target.Price
	}

	if !targetHit {
		return nil
	}

	quantity := target.Fraction * position.OriginalQuantity
	if index == len(position.TakeProfits)-1 || quantity > position.RemainingQuantity {
		quantity = position.RemainingQuantity
	}

	firstFill := position.FilledTargets() == 0
	target.Filled = true

	record := pm.closeQuantity(position, quantity, target.Price, models.TakeProfitExitReason(index), bar.Timestamp)

	if firstFill && pm.cfg.BreakevenAfterFirstTarget && position.Status() != models.PositionStatusClosed {
		if err := position.MoveStop(position.EntryPrice); err != nil {
			log.Warnf("evaluateExits: breakeven move on %s failed: %v", position.Symbol, err)
		}
	}

	return record
}

// closeQuantity books a full or partial exit at the reference price. The
// record's Fees field carries the proportional share of the entry fee plus
// the exit fee; FundingPaid is attached only to the record that fully closes
// the position.
func (pm *PositionManager) closeQuantity(position *models.Position, quantity, referencePrice float64, reason models.ExitReason, timestamp time.Time) *models.TradeRecord {
	if quantity > position.RemainingQuantity {
		quantity = position.RemainingQuantity
	}

	fillPrice, feeRate := pm.exec.Fill(referencePrice, position.Direction.ExitSide(), false)
	exitFee := fillPrice * quantity * feeRate

	grossPnL := position.Direction.Sign() * (fillPrice - position.EntryPrice) * quantity

	entryFeeShare := 0.0
	if position.OriginalQuantity > 0 {
		entryFeeShare = position.EntryFee * quantity / position.OriginalQuantity
	}

	if err := position.Reduce(quantity); err != nil {
		log.Errorf("closeQuantity: reduce on %s failed: %v", position.Symbol, err)
		return nil
	}

	record := &models.TradeRecord{
		PositionID:     position.ID,
		Symbol:         position.Symbol,
		StrategyTag:    position.StrategyTag,
		Direction:      position.Direction,
		Leverage:       position.Leverage,
		EntryTimestamp: position.OpenTimestamp,
		ExitTimestamp:  timestamp,
		EntryPrice:     position.EntryPrice,
		ExitPrice:      fillPrice,
		Quantity:       quantity,
		GrossPnL:       grossPnL,
		Fees:           entryFeeShare + exitFee,
		ExitReason:     reason,
	}

	if position.Status() == models.PositionStatusClosed {
		record.FundingPaid = position.FundingPaid
		pm.remove(position)
	}

	pm.tracker.ApplyClose(record, exitFee)

	return record
}

func (pm *PositionManager) remove(position *models.Position) {
	for i, candidate := range pm.open {
		if candidate.ID == position.ID {
			pm.open = append(pm.open[:i], pm.open[i+1:]...)
			return
		}
	}
}
