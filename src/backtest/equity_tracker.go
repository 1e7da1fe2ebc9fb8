package backtest

import "github.com/jiaming2012/crypto-backtest/src/models"

// EquityTracker maintains realized balance, marks open positions against the
// latest close of their symbol, and appends one equity point per processed
// bar. Realized equity moves only on fills and funding accruals; unrealized
// equity is recomputed from scratch at every point.
type EquityTracker struct {
	initialEquity float64
	realized      float64
	peak          float64
	lastClose     map[string]float64
	curve         models.EquityCurve
	ledger        []*models.TradeRecord
}

func NewEquityTracker(cfg Config) *EquityTracker {
	return &EquityTracker{
		initialEquity: cfg.InitialEquity,
		realized:      cfg.InitialEquity,
		peak:          cfg.InitialEquity,
		lastClose:     make(map[string]float64),
	}
}

func (t *EquityTracker) Realized() float64 {
	return t.realized
}

// ApplyOpen charges the entry fee. The position's unrealized value starts at
// zero net of slippage, which the first RecordPoint picks up from the mark.
func (t *EquityTracker) ApplyOpen(position *models.Position) {
	t.realized -= position.EntryFee
}

// ApplyClose books the gross pnl of a full or partial exit net of the exit
// fee and appends the trade to the ledger. The entry fee was already charged
// at open, so the record's Fees field is informational here.
func (t *EquityTracker) ApplyClose(record *models.TradeRecord, exitFee float64) {
	t.realized += record.GrossPnL - exitFee
	t.ledger = append(t.ledger, record)
}

// ApplyFunding charges a funding amount. Negative amounts credit the
// account.
func (t *EquityTracker) ApplyFunding(amount float64) {
	t.realized -= amount
}

// RecordPoint marks open positions to the latest closes and appends an
// equity point stamped with the bar's timestamp. Positions on symbols that
// have not printed a bar yet are marked at their entry price.
func (t *EquityTracker) RecordPoint(bar *models.Candle, open []*models.Position) models.EquityPoint {
	t.lastClose[bar.Symbol] = bar.Close

	unrealized := 0.0
	for _, position := range open {
		mark, ok := t.lastClose[position.Symbol]
		if !ok {
			mark = position.EntryPrice
		}

		unrealized += position.UnrealizedPnL(mark)
	}

	equity := t.realized + unrealized
	if equity > t.peak {
		t.peak = equity
	}

	drawdown := 0.0
	if t.peak > 0 {
		drawdown = (t.peak - equity) / t.peak
	}

	point := models.EquityPoint{
		Timestamp:  bar.Timestamp,
		Realized:   t.realized,
		Unrealized: unrealized,
		Equity:     equity,
		Peak:       t.peak,
		Drawdown:   drawdown,
		OpenCount:  len(open),
	}

	t.curve = append(t.curve, point)

	return point
}

func (t *EquityTracker) Curve() models.EquityCurve {
	return t.curve
}

func (t *EquityTracker) Ledger() []*models.TradeRecord {
	return t.ledger
}
