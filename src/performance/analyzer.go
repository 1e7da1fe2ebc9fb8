package performance

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

var ErrNoTrades = errors.New("no trades executed")

const (
	tradingDaysPerYear  = 252
	calendarDaysPerYear = 365
)

// Metrics is the full performance breakdown of one backtest run. ProfitFactor
// is +Inf when the ledger has no losing trades; it marshals to JSON null in
// that case. DrawdownRecoveryDays is nil while the deepest drawdown has not
// recovered to its prior peak by the end of the run.
type Metrics struct {
	Strategy string `json:"strategy,omitempty"`

	InitialEquity  float64 `json:"initial_equity"`
	FinalEquity    float64 `json:"final_equity"`
	TotalReturn    float64 `json:"total_return"`
	TotalReturnPct float64 `json:"total_return_pct"`

	TotalTrades     int     `json:"total_trades"`
	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
	BreakevenTrades int     `json:"breakeven_trades"`
	WinRatePct      float64 `json:"win_rate_pct"`

	AvgWin         float64 `json:"avg_win"`
	AvgWinPct      float64 `json:"avg_win_pct"`
	AvgLoss        float64 `json:"avg_loss"`
	AvgLossPct     float64 `json:"avg_loss_pct"`
	LargestWin     float64 `json:"largest_win"`
	LargestWinPct  float64 `json:"largest_win_pct"`
	LargestLoss    float64 `json:"largest_loss"`
	LargestLossPct float64 `json:"largest_loss_pct"`

	ProfitFactor  float64 `json:"profit_factor"`
	Expectancy    float64 `json:"expectancy"`
	ExpectancyPct float64 `json:"expectancy_pct"`

	MaxDrawdown          float64 `json:"max_drawdown"`
	MaxDrawdownPct       float64 `json:"max_drawdown_pct"`
	DrawdownRecoveryDays *int    `json:"drawdown_recovery_days,omitempty"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	SortinoRatio         float64 `json:"sortino_ratio"`
	CalmarRatio          float64 `json:"calmar_ratio"`

	AvgHoldHours    float64 `json:"avg_hold_hours"`
	MedianHoldHours float64 `json:"median_hold_hours"`
	MaxHoldHours    float64 `json:"max_hold_hours"`

	TotalFees       float64 `json:"total_fees"`
	TotalFunding    float64 `json:"total_funding"`
	FeesPctOfReturn float64 `json:"fees_pct_of_return"`

	MaxConsecutiveWins   int `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int `json:"max_consecutive_losses"`

	ExitReasons map[models.ExitReason]int `json:"exit_reasons"`
}

func (m Metrics) MarshalJSON() ([]byte, error) {
	type alias Metrics

	out := struct {
		alias
		ProfitFactor *float64 `json:"profit_factor"`
	}{alias: alias(m)}

	if !math.IsInf(m.ProfitFactor, 0) && !math.IsNaN(m.ProfitFactor) {
		out.ProfitFactor = &m.ProfitFactor
	}

	return json.Marshal(out)
}

func (m *Metrics) UnmarshalJSON(data []byte) error {
	type alias Metrics

	aux := struct {
		*alias
		ProfitFactor *float64 `json:"profit_factor"`
	}{alias: (*alias)(m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.ProfitFactor != nil {
		m.ProfitFactor = *aux.ProfitFactor
	} else {
		m.ProfitFactor = math.Inf(1)
	}

	return nil
}

// Analyzer derives Metrics from a trade ledger and its equity curve.
type Analyzer struct {
	initialEquity float64
}

func NewAnalyzer(initialEquity float64) *Analyzer {
	return &Analyzer{initialEquity: initialEquity}
}

func (a *Analyzer) Analyze(trades []*models.TradeRecord, curve models.EquityCurve) (*Metrics, error) {
	if len(trades) == 0 {
		return nil, fmt.Errorf("Analyzer.Analyze: %w", ErrNoTrades)
	}

	if len(curve) == 0 {
		return nil, fmt.Errorf("Analyzer.Analyze: empty equity curve")
	}

	m := &Metrics{
		InitialEquity: a.initialEquity,
		FinalEquity:   curve.FinalEquity(),
		TotalTrades:   len(trades),
		ExitReasons:   make(map[models.ExitReason]int),
	}

	m.TotalReturn = m.FinalEquity - m.InitialEquity
	if a.initialEquity > 0 {
		m.TotalReturnPct = m.TotalReturn / a.initialEquity * 100
	}

	a.tradeStatistics(m, trades)
	a.riskStatistics(m, curve)

	if m.TotalReturn != 0 {
		m.FeesPctOfReturn = m.TotalFees / math.Abs(m.TotalReturn) * 100
	}

	return m, nil
}

func (a *Analyzer) tradeStatistics(m *Metrics, trades []*models.TradeRecord) {
	var wins, winPcts, losses, lossPcts, pnls, pcts, holds []float64

	streak := 0
	lastWin := false

	for _, trade := range trades {
		net := trade.NetPnL()
		pct := trade.ReturnOnMarginPct()

		pnls = append(pnls, net)
		pcts = append(pcts, pct)
		holds = append(holds, trade.HoldDuration().Hours())

		m.TotalFees += trade.Fees
		m.TotalFunding += trade.FundingPaid
		m.ExitReasons[trade.ExitReason]++

		switch {
		case net > 0:
			wins = append(wins, net)
			winPcts = append(winPcts, pct)
		case net < 0:
			losses = append(losses, net)
			lossPcts = append(lossPcts, pct)
		default:
			m.BreakevenTrades++
		}

		// a breakeven trade extends the losing streak, not the winning one
		win := net > 0
		if streak == 0 || win != lastWin {
			streak = 1
			lastWin = win
		} else {
			streak++
		}

		if win && streak > m.MaxConsecutiveWins {
			m.MaxConsecutiveWins = streak
		}
		if !win && streak > m.MaxConsecutiveLosses {
			m.MaxConsecutiveLosses = streak
		}
	}

	m.WinningTrades = len(wins)
	m.LosingTrades = len(losses)
	m.WinRatePct = float64(m.WinningTrades) / float64(m.TotalTrades) * 100

	m.AvgWin = meanOf(wins)
	m.AvgWinPct = meanOf(winPcts)
	m.LargestWin = maxOf(wins)
	m.LargestWinPct = maxOf(winPcts)

	m.AvgLoss = meanOf(losses)
	m.AvgLossPct = meanOf(lossPcts)
	m.LargestLoss = minOf(losses)
	m.LargestLossPct = minOf(lossPcts)

	grossProfit := sumOf(wins)
	grossLoss := math.Abs(sumOf(losses))

	switch {
	case grossLoss > 0:
		m.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		m.ProfitFactor = math.Inf(1)
	}

	m.Expectancy = meanOf(pnls)
	m.ExpectancyPct = meanOf(pcts)

	m.AvgHoldHours = meanOf(holds)
	m.MedianHoldHours = medianOf(holds)
	m.MaxHoldHours = maxOf(holds)
}

func (a *Analyzer) riskStatistics(m *Metrics, curve models.EquityCurve) {
	troughIdx := -1

	for i, point := range curve {
		if dd := point.Peak - point.Equity; dd > m.MaxDrawdown {
			m.MaxDrawdown = dd
			troughIdx = i
		}
		if pct := point.Drawdown * 100; pct > m.MaxDrawdownPct {
			m.MaxDrawdownPct = pct
		}
	}

	if troughIdx >= 0 {
		m.DrawdownRecoveryDays = recoveryDays(curve, troughIdx)
	}

	daily := dailyReturns(curve)

	if len(daily) > 1 {
		if std, err := stats.StandardDeviationSample(daily); err == nil && std > 0 {
			m.SharpeRatio = meanOf(daily) / std * math.Sqrt(tradingDaysPerYear)
		}
	}

	var downside []float64
	for _, r := range daily {
		if r < 0 {
			downside = append(downside, r)
		}
	}

	if len(downside) > 1 {
		if std, err := stats.StandardDeviationSample(downside); err == nil && std > 0 {
			m.SortinoRatio = meanOf(daily) / std * math.Sqrt(tradingDaysPerYear)
		}
	}

	if m.MaxDrawdownPct != 0 && a.initialEquity > 0 && m.FinalEquity > 0 {
		elapsedDays := curve[len(curve)-1].Timestamp.Sub(curve[0].Timestamp).Hours() / 24
		if elapsedDays < 1 {
			elapsedDays = 1
		}

		annualReturn := math.Pow(m.FinalEquity/a.initialEquity, calendarDaysPerYear/elapsedDays) - 1
		m.CalmarRatio = annualReturn * 100 / m.MaxDrawdownPct
	}
}

// recoveryDays walks forward from the drawdown trough and reports how many
// days equity took to regain the peak it fell from, or nil if it never did.
func recoveryDays(curve models.EquityCurve, troughIdx int) *int {
	peakValue := curve[troughIdx].Peak

	peakIdx := 0
	for i := 0; i <= troughIdx; i++ {
		if curve[i].Equity == peakValue {
			peakIdx = i
			break
		}
	}

	for i := troughIdx + 1; i < len(curve); i++ {
		if curve[i].Equity >= peakValue {
			days := int(curve[i].Timestamp.Sub(curve[peakIdx].Timestamp).Hours() / 24)
			return &days
		}
	}

	return nil
}

// dailyReturns buckets point-to-point equity returns into UTC calendar days,
// filling days without samples with zero so quiet periods still count
// against the volatility estimate.
func dailyReturns(curve models.EquityCurve) []float64 {
	if len(curve) < 2 {
		return nil
	}

	sums := make(map[time.Time]float64)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}

		day := curve[i].Timestamp.UTC().Truncate(24 * time.Hour)
		sums[day] += curve[i].Equity/prev - 1
	}

	first := curve[0].Timestamp.UTC().Truncate(24 * time.Hour)
	last := curve[len(curve)-1].Timestamp.UTC().Truncate(24 * time.Hour)

	var out []float64
	for day := first; !day.After(last); day = day.Add(24 * time.Hour) {
		out = append(out, sums[day])
	}

	return out
}

// FilterByStrategy narrows a joint ledger down to one strategy's trades.
func FilterByStrategy(trades []*models.TradeRecord, strategyTag string) []*models.TradeRecord {
	var out []*models.TradeRecord
	for _, trade := range trades {
		if trade.StrategyTag == strategyTag {
			out = append(out, trade)
		}
	}
	return out
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	mean, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return mean
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	median, err := stats.Median(values)
	if err != nil {
		return 0
	}
	return median
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	max, err := stats.Max(values)
	if err != nil {
		return 0
	}
	return max
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	min, err := stats.Min(values)
	if err != nil {
		return 0
	}
	return min
}

func sumOf(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}
