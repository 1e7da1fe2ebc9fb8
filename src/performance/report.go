package performance

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

func (m *Metrics) String() string {
	display := &strings.Builder{}
	p := message.NewPrinter(language.English)

	money := func(v float64) string {
		return fmt.Sprintf("$%s", p.Sprintf("%.2f", v))
	}

	title := "Backtest Performance Report"
	if m.Strategy != "" {
		title = fmt.Sprintf("%s: %s", title, m.Strategy)
	}
	display.WriteString(title + "\n")

	table := tablewriter.NewWriter(display)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetColumnSeparator("")

	table.Append([]string{"Initial Capital", money(m.InitialEquity)})
	table.Append([]string{"Final Equity", money(m.FinalEquity)})
	table.Append([]string{"Total Return", fmt.Sprintf("%s (%.2f%%)", money(m.TotalReturn), m.TotalReturnPct)})

	table.Append([]string{"Total Trades", fmt.Sprintf("%d", m.TotalTrades)})
	table.Append([]string{"Winning Trades", fmt.Sprintf("%d", m.WinningTrades)})
	table.Append([]string{"Losing Trades", fmt.Sprintf("%d", m.LosingTrades)})
	table.Append([]string{"Win Rate", fmt.Sprintf("%.2f%%", m.WinRatePct)})

	table.Append([]string{"Avg Win", fmt.Sprintf("%s (%.2f%%)", money(m.AvgWin), m.AvgWinPct)})
	table.Append([]string{"Avg Loss", fmt.Sprintf("%s (%.2f%%)", money(m.AvgLoss), m.AvgLossPct)})
	table.Append([]string{"Largest Win", fmt.Sprintf("%s (%.2f%%)", money(m.LargestWin), m.LargestWinPct)})
	table.Append([]string{"Largest Loss", fmt.Sprintf("%s (%.2f%%)", money(m.LargestLoss), m.LargestLossPct)})
	table.Append([]string{"Profit Factor", formatRatio(m.ProfitFactor)})
	table.Append([]string{"Expectancy", fmt.Sprintf("%s (%.2f%%)", money(m.Expectancy), m.ExpectancyPct)})

	table.Append([]string{"Max Drawdown", fmt.Sprintf("%s (%.2f%%)", money(m.MaxDrawdown), m.MaxDrawdownPct)})
	table.Append([]string{"Drawdown Recovery", formatRecovery(m.DrawdownRecoveryDays)})
	table.Append([]string{"Sharpe Ratio", formatRatio(m.SharpeRatio)})
	table.Append([]string{"Sortino Ratio", formatRatio(m.SortinoRatio)})
	table.Append([]string{"Calmar Ratio", formatRatio(m.CalmarRatio)})

	table.Append([]string{"Avg Hold Time", fmt.Sprintf("%.1f hours", m.AvgHoldHours)})
	table.Append([]string{"Median Hold Time", fmt.Sprintf("%.1f hours", m.MedianHoldHours)})
	table.Append([]string{"Max Hold Time", fmt.Sprintf("%.1f hours", m.MaxHoldHours)})

	table.Append([]string{"Total Fees", money(m.TotalFees)})
	table.Append([]string{"Total Funding", money(m.TotalFunding)})
	table.Append([]string{"Fees % of Returns", fmt.Sprintf("%.2f%%", m.FeesPctOfReturn)})

	table.Append([]string{"Max Consecutive Wins", fmt.Sprintf("%d", m.MaxConsecutiveWins)})
	table.Append([]string{"Max Consecutive Losses", fmt.Sprintf("%d", m.MaxConsecutiveLosses)})

	for _, reason := range sortedReasons(m) {
		count := m.ExitReasons[reason]
		pct := float64(count) / float64(m.TotalTrades) * 100
		table.Append([]string{fmt.Sprintf("Exits via %s", reason), fmt.Sprintf("%d (%.1f%%)", count, pct)})
	}

	table.Render()
	return display.String()
}

// CompareStrategies renders a side-by-side table of named results, ordered
// by strategy name.
func CompareStrategies(results map[string]*Metrics) string {
	display := &strings.Builder{}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(display)
	table.SetHeader([]string{"Strategy", "Return %", "Trades", "Win Rate %", "Profit Factor", "Expectancy %", "Max DD %", "Sharpe", "Calmar", "Avg Hold (hrs)"})
	table.SetAlignment(tablewriter.ALIGN_CENTER)
	table.SetColumnSeparator("")

	for _, name := range names {
		m := results[name]

		table.Append([]string{
			name,
			fmt.Sprintf("%.2f", m.TotalReturnPct),
			fmt.Sprintf("%d", m.TotalTrades),
			fmt.Sprintf("%.2f", m.WinRatePct),
			formatRatio(m.ProfitFactor),
			fmt.Sprintf("%.2f", m.ExpectancyPct),
			fmt.Sprintf("%.2f", m.MaxDrawdownPct),
			formatRatio(m.SharpeRatio),
			formatRatio(m.CalmarRatio),
			fmt.Sprintf("%.1f", m.AvgHoldHours),
		})
	}

	table.Render()
	return display.String()
}

func formatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}

func formatRecovery(days *int) string {
	if days == nil {
		return "not recovered"
	}
	return fmt.Sprintf("%d days", *days)
}

func sortedReasons(m *Metrics) []models.ExitReason {
	reasons := make([]models.ExitReason, 0, len(m.ExitReasons))
	for reason := range m.ExitReasons {
		reasons = append(reasons, reason)
	}

	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	return reasons
}
