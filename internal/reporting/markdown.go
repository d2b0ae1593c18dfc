package reporting

import (
	"fmt"
	"strings"
	"time"

	"vwap-backtest/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	run := r.Run

	// Header
	sb.WriteString(fmt.Sprintf("# Backtest Report %s\n\n", run.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Run Summary
	sb.WriteString("## Run\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Symbol | %s |\n", orDash(run.Symbol)))
	sb.WriteString(fmt.Sprintf("| Interval (min) | %d |\n", run.Params.Interval))
	sb.WriteString(fmt.Sprintf("| VWAP Window | %d |\n", run.Params.VWAPWindow))
	sb.WriteString(fmt.Sprintf("| Estimate Window | %d |\n", run.Params.EstimateWindow))
	sb.WriteString(fmt.Sprintf("| N Sigma | %g |\n", run.Params.NSigma))
	sb.WriteString(fmt.Sprintf("| Initial Balance | %g |\n", run.Params.InitialBalance))
	sb.WriteString(fmt.Sprintf("| Fee Rate | %g |\n", run.Params.FeeRate))
	sb.WriteString(fmt.Sprintf("| Bars | %d |\n", run.BarCount))
	if run.BarCount > 0 {
		sb.WriteString(fmt.Sprintf("| First Bar | %s |\n", formatMs(run.FirstBarMs)))
		sb.WriteString(fmt.Sprintf("| Last Bar | %s |\n", formatMs(run.LastBarMs)))
	}
	sb.WriteString("\n")

	// Performance
	sb.WriteString("## Performance\n\n")
	var again []metricRow
	if r.Recomputed != nil {
		again = metricRows(*r.Recomputed)
		sb.WriteString("| Metric | Stored | Recomputed |\n")
		sb.WriteString("|--------|--------|------------|\n")
	} else {
		sb.WriteString("| Metric | Stored |\n")
		sb.WriteString("|--------|--------|\n")
	}
	for i, row := range metricRows(run.Report) {
		if again != nil {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", row.name, row.value, again[i].value))
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", row.name, row.value))
	}
	sb.WriteString("\n")

	if len(run.Report.Warnings) > 0 {
		sb.WriteString("### Warnings\n\n")
		for _, w := range run.Report.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
		sb.WriteString("\n")
	}

	// Trades
	sb.WriteString("## Trades\n\n")
	if len(r.Trades) > 0 {
		s := SummarizeTrades(r.Trades)
		sb.WriteString(fmt.Sprintf("Buys: %d | Sells: %d | Forced: %d | Winning sells: %d\n\n", s.Buys, s.Sells, s.Forced, s.Wins))
		sb.WriteString("| Time | Order | Side | Price | Quantity | Fee | Cash | Position | Realized PnL |\n")
		sb.WriteString("|------|-------|------|-------|----------|-----|------|----------|--------------|\n")
		for _, t := range r.Trades {
			side := string(t.Side)
			if t.Forced {
				side += " (forced)"
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %.4f | %.6f | %.4f | %.2f | %.6f | %.2f |\n",
				formatMs(t.TimestampMs), t.OrderID, side, t.Price, t.Quantity, t.Fee, t.Cash, t.Position, t.RealizedPnL))
		}
	} else {
		sb.WriteString("No trades.\n")
	}
	sb.WriteString("\n")

	// Verification
	if v := r.Verification; v != nil {
		sb.WriteString("## Replay Verification\n\n")
		if v.Match {
			sb.WriteString(fmt.Sprintf("**MATCH**: %d trades and %d NAV samples replayed identically.\n\n", v.ReplayedTrades, v.ReplayedNAV))
		} else {
			sb.WriteString(fmt.Sprintf("**DIVERGED**: %d field(s) differ.\n\n", len(v.Divergences)))
			sb.WriteString("| Field | Stored | Replayed |\n")
			sb.WriteString("|-------|--------|----------|\n")
			for _, d := range v.Divergences {
				sb.WriteString(fmt.Sprintf("| %s | %v | %v |\n", d.Field, d.Expected, d.Actual))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

type metricRow struct {
	name  string
	value string
}

func metricRows(p domain.PerformanceReport) []metricRow {
	return []metricRow{
		{"Total Returns", pct(p.TotalReturns)},
		{"Compounded Total Returns", pct(p.CompoundedTotalReturns)},
		{"Simple Annualized Returns", pct(p.SimpleAnnualizedReturns)},
		{"Compounded Annualized Returns", pct(p.CompoundedAnnualizedReturns)},
		{"Annualized Volatility", pct(p.AnnualizedVolatility)},
		{"Sharpe Ratio", fmt.Sprintf("%.4f", p.SharpeRatio)},
		{"Max Drawdown", pct(p.MaxDrawdown)},
		{"Round Trips", fmt.Sprintf("%g", p.NumTrades)},
		{"Win Rate", pct(p.WinRate)},
		{"NAV Samples", fmt.Sprintf("%d", p.NAVSamples)},
	}
}

func formatMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(domain.TimestampLayout)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
