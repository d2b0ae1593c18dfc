package reporting

import (
	"fmt"
	"strings"

	"vwap-backtest/internal/domain"
)

// RenderSummary renders the console summary of a run's statistics.
func RenderSummary(r domain.PerformanceReport) string {
	var sb strings.Builder

	sb.WriteString("Backtest complete\n")
	sb.WriteString(fmt.Sprintf("Total returns (NAV):           %s\n", pct(r.TotalReturns)))
	sb.WriteString(fmt.Sprintf("Total returns (compounded):    %s\n", pct(r.CompoundedTotalReturns)))
	sb.WriteString(fmt.Sprintf("Simple annualized returns:     %s\n", pct(r.SimpleAnnualizedReturns)))
	sb.WriteString(fmt.Sprintf("Compounded annualized returns: %s\n", pct(r.CompoundedAnnualizedReturns)))
	sb.WriteString(fmt.Sprintf("Annualized volatility:         %s\n", pct(r.AnnualizedVolatility)))
	sb.WriteString(fmt.Sprintf("Sharpe ratio:                  %.2f\n", r.SharpeRatio))
	sb.WriteString(fmt.Sprintf("Max drawdown:                  %s\n", pct(r.MaxDrawdown)))
	sb.WriteString(fmt.Sprintf("Round trips:                   %g\n", r.NumTrades))
	sb.WriteString(fmt.Sprintf("Win rate:                      %s\n", pct(r.WinRate)))
	for _, w := range r.Warnings {
		sb.WriteString(fmt.Sprintf("WARNING: %s\n", w))
	}

	return sb.String()
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
