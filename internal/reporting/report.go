// Package reporting renders run results: the trade ledger CSV export, the
// console summary and the Markdown run report.
package reporting

import (
	"time"

	"vwap-backtest/internal/domain"
	"vwap-backtest/internal/verification"
)

// Report represents the Markdown run report structure.
type Report struct {
	// Metadata
	GeneratedAt time.Time

	// Stored run with its persisted statistics
	Run domain.RunReport

	// Statistics recomputed from the stored NAV series and ledger.
	// Nil when no NAV store is available.
	Recomputed *domain.PerformanceReport

	// Ledger ordered by order_id
	Trades []domain.TradeRecord

	// Replay verification, nil when not requested
	Verification *verification.VerificationResult
}

// TradeSummary counts ledger entries by kind.
type TradeSummary struct {
	Buys   int
	Sells  int
	Forced int
	Wins   int // sells with cumulative realized PnL > 0
}

// SummarizeTrades counts ledger entries.
func SummarizeTrades(trades []domain.TradeRecord) TradeSummary {
	var s TradeSummary
	for _, t := range trades {
		switch t.Side {
		case domain.SideBuy:
			s.Buys++
		case domain.SideSell:
			s.Sells++
			if t.RealizedPnL > 0 {
				s.Wins++
			}
		}
		if t.Forced {
			s.Forced++
		}
	}
	return s
}
