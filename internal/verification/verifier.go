// Package verification re-simulates stored runs and compares the replayed
// ledger and NAV series with what was persisted.
package verification

import (
	"context"
	"fmt"
	"math"

	"vwap-backtest/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // e.g. "trades[3].Price"
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single run.
type VerificationResult struct {
	RunID          string            // verified run
	Match          bool              // true if all fields match
	Divergences    []FieldDivergence // list of divergent fields
	StoredTrades   int
	ReplayedTrades int
	StoredNAV      int // zero when no NAV store is configured
	ReplayedNAV    int
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalRuns     int                  // total runs verified
	MatchedRuns   int                  // runs that matched
	DivergentRuns int                  // runs with divergences or errors
	Results       []VerificationResult // individual results
}

// BarLoader returns the raw bars a stored run was simulated on.
type BarLoader func(ctx context.Context, run *domain.RunReport) ([]domain.Bar, error)

// Verifier interface for run replay verification.
type Verifier interface {
	// VerifyRun re-simulates runID over raw bars with the stored parameters
	// and compares the ledger, NAV series and report field by field.
	VerifyRun(ctx context.Context, runID string, raw []domain.Bar) (*VerificationResult, error)

	// VerifyAll verifies all stored runs, loading bars through load.
	VerifyAll(ctx context.Context, load BarLoader) (*VerificationReport, error)
}

// CompareTradeRecords compares two trade records and returns divergences.
// Uses FloatTolerance for float64 comparisons.
func CompareTradeRecords(i int, stored, replayed *domain.TradeRecord) []FieldDivergence {
	var d divergences
	prefix := fmt.Sprintf("trades[%d].", i)

	d.exact(prefix+"TradeID", stored.TradeID, replayed.TradeID)
	d.exact(prefix+"TimestampMs", stored.TimestampMs, replayed.TimestampMs)
	d.exact(prefix+"OrderID", stored.OrderID, replayed.OrderID)
	d.exact(prefix+"Side", stored.Side, replayed.Side)
	d.float(prefix+"Price", stored.Price, replayed.Price)
	d.float(prefix+"Quantity", stored.Quantity, replayed.Quantity)
	d.float(prefix+"Fee", stored.Fee, replayed.Fee)
	d.float(prefix+"Cash", stored.Cash, replayed.Cash)
	d.float(prefix+"Position", stored.Position, replayed.Position)
	d.float(prefix+"RealizedPnL", stored.RealizedPnL, replayed.RealizedPnL)
	d.exact(prefix+"Forced", stored.Forced, replayed.Forced)

	return d
}

// CompareNAVSamples compares two NAV samples and returns divergences.
func CompareNAVSamples(i int, stored, replayed *domain.NAVSample) []FieldDivergence {
	var d divergences
	prefix := fmt.Sprintf("nav[%d].", i)

	d.exact(prefix+"Seq", stored.Seq, replayed.Seq)
	d.exact(prefix+"TimestampMs", stored.TimestampMs, replayed.TimestampMs)
	d.exact(prefix+"Label", stored.Label, replayed.Label)
	d.float(prefix+"NAV", stored.NAV, replayed.NAV)

	return d
}

// CompareReports compares the scalar statistics of two reports.
func CompareReports(stored, replayed domain.PerformanceReport) []FieldDivergence {
	var d divergences

	d.float("report.TotalReturns", stored.TotalReturns, replayed.TotalReturns)
	d.float("report.CompoundedTotalReturns", stored.CompoundedTotalReturns, replayed.CompoundedTotalReturns)
	d.float("report.SimpleAnnualizedReturns", stored.SimpleAnnualizedReturns, replayed.SimpleAnnualizedReturns)
	d.float("report.CompoundedAnnualizedReturns", stored.CompoundedAnnualizedReturns, replayed.CompoundedAnnualizedReturns)
	d.float("report.AnnualizedVolatility", stored.AnnualizedVolatility, replayed.AnnualizedVolatility)
	d.float("report.SharpeRatio", stored.SharpeRatio, replayed.SharpeRatio)
	d.float("report.MaxDrawdown", stored.MaxDrawdown, replayed.MaxDrawdown)
	d.float("report.NumTrades", stored.NumTrades, replayed.NumTrades)
	d.float("report.WinRate", stored.WinRate, replayed.WinRate)
	d.exact("report.NAVSamples", stored.NAVSamples, replayed.NAVSamples)

	return d
}

type divergences []FieldDivergence

func (d *divergences) exact(field string, expected, actual interface{}) {
	if expected != actual {
		*d = append(*d, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}
}

func (d *divergences) float(field string, expected, actual float64) {
	if !floatEquals(expected, actual) {
		*d = append(*d, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}
}

// floatEquals compares two float64 values within FloatTolerance.
// Equal infinities and two NaNs compare equal.
func floatEquals(a, b float64) bool {
	if a == b {
		return true
	}
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) <= FloatTolerance
}
