package reporting

import (
	"context"
	"time"

	"vwap-backtest/internal/domain"
	"vwap-backtest/internal/metrics"
	"vwap-backtest/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	tradeRecordStore storage.TradeRecordStore
	runReportStore   storage.RunReportStore
	aggregator       *metrics.Aggregator // optional
	now              func() time.Time    // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. agg may be nil, in which
// case the report carries no recomputed statistics.
func NewGenerator(tradeStore storage.TradeRecordStore, reportStore storage.RunReportStore, agg *metrics.Aggregator) *Generator {
	return &Generator{
		tradeRecordStore: tradeStore,
		runReportStore:   reportStore,
		aggregator:       agg,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces the report of one stored run.
// Returns storage.ErrNotFound if the run does not exist.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runReportStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	ptrs, err := g.tradeRecordStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	trades := make([]domain.TradeRecord, len(ptrs))
	for i, t := range ptrs {
		trades[i] = *t
	}

	report := &Report{
		GeneratedAt: g.now(),
		Run:         *run,
		Trades:      trades,
	}

	if g.aggregator != nil {
		recomputed, err := g.aggregator.ComputeRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		report.Recomputed = &recomputed
	}

	return report, nil
}
