package metrics

import (
	"context"
	"fmt"

	"vwap-backtest/internal/domain"
	"vwap-backtest/internal/storage"
)

// Aggregator recomputes run reports from persisted ledgers.
type Aggregator struct {
	tradeRecordStore storage.TradeRecordStore
	navStore         storage.NAVStore
	runReportStore   storage.RunReportStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(tradeStore storage.TradeRecordStore, navStore storage.NAVStore, reportStore storage.RunReportStore) *Aggregator {
	return &Aggregator{
		tradeRecordStore: tradeStore,
		navStore:         navStore,
		runReportStore:   reportStore,
	}
}

// ComputeRun loads the NAV series and ledger of runID and recomputes its report.
// Returns storage.ErrNotFound if the run has no stored report.
func (a *Aggregator) ComputeRun(ctx context.Context, runID string) (domain.PerformanceReport, error) {
	if _, err := a.runReportStore.GetByRunID(ctx, runID); err != nil {
		return domain.PerformanceReport{}, err
	}

	nav, err := a.navStore.GetByRunID(ctx, runID)
	if err != nil {
		return domain.PerformanceReport{}, fmt.Errorf("load nav: %w", err)
	}
	trades, err := a.tradeRecordStore.GetByRunID(ctx, runID)
	if err != nil {
		return domain.PerformanceReport{}, fmt.Errorf("load trades: %w", err)
	}

	return Compute(derefNAV(nav), derefTrades(trades)), nil
}

// Runs returns all stored run reports ordered by creation time.
func (a *Aggregator) Runs(ctx context.Context) ([]*domain.RunReport, error) {
	return a.runReportStore.GetAll(ctx)
}

func derefNAV(in []*domain.NAVSample) []domain.NAVSample {
	out := make([]domain.NAVSample, len(in))
	for i, s := range in {
		out[i] = *s
	}
	return out
}

func derefTrades(in []*domain.TradeRecord) []domain.TradeRecord {
	out := make([]domain.TradeRecord, len(in))
	for i, t := range in {
		out[i] = *t
	}
	return out
}
