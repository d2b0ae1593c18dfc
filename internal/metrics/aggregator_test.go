package metrics

import (
	"context"
	"errors"
	"testing"

	"vwap-backtest/internal/domain"
	"vwap-backtest/internal/storage"
	"vwap-backtest/internal/storage/memory"
)

func seedRun(t *testing.T, runID string, nav []float64, trades []domain.TradeRecord) (*memory.TradeRecordStore, *memory.NAVStore, *memory.RunReportStore) {
	t.Helper()
	ctx := context.Background()

	tradeStore := memory.NewTradeRecordStore()
	navStore := memory.NewNAVStore()
	reportStore := memory.NewRunReportStore()

	samples := make([]*domain.NAVSample, len(nav))
	for i, v := range nav {
		samples[i] = &domain.NAVSample{RunID: runID, Seq: i, TimestampMs: int64(i) * 60000, NAV: v}
	}
	if len(samples) > 0 {
		if err := navStore.InsertBulk(ctx, samples); err != nil {
			t.Fatalf("seed nav: %v", err)
		}
	}

	ptrs := make([]*domain.TradeRecord, len(trades))
	for i := range trades {
		tr := trades[i]
		tr.RunID = runID
		ptrs[i] = &tr
	}
	if len(ptrs) > 0 {
		if err := tradeStore.InsertBulk(ctx, ptrs); err != nil {
			t.Fatalf("seed trades: %v", err)
		}
	}

	if err := reportStore.Insert(ctx, &domain.RunReport{RunID: runID, Symbol: "BTCUSDT", CreatedAt: 1}); err != nil {
		t.Fatalf("seed report: %v", err)
	}
	return tradeStore, navStore, reportStore
}

func TestAggregator_ComputeRun(t *testing.T) {
	ctx := context.Background()
	trades := []domain.TradeRecord{
		{TradeID: "t0", OrderID: 0, Side: domain.SideBuy},
		{TradeID: "t1", OrderID: 1, Side: domain.SideSell, RealizedPnL: 4},
	}
	nav := []float64{1000, 1002, 1004}
	ts, ns, rs := seedRun(t, "run-1", nav, trades)

	agg := NewAggregator(ts, ns, rs)
	got, err := agg.ComputeRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ComputeRun: %v", err)
	}

	want := Compute(navSeries(nav...), trades)
	if got.TotalReturns != want.TotalReturns || got.SharpeRatio != want.SharpeRatio {
		t.Errorf("recomputed report differs: got %+v, want %+v", got, want)
	}
	if got.NumTrades != 1 || got.WinRate != 1 {
		t.Errorf("expected 1 winning trade, got num=%v win=%v", got.NumTrades, got.WinRate)
	}
}

func TestAggregator_UnknownRun(t *testing.T) {
	ts, ns, rs := seedRun(t, "run-1", []float64{1000}, nil)

	agg := NewAggregator(ts, ns, rs)
	_, err := agg.ComputeRun(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAggregator_Runs(t *testing.T) {
	ts, ns, rs := seedRun(t, "run-1", []float64{1000}, nil)

	runs, err := NewAggregator(ts, ns, rs).Runs(context.Background())
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-1" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}
