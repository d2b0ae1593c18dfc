package verification

import (
	"context"
	"errors"
	"math"
	"testing"

	"vwap-backtest/internal/domain"
	"vwap-backtest/internal/metrics"
	"vwap-backtest/internal/storage/memory"
)

func waveBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	prev := 100.0
	for i := range bars {
		c := 100 + 5*math.Sin(float64(i)/3)
		bars[i] = domain.Bar{
			Symbol:      "BTCUSDT",
			OpenTimeMs:  int64(i) * 60000,
			Open:        prev,
			High:        math.Max(prev, c) + 1,
			Low:         math.Min(prev, c) - 1,
			Close:       c,
			Volume:      1000,
			QuoteVolume: c * 1000,
		}
		prev = c
	}
	return bars
}

func testRun(runID string) *domain.RunReport {
	return &domain.RunReport{
		RunID:  runID,
		Symbol: "BTCUSDT",
		Params: domain.RunParams{
			Interval:       1,
			VWAPWindow:     2,
			EstimateWindow: 3,
			NSigma:         1,
			InitialBalance: 10000,
			FeeRate:        0.001,
			StartMs:        math.MinInt64,
			EndMs:          math.MaxInt64,
		},
		CreatedAt: 1,
	}
}

type testStores struct {
	trades  *memory.TradeRecordStore
	nav     *memory.NAVStore
	reports *memory.RunReportStore
}

func newTestStores() testStores {
	return testStores{
		trades:  memory.NewTradeRecordStore(),
		nav:     memory.NewNAVStore(),
		reports: memory.NewRunReportStore(),
	}
}

// storeRun simulates run over raw and persists the result, applying mutate
// to the ledger first.
func storeRun(t *testing.T, s testStores, run *domain.RunReport, raw []domain.Bar, mutate func([]domain.TradeRecord)) {
	t.Helper()
	ctx := context.Background()

	trades, nav, err := replay(ctx, run, raw)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(trades) == 0 {
		t.Fatalf("expected trades in fixture run")
	}
	run.Report = metrics.Compute(nav, trades)
	if mutate != nil {
		mutate(trades)
	}

	tp := make([]*domain.TradeRecord, len(trades))
	for i := range trades {
		tp[i] = &trades[i]
	}
	np := make([]*domain.NAVSample, len(nav))
	for i := range nav {
		np[i] = &nav[i]
	}
	if err := s.trades.InsertBulk(ctx, tp); err != nil {
		t.Fatalf("insert trades: %v", err)
	}
	if err := s.nav.InsertBulk(ctx, np); err != nil {
		t.Fatalf("insert nav: %v", err)
	}
	if err := s.reports.Insert(ctx, run); err != nil {
		t.Fatalf("insert report: %v", err)
	}
}

func newVerifier(s testStores) *ReplayVerifier {
	return NewReplayVerifier(ReplayVerifierOptions{
		TradeStore:  s.trades,
		NAVStore:    s.nav,
		ReportStore: s.reports,
	})
}

func TestVerifyRun_Match(t *testing.T) {
	s := newTestStores()
	raw := waveBars(60)
	storeRun(t, s, testRun("run-1"), raw, nil)

	result, err := newVerifier(s).VerifyRun(context.Background(), "run-1", raw)
	if err != nil {
		t.Fatalf("VerifyRun failed: %v", err)
	}

	if !result.Match {
		t.Errorf("Expected match, got divergences: %v", result.Divergences)
	}
	if result.StoredTrades != result.ReplayedTrades {
		t.Errorf("trade count mismatch: %d vs %d", result.StoredTrades, result.ReplayedTrades)
	}
	if result.StoredNAV != 57 || result.ReplayedNAV != 57 {
		t.Errorf("expected 57 NAV samples, got %d/%d", result.StoredNAV, result.ReplayedNAV)
	}
}

func TestVerifyRun_TamperedLedger(t *testing.T) {
	s := newTestStores()
	raw := waveBars(60)
	storeRun(t, s, testRun("run-1"), raw, func(trades []domain.TradeRecord) {
		trades[0].Price += 0.01
	})

	result, err := newVerifier(s).VerifyRun(context.Background(), "run-1", raw)
	if err != nil {
		t.Fatalf("VerifyRun failed: %v", err)
	}

	if result.Match {
		t.Fatal("Expected divergence")
	}
	if result.Divergences[0].Field != "trades[0].Price" {
		t.Errorf("Expected trades[0].Price divergence, got %s", result.Divergences[0].Field)
	}
}

func TestVerifyRun_DifferentBars(t *testing.T) {
	s := newTestStores()
	storeRun(t, s, testRun("run-1"), waveBars(60), nil)

	result, err := newVerifier(s).VerifyRun(context.Background(), "run-1", waveBars(40))
	if err != nil {
		t.Fatalf("VerifyRun failed: %v", err)
	}

	if result.Match {
		t.Fatal("Expected divergence on shorter input")
	}
	found := false
	for _, d := range result.Divergences {
		if d.Field == "nav.len" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected nav.len divergence, got %v", result.Divergences)
	}
}

func TestVerifyRun_NotFound(t *testing.T) {
	s := newTestStores()

	_, err := newVerifier(s).VerifyRun(context.Background(), "missing", nil)
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestVerifyRun_WithoutNAVStore(t *testing.T) {
	s := newTestStores()
	raw := waveBars(60)
	storeRun(t, s, testRun("run-1"), raw, nil)

	v := NewReplayVerifier(ReplayVerifierOptions{TradeStore: s.trades, ReportStore: s.reports})
	result, err := v.VerifyRun(context.Background(), "run-1", raw)
	if err != nil {
		t.Fatalf("VerifyRun failed: %v", err)
	}
	if !result.Match || result.StoredNAV != 0 {
		t.Errorf("Expected match without NAV comparison, got %+v", result)
	}
}

func TestVerifyAll(t *testing.T) {
	s := newTestStores()
	raw := waveBars(60)
	storeRun(t, s, testRun("run-a"), raw, nil)
	storeRun(t, s, testRun("run-b"), raw, nil)

	loadErr := errors.New("data file gone")
	load := func(_ context.Context, run *domain.RunReport) ([]domain.Bar, error) {
		if run.RunID == "run-b" {
			return nil, loadErr
		}
		return raw, nil
	}

	report, err := newVerifier(s).VerifyAll(context.Background(), load)
	if err != nil {
		t.Fatalf("VerifyAll failed: %v", err)
	}

	if report.TotalRuns != 2 || report.MatchedRuns != 1 || report.DivergentRuns != 1 {
		t.Errorf("Unexpected counts: %+v", report)
	}
	for _, r := range report.Results {
		if r.RunID == "run-b" && (r.Match || r.Divergences[0].Field != "Error") {
			t.Errorf("Expected error divergence for run-b, got %+v", r)
		}
	}
}

func TestFloatEquals(t *testing.T) {
	tests := []struct {
		a, b float64
		want bool
	}{
		{1.0, 1.0 + 1e-8, true},
		{1.0, 1.0 + 1e-6, false},
		{math.Inf(1), math.Inf(1), true},
		{math.Inf(1), math.Inf(-1), false},
		{math.NaN(), math.NaN(), true},
		{math.NaN(), 0, false},
	}

	for _, tt := range tests {
		if got := floatEquals(tt.a, tt.b); got != tt.want {
			t.Errorf("floatEquals(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompareTradeRecords_ExactMatch(t *testing.T) {
	trade := &domain.TradeRecord{
		TradeID: "t1", OrderID: 1, Side: domain.SideBuy, Price: 100, Quantity: 99.9, Fee: 9.99,
		Cash: 0, Position: 99.9, RealizedPnL: 0,
	}
	replayed := *trade
	replayed.Price += 1e-9

	if d := CompareTradeRecords(0, trade, &replayed); len(d) != 0 {
		t.Errorf("Expected 0 divergences, got %v", d)
	}

	replayed.Forced = true
	d := CompareTradeRecords(4, trade, &replayed)
	if len(d) != 1 || d[0].Field != "trades[4].Forced" {
		t.Errorf("Expected Forced divergence, got %v", d)
	}
}
