package verification

import (
	"context"
	"errors"

	"vwap-backtest/internal/domain"
	"vwap-backtest/internal/exchange"
	"vwap-backtest/internal/features"
	"vwap-backtest/internal/metrics"
	"vwap-backtest/internal/simulation"
	"vwap-backtest/internal/storage"
	"vwap-backtest/internal/strategy"
)

// ErrRunNotFound is returned when run ID doesn't exist.
var ErrRunNotFound = errors.New("run not found")

// ReplayVerifier implements Verifier interface.
type ReplayVerifier struct {
	tradeStore  storage.TradeRecordStore
	navStore    storage.NAVStore
	reportStore storage.RunReportStore
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
// NAVStore is optional; without it NAV series are not compared.
type ReplayVerifierOptions struct {
	TradeStore  storage.TradeRecordStore
	NAVStore    storage.NAVStore
	ReportStore storage.RunReportStore
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		tradeStore:  opts.TradeStore,
		navStore:    opts.NAVStore,
		reportStore: opts.ReportStore,
	}
}

// VerifyRun verifies a single run by replaying the simulation.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string, raw []domain.Bar) (*VerificationResult, error) {
	// 1. Load stored run
	run, err := v.reportStore.GetByRunID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	storedTrades, err := v.tradeStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	var storedNAV []*domain.NAVSample
	if v.navStore != nil {
		if storedNAV, err = v.navStore.GetByRunID(ctx, runID); err != nil {
			return nil, err
		}
	}

	// 2. Replay simulation
	trades, nav, err := replay(ctx, run, raw)
	if err != nil {
		return nil, err
	}

	// 3. Compare results
	var divs []FieldDivergence
	if len(storedTrades) != len(trades) {
		divs = append(divs, FieldDivergence{Field: "trades.len", Expected: len(storedTrades), Actual: len(trades)})
	}
	for i := 0; i < min(len(storedTrades), len(trades)); i++ {
		divs = append(divs, CompareTradeRecords(i, storedTrades[i], &trades[i])...)
	}

	if v.navStore != nil {
		if len(storedNAV) != len(nav) {
			divs = append(divs, FieldDivergence{Field: "nav.len", Expected: len(storedNAV), Actual: len(nav)})
		}
		for i := 0; i < min(len(storedNAV), len(nav)); i++ {
			divs = append(divs, CompareNAVSamples(i, storedNAV[i], &nav[i])...)
		}
	}

	divs = append(divs, CompareReports(run.Report, metrics.Compute(nav, trades))...)

	return &VerificationResult{
		RunID:          runID,
		Match:          len(divs) == 0,
		Divergences:    divs,
		StoredTrades:   len(storedTrades),
		ReplayedTrades: len(trades),
		StoredNAV:      len(storedNAV),
		ReplayedNAV:    len(nav),
	}, nil
}

// VerifyAll verifies all stored runs.
func (v *ReplayVerifier) VerifyAll(ctx context.Context, load BarLoader) (*VerificationReport, error) {
	// Load all runs
	runs, err := v.reportStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		TotalRuns: len(runs),
		Results:   make([]VerificationResult, 0, len(runs)),
	}

	for _, run := range runs {
		result, err := v.verifyLoaded(ctx, run, load)
		if err != nil {
			// Record error as divergence
			report.Results = append(report.Results, VerificationResult{
				RunID: run.RunID,
				Match: false,
				Divergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			report.DivergentRuns++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
	}

	return report, nil
}

func (v *ReplayVerifier) verifyLoaded(ctx context.Context, run *domain.RunReport, load BarLoader) (*VerificationResult, error) {
	raw, err := load(ctx, run)
	if err != nil {
		return nil, err
	}
	return v.VerifyRun(ctx, run.RunID, raw)
}

// replay re-executes the simulation with the stored run's parameters.
func replay(ctx context.Context, run *domain.RunReport, raw []domain.Bar) ([]domain.TradeRecord, []domain.NAVSample, error) {
	bars, _, err := features.Enrich(raw, features.ParamsFromRun(run.Params))
	if err != nil {
		return nil, nil, err
	}

	strat, err := strategy.FromName(strategy.TypeVWAPReversion, run.Params.NSigma)
	if err != nil {
		return nil, nil, err
	}

	ex := exchange.New(exchange.Options{
		RunID:          run.RunID,
		InitialBalance: run.Params.InitialBalance,
		FeeRate:        run.Params.FeeRate,
	})
	if err := simulation.RunLoop(ctx, ex, strat, bars, simulation.LoopOptions{}); err != nil {
		return nil, nil, err
	}

	return ex.Trades(), ex.NAV(), nil
}
