package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"vwap-backtest/internal/domain"
	"vwap-backtest/internal/storage"
)

// RunReportStore implements storage.RunReportStore using PostgreSQL.
type RunReportStore struct {
	pool *Pool
}

// NewRunReportStore creates a new RunReportStore.
func NewRunReportStore(pool *Pool) *RunReportStore {
	return &RunReportStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunReportStore = (*RunReportStore)(nil)

const runReportColumns = `
	run_id, symbol,
	interval_minutes, vwap_window, estimate_window, n_sigma, initial_balance, fee_rate,
	start_ms, end_ms,
	bar_count, first_bar_ms, last_bar_ms, created_at,
	total_returns, compounded_total_returns,
	simple_annualized_returns, compounded_annualized_returns,
	annualized_volatility, sharpe_ratio, max_drawdown,
	num_trades, win_rate, nav_samples, warnings`

// Insert adds a run report. Returns ErrDuplicateKey if run_id exists.
func (s *RunReportStore) Insert(ctx context.Context, r *domain.RunReport) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `INSERT INTO run_reports (` + runReportColumns + `
		) VALUES (
			$1, $2,
			$3, $4, $5, $6, $7, $8,
			$9, $10,
			$11, $12, $13, $14,
			$15, $16,
			$17, $18,
			$19, $20, $21,
			$22, $23, $24, $25
		)`

	p, rep := r.Params, r.Report
	warnings := rep.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.Symbol,
		p.Interval, p.VWAPWindow, p.EstimateWindow, p.NSigma, p.InitialBalance, p.FeeRate,
		p.StartMs, p.EndMs,
		r.BarCount, r.FirstBarMs, r.LastBarMs, r.CreatedAt,
		rep.TotalReturns, rep.CompoundedTotalReturns,
		rep.SimpleAnnualizedReturns, rep.CompoundedAnnualizedReturns,
		rep.AnnualizedVolatility, rep.SharpeRatio, rep.MaxDrawdown,
		rep.NumTrades, rep.WinRate, rep.NAVSamples, warnings,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run report: %w", err)
	}
	return nil
}

// GetByRunID retrieves a run report. Returns ErrNotFound if not exists.
func (s *RunReportStore) GetByRunID(ctx context.Context, runID string) (*domain.RunReport, error) {
	query := `SELECT ` + runReportColumns + `
		FROM run_reports
		WHERE run_id = $1`

	r, err := scanRunReport(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run report: %w", err)
	}
	return r, nil
}

// GetAll retrieves all run reports ordered by (created_at, run_id) ASC.
func (s *RunReportStore) GetAll(ctx context.Context) ([]*domain.RunReport, error) {
	query := `SELECT ` + runReportColumns + `
		FROM run_reports
		ORDER BY created_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all run reports: %w", err)
	}
	return collect(rows, "run report", scanRunReport)
}

// scanRunReport scans a single row into a RunReport.
func scanRunReport(row pgx.Row) (*domain.RunReport, error) {
	var r domain.RunReport
	p, rep := &r.Params, &r.Report

	err := row.Scan(
		&r.RunID, &r.Symbol,
		&p.Interval, &p.VWAPWindow, &p.EstimateWindow, &p.NSigma, &p.InitialBalance, &p.FeeRate,
		&p.StartMs, &p.EndMs,
		&r.BarCount, &r.FirstBarMs, &r.LastBarMs, &r.CreatedAt,
		&rep.TotalReturns, &rep.CompoundedTotalReturns,
		&rep.SimpleAnnualizedReturns, &rep.CompoundedAnnualizedReturns,
		&rep.AnnualizedVolatility, &rep.SharpeRatio, &rep.MaxDrawdown,
		&rep.NumTrades, &rep.WinRate, &rep.NAVSamples, &rep.Warnings,
	)
	if err != nil {
		return nil, err
	}

	if len(rep.Warnings) == 0 {
		rep.Warnings = nil
	}
	return &r, nil
}
