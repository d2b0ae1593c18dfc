// Package storage defines the persistence contracts for bars, run ledgers
// and run reports. Backends live in the memory, postgres and clickhouse
// subpackages.
package storage

import (
	"context"

	"vwap-backtest/internal/domain"
)

// BarStore provides access to raw klines.
type BarStore interface {
	// InsertBulk adds multiple bars atomically. Fails entire batch on duplicate (symbol, open_time_ms).
	InsertBulk(ctx context.Context, bars []*domain.Bar) error

	// GetBySymbol retrieves all bars for a symbol, ordered by open_time ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.Bar, error)

	// GetByTimeRange retrieves bars for a symbol within [start, end] (inclusive), ordered by open_time ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Bar, error)
}

// TradeRecordStore provides access to the trade ledger of runs.
type TradeRecordStore interface {
	// InsertBulk adds multiple trades atomically. Fails entire batch on duplicate trade_id.
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// GetByRunID retrieves the ledger of a run, ordered by order_id ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.TradeRecord, error)
}

// NAVStore provides access to per-bar NAV series.
type NAVStore interface {
	// InsertBulk adds multiple samples atomically. Fails entire batch on duplicate (run_id, seq).
	InsertBulk(ctx context.Context, samples []*domain.NAVSample) error

	// GetByRunID retrieves the NAV series of a run, ordered by seq ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.NAVSample, error)
}

// RunReportStore provides access to run summaries.
type RunReportStore interface {
	// Insert adds a run report. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunReport) error

	// GetByRunID retrieves a run report. Returns ErrNotFound if not exists.
	GetByRunID(ctx context.Context, runID string) (*domain.RunReport, error)

	// GetAll retrieves all run reports ordered by (created_at, run_id) ASC.
	GetAll(ctx context.Context) ([]*domain.RunReport, error)
}
