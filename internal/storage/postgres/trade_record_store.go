package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"vwap-backtest/internal/domain"
	"vwap-backtest/internal/storage"
)

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

const tradeRecordColumns = `
	trade_id, run_id, timestamp_ms, order_id, side,
	price, quantity, fee, cash, position, realized_pnl, forced`

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeRecordStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	query := `INSERT INTO trade_records (` + tradeRecordColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(query,
			t.TradeID, t.RunID, t.TimestampMs, t.OrderID, string(t.Side),
			t.Price, t.Quantity, t.Fee, t.Cash, t.Position, t.RealizedPnL, t.Forced,
		)
	}
	return s.pool.execBatch(ctx, "trade record", batch)
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error) {
	query := `SELECT ` + tradeRecordColumns + `
		FROM trade_records
		WHERE trade_id = $1`

	t, err := scanTradeRecord(s.pool.QueryRow(ctx, query, tradeID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record by id: %w", err)
	}
	return t, nil
}

// GetByRunID retrieves the ledger of a run, ordered by order_id ASC.
func (s *TradeRecordStore) GetByRunID(ctx context.Context, runID string) ([]*domain.TradeRecord, error) {
	query := `SELECT ` + tradeRecordColumns + `
		FROM trade_records
		WHERE run_id = $1
		ORDER BY order_id ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get trade records by run id: %w", err)
	}
	return collect(rows, "trade record", scanTradeRecord)
}

// scanTradeRecord scans a single row into a TradeRecord.
func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var t domain.TradeRecord
	var side string

	err := row.Scan(
		&t.TradeID, &t.RunID, &t.TimestampMs, &t.OrderID, &side,
		&t.Price, &t.Quantity, &t.Fee, &t.Cash, &t.Position, &t.RealizedPnL, &t.Forced,
	)
	if err != nil {
		return nil, err
	}

	t.Side = domain.Side(side)
	return &t, nil
}
