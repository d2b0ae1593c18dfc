package clickhouse

import (
	"context"
	"fmt"

	"vwap-backtest/internal/domain"
	"vwap-backtest/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on duplicate (symbol, open_time_ms).
// MergeTree does not enforce uniqueness, so duplicates are checked before insert.
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		symbol     string
		openTimeMs int64
	}
	seen := make(map[key]struct{}, len(bars))
	bySymbol := make(map[string][]int64)
	for _, b := range bars {
		if b == nil || b.Symbol == "" {
			return storage.ErrInvalidInput
		}
		k := key{b.Symbol, b.OpenTimeMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		bySymbol[b.Symbol] = append(bySymbol[b.Symbol], b.OpenTimeMs)
	}

	// Check for duplicates against existing DB rows
	for symbol, times := range bySymbol {
		exists, err := s.anyExists(ctx, symbol, times)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO klines (
			symbol, open_time_ms, open, high, low, close, volume, quote_volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.Symbol, b.OpenTimeMs,
			b.Open, b.High, b.Low, b.Close, b.Volume, b.QuoteVolume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySymbol retrieves all bars for a symbol, ordered by open_time ASC.
func (s *BarStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.Bar, error) {
	query := `
		SELECT symbol, open_time_ms, open, high, low, close, volume, quote_volume
		FROM klines
		WHERE symbol = ?
		ORDER BY open_time_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetByTimeRange retrieves bars for a symbol within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Bar, error) {
	query := `
		SELECT symbol, open_time_ms, open, high, low, close, volume, quote_volume
		FROM klines
		WHERE symbol = ? AND open_time_ms >= ? AND open_time_ms <= ?
		ORDER BY open_time_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// anyExists reports whether any of the open times is already stored for symbol.
func (s *BarStore) anyExists(ctx context.Context, symbol string, times []int64) (bool, error) {
	query := `
		SELECT count(*) FROM klines
		WHERE symbol = ? AND has(?, open_time_ms)
	`

	for lo := 0; lo < len(times); lo += existsChunk {
		hi := min(lo+existsChunk, len(times))

		var count uint64
		if err := s.conn.QueryRow(ctx, query, symbol, times[lo:hi]).Scan(&count); err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

// scanBars scans multiple rows.
func scanBars(rows chRows) ([]*domain.Bar, error) {
	var bars []*domain.Bar

	for rows.Next() {
		var b domain.Bar

		err := rows.Scan(
			&b.Symbol, &b.OpenTimeMs,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.QuoteVolume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan kline row: %w", err)
		}

		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kline rows: %w", err)
	}

	return bars, nil
}
