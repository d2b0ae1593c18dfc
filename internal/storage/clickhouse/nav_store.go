package clickhouse

import (
	"context"
	"fmt"

	"vwap-backtest/internal/domain"
	"vwap-backtest/internal/storage"
)

// NAVStore implements storage.NAVStore using ClickHouse.
type NAVStore struct {
	conn *Conn
}

// NewNAVStore creates a new NAVStore.
func NewNAVStore(conn *Conn) *NAVStore {
	return &NAVStore{conn: conn}
}

// Compile-time interface check.
var _ storage.NAVStore = (*NAVStore)(nil)

// InsertBulk adds multiple samples. Fails entire batch on duplicate (run_id, seq).
func (s *NAVStore) InsertBulk(ctx context.Context, samples []*domain.NAVSample) error {
	if len(samples) == 0 {
		return nil
	}

	type key struct {
		runID string
		seq   int
	}
	seen := make(map[key]struct{}, len(samples))
	runs := make(map[string]struct{})
	for _, n := range samples {
		if n == nil || n.RunID == "" || n.Seq < 0 {
			return storage.ErrInvalidInput
		}
		k := key{n.RunID, n.Seq}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		runs[n.RunID] = struct{}{}
	}

	// A run's series is written once, so any stored sample for the run is a duplicate.
	for runID := range runs {
		var count uint64
		err := s.conn.QueryRow(ctx, `SELECT count(*) FROM nav_samples WHERE run_id = ?`, runID).Scan(&count)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if count > 0 {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO nav_samples (run_id, seq, timestamp_ms, label, nav)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, n := range samples {
		if err := batch.Append(n.RunID, uint32(n.Seq), n.TimestampMs, n.Label, n.NAV); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves the NAV series of a run, ordered by seq ASC.
func (s *NAVStore) GetByRunID(ctx context.Context, runID string) ([]*domain.NAVSample, error) {
	query := `
		SELECT run_id, seq, timestamp_ms, label, nav
		FROM nav_samples
		WHERE run_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanNAVSamples(rows)
}

// scanNAVSamples scans multiple rows.
func scanNAVSamples(rows chRows) ([]*domain.NAVSample, error) {
	var samples []*domain.NAVSample

	for rows.Next() {
		var n domain.NAVSample
		var seq uint32

		if err := rows.Scan(&n.RunID, &seq, &n.TimestampMs, &n.Label, &n.NAV); err != nil {
			return nil, fmt.Errorf("scan nav row: %w", err)
		}

		n.Seq = int(seq)
		samples = append(samples, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nav rows: %w", err)
	}

	return samples, nil
}
