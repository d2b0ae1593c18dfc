package migrations

import (
	"context"
	"fmt"

	"vwap-backtest/internal/storage/postgres"
)

// RunPostgresMigrations creates the trade_records and run_reports tables.
// Every file uses IF NOT EXISTS, so reapplying is a no-op.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	migs, err := Load(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, m := range migs {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply postgres migration %s: %w", m.Name, err)
		}
	}
	return nil
}
