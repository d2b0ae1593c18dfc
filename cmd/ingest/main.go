package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vwap-backtest/internal/dataset"
	"vwap-backtest/internal/domain"
	"vwap-backtest/internal/storage"
	chstore "vwap-backtest/internal/storage/clickhouse"
	"vwap-backtest/internal/storage/migrations"
)

func main() {
	// Parse flags
	file := flag.String("file", "", "Parquet or CSV kline file to load (required)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (required)")
	symbol := flag.String("symbol", "", "Symbol for rows without an instrument column")
	fromTime := flag.String("from-time", "", "Skip bars before this time (YYYY-MM-DD HH:MM:SS, UTC)")
	toTime := flag.String("to-time", "", "Skip bars after this time (YYYY-MM-DD HH:MM:SS, UTC)")
	batchSize := flag.Int("batch-size", 10000, "Bars per insert batch")
	skipDuplicates := flag.Bool("skip-duplicates", false, "Skip batches that overlap bars already stored")
	migrate := flag.Bool("migrate", false, "Apply embedded ClickHouse migrations first")

	flag.Parse()

	// Setup logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *file == "" {
		logger.Fatal("--file is required")
	}
	if *clickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn is required")
	}
	if *batchSize < 1 {
		logger.Fatal("--batch-size must be >= 1")
	}
	start, err := parseBound(*fromTime, time.Time{})
	if err != nil {
		logger.Fatal("invalid --from-time", zap.Error(err))
	}
	end, err := parseBound(*toTime, time.Unix(1<<40, 0))
	if err != nil {
		logger.Fatal("invalid --to-time", zap.Error(err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	// Load file
	raw, err := dataset.Load(*file)
	if err != nil {
		logger.Fatal("load dataset", zap.String("file", *file), zap.Error(err))
	}
	bars, missing := prepareBars(raw, *symbol, start.UnixMilli(), end.UnixMilli())
	if missing > 0 {
		logger.Fatal("bars without symbol; pass --symbol", zap.Int("count", missing))
	}
	logger.Info("dataset loaded", zap.String("file", *file), zap.Int("rows", len(raw)), zap.Int("selected", len(bars)))

	// Connect
	var conn *chstore.Conn
	if *migrate {
		conn, err = migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
	} else {
		conn, err = chstore.NewConn(ctx, *clickhouseDSN)
	}
	if err != nil {
		logger.Fatal("connect to clickhouse", zap.Error(err))
	}
	defer conn.Close()

	var store storage.BarStore = chstore.NewBarStore(conn)

	// Insert in batches
	inserted, skipped := 0, 0
	for lo := 0; lo < len(bars); lo += *batchSize {
		if ctx.Err() != nil {
			break
		}
		hi := min(lo+*batchSize, len(bars))
		err := store.InsertBulk(ctx, bars[lo:hi])
		switch {
		case err == nil:
			inserted += hi - lo
		case errors.Is(err, storage.ErrDuplicateKey) && *skipDuplicates:
			skipped += hi - lo
			logger.Warn("batch overlaps stored bars, skipped",
				zap.Int64("from_ms", bars[lo].OpenTimeMs),
				zap.Int64("to_ms", bars[hi-1].OpenTimeMs))
		default:
			logger.Fatal("insert bars", zap.Int("offset", lo), zap.Error(err))
		}
	}

	logger.Info("ingest complete", zap.Int("inserted", inserted), zap.Int("skipped", skipped))
}

// prepareBars fills missing symbols, applies the inclusive time filter and
// sorts by (symbol, open_time). Returns the count of rows still without a symbol.
func prepareBars(raw []domain.Bar, symbol string, startMs, endMs int64) ([]*domain.Bar, int) {
	out := make([]*domain.Bar, 0, len(raw))
	missing := 0
	for i := range raw {
		b := raw[i]
		if b.OpenTimeMs < startMs || b.OpenTimeMs > endMs {
			continue
		}
		if b.Symbol == "" {
			b.Symbol = symbol
		}
		if b.Symbol == "" {
			missing++
		}
		out = append(out, &b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].OpenTimeMs < out[j].OpenTimeMs
	})
	return out, missing
}

func parseBound(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseInLocation(domain.TimestampLayout, s, time.UTC)
}
