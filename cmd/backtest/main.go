package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"vwap-backtest/internal/config"
	"vwap-backtest/internal/observability"
	"vwap-backtest/internal/reporting"
	"vwap-backtest/internal/simulation"
	"vwap-backtest/internal/storage"
	chstore "vwap-backtest/internal/storage/clickhouse"
	"vwap-backtest/internal/storage/memory"
	"vwap-backtest/internal/storage/migrations"
	pgstore "vwap-backtest/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML/JSON run configuration (required)")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for trade ledger and run reports")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for NAV series (and bars when data_path is clickhouse://)")
	migrate := flag.Bool("migrate", false, "Apply embedded migrations before running")

	// Output
	outputJSON := flag.Bool("json", false, "Output run report as JSON")
	noCSV := flag.Bool("no-csv", false, "Skip the trade ledger CSV export")
	metricsFile := flag.String("metrics-textfile", "", "Write Prometheus metrics to this textfile after the run")

	flag.Parse()

	// Setup logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *configPath == "" {
		logger.Fatal("--config is required")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.String("path", *configPath), zap.Error(err))
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

	// Create stores
	var tradeStore storage.TradeRecordStore = memory.NewTradeRecordStore()
	var navStore storage.NAVStore = memory.NewNAVStore()
	var reportStore storage.RunReportStore = memory.NewRunReportStore()
	var barStore storage.BarStore

	if *postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatal("connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		if *migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				logger.Fatal("postgres migrations", zap.Error(err))
			}
		}
		tradeStore = pgstore.NewTradeRecordStore(pool)
		reportStore = pgstore.NewRunReportStore(pool)
	}

	chDSN := *clickhouseDSN
	if chDSN == "" && cfg.FromClickHouse() {
		chDSN = cfg.DataPath
	}
	if chDSN != "" {
		conn, err := openClickHouse(ctx, chDSN, *migrate)
		if err != nil {
			logger.Fatal("connect to clickhouse", zap.Error(err))
		}
		defer conn.Close()

		barStore = chstore.NewBarStore(conn)
		if *clickhouseDSN != "" {
			navStore = chstore.NewNAVStore(conn)
		}
	}

	// Metrics
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg, "")

	runner := simulation.NewRunner(simulation.RunnerOptions{
		BarStore:         barStore,
		TradeRecordStore: tradeStore,
		NAVStore:         navStore,
		RunReportStore:   reportStore,
		Logger:           logger,
		Metrics:          m,
	})

	// Run backtest
	res, runErr := runner.Run(ctx, cfg)

	if *metricsFile != "" {
		if err := observability.WriteTextfile(reg, *metricsFile); err != nil {
			logger.Error("write metrics textfile", zap.Error(err))
		}
	}
	if runErr != nil {
		logger.Fatal("backtest failed", zap.Error(runErr))
	}

	if !*noCSV && cfg.TradesCSV != "" {
		if err := reporting.WriteTradesCSV(cfg.TradesCSV, res.Trades); err != nil {
			logger.Fatal("write trades csv", zap.String("path", cfg.TradesCSV), zap.Error(err))
		}
		logger.Info("trade ledger exported", zap.String("path", cfg.TradesCSV), zap.Int("trades", len(res.Trades)))
	}

	// Output result
	if *outputJSON {
		output, err := json.MarshalIndent(res.RunReport, "", "  ")
		if err == nil {
			fmt.Println(string(output))
			return
		}
		// encoding/json rejects infinite sharpe ratios
		logger.Warn("json output unavailable", zap.Error(err))
	}
	fmt.Printf("Run: %s\n", res.RunReport.RunID)
	fmt.Print(reporting.RenderSummary(res.RunReport.Report))
}

// openClickHouse connects to ClickHouse, optionally creating the schema first.
func openClickHouse(ctx context.Context, dsn string, migrate bool) (*chstore.Conn, error) {
	if migrate {
		return migrations.RunClickhouseMigrations(ctx, dsn)
	}
	return chstore.NewConn(ctx, dsn)
}
