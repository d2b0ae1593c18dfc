package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vwap-backtest/internal/auditlog"
	"vwap-backtest/internal/config"
	"vwap-backtest/internal/dataset"
	"vwap-backtest/internal/domain"
	"vwap-backtest/internal/exchange"
	"vwap-backtest/internal/features"
	"vwap-backtest/internal/metrics"
	"vwap-backtest/internal/observability"
	"vwap-backtest/internal/storage"
	"vwap-backtest/internal/strategy"
)

// Runner errors
var (
	ErrNoBarStore = errors.New("clickhouse data source requires a bar store")
	ErrNoSymbol   = errors.New("clickhouse data source requires a symbol")
)

// Run phases reported to metrics.
const (
	PhaseLoad     = "load"
	PhaseEnrich   = "enrich"
	PhaseSimulate = "simulate"
	PhasePersist  = "persist"
)

// Runner executes complete backtest runs.
type Runner struct {
	barStore         storage.BarStore
	tradeRecordStore storage.TradeRecordStore
	navStore         storage.NAVStore
	runReportStore   storage.RunReportStore
	logger           *zap.Logger
	metrics          *observability.Metrics
	now              func() time.Time
	newRunID         func() string
}

// RunnerOptions contains configuration for creating a Runner.
// Nil stores are skipped when persisting.
type RunnerOptions struct {
	BarStore         storage.BarStore
	TradeRecordStore storage.TradeRecordStore
	NAVStore         storage.NAVStore
	RunReportStore   storage.RunReportStore
	Logger           *zap.Logger
	Metrics          *observability.Metrics
	Now              func() time.Time
	NewRunID         func() string
}

// NewRunner creates a backtest runner.
func NewRunner(opts RunnerOptions) *Runner {
	r := &Runner{
		barStore:         opts.BarStore,
		tradeRecordStore: opts.TradeRecordStore,
		navStore:         opts.NAVStore,
		runReportStore:   opts.RunReportStore,
		logger:           opts.Logger,
		metrics:          opts.Metrics,
		now:              opts.Now,
		newRunID:         opts.NewRunID,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newRunID == nil {
		r.newRunID = func() string { return uuid.NewString() }
	}
	return r
}

// Result is the outcome of one run.
type Result struct {
	RunReport  domain.RunReport
	Trades     []domain.TradeRecord
	NAV        []domain.NAVSample
	Stats      features.Stats
	AuditPath  string
	AuditLines uint64
}

// Run executes one backtest:
//  1. Validate config
//  2. Load raw bars from the dataset file or the bar store
//  3. Enrich bars
//  4. Open the audit log
//  5. Drive the simulation loop
//  6. Close the audit log, surfacing any write error
//  7. Compute metrics
//  8. Persist ledger, NAV series and run report
func (r *Runner) Run(ctx context.Context, cfg config.Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	started := r.now()
	res, err := r.run(ctx, cfg, started)
	status := observability.StatusSuccess
	if err != nil {
		status = observability.StatusFailed
	}
	var lines uint64
	if res != nil {
		lines = res.AuditLines
	}
	r.metrics.RecordRun(status, r.now().Unix(), lines)
	return res, err
}

func (r *Runner) run(ctx context.Context, cfg config.Config, started time.Time) (*Result, error) {
	runID := r.newRunID()
	log := r.logger.With(zap.String("run_id", runID))

	log.Info("run started", zap.String("data_path", cfg.DataPath))

	phase := r.now()
	raw, err := r.loadBars(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	r.metrics.RecordPhase(PhaseLoad, r.now().Sub(phase).Seconds())

	params := cfg.Params()
	phase = r.now()
	bars, stats, err := features.Enrich(raw, features.ParamsFromRun(params))
	if err != nil {
		return nil, fmt.Errorf("enrich bars: %w", err)
	}
	r.metrics.RecordPhase(PhaseEnrich, r.now().Sub(phase).Seconds())
	log.Info("bars enriched",
		zap.Int("input", stats.Input),
		zap.Int("in_range", stats.InRange),
		zap.Int("traded", stats.Traded),
		zap.Int("aggregated", stats.Aggregated),
		zap.Int("enriched", stats.Enriched))

	strat, err := strategy.FromName(strategy.TypeVWAPReversion, cfg.NSigma)
	if err != nil {
		return nil, err
	}

	audit, err := auditlog.Open(auditlog.Config{Path: cfg.AuditLogPath(started)})
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	auditOpen := true
	defer func() {
		if auditOpen {
			_ = audit.Close()
		}
	}()
	log.Info("audit log opened", zap.String("path", audit.Path()))

	ex := exchange.New(exchange.Options{
		RunID:          runID,
		InitialBalance: cfg.InitialBalance,
		FeeRate:        cfg.FeeRate,
		Audit:          audit,
	})

	phase = r.now()
	loopErr := RunLoop(ctx, ex, strat, bars, LoopOptions{AuditErr: audit.Err, Metrics: r.metrics})
	auditOpen = false
	closeErr := audit.Close()
	if loopErr != nil {
		return nil, loopErr
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close audit log: %w", closeErr)
	}
	r.metrics.RecordPhase(PhaseSimulate, r.now().Sub(phase).Seconds())

	trades := ex.Trades()
	nav := ex.NAV()
	report := metrics.Compute(nav, trades)
	for _, w := range report.Warnings {
		log.Warn("metrics degraded", zap.String("warning", w))
	}

	rr := domain.RunReport{
		RunID:     runID,
		Symbol:    cfg.Symbol,
		Params:    params,
		BarCount:  len(bars),
		CreatedAt: started.UnixMilli(),
		Report:    report,
	}
	if rr.Symbol == "" && len(bars) > 0 {
		rr.Symbol = bars[0].Symbol
	}
	if len(bars) > 0 {
		rr.FirstBarMs = bars[0].OpenTimeMs
		rr.LastBarMs = bars[len(bars)-1].OpenTimeMs
	}

	phase = r.now()
	if err := r.persist(ctx, &rr, trades, nav); err != nil {
		return nil, err
	}
	r.metrics.RecordPhase(PhasePersist, r.now().Sub(phase).Seconds())

	log.Info("run finished",
		zap.Int("trades", len(trades)),
		zap.Int("nav_samples", len(nav)),
		zap.Float64("position", ex.Position()),
		zap.Float64("total_returns", report.TotalReturns),
		zap.Uint64("audit_lines", audit.Written()))

	return &Result{
		RunReport:  rr,
		Trades:     trades,
		NAV:        nav,
		Stats:      stats,
		AuditPath:  audit.Path(),
		AuditLines: audit.Written(),
	}, nil
}

// LoadBars reads raw bars for cfg without enriching them.
func (r *Runner) LoadBars(ctx context.Context, cfg config.Config) ([]domain.Bar, error) {
	return r.loadBars(ctx, cfg)
}

func (r *Runner) loadBars(ctx context.Context, cfg config.Config) ([]domain.Bar, error) {
	if !cfg.FromClickHouse() {
		return dataset.Load(cfg.DataPath)
	}
	if r.barStore == nil {
		return nil, ErrNoBarStore
	}
	if cfg.Symbol == "" {
		return nil, ErrNoSymbol
	}

	start, end, err := cfg.TimeRange()
	if err != nil {
		return nil, err
	}
	ptrs, err := r.barStore.GetByTimeRange(ctx, cfg.Symbol, start, end)
	if err != nil {
		return nil, err
	}
	bars := make([]domain.Bar, len(ptrs))
	for i, b := range ptrs {
		bars[i] = *b
	}
	return bars, nil
}

func (r *Runner) persist(ctx context.Context, rr *domain.RunReport, trades []domain.TradeRecord, nav []domain.NAVSample) error {
	if r.tradeRecordStore != nil && len(trades) > 0 {
		ptrs := make([]*domain.TradeRecord, len(trades))
		for i := range trades {
			ptrs[i] = &trades[i]
		}
		if err := r.timed("trade_records", "insert_bulk", func() error {
			return r.tradeRecordStore.InsertBulk(ctx, ptrs)
		}); err != nil {
			return fmt.Errorf("persist trades: %w", err)
		}
	}

	if r.navStore != nil && len(nav) > 0 {
		ptrs := make([]*domain.NAVSample, len(nav))
		for i := range nav {
			ptrs[i] = &nav[i]
		}
		if err := r.timed("nav_samples", "insert_bulk", func() error {
			return r.navStore.InsertBulk(ctx, ptrs)
		}); err != nil {
			return fmt.Errorf("persist nav: %w", err)
		}
	}

	if r.runReportStore != nil {
		if err := r.timed("run_reports", "insert", func() error {
			return r.runReportStore.Insert(ctx, rr)
		}); err != nil {
			return fmt.Errorf("persist run report: %w", err)
		}
	}
	return nil
}

func (r *Runner) timed(store, op string, fn func() error) error {
	start := r.now()
	err := fn()
	r.metrics.RecordDBQuery(store, op, r.now().Sub(start).Seconds(), err)
	return err
}
