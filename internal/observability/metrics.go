// Package observability provides Prometheus metrics for backtest runs.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace is used when NewMetrics receives an empty namespace.
const DefaultNamespace = "vwap_backtest"

// Metrics holds all Prometheus metrics of a backtest process.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Simulation metrics
	BarsProcessed prometheus.Counter
	OrdersPlaced  *prometheus.CounterVec
	Fills         *prometheus.CounterVec
	ForcedCloses  prometheus.Counter

	// Run metrics
	RunsTotal     *prometheus.CounterVec
	PhaseDuration *prometheus.HistogramVec
	AuditLines    prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Simulation metrics
		BarsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "bars_processed_total",
			Help:      "Total number of enriched bars driven through the exchange",
		}),
		OrdersPlaced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "orders_placed_total",
			Help:      "Total number of limit orders placed by side",
		}, []string{"side"}),
		Fills: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "fills_total",
			Help:      "Total number of fills by side",
		}, []string{"side"}),
		ForcedCloses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "forced_closes_total",
			Help:      "Total number of end-of-run liquidations",
		}),

		// Run metrics
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		PhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "phase_duration_seconds",
			Help:      "Run phase duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"phase"}),
		AuditLines: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "audit_lines_written",
			Help:      "Audit log lines written by the last run",
		}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"store", "operation"}),

		// Health metrics
		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful run",
		}),
	}
}

// RecordBar increments the bars processed counter.
func (m *Metrics) RecordBar() {
	if m == nil {
		return
	}
	m.BarsProcessed.Inc()
}

// RecordOrder records a placed order.
func (m *Metrics) RecordOrder(side string) {
	if m == nil {
		return
	}
	m.OrdersPlaced.WithLabelValues(side).Inc()
}

// RecordFill records a fill. Forced liquidations also count as forced closes.
func (m *Metrics) RecordFill(side string, forced bool) {
	if m == nil {
		return
	}
	m.Fills.WithLabelValues(side).Inc()
	if forced {
		m.ForcedCloses.Inc()
	}
}

// RecordPhase records the duration of a run phase.
func (m *Metrics) RecordPhase(phase string, seconds float64) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(seconds)
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(status string, finishedAtUnix int64, auditLines uint64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.AuditLines.Set(float64(auditLines))
	if status == StatusSuccess {
		m.LastSuccessfulRun.Set(float64(finishedAtUnix))
	}
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(store, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(store, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(store, operation).Inc()
	}
}

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// WriteTextfile writes all metrics of g to path in the node-exporter
// textfile format.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	return prometheus.WriteToTextfile(path, g)
}
