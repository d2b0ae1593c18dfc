package domain

// PerformanceReport holds the scalar statistics of one run.
type PerformanceReport struct {
	TotalReturns                float64 // NAV[last]/NAV[first] - 1
	CompoundedTotalReturns      float64 // cumulative net return[last] - 1
	SimpleAnnualizedReturns     float64 // mean(return) * minutes_per_year
	CompoundedAnnualizedReturns float64 // (1+total)^(minutes_per_year/N) - 1
	AnnualizedVolatility        float64 // std(return) * sqrt(minutes_per_year)
	SharpeRatio                 float64 // may be +Inf/-Inf when volatility is zero
	MaxDrawdown                 float64 // on cumulative net return
	NumTrades                   float64 // ledger entries / 2
	WinRate                     float64 // profitable sells / NumTrades

	NAVSamples int      // N
	Warnings   []string // degraded-input notes, e.g. empty NAV series
}

// RunParams captures the parameters a run was executed with.
type RunParams struct {
	Interval       int
	VWAPWindow     int
	EstimateWindow int
	NSigma         float64
	InitialBalance float64
	FeeRate        float64
	StartMs        int64 // inclusive
	EndMs          int64 // inclusive
}

// RunReport is the persisted summary of one backtest run.
type RunReport struct {
	RunID      string
	Symbol     string
	Params     RunParams
	BarCount   int   // enriched bars simulated
	FirstBarMs int64 // zero when BarCount == 0
	LastBarMs  int64
	CreatedAt  int64 // Unix ms
	Report     PerformanceReport
}
