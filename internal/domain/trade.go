package domain

// TradeRecord is an append-only ledger entry created on every fill,
// including forced liquidation. Never mutated after creation.
type TradeRecord struct {
	TradeID     string // deterministic hash of (run_id, order_id)
	RunID       string // backtest run
	TimestampMs int64  // bar open time of the fill (ms)
	OrderID     int64
	Side        Side
	Price       float64 // fill price
	Quantity    float64
	Fee         float64
	Cash        float64 // cash after the fill
	Position    float64 // position after the fill
	RealizedPnL float64 // cumulative realized PnL after the fill
	Forced      bool    // true for end-of-run liquidation
}

// NAVSample is one mark-to-market equity observation, one per processed bar.
type NAVSample struct {
	RunID       string
	Seq         int    // 0-based bar index within the run
	TimestampMs int64  // bar open time (ms)
	Label       string // minute-truncated timestamp, see MinuteLabel
	NAV         float64
}
