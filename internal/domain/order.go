package domain

// Side is an order side.
type Side string

// Side constants.
const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Order is the single resting limit order owned by the exchange.
// It exists only while pending.
type Order struct {
	OrderID    int64   // monotonic per run, starts at 1
	Side       Side    // buy or sell
	LimitPrice float64 // resting price
	PlacedAtMs int64   // open time of the bar it was placed on
}
