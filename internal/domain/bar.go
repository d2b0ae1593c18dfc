package domain

// Bar represents one OHLCV observation.
// Raw bars only carry the market fields; the feature pipeline fills the
// enrichment fields (VWAP through TopThreshold) on its own copies.
type Bar struct {
	Symbol      string // instrument identifier, may be empty
	OpenTimeMs  int64  // bar open time, Unix milliseconds
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64 // base volume
	QuoteVolume float64 // volume in quote currency

	// Enrichment
	VWAP            float64 // rolling quote_volume / (rolling volume + 1)
	Bias            float64 // close / vwap - 1
	Sigma           float64 // rolling sample stddev of bias
	BottomThreshold float64 // vwap * (1 - k*sigma)
	TopThreshold    float64 // vwap * (1 + k*sigma)
}

// MinuteLabel is the layout of NAV sample labels.
const MinuteLabel = "2006-01-02 15:04"

// TimestampLayout is the layout used for config dates and audit lines.
const TimestampLayout = "2006-01-02 15:04:05"
