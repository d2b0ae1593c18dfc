package features

import (
	"math"

	"vwap-backtest/internal/domain"
)

const minuteMs = int64(60 * 1000)

// BucketStart returns the epoch-aligned start of the bucket containing ts.
//
// Alignment: floor(ts / width) * width
func BucketStart(ts, widthMs int64) int64 {
	start := (ts / widthMs) * widthMs
	if ts < 0 && start != ts {
		start -= widthMs
	}
	return start
}

// Aggregate resamples time-sorted bars into left-closed, left-labeled buckets
// of intervalMinutes. Returns the input unchanged when intervalMinutes <= 1.
//
// Aggregation per bucket:
//   - open = FIRST(open), close = LAST(close)
//   - high = MAX(high), low = MIN(low)
//   - volume, quote_volume = SUM
//   - symbol = FIRST(symbol)
//
// Buckets whose summed volume is not positive are dropped; empty buckets are never synthesized.
func Aggregate(bars []domain.Bar, intervalMinutes int) []domain.Bar {
	if intervalMinutes <= 1 || len(bars) == 0 {
		return bars
	}

	widthMs := int64(intervalMinutes) * minuteMs
	out := make([]domain.Bar, 0, len(bars)/intervalMinutes+1)

	var cur domain.Bar
	open := false
	for _, b := range bars {
		start := BucketStart(b.OpenTimeMs, widthMs)
		if open && start == cur.OpenTimeMs {
			cur.High = math.Max(cur.High, b.High)
			cur.Low = math.Min(cur.Low, b.Low)
			cur.Close = b.Close
			cur.Volume += b.Volume
			cur.QuoteVolume += b.QuoteVolume
			continue
		}
		if open && cur.Volume > 0 {
			out = append(out, cur)
		}
		cur = domain.Bar{
			Symbol:      b.Symbol,
			OpenTimeMs:  start,
			Open:        b.Open,
			High:        b.High,
			Low:         b.Low,
			Close:       b.Close,
			Volume:      b.Volume,
			QuoteVolume: b.QuoteVolume,
		}
		open = true
	}
	if open && cur.Volume > 0 {
		out = append(out, cur)
	}

	return out
}
