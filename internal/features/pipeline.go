// Package features turns raw OHLCV bars into decision-ready bars carrying
// vwap, bias, sigma and the buy/sell threshold bands.
package features

import (
	"vwap-backtest/internal/domain"
)

// Stats counts bars at each pipeline stage.
type Stats struct {
	Input      int
	InRange    int
	Traded     int // quote_volume > 0
	Aggregated int
	Enriched   int
}

// Enrich runs the full pipeline over raw bars. The input slice is not modified.
//
// Stages, in order:
//   - sort by open_time
//   - inclusive time filter
//   - drop bars with quote_volume <= 0
//   - aggregate into Interval-minute buckets when Interval > 1
//   - vwap = SUM(quote_volume, W) / (SUM(volume, W) + 1)
//   - bias = close / vwap - 1
//   - sigma = sample STDDEV(bias, E)
//   - bottom = vwap * (1 - k*sigma), top = vwap * (1 + k*sigma)
//
// Rows before every window is full are dropped. vwap needs W bars and sigma
// needs E bias values, so (W-1)+(E-1) leading rows are trimmed.
func Enrich(raw []domain.Bar, p Params) ([]domain.Bar, Stats, error) {
	stats := Stats{Input: len(raw)}
	if err := p.Validate(); err != nil {
		return nil, stats, err
	}

	bars := make([]domain.Bar, len(raw))
	copy(bars, raw)
	SortBars(bars)

	bars = FilterTimeRange(bars, p)
	stats.InRange = len(bars)

	bars = FilterQuoteVolume(bars)
	stats.Traded = len(bars)

	bars = Aggregate(bars, p.Interval)
	stats.Aggregated = len(bars)

	out := computeIndicators(bars, p)
	stats.Enriched = len(out)

	return out, stats, nil
}

func computeIndicators(bars []domain.Bar, p Params) []domain.Bar {
	warmup := p.WarmupBars()
	if len(bars) <= warmup {
		return nil
	}

	out := make([]domain.Bar, 0, len(bars)-warmup)
	qv := newRollingSum(p.VWAPWindow)
	vol := newRollingSum(p.VWAPWindow)
	sd := newRollingStd(p.EstimateWindow)

	for _, b := range bars {
		qvFull := qv.push(b.QuoteVolume)
		vol.push(b.Volume)
		if !qvFull {
			continue
		}

		vwap := qv.value() / (vol.value() + 1)
		bias := b.Close/vwap - 1
		if !sd.push(bias) {
			continue
		}

		sigma := sd.value()
		b.VWAP = vwap
		b.Bias = bias
		b.Sigma = sigma
		b.BottomThreshold = vwap * (1 - p.NSigma*sigma)
		b.TopThreshold = vwap * (1 + p.NSigma*sigma)
		out = append(out, b)
	}

	return out
}
