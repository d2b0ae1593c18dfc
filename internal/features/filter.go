package features

import (
	"sort"

	"vwap-backtest/internal/domain"
)

// SortBars orders bars by open_time ASC. Equal open times keep input order.
func SortBars(bars []domain.Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].OpenTimeMs < bars[j].OpenTimeMs
	})
}

// FilterTimeRange keeps bars whose open_time lies in the inclusive range.
func FilterTimeRange(bars []domain.Bar, p Params) []domain.Bar {
	if p.StartMs == nil && p.EndMs == nil {
		return bars
	}
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		if p.inRange(b.OpenTimeMs) {
			out = append(out, b)
		}
	}
	return out
}

// FilterQuoteVolume drops bars with non-positive quote volume.
func FilterQuoteVolume(bars []domain.Bar) []domain.Bar {
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		if b.QuoteVolume > 0 {
			out = append(out, b)
		}
	}
	return out
}
