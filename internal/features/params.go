package features

import (
	"errors"
	"fmt"
	"math"

	"vwap-backtest/internal/domain"
)

// ErrInvalidParams is returned when pipeline parameters are out of range.
var ErrInvalidParams = errors.New("invalid feature params")

// Params configures the feature pipeline.
type Params struct {
	Interval       int     // aggregation width in minutes; 1 disables aggregation
	VWAPWindow     int     // W, trailing bars in the vwap sums
	EstimateWindow int     // E, trailing bias values in sigma
	NSigma         float64 // k, threshold multiplier

	// Inclusive open_time bounds in Unix ms. Nil means unbounded.
	StartMs *int64
	EndMs   *int64
}

// Validate checks window lengths and the multiplier.
func (p Params) Validate() error {
	if p.Interval < 1 {
		return fmt.Errorf("%w: interval %d < 1", ErrInvalidParams, p.Interval)
	}
	if p.VWAPWindow < 1 {
		return fmt.Errorf("%w: vwap window %d < 1", ErrInvalidParams, p.VWAPWindow)
	}
	if p.EstimateWindow < 2 {
		return fmt.Errorf("%w: estimate window %d < 2", ErrInvalidParams, p.EstimateWindow)
	}
	if p.NSigma < 0 || math.IsNaN(p.NSigma) {
		return fmt.Errorf("%w: n_sigma %v < 0", ErrInvalidParams, p.NSigma)
	}
	if p.StartMs != nil && p.EndMs != nil && *p.StartMs > *p.EndMs {
		return fmt.Errorf("%w: start %d after end %d", ErrInvalidParams, *p.StartMs, *p.EndMs)
	}
	return nil
}

// WarmupBars returns how many leading bars the rolling windows consume.
func (p Params) WarmupBars() int {
	return (p.VWAPWindow - 1) + (p.EstimateWindow - 1)
}

func (p Params) inRange(ts int64) bool {
	if p.StartMs != nil && ts < *p.StartMs {
		return false
	}
	if p.EndMs != nil && ts > *p.EndMs {
		return false
	}
	return true
}

// ParamsFromRun builds pipeline parameters from recorded run parameters.
// Bounds at the int64 limits are treated as unbounded.
func ParamsFromRun(rp domain.RunParams) Params {
	p := Params{
		Interval:       rp.Interval,
		VWAPWindow:     rp.VWAPWindow,
		EstimateWindow: rp.EstimateWindow,
		NSigma:         rp.NSigma,
	}
	if rp.StartMs != math.MinInt64 {
		start := rp.StartMs
		p.StartMs = &start
	}
	if rp.EndMs != math.MaxInt64 {
		end := rp.EndMs
		p.EndMs = &end
	}
	return p
}
