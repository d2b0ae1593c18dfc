// Package simulation drives enriched bars through the exchange and
// orchestrates complete backtest runs.
package simulation

import (
	"context"
	"fmt"
	"time"

	"vwap-backtest/internal/domain"
	"vwap-backtest/internal/exchange"
	"vwap-backtest/internal/observability"
	"vwap-backtest/internal/strategy"
)

// LoopOptions configures one pass of the simulation loop.
type LoopOptions struct {
	// AuditErr reports a latched audit log failure. Checked after every bar;
	// a non-nil result aborts the loop.
	AuditErr func() error
	Metrics  *observability.Metrics
}

// RunLoop processes bars in order. For every bar:
//  1. resolve the order placed on the previous bar against this bar
//  2. place the next order from the strategy given the updated position
//  3. record a NAV sample marked at close
//
// On the last bar an open position is liquidated at that bar's open.
func RunLoop(ctx context.Context, ex *exchange.Exchange, strat strategy.Strategy, bars []domain.Bar, opts LoopOptions) error {
	last := len(bars) - 1
	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, ok := ex.PendingOrder(); ok {
			if tr, filled := ex.CheckAndFill(bar); filled {
				opts.Metrics.RecordFill(string(tr.Side), false)
			}
		}

		if d := strat.NextOrder(ex.Position(), bar); d.Place {
			ex.PlaceOrder(d.Side, d.LimitPrice, bar.OpenTimeMs)
			opts.Metrics.RecordOrder(string(d.Side))
		}

		ex.RecordNAV(MinuteLabel(bar.OpenTimeMs), bar.OpenTimeMs, bar.Close)
		opts.Metrics.RecordBar()

		if i == last && ex.Position() > 0 {
			if ex.ForceClose(bar.Open, bar.OpenTimeMs) {
				opts.Metrics.RecordFill(string(domain.SideSell), true)
			}
		}

		if opts.AuditErr != nil {
			if err := opts.AuditErr(); err != nil {
				return fmt.Errorf("audit log at bar %d: %w", i, err)
			}
		}
	}
	return nil
}

// MinuteLabel formats a bar open time as its UTC minute.
func MinuteLabel(tsMs int64) string {
	return time.UnixMilli(tsMs).UTC().Format(domain.MinuteLabel)
}
