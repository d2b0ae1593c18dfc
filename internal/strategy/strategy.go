// Package strategy holds the order policies driven by the simulation loop.
package strategy

import (
	"vwap-backtest/internal/domain"
)

// Strategy decides which limit order to rest after a bar has been processed.
type Strategy interface {
	// NextOrder returns the order to place for this bar given the current
	// position. The bar has already been used for fill checks.
	NextOrder(position float64, bar domain.Bar) Decision

	// ID returns strategy identifier (includes parameters).
	ID() string
}

// Decision is a limit order request. Place is false when no order should rest.
type Decision struct {
	Place      bool
	Side       domain.Side
	LimitPrice float64
}
