package strategy

import (
	"errors"
)

// Strategy type names accepted by FromName.
const (
	TypeVWAPReversion = "VWAP_REVERSION"
)

// ErrUnknownStrategyType is returned for an unrecognized strategy name.
var ErrUnknownStrategyType = errors.New("unknown strategy type")

// FromName creates a Strategy by type name. An empty name selects VWAP_REVERSION.
func FromName(name string, nSigma float64) (Strategy, error) {
	switch name {
	case "", TypeVWAPReversion:
		return NewVWAPReversion(nSigma), nil
	default:
		return nil, ErrUnknownStrategyType
	}
}
