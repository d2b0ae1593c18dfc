package strategy

import (
	"fmt"

	"vwap-backtest/internal/domain"
)

// VWAPReversion buys at the lower band when flat and sells back at vwap when long.
type VWAPReversion struct {
	nSigma float64
}

// NewVWAPReversion creates the mean-reversion policy. nSigma only labels the ID;
// the bands are already on the enriched bar.
func NewVWAPReversion(nSigma float64) *VWAPReversion {
	return &VWAPReversion{nSigma: nSigma}
}

// NextOrder implements Strategy.
//   - flat: buy limit at bottom_threshold
//   - long: sell limit at vwap
func (s *VWAPReversion) NextOrder(position float64, bar domain.Bar) Decision {
	if position > 0 {
		return Decision{Place: true, Side: domain.SideSell, LimitPrice: bar.VWAP}
	}
	return Decision{Place: true, Side: domain.SideBuy, LimitPrice: bar.BottomThreshold}
}

// ID implements Strategy.
func (s *VWAPReversion) ID() string {
	return fmt.Sprintf("VWAP_REVERSION_k%g", s.nSigma)
}
