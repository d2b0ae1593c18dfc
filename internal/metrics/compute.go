// Package metrics turns a NAV series and trade ledger into run statistics.
package metrics

import (
	"math"

	"vwap-backtest/internal/domain"
)

// MinutesPerYear annualizes per-sample statistics. Every NAV sample counts
// as one minute whatever the bar interval.
const MinutesPerYear = 365 * 24 * 60

// WarningEmptyNAV is attached to the report when there is nothing to measure.
const WarningEmptyNAV = "empty NAV series: no bars were simulated, all metrics are zero"

// Compute calculates the performance report.
//
// Formulas:
//   - return[0] = 0, return[i] = nav[i]/nav[i-1] - 1
//   - cum[i] = PRODUCT(1 + return[0..i])
//   - total_returns = nav[last]/nav[first] - 1
//   - compounded_total_returns = cum[last] - 1
//   - simple_annualized_returns = MEAN(return) * MinutesPerYear
//   - compounded_annualized_returns = (1 + total_returns)^(MinutesPerYear/N) - 1
//   - annualized_volatility = STDDEV_POP(return) * SQRT(MinutesPerYear)
//   - sharpe_ratio = compounded_annualized_returns / annualized_volatility
//   - max_drawdown = MAX((peak[i] - cum[i]) / peak[i]), peak = running MAX(cum)
//   - num_trades = len(trades) / 2
//   - win_rate = COUNT(sell with realized_pnl > 0) / num_trades
func Compute(nav []domain.NAVSample, trades []domain.TradeRecord) domain.PerformanceReport {
	n := len(nav)
	if n == 0 {
		return domain.PerformanceReport{Warnings: []string{WarningEmptyNAV}}
	}

	returns := computeReturns(nav)
	cum := computeCumulative(returns)

	total := nav[n-1].NAV/nav[0].NAV - 1
	compAnnual := math.Pow(1+total, float64(MinutesPerYear)/float64(n)) - 1
	volatility := computeStddevPop(returns) * math.Sqrt(MinutesPerYear)
	numTrades := float64(len(trades)) / 2

	return domain.PerformanceReport{
		TotalReturns:                total,
		CompoundedTotalReturns:      cum[n-1] - 1,
		SimpleAnnualizedReturns:     computeMean(returns) * MinutesPerYear,
		CompoundedAnnualizedReturns: compAnnual,
		AnnualizedVolatility:        volatility,
		SharpeRatio:                 computeSharpe(compAnnual, volatility),
		MaxDrawdown:                 computeMaxDrawdown(cum),
		NumTrades:                   numTrades,
		WinRate:                     computeWinRate(trades, numTrades),
		NAVSamples:                  n,
	}
}

func computeReturns(nav []domain.NAVSample) []float64 {
	returns := make([]float64, len(nav))
	for i := 1; i < len(nav); i++ {
		returns[i] = nav[i].NAV/nav[i-1].NAV - 1
	}
	return returns
}

func computeCumulative(returns []float64) []float64 {
	cum := make([]float64, len(returns))
	acc := 1.0
	for i, r := range returns {
		acc *= 1 + r
		cum[i] = acc
	}
	return cum
}

// computeMean returns the arithmetic mean; 0 for empty input.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddevPop returns the population standard deviation (N denominator).
func computeStddevPop(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := computeMean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// computeSharpe divides without a risk-free rate. Zero volatility yields 0
// for a zero return and a signed infinity otherwise.
func computeSharpe(annualReturn, volatility float64) float64 {
	if volatility == 0 {
		switch {
		case annualReturn > 0:
			return math.Inf(1)
		case annualReturn < 0:
			return math.Inf(-1)
		default:
			return 0
		}
	}
	return annualReturn / volatility
}

// computeMaxDrawdown returns the largest relative drop from the running peak.
func computeMaxDrawdown(cum []float64) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, c := range cum {
		if c > peak {
			peak = c
		}
		if peak == 0 {
			continue
		}
		if dd := (peak - c) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// computeWinRate counts profitable sells against half the ledger length.
func computeWinRate(trades []domain.TradeRecord, numTrades float64) float64 {
	if numTrades == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.Side == domain.SideSell && t.RealizedPnL > 0 {
			wins++
		}
	}
	return float64(wins) / numTrades
}
