// Package exchange simulates a single-instrument venue with at most one
// resting limit order, fully invested sizing and fee deduction.
package exchange

import (
	"fmt"
	"time"

	"vwap-backtest/internal/domain"
	"vwap-backtest/internal/idhash"
)

// AuditLogger receives human-readable audit lines. Log must not block.
type AuditLogger interface {
	Log(line string)
}

type nopAudit struct{}

func (nopAudit) Log(string) {}

// Options configures a new Exchange.
type Options struct {
	RunID          string
	InitialBalance float64
	FeeRate        float64
	Audit          AuditLogger // nil disables the audit trail
}

// Exchange owns cash, position, the pending order and the append-only ledgers.
// It is not safe for concurrent use.
type Exchange struct {
	runID   string
	feeRate float64
	audit   AuditLogger

	cash        float64
	position    float64
	costBasis   float64
	realizedPnL float64

	lastOrderID int64
	pending     *domain.Order

	trades []domain.TradeRecord
	nav    []domain.NAVSample
}

// New creates an Exchange holding InitialBalance in cash and no position.
func New(opts Options) *Exchange {
	audit := opts.Audit
	if audit == nil {
		audit = nopAudit{}
	}
	return &Exchange{
		runID:   opts.RunID,
		feeRate: opts.FeeRate,
		audit:   audit,
		cash:    opts.InitialBalance,
	}
}

// PlaceOrder allocates a new order id and makes it the pending order,
// replacing any previous one. No balance check is made here.
func (e *Exchange) PlaceOrder(side domain.Side, limitPrice float64, tsMs int64) domain.Order {
	e.lastOrderID++
	order := domain.Order{
		OrderID:    e.lastOrderID,
		Side:       side,
		LimitPrice: limitPrice,
		PlacedAtMs: tsMs,
	}
	e.pending = &order
	e.logf(tsMs, "PLACE #%d %s LIMIT @ %.2f", order.OrderID, side, limitPrice)
	return order
}

// CheckAndFill evaluates the pending order against bar's range.
//   - buy fills iff low <= limit, at MIN(limit, open)
//   - sell fills iff high >= limit, at MAX(limit, open)
//
// Returns the ledger entry and true on fill.
func (e *Exchange) CheckAndFill(bar domain.Bar) (domain.TradeRecord, bool) {
	if e.pending == nil {
		return domain.TradeRecord{}, false
	}
	order := *e.pending

	switch order.Side {
	case domain.SideBuy:
		if bar.Low <= order.LimitPrice {
			return e.fillBuy(order, min(order.LimitPrice, bar.Open), bar.OpenTimeMs), true
		}
	case domain.SideSell:
		if bar.High >= order.LimitPrice {
			return e.fillSell(order.OrderID, order.LimitPrice, max(order.LimitPrice, bar.Open), bar.OpenTimeMs, false), true
		}
	}
	return domain.TradeRecord{}, false
}

// fillBuy deploys the whole cash balance.
//
//	quantity = cash / (price * (1 + fee_rate))
//	fee      = quantity * price * fee_rate
func (e *Exchange) fillBuy(order domain.Order, price float64, tsMs int64) domain.TradeRecord {
	var quantity float64
	if price > 0 {
		quantity = e.cash / (price * (1 + e.feeRate))
	}
	fee := quantity * price * e.feeRate
	cost := quantity*price + fee

	e.cash -= cost
	e.position += quantity
	e.costBasis = price
	e.pending = nil

	e.logf(tsMs, "FILL #%d BUY %.6f @ %.2f, cost %.2f (fee %.2f)", order.OrderID, quantity, price, cost, fee)
	return e.record(order.OrderID, domain.SideBuy, price, quantity, fee, tsMs, false)
}

// fillSell liquidates the whole position.
//
//	fee          = quantity * price * fee_rate
//	revenue      = quantity * price - fee
//	realized_pnl += (price - cost_basis) * quantity - fee
func (e *Exchange) fillSell(orderID int64, limit, price float64, tsMs int64, forced bool) domain.TradeRecord {
	quantity := e.position
	fee := quantity * price * e.feeRate
	revenue := quantity*price - fee

	e.cash += revenue
	e.realizedPnL += (price-e.costBasis)*quantity - fee
	e.position = 0
	e.costBasis = 0
	e.pending = nil

	if forced {
		e.logf(tsMs, "FORCE CLOSE #%d SELL %.6f @ %.2f, revenue %.2f (fee %.2f)", orderID, quantity, price, revenue, fee)
	} else {
		e.logf(tsMs, "FILL #%d SELL %.6f @ %.2f (limit %.2f), revenue %.2f (fee %.2f)", orderID, quantity, price, limit, revenue, fee)
	}
	return e.record(orderID, domain.SideSell, price, quantity, fee, tsMs, forced)
}

func (e *Exchange) record(orderID int64, side domain.Side, price, quantity, fee float64, tsMs int64, forced bool) domain.TradeRecord {
	tr := domain.TradeRecord{
		TradeID:     idhash.ComputeTradeID(e.runID, orderID, string(side)),
		RunID:       e.runID,
		TimestampMs: tsMs,
		OrderID:     orderID,
		Side:        side,
		Price:       price,
		Quantity:    quantity,
		Fee:         fee,
		Cash:        e.cash,
		Position:    e.position,
		RealizedPnL: e.realizedPnL,
		Forced:      forced,
	}
	e.trades = append(e.trades, tr)
	return tr
}

// ForceClose cancels any pending order and, when long, sells the whole
// position at price regardless of limits. Returns true if a liquidation occurred.
// With no position it only logs the check.
func (e *Exchange) ForceClose(price float64, tsMs int64) bool {
	if e.pending != nil {
		e.logf(tsMs, "CANCEL #%d %s LIMIT @ %.2f", e.pending.OrderID, e.pending.Side, e.pending.LimitPrice)
		e.pending = nil
	}
	if e.position <= 0 {
		e.logf(tsMs, "FORCE CLOSE check: no open position")
		return false
	}
	e.lastOrderID++
	e.fillSell(e.lastOrderID, price, price, tsMs, true)
	return true
}

// RecordNAV appends a NAV sample valuing holdings at markPrice.
func (e *Exchange) RecordNAV(label string, tsMs int64, markPrice float64) domain.NAVSample {
	s := domain.NAVSample{
		RunID:       e.runID,
		Seq:         len(e.nav),
		TimestampMs: tsMs,
		Label:       label,
		NAV:         e.PortfolioValue(markPrice),
	}
	e.nav = append(e.nav, s)
	return s
}

// PortfolioValue returns cash + position * markPrice.
func (e *Exchange) PortfolioValue(markPrice float64) float64 {
	return e.cash + e.position*markPrice
}

// Cash returns the current cash balance.
func (e *Exchange) Cash() float64 { return e.cash }

// Position returns the current position quantity.
func (e *Exchange) Position() float64 { return e.position }

// CostBasis returns the last buy fill price; zero while flat.
func (e *Exchange) CostBasis() float64 { return e.costBasis }

// RealizedPnL returns cumulative realized PnL.
func (e *Exchange) RealizedPnL() float64 { return e.realizedPnL }

// PendingOrder returns the resting order, if any.
func (e *Exchange) PendingOrder() (domain.Order, bool) {
	if e.pending == nil {
		return domain.Order{}, false
	}
	return *e.pending, true
}

// Trades returns a copy of the trade ledger.
func (e *Exchange) Trades() []domain.TradeRecord {
	out := make([]domain.TradeRecord, len(e.trades))
	copy(out, e.trades)
	return out
}

// NAV returns a copy of the NAV series.
func (e *Exchange) NAV() []domain.NAVSample {
	out := make([]domain.NAVSample, len(e.nav))
	copy(out, e.nav)
	return out
}

func (e *Exchange) logf(tsMs int64, format string, args ...any) {
	ts := time.UnixMilli(tsMs).UTC().Format(domain.TimestampLayout)
	e.audit.Log(ts + " - " + fmt.Sprintf(format, args...))
}
