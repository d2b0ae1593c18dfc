package exchange

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vwap-backtest/internal/domain"
)

const eps = 1e-9

type captureAudit struct {
	lines []string
}

func (c *captureAudit) Log(line string) { c.lines = append(c.lines, line) }

func newTestExchange(fee float64) (*Exchange, *captureAudit) {
	audit := &captureAudit{}
	ex := New(Options{RunID: "run-1", InitialBalance: 10000, FeeRate: fee, Audit: audit})
	return ex, audit
}

func TestPlaceOrder_AllocatesMonotonicIDs(t *testing.T) {
	ex, audit := newTestExchange(0)

	o1 := ex.PlaceOrder(domain.SideBuy, 100, 0)
	o2 := ex.PlaceOrder(domain.SideBuy, 99, 60000)

	assert.Equal(t, int64(1), o1.OrderID)
	assert.Equal(t, int64(2), o2.OrderID)

	pending, ok := ex.PendingOrder()
	require.True(t, ok)
	assert.Equal(t, o2, pending, "new order replaces the previous one")
	require.Len(t, audit.lines, 2)
	assert.Equal(t, "1970-01-01 00:01:00 - PLACE #2 buy LIMIT @ 99.00", audit.lines[1])
}

func TestCheckAndFill_NoPendingOrder(t *testing.T) {
	ex, _ := newTestExchange(0)

	_, filled := ex.CheckAndFill(domain.Bar{Low: 1, High: 1000, Open: 10})

	assert.False(t, filled)
	assert.Empty(t, ex.Trades())
}

func TestCheckAndFill_BuyRules(t *testing.T) {
	tests := []struct {
		name      string
		bar       domain.Bar
		wantFill  bool
		wantPrice float64
	}{
		{"low above limit", domain.Bar{Open: 102, Low: 100.01, High: 103}, false, 0},
		{"touches limit, opens above", domain.Bar{Open: 102, Low: 100, High: 103}, true, 100},
		{"opens below limit", domain.Bar{Open: 98, Low: 97, High: 99}, true, 98},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, _ := newTestExchange(0)
			ex.PlaceOrder(domain.SideBuy, 100, 0)

			tr, filled := ex.CheckAndFill(tt.bar)

			require.Equal(t, tt.wantFill, filled)
			if !filled {
				_, pending := ex.PendingOrder()
				assert.True(t, pending, "unfilled order stays pending")
				return
			}
			assert.Equal(t, tt.wantPrice, tr.Price)
			assert.InDelta(t, 10000/tt.wantPrice, ex.Position(), eps)
			assert.InDelta(t, 0, ex.Cash(), eps)
			_, pending := ex.PendingOrder()
			assert.False(t, pending)
		})
	}
}

func TestCheckAndFill_SellRules(t *testing.T) {
	tests := []struct {
		name      string
		bar       domain.Bar
		wantFill  bool
		wantPrice float64
	}{
		{"high below limit", domain.Bar{Open: 100, Low: 99, High: 104.99}, false, 0},
		{"touches limit, opens below", domain.Bar{Open: 103, Low: 102, High: 105}, true, 105},
		{"opens above limit", domain.Bar{Open: 107, Low: 106, High: 108}, true, 107},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, _ := newTestExchange(0)
			ex.PlaceOrder(domain.SideBuy, 100, 0)
			_, ok := ex.CheckAndFill(domain.Bar{Open: 100, Low: 100, High: 100})
			require.True(t, ok)
			ex.PlaceOrder(domain.SideSell, 105, 60000)

			tr, filled := ex.CheckAndFill(tt.bar)

			require.Equal(t, tt.wantFill, filled)
			if !filled {
				assert.InDelta(t, 100, ex.Position(), eps)
				return
			}
			assert.Equal(t, tt.wantPrice, tr.Price)
			assert.Equal(t, 0.0, ex.Position())
			assert.Equal(t, 0.0, ex.CostBasis())
			assert.InDelta(t, 100*tt.wantPrice, ex.Cash(), eps)
		})
	}
}

// Bar 1 rests a buy at 100, bar 2 fills it at its open 99.5, bar 2 rests a
// sell at vwap 105, bar 3 fills it at 105 since it opens below.
func TestRoundTripAccounting(t *testing.T) {
	const fee = 0.001
	ex, _ := newTestExchange(fee)

	ex.PlaceOrder(domain.SideBuy, 100, 0)
	buy, ok := ex.CheckAndFill(domain.Bar{OpenTimeMs: 60000, Open: 99.5, High: 101, Low: 99, Close: 100})
	require.True(t, ok)

	p1 := 99.5
	q := 10000 / (p1 * (1 + fee))
	feeBuy := q * p1 * fee
	assert.Equal(t, p1, buy.Price)
	assert.InDelta(t, q, buy.Quantity, eps)
	assert.InDelta(t, feeBuy, buy.Fee, eps)
	assert.InDelta(t, 0, buy.Cash, 1e-7)
	assert.InDelta(t, q, buy.Position, eps)
	assert.Equal(t, 0.0, buy.RealizedPnL)

	ex.PlaceOrder(domain.SideSell, 105, 60000)
	sell, ok := ex.CheckAndFill(domain.Bar{OpenTimeMs: 120000, Open: 104, High: 106, Low: 103, Close: 105})
	require.True(t, ok)

	p2 := 105.0
	feeSell := q * p2 * fee
	assert.Equal(t, p2, sell.Price)
	assert.InDelta(t, q, sell.Quantity, eps)
	assert.InDelta(t, feeSell, sell.Fee, eps)
	assert.InDelta(t, (p2-p1)*q-feeSell, sell.RealizedPnL, 1e-7)
	assert.InDelta(t, 10000+(p2-p1)*q-feeBuy-feeSell, ex.Cash(), 1e-7)
	assert.Equal(t, 0.0, ex.Position())

	trades := ex.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, int64(1), trades[0].OrderID)
	assert.Equal(t, int64(2), trades[1].OrderID)
	assert.NotEqual(t, trades[0].TradeID, trades[1].TradeID)
	assert.Equal(t, "run-1", trades[1].RunID)
}

func TestBuyWithNonPositivePriceFillsNothing(t *testing.T) {
	ex, _ := newTestExchange(0)
	ex.PlaceOrder(domain.SideBuy, 0, 0)

	tr, ok := ex.CheckAndFill(domain.Bar{Open: 0, Low: 0, High: 0})

	require.True(t, ok)
	assert.Equal(t, 0.0, tr.Quantity)
	assert.Equal(t, 10000.0, ex.Cash())
}

func TestForceClose_Long(t *testing.T) {
	ex, audit := newTestExchange(0.001)
	ex.PlaceOrder(domain.SideBuy, 50, 0)
	_, ok := ex.CheckAndFill(domain.Bar{Open: 50, Low: 49, High: 51})
	require.True(t, ok)
	ex.PlaceOrder(domain.SideSell, 60, 60000)
	position := ex.Position()

	closed := ex.ForceClose(55, 120000)

	require.True(t, closed)
	assert.Equal(t, 0.0, ex.Position())
	_, pending := ex.PendingOrder()
	assert.False(t, pending)

	trades := ex.Trades()
	require.Len(t, trades, 2)
	last := trades[1]
	assert.True(t, last.Forced)
	assert.Equal(t, domain.SideSell, last.Side)
	assert.Equal(t, 55.0, last.Price)
	assert.Equal(t, int64(3), last.OrderID, "forced close consumes an order id")
	assert.InDelta(t, position, last.Quantity, eps)
	assert.InDelta(t, (55-50)*position-position*55*0.001, last.RealizedPnL, 1e-7)

	joined := strings.Join(audit.lines, "\n")
	assert.Contains(t, joined, "CANCEL #2 sell LIMIT @ 60.00")
	assert.Contains(t, joined, "FORCE CLOSE #3 SELL")
}

func TestForceClose_FlatIsNoop(t *testing.T) {
	ex, audit := newTestExchange(0)
	ex.PlaceOrder(domain.SideBuy, 50, 0)

	assert.False(t, ex.ForceClose(55, 60000))
	assert.False(t, ex.ForceClose(55, 60000))

	assert.Equal(t, 10000.0, ex.Cash())
	assert.Empty(t, ex.Trades())
	_, pending := ex.PendingOrder()
	assert.False(t, pending)
	assert.Equal(t, "1970-01-01 00:01:00 - FORCE CLOSE check: no open position", audit.lines[len(audit.lines)-1])
}

func TestRecordNAV(t *testing.T) {
	ex, _ := newTestExchange(0)
	ex.PlaceOrder(domain.SideBuy, 100, 0)
	_, ok := ex.CheckAndFill(domain.Bar{Open: 100, Low: 100, High: 100})
	require.True(t, ok)

	s0 := ex.RecordNAV("1970-01-01 00:00", 0, 110)
	s1 := ex.RecordNAV("1970-01-01 00:01", 60000, 90)

	assert.InDelta(t, 11000, s0.NAV, eps)
	assert.InDelta(t, 9000, s1.NAV, eps)
	assert.Equal(t, 1, s1.Seq)
	assert.InDelta(t, 9500, ex.PortfolioValue(95), eps)
	require.Len(t, ex.NAV(), 2)
}

func TestNilAuditIsAllowed(t *testing.T) {
	ex := New(Options{InitialBalance: 1})
	ex.PlaceOrder(domain.SideBuy, 1, 0)
	assert.False(t, ex.ForceClose(1, 0))
}
