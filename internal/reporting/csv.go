package reporting

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"vwap-backtest/internal/domain"
)

// TradeColumns is the header of the trade ledger export.
var TradeColumns = []string{"timestamp", "order_id", "side", "price", "quantity", "fee", "cash", "position", "realized_pnl"}

// RenderTradesCSV writes one row per ledger entry. Timestamps are UTC.
func RenderTradesCSV(w io.Writer, trades []domain.TradeRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(TradeColumns); err != nil {
		return err
	}
	for _, t := range trades {
		if err := cw.Write([]string{
			time.UnixMilli(t.TimestampMs).UTC().Format(domain.TimestampLayout),
			strconv.FormatInt(t.OrderID, 10),
			string(t.Side),
			floatStr(t.Price),
			floatStr(t.Quantity),
			floatStr(t.Fee),
			floatStr(t.Cash),
			floatStr(t.Position),
			floatStr(t.RealizedPnL),
		}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteTradesCSV writes the ledger export to path, replacing any existing file.
func WriteTradesCSV(path string, trades []domain.TradeRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := RenderTradesCSV(f, trades); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
