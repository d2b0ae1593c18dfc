package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"vwap-backtest/internal/domain"
)

// parquetRow is the on-disk layout of a kline row. The instrument columns
// are optional; absent columns read as empty strings.
type parquetRow struct {
	OpenTime    int64   `parquet:"open_time"`
	Open        float64 `parquet:"open"`
	High        float64 `parquet:"high"`
	Low         float64 `parquet:"low"`
	Close       float64 `parquet:"close"`
	Volume      float64 `parquet:"volume"`
	QuoteVolume float64 `parquet:"quote_volume"`
	Symbol      string  `parquet:"symbol,optional"`
	JJCode      string  `parquet:"jj_code,optional"`
}

const readBatch = 4096

// ReadParquet reads all rows of a Parquet file. open_time may be a plain
// integer in Unix milliseconds or a TIMESTAMP of any unit, which is scaled
// to milliseconds. Numeric columns of other physical types are converted.
func ReadParquet(path string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat parquet: %w", err)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("read parquet footer: %w", err)
	}

	schema := pf.Schema()
	for _, col := range RequiredColumns {
		if _, ok := schema.Lookup(col); !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	divisor, err := openTimeDivisor(schema)
	if err != nil {
		return nil, err
	}

	reader := parquet.NewGenericReader[parquetRow](pf)
	defer reader.Close()

	bars := make([]domain.Bar, 0, pf.NumRows())
	buf := make([]parquetRow, readBatch)
	for {
		n, err := reader.Read(buf)
		for _, r := range buf[:n] {
			bars = append(bars, r.toBar(divisor))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
	}
	return bars, nil
}

// WriteParquet writes bars in the layout ReadParquet expects.
func WriteParquet(path string, bars []domain.Bar) error {
	rows := make([]parquetRow, len(bars))
	for i, b := range bars {
		rows[i] = parquetRow{
			OpenTime:    b.OpenTimeMs,
			Open:        b.Open,
			High:        b.High,
			Low:         b.Low,
			Close:       b.Close,
			Volume:      b.Volume,
			QuoteVolume: b.QuoteVolume,
			Symbol:      b.Symbol,
		}
	}
	return parquet.WriteFile(path, rows)
}

// openTimeDivisor returns what open_time values are divided by to get
// milliseconds. Plain INT32/INT64 columns are taken as milliseconds.
func openTimeDivisor(schema *parquet.Schema) (int64, error) {
	col, _ := schema.Lookup(ColOpenTime)
	typ := col.Node.Type()
	switch typ.Kind() {
	case parquet.Int32, parquet.Int64:
	default:
		return 0, fmt.Errorf("%w: %s has physical type %v", ErrUnsupportedFormat, ColOpenTime, typ.Kind())
	}

	lt := typ.LogicalType()
	switch {
	case lt == nil || lt.Integer != nil:
		return 1, nil
	case lt.Timestamp == nil:
		return 0, fmt.Errorf("%w: %s has logical type %v", ErrUnsupportedFormat, ColOpenTime, lt)
	}
	unit := lt.Timestamp.Unit
	switch {
	case unit.Millis != nil:
		return 1, nil
	case unit.Micros != nil:
		return 1_000, nil
	case unit.Nanos != nil:
		return 1_000_000, nil
	}
	return 0, fmt.Errorf("%w: %s has an unknown timestamp unit", ErrUnsupportedFormat, ColOpenTime)
}

// floorDiv rounds toward negative infinity so pre-epoch times land in the right millisecond.
func floorDiv(v, d int64) int64 {
	q := v / d
	if v%d != 0 && v < 0 {
		q--
	}
	return q
}

func (r parquetRow) toBar(divisor int64) domain.Bar {
	return domain.Bar{
		Symbol:      pickSymbol(r.Symbol, r.JJCode),
		OpenTimeMs:  floorDiv(r.OpenTime, divisor),
		Open:        r.Open,
		High:        r.High,
		Low:         r.Low,
		Close:       r.Close,
		Volume:      r.Volume,
		QuoteVolume: r.QuoteVolume,
	}
}
