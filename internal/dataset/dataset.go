// Package dataset reads raw klines from columnar files.
package dataset

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"vwap-backtest/internal/domain"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither Parquet nor CSV,
	// and for open_time columns that are not integer timestamps.
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("missing required column")
)

// Column names.
const (
	ColOpenTime    = "open_time"
	ColOpen        = "open"
	ColHigh        = "high"
	ColLow         = "low"
	ColClose       = "close"
	ColVolume      = "volume"
	ColQuoteVolume = "quote_volume"
	ColSymbol      = "symbol"
	ColJJCode      = "jj_code"
)

// RequiredColumns lists the columns every dataset must provide.
var RequiredColumns = []string{ColOpenTime, ColOpen, ColHigh, ColLow, ColClose, ColVolume, ColQuoteVolume}

// Load reads bars from path, picking the reader by file extension.
// Rows are returned in file order.
func Load(path string) ([]domain.Bar, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		return ReadParquet(path)
	case ".csv":
		return ReadCSV(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func pickSymbol(symbol, jjCode string) string {
	if symbol != "" {
		return symbol
	}
	return jjCode
}
