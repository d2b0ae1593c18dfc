package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"vwap-backtest/internal/domain"
)

// ReadCSV reads a headered CSV file. Column order is free; open_time must
// be an integer in Unix milliseconds.
func ReadCSV(path string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	return readCSV(f)
}

func readCSV(src io.Reader) ([]domain.Bar, error) {
	r := csv.NewReader(src)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ColOpenTime)
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		b, err := parseRecord(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseRecord(rec []string, idx map[string]int) (domain.Bar, error) {
	var b domain.Bar

	ts, err := strconv.ParseInt(strings.TrimSpace(rec[idx[ColOpenTime]]), 10, 64)
	if err != nil {
		return b, fmt.Errorf("%s: %w", ColOpenTime, err)
	}
	b.OpenTimeMs = ts

	fields := []struct {
		col string
		dst *float64
	}{
		{ColOpen, &b.Open},
		{ColHigh, &b.High},
		{ColLow, &b.Low},
		{ColClose, &b.Close},
		{ColVolume, &b.Volume},
		{ColQuoteVolume, &b.QuoteVolume},
	}
	for _, fld := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[fld.col]]), 64)
		if err != nil {
			return b, fmt.Errorf("%s: %w", fld.col, err)
		}
		*fld.dst = v
	}

	var symbol, jjCode string
	if i, ok := idx[ColSymbol]; ok {
		symbol = strings.TrimSpace(rec[i])
	}
	if i, ok := idx[ColJJCode]; ok {
		jjCode = strings.TrimSpace(rec[i])
	}
	b.Symbol = pickSymbol(symbol, jjCode)
	return b, nil
}
