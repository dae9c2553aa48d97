package barfile

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/rustyeddy/tradeview/apperr"
	"github.com/rustyeddy/tradeview/market"
)

// Row is the Parquet layout of a bar. Timestamp is Unix milliseconds, UTC;
// a nil Volume is written as an optional null.
type Row struct {
	Symbol    string   `parquet:"symbol"`
	Timestamp int64    `parquet:"timestamp"`
	Open      float64  `parquet:"open"`
	High      float64  `parquet:"high"`
	Low       float64  `parquet:"low"`
	Close     float64  `parquet:"close"`
	Volume    *float64 `parquet:"volume"`
}

func toRow(b market.Bar) Row {
	return Row{
		Symbol:    b.Symbol,
		Timestamp: b.Timestamp.UnixMilli(),
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
	}
}

func (r Row) bar(symbolID int64) market.Bar {
	return market.Bar{
		SymbolID:  symbolID,
		Symbol:    r.Symbol,
		Timestamp: market.NewTimestamp(time.UnixMilli(r.Timestamp)),
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
	}
}

// WriteParquet writes bars to a Parquet file at path.
func WriteParquet(path string, bars []market.Bar) error {
	rows := make([]Row, len(bars))
	for i, b := range bars {
		rows[i] = toRow(b)
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	return nil
}

// ReadParquet reads a file written by WriteParquet and assigns symbolID.
// Rows are checked like CSV lines; a bad row is BadRequest naming its
// zero-based index.
func ReadParquet(path string, symbolID int64) ([]market.Bar, error) {
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	bars := make([]market.Bar, len(rows))
	for i, r := range rows {
		bars[i] = r.bar(symbolID)
		if err := bars[i].Validate(); err != nil {
			return nil, &apperr.Error{
				Kind: apperr.BadRequest,
				Op:   "read parquet",
				Msg:  fmt.Sprintf("row %d: %s", i, err),
				Err:  err,
			}
		}
	}
	return bars, nil
}

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// FormatOf picks the file format from the extension of path.
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "csv":
		return FormatCSV, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported bar file %q (use .csv or .parquet)", path)
	}
}
