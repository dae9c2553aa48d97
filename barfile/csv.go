// Package barfile moves bars between the store and CSV or Parquet files.
package barfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rustyeddy/tradeview/apperr"
	"github.com/rustyeddy/tradeview/market"
)

// Header is the column order ReadCSV expects and WriteCSV produces.
var Header = []string{"timestamp", "open", "high", "low", "close", "volume"}

func lineError(kind apperr.Kind, line int, err error) error {
	msg := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) {
		msg = e.Message()
	}
	return &apperr.Error{Kind: kind, Op: "read csv", Msg: fmt.Sprintf("line %d: %s", line, msg), Err: err}
}

// ReadCSV parses timestamp,open,high,low,close[,volume] rows for symbolID.
// A leading header row is skipped. Timestamps use "YYYY-MM-DD HH:MM:SS";
// an empty volume is stored as NULL.
func ReadCSV(r io.Reader, symbolID int64) ([]market.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var bars []market.Bar
	for first := true; ; first = false {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			line := 0
			if errors.As(err, &perr) {
				line = perr.StartLine
			}
			return nil, lineError(apperr.BadRequest, line, err)
		}
		line, _ := cr.FieldPos(0)
		if first && strings.EqualFold(strings.TrimSpace(rec[0]), Header[0]) {
			continue
		}

		b, err := parseRecord(rec, line)
		if err != nil {
			return nil, err
		}
		b.SymbolID = symbolID
		bars = append(bars, b)
	}
	return bars, nil
}

func parseRecord(rec []string, line int) (market.Bar, error) {
	var b market.Bar
	if len(rec) != 5 && len(rec) != 6 {
		return b, lineError(apperr.BadRequest, line, fmt.Errorf("expected 5 or 6 fields, got %d", len(rec)))
	}

	ts, err := market.ParseTimestamp(rec[0])
	if err != nil {
		return b, lineError(apperr.InvalidDateFormat, line, err)
	}
	b.Timestamp = ts

	for i, dst := range []*float64{&b.Open, &b.High, &b.Low, &b.Close} {
		if *dst, err = parseFloat(rec[i+1]); err != nil {
			return b, lineError(apperr.BadRequest, line, fmt.Errorf("%s: %w", Header[i+1], err))
		}
	}

	if len(rec) == 6 && strings.TrimSpace(rec[5]) != "" {
		v, err := parseFloat(rec[5])
		if err != nil {
			return b, lineError(apperr.BadRequest, line, fmt.Errorf("volume: %w", err))
		}
		b.Volume = &v
	}

	if err := b.Validate(); err != nil {
		return b, lineError(apperr.BadRequest, line, err)
	}
	return b, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV writes bars with a header row in the layout ReadCSV accepts.
func WriteCSV(w io.Writer, bars []market.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, b := range bars {
		vol := ""
		if b.Volume != nil {
			vol = f(*b.Volume)
		}
		if err := cw.Write([]string{b.Timestamp.String(), f(b.Open), f(b.High), f(b.Low), f(b.Close), vol}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
