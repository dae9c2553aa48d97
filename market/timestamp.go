package market

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/tradeview/apperr"
)

// TimestampLayout is the textual form used in query parameters and on disk.
const TimestampLayout = "2006-01-02 15:04:05"

// jsonLayout matches the naive ISO form clients already consume.
const jsonLayout = "2006-01-02T15:04:05"

// Timestamp is a naive date-time with second precision. Every value is held
// in UTC; no zone is ever stored or reported.
type Timestamp struct {
	time.Time
}

// NewTimestamp normalizes t to UTC and drops sub-second precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

// Date is a shortcut for NewTimestamp(time.Date(..., time.UTC)).
func Date(year int, month time.Month, day, hour, min, sec int) Timestamp {
	return Timestamp{Time: time.Date(year, month, day, hour, min, sec, 0, time.UTC)}
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return NewTimestamp(time.Now())
}

// ParseTimestamp parses "YYYY-MM-DD HH:MM:SS". Failures are classified as
// apperr.InvalidDateFormat.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return Timestamp{}, &apperr.Error{
			Kind: apperr.InvalidDateFormat,
			Op:   "parse timestamp",
			Msg:  fmt.Sprintf("invalid date format %q, expected YYYY-MM-DD HH:MM:SS", s),
			Err:  err,
		}
	}
	return Timestamp{Time: t}, nil
}

func (ts Timestamp) String() string {
	return ts.UTC().Format(TimestampLayout)
}

// Equal reports whether both timestamps name the same instant.
func (ts Timestamp) Equal(o Timestamp) bool {
	return ts.Time.Equal(o.Time)
}

// After reports whether ts is later than o.
func (ts Timestamp) After(o Timestamp) bool {
	return ts.Time.After(o.Time)
}

// Before reports whether ts is earlier than o.
func (ts Timestamp) Before(o Timestamp) bool {
	return ts.Time.Before(o.Time)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.UTC().Format(jsonLayout))
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range []string{jsonLayout, TimestampLayout} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			ts.Time = t
			return nil
		}
	}
	_, err := ParseTimestamp(s)
	return err
}

// Value stores the timestamp as TEXT so that lexical and chronological order
// agree inside SQLite.
func (ts Timestamp) Value() (driver.Value, error) {
	return ts.String(), nil
}

// Scan accepts the forms go-sqlite3 hands back for TIMESTAMP columns.
func (ts *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*ts = NewTimestamp(v)
		return nil
	case string:
		return ts.scanText(v)
	case []byte:
		return ts.scanText(string(v))
	case nil:
		*ts = Timestamp{}
		return nil
	}
	return fmt.Errorf("market: cannot scan %T into Timestamp", src)
}

func (ts *Timestamp) scanText(s string) error {
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range []string{TimestampLayout, jsonLayout, "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			*ts = NewTimestamp(t)
			return nil
		}
	}
	return fmt.Errorf("market: bad timestamp %q", s)
}
