package barfile

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeview/apperr"
	"github.com/rustyeddy/tradeview/market"
)

func TestReadCSV(t *testing.T) {
	in := `timestamp,open,high,low,close,volume
2024-05-20 09:30:00,100,105,99.5,102.25,1000
2024-05-20 09:31:00,102.25,103,101,102.5,
2024-05-20 09:32:00,102.5,102.75,102,102.1
`
	bars, err := ReadCSV(strings.NewReader(in), 7)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	b := bars[0]
	assert.Equal(t, int64(7), b.SymbolID)
	assert.Equal(t, "2024-05-20 09:30:00", b.Timestamp.String())
	assert.Equal(t, 100.0, b.Open)
	assert.Equal(t, 105.0, b.High)
	assert.Equal(t, 99.5, b.Low)
	assert.Equal(t, 102.25, b.Close)
	require.NotNil(t, b.Volume)
	assert.Equal(t, 1000.0, *b.Volume)

	assert.Nil(t, bars[1].Volume)
	assert.Nil(t, bars[2].Volume)
}

func TestReadCSVWithoutHeader(t *testing.T) {
	bars, err := ReadCSV(strings.NewReader("2024-05-20 09:30:00,1,2,0.5,1.5\n"), 1)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 1.5, bars[0].Close)
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		kind     apperr.Kind
		contains string
	}{
		{"bad date", "timestamp,open,high,low,close\n2024-05-20 09:30:00,1,2,0.5,1.5\n2024-13-40 99:99:99,1,2,0.5,1.5\n", apperr.InvalidDateFormat, "line 3"},
		{"bad number", "2024-05-20 09:30:00,one,2,0.5,1.5\n", apperr.BadRequest, "line 1: open"},
		{"bad volume", "2024-05-20 09:30:00,1,2,0.5,1.5,lots\n", apperr.BadRequest, "volume"},
		{"field count", "2024-05-20 09:30:00,1,2\n", apperr.BadRequest, "expected 5 or 6 fields"},
		{"high below low", "2024-05-20 09:30:00,1,0.5,2,1.5\n", apperr.BadRequest, "high 0.5 below low 2"},
		{"unterminated quote", "2024-05-20 09:30:00,\"1,2,0.5,1.5\n", apperr.BadRequest, "line"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in), 1)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func testBars() []market.Bar {
	return []market.Bar{
		{Symbol: "AAPL", Timestamp: market.Date(2024, 5, 20, 9, 30, 0), Open: 100, High: 105, Low: 99.5, Close: 102.25, Volume: market.FloatPtr(1000)},
		{Symbol: "AAPL", Timestamp: market.Date(2024, 5, 20, 9, 31, 0), Open: 102.25, High: 103, Low: 101, Close: 102.5},
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testBars()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,open,high,low,close,volume", lines[0])
	assert.Equal(t, "2024-05-20 09:30:00,100,105,99.5,102.25,1000", lines[1])
	assert.Equal(t, "2024-05-20 09:31:00,102.25,103,101,102.5,", lines[2])

	back, err := ReadCSV(&buf, 3)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, 102.25, back[0].Close)
	assert.Nil(t, back[1].Volume)
}

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.parquet")
	require.NoError(t, WriteParquet(path, testBars()))

	back, err := ReadParquet(path, 9)
	require.NoError(t, err)
	require.Len(t, back, 2)

	assert.Equal(t, int64(9), back[0].SymbolID)
	assert.Equal(t, "AAPL", back[0].Symbol)
	assert.Equal(t, "2024-05-20 09:30:00", back[0].Timestamp.String())
	assert.Equal(t, 99.5, back[0].Low)
	require.NotNil(t, back[0].Volume)
	assert.Equal(t, 1000.0, *back[0].Volume)
	assert.Nil(t, back[1].Volume)
}

func TestReadParquetRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		edit func(b *market.Bar)
		want string
	}{
		{"high below low", func(b *market.Bar) { b.High, b.Low = 90, 95 }, "row 1: high 90 below low 95"},
		{"nan close", func(b *market.Bar) { b.Close = math.NaN() }, "row 1: close is not a finite number"},
		{"negative volume", func(b *market.Bar) { b.Volume = market.FloatPtr(-5) }, "row 1: negative volume"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := testBars()
			tt.edit(&bars[1])

			path := filepath.Join(t.TempDir(), "bad.parquet")
			require.NoError(t, WriteParquet(path, bars))

			back, err := ReadParquet(path, 9)
			require.Error(t, err)
			assert.Nil(t, back)
			assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("out/bars.CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = FormatOf("bars.parquet")
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, f)

	_, err = FormatOf("bars.xlsx")
	assert.Error(t, err)
}
