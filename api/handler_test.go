package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeview/apperr"
	"github.com/rustyeddy/tradeview/market"
	"github.com/rustyeddy/tradeview/store"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Migrator().Up(context.Background())
	require.NoError(t, err)
	return s
}

// seed stores AAPL with hourly bars at 09:00..12:00 and one backtest.
func seed(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()

	sym := market.Symbol{Symbol: "AAPL", Name: "Apple Inc.", SymbolType: "stock", Exchange: "NASDAQ"}
	require.NoError(t, s.CreateSymbol(ctx, &sym))

	var bars []market.Bar
	for h := 9; h <= 12; h++ {
		px := float64(100 + h)
		bars = append(bars, market.Bar{
			SymbolID:  sym.ID,
			Timestamp: market.Date(2024, 5, 20, h, 0, 0),
			Open:      px, High: px + 1, Low: px - 1, Close: px,
		})
	}
	require.NoError(t, s.InsertBars(ctx, bars))

	bt := market.BacktestResult{
		ID: "bt-1", SymbolID: sym.ID, Timeframe: "1h",
		StartDate: market.Date(2024, 5, 20, 9, 0, 0), EndDate: market.Date(2024, 5, 20, 12, 0, 0),
		Trades: []market.TradeRecord{
			{ID: "tr-1", Timestamp: market.Date(2024, 5, 20, 9, 0, 0), TradeType: market.TradeBuy, Price: 109},
			{ID: "tr-2", Timestamp: market.Date(2024, 5, 20, 11, 0, 0), TradeType: market.TradeSell, Price: 111},
		},
	}
	require.NoError(t, s.InsertBacktest(ctx, &bt))
}

func newTestRouter(t *testing.T, st Store, expose bool) *gin.Engine {
	t.Helper()
	return NewRouter(st, nil, RouterConfig{ExposeErrors: expose})
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var env envelope
	if rec.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func rangeURL(base, start, end string) string {
	q := url.Values{}
	if start != "" {
		q.Set("start", start)
	}
	if end != "" {
		q.Set("end", end)
	}
	return base + "?" + q.Encode()
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, newTestStore(t), false)

	rec, _ := get(t, r, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec, env := get(t, r, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.Code)
}

func TestListBarsByRange(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	r := newTestRouter(t, s, false)

	rec, env := get(t, r, rangeURL("/api/ohlc/AAPL/range", "2024-05-20 10:00:00", "2024-05-20 11:00:00"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.Code)
	assert.Equal(t, "Success", env.Message)

	var payload List[market.Bar]
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.Len(t, payload.Data, 2)
	assert.Equal(t, "2024-05-20 10:00:00", payload.Data[0].Timestamp.String())
	assert.Equal(t, "2024-05-20 11:00:00", payload.Data[1].Timestamp.String())
	assert.Equal(t, "AAPL", payload.Data[0].Symbol)
}

func TestUnknownSymbolIsEmptyList(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	r := newTestRouter(t, s, false)

	for _, target := range []string{
		"/api/ohlc/ZZZZ",
		"/api/indicators/ZZZZ",
		"/api/signals/ZZZZ",
		"/api/backtests/ZZZZ",
		rangeURL("/api/ohlc/ZZZZ/range", "2024-01-01 00:00:00", "2025-01-01 00:00:00"),
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.JSONEq(t, `{"code":0,"message":"Success","data":{"data":[]}}`, rec.Body.String(), target)
	}
}

func TestRangeParameterErrors(t *testing.T) {
	r := newTestRouter(t, newTestStore(t), false)

	tests := []struct {
		name     string
		target   string
		status   int
		code     int
		contains string
	}{
		{"missing end", rangeURL("/api/ohlc/AAPL/range", "2024-05-20 10:00:00", ""), 400, 40001, `"end"`},
		{"missing both", "/api/signals/AAPL/range", 400, 40001, `"start"`},
		{"bad start", rangeURL("/api/ohlc/AAPL/range", "2024-13-40 99:99:99", "2024-05-20 10:00:00"), 400, 40002, "expected YYYY-MM-DD HH:MM:SS"},
		{"iso form rejected", rangeURL("/api/indicators/AAPL/range", "2024-05-20T10:00:00", "2024-05-20 10:00:00"), 400, 40002, "invalid date format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := get(t, r, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, env.Code)
			assert.Contains(t, env.Message, tt.contains)
			assert.Equal(t, "null", string(env.Data))
		})
	}
}

func TestReversedRangeIsEmpty(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	r := newTestRouter(t, s, false)

	rec, env := get(t, r, rangeURL("/api/ohlc/AAPL/range", "2024-05-20 11:00:00", "2024-05-20 10:00:00"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, string(env.Data))
}

func TestSymbols(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	r := newTestRouter(t, s, false)

	rec, env := get(t, r, "/api/symbols")
	require.Equal(t, http.StatusOK, rec.Code)
	var list List[market.Symbol]
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Data, 1)

	rec, env = get(t, r, "/api/symbols/AAPL")
	require.Equal(t, http.StatusOK, rec.Code)
	var sym market.Symbol
	require.NoError(t, json.Unmarshal(env.Data, &sym))
	assert.Equal(t, "Apple Inc.", sym.Name)

	rec, env = get(t, r, "/api/symbols/NOPE")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 40401, env.Code)
	assert.Equal(t, `symbol "NOPE" not found`, env.Message)
}

func TestBacktestRoutes(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	r := newTestRouter(t, s, false)

	rec, env := get(t, r, "/api/backtests/AAPL")
	require.Equal(t, http.StatusOK, rec.Code)
	var list List[market.BacktestResult]
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "bt-1", list.Data[0].ID)

	rec, env = get(t, r, "/api/backtests/bt-1/trades")
	require.Equal(t, http.StatusOK, rec.Code)
	var trades List[market.TradeRecord]
	require.NoError(t, json.Unmarshal(env.Data, &trades))
	require.Len(t, trades.Data, 2)
	assert.Equal(t, "tr-1", trades.Data[0].ID)

	rec, env = get(t, r, "/api/backtests/nope/trades")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 40401, env.Code)

	rec, _ = get(t, r, "/api/backtests")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDatabaseErrorRedacted(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	rec, env := get(t, newTestRouter(t, s, false), "/api/ohlc/AAPL")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 50002, env.Code)
	assert.Equal(t, "Database error", env.Message)
	assert.Equal(t, "null", string(env.Data))

	rec, env = get(t, newTestRouter(t, s, true), "/api/ohlc/AAPL")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 50002, env.Code)
	assert.Contains(t, env.Message, "database is closed")

	rec, env = get(t, newTestRouter(t, s, false), "/ready")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 50002, env.Code)
}

type panicStore struct {
	*store.Store
}

func (panicStore) ListBars(context.Context) ([]market.Bar, error) {
	panic("boom")
}

func TestPanicRecovered(t *testing.T) {
	rec, env := get(t, newTestRouter(t, panicStore{newTestStore(t)}, false), "/api/ohlc")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 50001, env.Code)
	assert.Equal(t, "Internal server error", env.Message)
}

func TestNoRoute(t *testing.T) {
	rec, env := get(t, newTestRouter(t, newTestStore(t), false), "/api/nothing/here")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 40401, env.Code)
}

func TestFailure(t *testing.T) {
	_, perr := market.ParseTimestamp("bad")

	tests := []struct {
		name    string
		err     error
		expose  bool
		code    int
		message string
		status  int
	}{
		{"invalid date", perr, false, 40002, `invalid date format "bad", expected YYYY-MM-DD HH:MM:SS`, 400},
		{"not found", apperr.Newf(apperr.NotFound, "get", "gone"), false, 40401, "gone", 404},
		{"untagged", errors.New("kaput"), false, 50001, "Internal server error", 500},
		{"untagged exposed", errors.New("kaput"), true, 50001, "kaput", 500},
		{"database", apperr.Database("list bars", errors.New("locked")), false, 50002, "Database error", 500},
		{"database exposed", apperr.Database("list bars", errors.New("locked")), true, 50002, "list bars: Database error: locked", 500},
		{"overridden", apperr.WithMessage(apperr.Database("x", errors.New("y")), "try later"), false, 50002, "try later", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Failure(tt.err, tt.expose)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.message, resp.Message)
			assert.Nil(t, resp.Data)
			assert.Equal(t, tt.status, Status(tt.err))
		})
	}

	assert.Equal(t, http.StatusOK, Status(nil))
}

func TestSuccessEnvelopeJSON(t *testing.T) {
	b, err := json.Marshal(Success(listOf([]int(nil))))
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":0,"message":"Success","data":{"data":[]}}`, string(b))

	b, err = json.Marshal(Failure(apperr.Newf(apperr.BadRequest, "x", "nope"), false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":40001,"message":"nope","data":null}`, string(b))
}
