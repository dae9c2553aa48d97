package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeview/apperr"
	"github.com/rustyeddy/tradeview/market"
)

func count(t *testing.T, s *Store, table string) int {
	t.Helper()

	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT count(*) FROM `+quote(table)).Scan(&n))
	return n
}

func testBacktest(symbolID int64, id string) market.BacktestResult {
	return market.BacktestResult{
		ID:             id,
		SymbolID:       symbolID,
		Timeframe:      "1d",
		StartDate:      market.Date(2024, 1, 1, 0, 0, 0),
		EndDate:        market.Date(2024, 3, 1, 0, 0, 0),
		InitialCapital: 10000,
		FinalCapital:   11250.5,
		TotalReturn:    0.12505,
		TradeCount:     2,
		WinningTrades:  1,
		LosingTrades:   1,
		WinRate:        0.5,
		Trades: []market.TradeRecord{
			{ID: id + "-t2", Timestamp: market.Date(2024, 2, 1, 0, 0, 0), TradeType: market.TradeSell, Price: 110, Quantity: 10, Amount: 1100, Fee: 1, RemainingCapital: 11250.5},
			{ID: id + "-t1", Timestamp: market.Date(2024, 1, 2, 0, 0, 0), TradeType: market.TradeBuy, Price: 100, Quantity: 10, Amount: 1000, Fee: 1, RemainingCapital: 8999, Position: 10},
		},
	}
}

func TestDuplicateSymbolRejected(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	seedSymbol(t, s, "AAPL")

	dup := market.Symbol{Symbol: "AAPL", Name: "again", SymbolType: "stock", Exchange: "NYSE"}
	err := s.CreateSymbol(context.Background(), &dup)
	require.Error(t, err)
	assert.Equal(t, apperr.DatabaseError, apperr.KindOf(err))
	assert.True(t, IsConstraint(err))
	assert.Equal(t, 1, count(t, s, TableSymbol))
}

func TestDuplicateBarRejected(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	sym := seedSymbol(t, s, "AAPL")
	ts := market.Date(2024, 5, 20, 9, 30, 0)

	first := bar(sym.ID, ts, 100)
	require.NoError(t, s.InsertBar(ctx, &first))

	second := bar(sym.ID, ts, 200)
	err := s.InsertBar(ctx, &second)
	require.Error(t, err)
	assert.Equal(t, apperr.DatabaseError, apperr.KindOf(err))
	assert.True(t, IsConstraint(err))

	got, err := s.ListBarsBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 100.0, got[0].Close)
}

func TestDuplicateIndicatorAndSignalRejected(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	sym := seedSymbol(t, s, "AAPL")
	ts := market.Date(2024, 5, 20, 9, 30, 0)

	in := market.Indicator{SymbolID: sym.ID, Timestamp: ts}
	require.NoError(t, s.InsertIndicator(ctx, &in))
	in2 := market.Indicator{SymbolID: sym.ID, Timestamp: ts}
	assert.Equal(t, apperr.DatabaseError, apperr.KindOf(s.InsertIndicator(ctx, &in2)))

	sig := market.Signal{SymbolID: sym.ID, Timestamp: ts, SignalType: market.SignalBuy, Source: "x", Price: 1}
	require.NoError(t, s.InsertSignal(ctx, &sig))
	sig2 := sig
	assert.Equal(t, apperr.DatabaseError, apperr.KindOf(s.InsertSignal(ctx, &sig2)))
}

func TestInsertBarsIsAtomic(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	sym := seedSymbol(t, s, "AAPL")
	ts := market.Date(2024, 5, 20, 9, 30, 0)

	bars := []market.Bar{
		bar(sym.ID, ts, 100),
		bar(sym.ID, market.NewTimestamp(ts.Add(time.Minute)), 101),
		bar(sym.ID, ts, 102),
	}

	err := s.InsertBars(ctx, bars)
	require.Error(t, err)
	assert.Equal(t, apperr.DatabaseError, apperr.KindOf(err))
	assert.Zero(t, count(t, s, TableOHLC))

	require.NoError(t, s.InsertBars(ctx, bars[:2]))
	assert.Equal(t, 2, count(t, s, TableOHLC))
	assert.NotZero(t, bars[0].ID)
	assert.NotZero(t, bars[1].ID)
}

func TestUpdateSymbol(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "clock.db")
	now := testNow
	s, err := Open(path, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	_, err = s.Migrator().Up(ctx)
	require.NoError(t, err)

	sym := seedSymbol(t, s, "EURUSD")
	assert.Equal(t, "2024-06-01 12:00:00", sym.CreatedAt.String())

	now = testNow.Add(time.Hour)
	sym.Name = "Euro / US Dollar"
	sym.SymbolType = "forex"
	sym.TickSize = market.FloatPtr(0.00001)
	require.NoError(t, s.UpdateSymbol(ctx, &sym))

	got, err := s.GetSymbol(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, "Euro / US Dollar", got.Name)
	assert.Equal(t, "forex", got.SymbolType)
	require.NotNil(t, got.TickSize)
	assert.Equal(t, 0.00001, *got.TickSize)
	assert.Equal(t, "2024-06-01 12:00:00", got.CreatedAt.String())
	assert.Equal(t, "2024-06-01 13:00:00", got.UpdatedAt.String())

	missing := market.Symbol{ID: 12345, Symbol: "X", Name: "X", SymbolType: "x", Exchange: "x"}
	err = s.UpdateSymbol(ctx, &missing)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestDeleteSymbolCascades(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	aapl := seedSymbol(t, s, "AAPL")
	msft := seedSymbol(t, s, "MSFT")
	ts := market.Date(2024, 5, 20, 9, 30, 0)

	for _, sym := range []market.Symbol{aapl, msft} {
		b := bar(sym.ID, ts, 100)
		require.NoError(t, s.InsertBar(ctx, &b))
		in := market.Indicator{SymbolID: sym.ID, Timestamp: ts, RSI: market.FloatPtr(50)}
		require.NoError(t, s.InsertIndicator(ctx, &in))
		sig := market.Signal{SymbolID: sym.ID, Timestamp: ts, SignalType: market.SignalBuy, Source: "x", Price: 100}
		require.NoError(t, s.InsertSignal(ctx, &sig))
		bt := testBacktest(sym.ID, "bt-"+sym.Symbol)
		require.NoError(t, s.InsertBacktest(ctx, &bt))
	}

	require.NoError(t, s.DeleteSymbol(ctx, "AAPL"))

	bars, err := s.ListBarsBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Empty(t, bars)
	inds, err := s.ListIndicatorsBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Empty(t, inds)
	sigs, err := s.ListSignalsBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Empty(t, sigs)
	trades, err := s.ListTradesByBacktest(ctx, "bt-AAPL")
	require.NoError(t, err)
	assert.Empty(t, trades)

	assert.Equal(t, 1, count(t, s, TableOHLC))
	assert.Equal(t, 1, count(t, s, TableIndicator))
	assert.Equal(t, 1, count(t, s, TableSignal))
	assert.Equal(t, 1, count(t, s, TableBacktest))
	assert.Equal(t, 2, count(t, s, TableTrade))

	err = s.DeleteSymbol(ctx, "AAPL")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestBacktestWithTrades(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	sym := seedSymbol(t, s, "AAPL")

	bt := testBacktest(sym.ID, "bt-1")
	require.NoError(t, s.InsertBacktest(ctx, &bt))

	got, err := s.GetBacktest(ctx, "bt-1")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, "1d", got.Timeframe)
	assert.Equal(t, 11250.5, got.FinalCapital)
	assert.Equal(t, 2, got.TradeCount)
	assert.Equal(t, "2024-01-01 00:00:00", got.StartDate.String())
	require.Len(t, got.Trades, 2)
	assert.Equal(t, "bt-1-t1", got.Trades[0].ID)
	assert.Equal(t, market.TradeBuy, got.Trades[0].TradeType)
	assert.Equal(t, "bt-1", got.Trades[1].BacktestResultID)

	list, err := s.ListBacktestsBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Trades)

	extra := market.TradeRecord{ID: "bt-1-t3", BacktestResultID: "bt-1", Timestamp: market.Date(2024, 2, 15, 0, 0, 0), TradeType: market.TradeBuy}
	require.NoError(t, s.InsertTrade(ctx, &extra))

	trades, err := s.ListTradesByBacktest(ctx, "bt-1")
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "bt-1-t3", trades[2].ID)

	require.NoError(t, s.DeleteBacktest(ctx, "bt-1"))
	assert.Zero(t, count(t, s, TableTrade))
	assert.Equal(t, apperr.NotFound, apperr.KindOf(s.DeleteBacktest(ctx, "bt-1")))

	all, err := s.ListBacktests(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestInsertBacktestIsAtomic(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	sym := seedSymbol(t, s, "AAPL")

	bt := testBacktest(sym.ID, "bt-dup")
	bt.Trades[1].Timestamp = bt.Trades[0].Timestamp

	err := s.InsertBacktest(ctx, &bt)
	require.Error(t, err)
	assert.Equal(t, apperr.DatabaseError, apperr.KindOf(err))
	assert.Zero(t, count(t, s, TableBacktest))
	assert.Zero(t, count(t, s, TableTrade))

	// Nothing was stored, so nothing is stamped.
	assert.True(t, bt.CreatedAt.IsZero())
	assert.True(t, bt.UpdatedAt.IsZero())
	for _, tr := range bt.Trades {
		assert.Empty(t, tr.BacktestResultID)
		assert.True(t, tr.CreatedAt.IsZero())
	}
}

func TestInsertBacktestStampsAfterCommit(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	sym := seedSymbol(t, s, "AAPL")

	bt := testBacktest(sym.ID, "bt-ok")
	require.NoError(t, s.InsertBacktest(context.Background(), &bt))

	assert.True(t, bt.CreatedAt.Equal(market.NewTimestamp(testNow)))
	for _, tr := range bt.Trades {
		assert.Equal(t, "bt-ok", tr.BacktestResultID)
		assert.True(t, tr.CreatedAt.Equal(market.NewTimestamp(testNow)))
		assert.True(t, tr.UpdatedAt.Equal(market.NewTimestamp(testNow)))
	}
}

func TestInsertSignalRejectsUnknownType(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	sym := seedSymbol(t, s, "AAPL")

	bad := market.Signal{SymbolID: sym.ID, Timestamp: market.Date(2024, 5, 20, 9, 30, 0), SignalType: "short", Source: "ema_cross", Price: 100}
	err := s.InsertSignal(ctx, &bad)
	require.Error(t, err)
	assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
	assert.Zero(t, count(t, s, TableSignal))

	ok := market.Signal{SymbolID: sym.ID, Timestamp: market.Date(2024, 5, 20, 9, 30, 0), SignalType: " BUY ", Source: "ema_cross", Price: 100}
	require.NoError(t, s.InsertSignal(ctx, &ok))
	assert.Equal(t, market.SignalBuy, ok.SignalType)

	sigs, err := s.ListSignalsBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, market.SignalBuy, sigs[0].SignalType)
}
