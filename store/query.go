package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rustyeddy/tradeview/apperr"
	"github.com/rustyeddy/tradeview/market"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// queryAll runs query and scans every row. The result is never nil so an
// empty match renders as [] rather than null.
func queryAll[T any](ctx context.Context, db *sql.DB, op string, scan func(rowScanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Database(op, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, apperr.Database(op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Database(op, err)
	}
	return out, nil
}

// --- symbols ---------------------------------------------------------------

const symbolSelect = `
	SELECT id, symbol, name, symbol_type, exchange, base_currency, quote_currency,
		lot_size, tick_size, created_at, updated_at
	FROM symbol`

func scanSymbol(r rowScanner) (market.Symbol, error) {
	var s market.Symbol
	err := r.Scan(
		&s.ID, &s.Symbol, &s.Name, &s.SymbolType, &s.Exchange,
		&s.BaseCurrency, &s.QuoteCurrency, &s.LotSize, &s.TickSize,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func (s *Store) ListSymbols(ctx context.Context) ([]market.Symbol, error) {
	return queryAll(ctx, s.db, "list symbols", scanSymbol, symbolSelect+` ORDER BY symbol ASC`)
}

// GetSymbol returns the symbol with the exact code, or a NotFound error.
func (s *Store) GetSymbol(ctx context.Context, code string) (market.Symbol, error) {
	sym, err := scanSymbol(s.db.QueryRowContext(ctx, symbolSelect+` WHERE symbol = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return market.Symbol{}, apperr.Newf(apperr.NotFound, "get symbol", "symbol %q not found", code)
	}
	if err != nil {
		return market.Symbol{}, apperr.Database("get symbol", err)
	}
	return sym, nil
}

// --- bars ------------------------------------------------------------------

const barSelect = `
	SELECT b.id, b.symbol_id, s.symbol, b.timestamp, b.open, b.high, b.low, b.close,
		b.volume, b.created_at
	FROM ohlc_data b
	JOIN symbol s ON s.id = b.symbol_id`

func scanBar(r rowScanner) (market.Bar, error) {
	var b market.Bar
	err := r.Scan(
		&b.ID, &b.SymbolID, &b.Symbol, &b.Timestamp,
		&b.Open, &b.High, &b.Low, &b.Close, &b.Volume,
		&b.CreatedAt,
	)
	return b, err
}

// ListBars returns every stored bar.
func (s *Store) ListBars(ctx context.Context) ([]market.Bar, error) {
	return queryAll(ctx, s.db, "list bars", scanBar, barSelect+` ORDER BY b.id ASC`)
}

// ListBarsBySymbol returns the bars of the symbol with exactly this code,
// oldest first. An unknown code yields an empty slice.
func (s *Store) ListBarsBySymbol(ctx context.Context, code string) ([]market.Bar, error) {
	return queryAll(ctx, s.db, "list bars by symbol", scanBar,
		barSelect+` WHERE s.symbol = ? ORDER BY b.timestamp ASC`, code)
}

// ListBarsBySymbolAndRange returns bars with start <= timestamp <= end in
// ascending timestamp order. start after end is an empty result, not an
// error.
func (s *Store) ListBarsBySymbolAndRange(ctx context.Context, code string, start, end market.Timestamp) ([]market.Bar, error) {
	return queryAll(ctx, s.db, "list bars by symbol and range", scanBar,
		barSelect+` WHERE s.symbol = ? AND b.timestamp BETWEEN ? AND ? ORDER BY b.timestamp ASC`,
		code, start, end)
}

// --- indicators ------------------------------------------------------------

const indicatorSelect = `
	SELECT i.id, i.symbol_id, s.symbol, i.timestamp,
		i.ma_short, i.ma_medium, i.ma_long, i.rsi,
		i.macd, i.macd_signal, i.macd_histogram,
		i.bollinger_middle, i.bollinger_upper, i.bollinger_lower,
		i.created_at, i.updated_at
	FROM indicator_data i
	JOIN symbol s ON s.id = i.symbol_id`

func scanIndicator(r rowScanner) (market.Indicator, error) {
	var i market.Indicator
	err := r.Scan(
		&i.ID, &i.SymbolID, &i.Symbol, &i.Timestamp,
		&i.MAShort, &i.MAMedium, &i.MALong, &i.RSI,
		&i.MACD, &i.MACDSignal, &i.MACDHistogram,
		&i.BollingerMiddle, &i.BollingerUpper, &i.BollingerLower,
		&i.CreatedAt, &i.UpdatedAt,
	)
	return i, err
}

func (s *Store) ListIndicators(ctx context.Context) ([]market.Indicator, error) {
	return queryAll(ctx, s.db, "list indicators", scanIndicator, indicatorSelect+` ORDER BY i.id ASC`)
}

func (s *Store) ListIndicatorsBySymbol(ctx context.Context, code string) ([]market.Indicator, error) {
	return queryAll(ctx, s.db, "list indicators by symbol", scanIndicator,
		indicatorSelect+` WHERE s.symbol = ? ORDER BY i.timestamp ASC`, code)
}

func (s *Store) ListIndicatorsBySymbolAndRange(ctx context.Context, code string, start, end market.Timestamp) ([]market.Indicator, error) {
	return queryAll(ctx, s.db, "list indicators by symbol and range", scanIndicator,
		indicatorSelect+` WHERE s.symbol = ? AND i.timestamp BETWEEN ? AND ? ORDER BY i.timestamp ASC`,
		code, start, end)
}

// --- signals ---------------------------------------------------------------

const signalSelect = `
	SELECT g.id, g.symbol_id, s.symbol, g.timestamp, g.signal_type, g.source, g.price,
		g.created_at, g.updated_at
	FROM trading_signal g
	JOIN symbol s ON s.id = g.symbol_id`

func scanSignal(r rowScanner) (market.Signal, error) {
	var g market.Signal
	err := r.Scan(
		&g.ID, &g.SymbolID, &g.Symbol, &g.Timestamp, &g.SignalType, &g.Source, &g.Price,
		&g.CreatedAt, &g.UpdatedAt,
	)
	return g, err
}

func (s *Store) ListSignals(ctx context.Context) ([]market.Signal, error) {
	return queryAll(ctx, s.db, "list signals", scanSignal, signalSelect+` ORDER BY g.id ASC`)
}

func (s *Store) ListSignalsBySymbol(ctx context.Context, code string) ([]market.Signal, error) {
	return queryAll(ctx, s.db, "list signals by symbol", scanSignal,
		signalSelect+` WHERE s.symbol = ? ORDER BY g.timestamp ASC`, code)
}

func (s *Store) ListSignalsBySymbolAndRange(ctx context.Context, code string, start, end market.Timestamp) ([]market.Signal, error) {
	return queryAll(ctx, s.db, "list signals by symbol and range", scanSignal,
		signalSelect+` WHERE s.symbol = ? AND g.timestamp BETWEEN ? AND ? ORDER BY g.timestamp ASC`,
		code, start, end)
}

// --- backtests -------------------------------------------------------------

const backtestSelect = `
	SELECT r.id, r.symbol_id, s.symbol, r.timeframe, r.start_date, r.end_date,
		r.initial_capital, r.final_capital, r.total_return, r.annual_return,
		r.max_drawdown, r.sharpe_ratio, r.trade_count, r.winning_trades, r.losing_trades,
		r.win_rate, r.average_win, r.average_loss, r.profit_factor,
		r.created_at, r.updated_at
	FROM backtest_result r
	JOIN symbol s ON s.id = r.symbol_id`

func scanBacktest(r rowScanner) (market.BacktestResult, error) {
	var b market.BacktestResult
	err := r.Scan(
		&b.ID, &b.SymbolID, &b.Symbol, &b.Timeframe, &b.StartDate, &b.EndDate,
		&b.InitialCapital, &b.FinalCapital, &b.TotalReturn, &b.AnnualReturn,
		&b.MaxDrawdown, &b.SharpeRatio, &b.TradeCount, &b.WinningTrades, &b.LosingTrades,
		&b.WinRate, &b.AverageWin, &b.AverageLoss, &b.ProfitFactor,
		&b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

func (s *Store) ListBacktests(ctx context.Context) ([]market.BacktestResult, error) {
	return queryAll(ctx, s.db, "list backtests", scanBacktest, backtestSelect+` ORDER BY r.created_at ASC, r.id ASC`)
}

func (s *Store) ListBacktestsBySymbol(ctx context.Context, code string) ([]market.BacktestResult, error) {
	return queryAll(ctx, s.db, "list backtests by symbol", scanBacktest,
		backtestSelect+` WHERE s.symbol = ? ORDER BY r.start_date ASC, r.id ASC`, code)
}

// GetBacktest returns the backtest with its trades, or a NotFound error.
func (s *Store) GetBacktest(ctx context.Context, id string) (market.BacktestResult, error) {
	b, err := scanBacktest(s.db.QueryRowContext(ctx, backtestSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return market.BacktestResult{}, apperr.Newf(apperr.NotFound, "get backtest", "backtest %q not found", id)
	}
	if err != nil {
		return market.BacktestResult{}, apperr.Database("get backtest", err)
	}
	if b.Trades, err = s.ListTradesByBacktest(ctx, id); err != nil {
		return market.BacktestResult{}, err
	}
	return b, nil
}

// --- trades ----------------------------------------------------------------

const tradeSelect = `
	SELECT id, backtest_result_id, timestamp, trade_type, price, quantity, amount, fee,
		remaining_capital, position, created_at, updated_at
	FROM trade_record`

func scanTrade(r rowScanner) (market.TradeRecord, error) {
	var t market.TradeRecord
	err := r.Scan(
		&t.ID, &t.BacktestResultID, &t.Timestamp, &t.TradeType, &t.Price, &t.Quantity,
		&t.Amount, &t.Fee, &t.RemainingCapital, &t.Position,
		&t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

// ListTradesByBacktest returns the trades of a backtest in time order.
func (s *Store) ListTradesByBacktest(ctx context.Context, backtestID string) ([]market.TradeRecord, error) {
	return queryAll(ctx, s.db, "list trades by backtest", scanTrade,
		tradeSelect+` WHERE backtest_result_id = ? ORDER BY timestamp ASC`, backtestID)
}
