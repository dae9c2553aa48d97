package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/tradeview/apperr"
	"github.com/rustyeddy/tradeview/market"
)

// IsConstraint reports whether err was caused by a violated uniqueness,
// foreign key or NOT NULL constraint.
func IsConstraint(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint
}

func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Database(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return apperr.Database(op, tx.Commit())
}

func affectedOne(res sql.Result, op, what string, key any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Database(op, err)
	}
	if n == 0 {
		return apperr.Newf(apperr.NotFound, op, "%s %v not found", what, key)
	}
	return nil
}

// CreateSymbol inserts sym and fills in its ID and timestamps.
func (s *Store) CreateSymbol(ctx context.Context, sym *market.Symbol) error {
	const op = "create symbol"
	now := s.stamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO symbol
		(symbol, name, symbol_type, exchange, base_currency, quote_currency, lot_size, tick_size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.Symbol, sym.Name, sym.SymbolType, sym.Exchange,
		sym.BaseCurrency, sym.QuoteCurrency, sym.LotSize, sym.TickSize, now, now,
	)
	if err != nil {
		return apperr.Database(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apperr.Database(op, err)
	}
	sym.ID = id
	sym.CreatedAt, sym.UpdatedAt = now, now
	return nil
}

// UpdateSymbol rewrites the mutable columns of the symbol with sym.ID and
// refreshes updated_at. created_at is never touched.
func (s *Store) UpdateSymbol(ctx context.Context, sym *market.Symbol) error {
	const op = "update symbol"
	now := s.stamp()
	res, err := s.db.ExecContext(ctx, `
		UPDATE symbol SET
			symbol = ?, name = ?, symbol_type = ?, exchange = ?,
			base_currency = ?, quote_currency = ?, lot_size = ?, tick_size = ?,
			updated_at = ?
		WHERE id = ?`,
		sym.Symbol, sym.Name, sym.SymbolType, sym.Exchange,
		sym.BaseCurrency, sym.QuoteCurrency, sym.LotSize, sym.TickSize,
		now, sym.ID,
	)
	if err != nil {
		return apperr.Database(op, err)
	}
	if err := affectedOne(res, op, "symbol id", sym.ID); err != nil {
		return err
	}
	sym.UpdatedAt = now
	return nil
}

// DeleteSymbol removes the symbol and, through the foreign key cascades, all
// of its bars, indicators, signals, backtests and their trades.
func (s *Store) DeleteSymbol(ctx context.Context, code string) error {
	const op = "delete symbol"
	res, err := s.db.ExecContext(ctx, `DELETE FROM symbol WHERE symbol = ?`, code)
	if err != nil {
		return apperr.Database(op, err)
	}
	return affectedOne(res, op, "symbol", code)
}

const insertBar = `
	INSERT INTO ohlc_data
	(symbol_id, timestamp, open, high, low, close, volume, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func insertOneBar(ctx context.Context, ex Execer, b *market.Bar, now market.Timestamp) error {
	res, err := ex.ExecContext(ctx, insertBar,
		b.SymbolID, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id
	b.CreatedAt = now
	return nil
}

// InsertBar stores one bar. A second bar for the same symbol and timestamp
// fails with a DatabaseError; nothing is overwritten.
func (s *Store) InsertBar(ctx context.Context, b *market.Bar) error {
	return apperr.Database("insert bar", insertOneBar(ctx, s.db, b, s.stamp()))
}

// InsertBars stores bars in one transaction: all of them or none.
func (s *Store) InsertBars(ctx context.Context, bars []market.Bar) error {
	const op = "insert bars"
	now := s.stamp()
	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertBar)
		if err != nil {
			return apperr.Database(op, err)
		}
		defer stmt.Close()

		for i := range bars {
			b := &bars[i]
			res, err := stmt.ExecContext(ctx,
				b.SymbolID, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume, now)
			if err != nil {
				return apperr.Database(op, err)
			}
			if b.ID, err = res.LastInsertId(); err != nil {
				return apperr.Database(op, err)
			}
			b.CreatedAt = now
		}
		return nil
	})
}

func (s *Store) InsertIndicator(ctx context.Context, in *market.Indicator) error {
	const op = "insert indicator"
	now := s.stamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO indicator_data
		(symbol_id, timestamp, ma_short, ma_medium, ma_long, rsi, macd, macd_signal, macd_histogram,
		 bollinger_middle, bollinger_upper, bollinger_lower, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.SymbolID, in.Timestamp, in.MAShort, in.MAMedium, in.MALong, in.RSI,
		in.MACD, in.MACDSignal, in.MACDHistogram,
		in.BollingerMiddle, in.BollingerUpper, in.BollingerLower, now, now,
	)
	if err != nil {
		return apperr.Database(op, err)
	}
	if in.ID, err = res.LastInsertId(); err != nil {
		return apperr.Database(op, err)
	}
	in.CreatedAt, in.UpdatedAt = now, now
	return nil
}

func (s *Store) InsertSignal(ctx context.Context, sig *market.Signal) error {
	const op = "insert signal"
	st, err := market.ParseSignalType(string(sig.SignalType))
	if err != nil {
		return apperr.New(apperr.BadRequest, op, err)
	}
	sig.SignalType = st

	now := s.stamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trading_signal
		(symbol_id, timestamp, signal_type, source, price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sig.SymbolID, sig.Timestamp, string(sig.SignalType), sig.Source, sig.Price, now, now,
	)
	if err != nil {
		return apperr.Database(op, err)
	}
	if sig.ID, err = res.LastInsertId(); err != nil {
		return apperr.Database(op, err)
	}
	sig.CreatedAt, sig.UpdatedAt = now, now
	return nil
}

// InsertBacktest stores a backtest result together with its trades in one
// transaction. IDs are assigned by the caller.
func (s *Store) InsertBacktest(ctx context.Context, r *market.BacktestResult) error {
	const op = "insert backtest"
	now := s.stamp()
	err := s.inTx(ctx, op, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO backtest_result
			(id, symbol_id, timeframe, start_date, end_date, initial_capital, final_capital,
			 total_return, annual_return, max_drawdown, sharpe_ratio, trade_count, winning_trades,
			 losing_trades, win_rate, average_win, average_loss, profit_factor, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.SymbolID, r.Timeframe, r.StartDate, r.EndDate, r.InitialCapital, r.FinalCapital,
			r.TotalReturn, r.AnnualReturn, r.MaxDrawdown, r.SharpeRatio, r.TradeCount, r.WinningTrades,
			r.LosingTrades, r.WinRate, r.AverageWin, r.AverageLoss, r.ProfitFactor, now, now,
		)
		if err != nil {
			return apperr.Database(op, err)
		}

		for _, t := range r.Trades {
			t.BacktestResultID = r.ID
			if err := insertTrade(ctx, tx, &t, now); err != nil {
				return apperr.Database(op, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.CreatedAt, r.UpdatedAt = now, now
	for i := range r.Trades {
		t := &r.Trades[i]
		t.BacktestResultID = r.ID
		t.CreatedAt, t.UpdatedAt = now, now
	}
	return nil
}

func insertTrade(ctx context.Context, ex Execer, t *market.TradeRecord, now market.Timestamp) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO trade_record
		(id, backtest_result_id, timestamp, trade_type, price, quantity, amount, fee,
		 remaining_capital, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.BacktestResultID, t.Timestamp, string(t.TradeType), t.Price, t.Quantity, t.Amount, t.Fee,
		t.RemainingCapital, t.Position, now, now,
	)
	if err != nil {
		return err
	}
	t.CreatedAt, t.UpdatedAt = now, now
	return nil
}

// InsertTrade appends a trade to an existing backtest.
func (s *Store) InsertTrade(ctx context.Context, t *market.TradeRecord) error {
	return apperr.Database("insert trade", insertTrade(ctx, s.db, t, s.stamp()))
}

// DeleteBacktest removes a backtest and, by cascade, its trades.
func (s *Store) DeleteBacktest(ctx context.Context, id string) error {
	const op = "delete backtest"
	res, err := s.db.ExecContext(ctx, `DELETE FROM backtest_result WHERE id = ?`, id)
	if err != nil {
		return apperr.Database(op, err)
	}
	return affectedOne(res, op, "backtest", id)
}
