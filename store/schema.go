package store

import (
	"fmt"
	"strings"
)

// Table, index and constraint names are part of the on-disk contract.
const (
	TableSymbol     = "symbol"
	TableOHLC       = "ohlc_data"
	TableIndicator  = "indicator_data"
	TableSignal     = "trading_signal"
	TableBacktest   = "backtest_result"
	TableTrade      = "trade_record"
	TableMigrations = "schema_migrations"
)

type ColumnType string

const (
	Integer  ColumnType = "INTEGER"
	Text     ColumnType = "TEXT"
	Real     ColumnType = "REAL"
	DateTime ColumnType = "TIMESTAMP"
)

type Column struct {
	Name          string
	Type          ColumnType
	NotNull       bool
	PrimaryKey    bool
	AutoIncrement bool
	Default       string
}

// ForeignKey always cascades on delete and update.
type ForeignKey struct {
	Name      string
	Column    string
	RefTable  string
	RefColumn string
}

type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

type Table struct {
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
	Indexes     []Index
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func quoteAll(idents []string) string {
	q := make([]string, len(idents))
	for i, id := range idents {
		q[i] = quote(id)
	}
	return strings.Join(q, ", ")
}

func (c Column) definition() string {
	var b strings.Builder
	b.WriteString(quote(c.Name))
	b.WriteString(" ")
	b.WriteString(string(c.Type))
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
		if c.AutoIncrement {
			b.WriteString(" AUTOINCREMENT")
		}
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	return b.String()
}

func (fk ForeignKey) definition() string {
	return fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE CASCADE ON UPDATE CASCADE",
		quote(fk.Name), quote(fk.Column), quote(fk.RefTable), quote(fk.RefColumn))
}

// CreateStatements renders the table and its indexes. Every statement is a
// no-op when the object already exists.
func (t Table) CreateStatements() []string {
	parts := make([]string, 0, len(t.Columns)+len(t.ForeignKeys))
	for _, c := range t.Columns {
		parts = append(parts, c.definition())
	}
	for _, fk := range t.ForeignKeys {
		parts = append(parts, fk.definition())
	}

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quote(t.Name), strings.Join(parts, ",\n\t")),
	}
	for _, idx := range t.Indexes {
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		stmts = append(stmts, fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
			unique, quote(idx.Name), quote(t.Name), quoteAll(idx.Columns)))
	}
	return stmts
}

// DropStatement drops the table; its indexes go with it.
func (t Table) DropStatement() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", quote(t.Name))
}

func idColumn() Column {
	return Column{Name: "id", Type: Integer, NotNull: true, PrimaryKey: true, AutoIncrement: true}
}

func stringIDColumn() Column {
	return Column{Name: "id", Type: Text, NotNull: true, PrimaryKey: true}
}

func timestampColumns(updated bool) []Column {
	cols := []Column{{Name: "created_at", Type: DateTime, NotNull: true, Default: "CURRENT_TIMESTAMP"}}
	if updated {
		cols = append(cols, Column{Name: "updated_at", Type: DateTime, NotNull: true, Default: "CURRENT_TIMESTAMP"})
	}
	return cols
}

func required(name string, typ ColumnType) Column {
	return Column{Name: name, Type: typ, NotNull: true}
}

func optional(name string, typ ColumnType) Column { return Column{Name: name, Type: typ} }

func symbolFK(table string) ForeignKey {
	return ForeignKey{Name: "fk-" + table + "-symbol_id", Column: "symbol_id", RefTable: TableSymbol, RefColumn: "id"}
}

func uniqueIndex(table string, cols ...string) Index {
	return Index{Name: "idx-" + table + "-" + strings.Join(cols, "-"), Columns: cols, Unique: true}
}

// SymbolTable is the instrument catalog.
var SymbolTable = Table{
	Name: TableSymbol,
	Columns: append([]Column{
		idColumn(),
		required("symbol", Text),
		required("name", Text),
		required("symbol_type", Text),
		required("exchange", Text),
		optional("base_currency", Text),
		optional("quote_currency", Text),
		optional("lot_size", Real),
		optional("tick_size", Real),
	}, timestampColumns(true)...),
	Indexes: []Index{uniqueIndex(TableSymbol, "symbol")},
}

// OHLCTable holds at most one bar per symbol per instant.
var OHLCTable = Table{
	Name: TableOHLC,
	Columns: append([]Column{
		idColumn(),
		required("symbol_id", Integer),
		required("timestamp", DateTime),
		required("open", Real),
		required("high", Real),
		required("low", Real),
		required("close", Real),
		optional("volume", Real),
	}, timestampColumns(false)...),
	ForeignKeys: []ForeignKey{symbolFK(TableOHLC)},
	Indexes:     []Index{uniqueIndex(TableOHLC, "symbol_id", "timestamp")},
}

// IndicatorTable values are nullable because warm-up periods have no value.
var IndicatorTable = Table{
	Name: TableIndicator,
	Columns: append([]Column{
		idColumn(),
		required("symbol_id", Integer),
		required("timestamp", DateTime),
		optional("ma_short", Real),
		optional("ma_medium", Real),
		optional("ma_long", Real),
		optional("rsi", Real),
		optional("macd", Real),
		optional("macd_signal", Real),
		optional("macd_histogram", Real),
		optional("bollinger_middle", Real),
		optional("bollinger_upper", Real),
		optional("bollinger_lower", Real),
	}, timestampColumns(true)...),
	ForeignKeys: []ForeignKey{symbolFK(TableIndicator)},
	Indexes:     []Index{uniqueIndex(TableIndicator, "symbol_id", "timestamp")},
}

var SignalTable = Table{
	Name: TableSignal,
	Columns: append([]Column{
		idColumn(),
		required("symbol_id", Integer),
		required("timestamp", DateTime),
		required("signal_type", Text),
		required("source", Text),
		required("price", Real),
	}, timestampColumns(true)...),
	ForeignKeys: []ForeignKey{symbolFK(TableSignal)},
	Indexes:     []Index{uniqueIndex(TableSignal, "symbol_id", "timestamp")},
}

var BacktestTable = Table{
	Name: TableBacktest,
	Columns: append([]Column{
		stringIDColumn(),
		required("symbol_id", Integer),
		required("timeframe", Text),
		required("start_date", DateTime),
		required("end_date", DateTime),
		required("initial_capital", Real),
		required("final_capital", Real),
		required("total_return", Real),
		required("annual_return", Real),
		required("max_drawdown", Real),
		required("sharpe_ratio", Real),
		required("trade_count", Integer),
		required("winning_trades", Integer),
		required("losing_trades", Integer),
		required("win_rate", Real),
		required("average_win", Real),
		required("average_loss", Real),
		required("profit_factor", Real),
	}, timestampColumns(true)...),
	ForeignKeys: []ForeignKey{symbolFK(TableBacktest)},
}

var TradeTable = Table{
	Name: TableTrade,
	Columns: append([]Column{
		stringIDColumn(),
		required("backtest_result_id", Text),
		required("timestamp", DateTime),
		required("trade_type", Text),
		required("price", Real),
		required("quantity", Real),
		required("amount", Real),
		required("fee", Real),
		required("remaining_capital", Real),
		required("position", Real),
	}, timestampColumns(true)...),
	ForeignKeys: []ForeignKey{{
		Name:      "fk-" + TableTrade + "-backtest_result_id",
		Column:    "backtest_result_id",
		RefTable:  TableBacktest,
		RefColumn: "id",
	}},
	Indexes: []Index{uniqueIndex(TableTrade, "backtest_result_id", "timestamp")},
}

// Tables lists every table in foreign key dependency order.
func Tables() []Table {
	return []Table{SymbolTable, OHLCTable, IndicatorTable, SignalTable, BacktestTable, TradeTable}
}
