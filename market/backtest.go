package market

import (
	"fmt"
	"strings"
)

type TradeType string

const (
	TradeBuy  TradeType = "buy"
	TradeSell TradeType = "sell"
)

func ParseTradeType(s string) (TradeType, error) {
	switch tt := TradeType(strings.ToLower(strings.TrimSpace(s))); tt {
	case TradeBuy, TradeSell:
		return tt, nil
	}
	return "", fmt.Errorf("unknown trade type %q (supported: buy, sell)", s)
}

// BacktestResult summarizes one backtest run. The ID is assigned by the
// producer of the run, not by the store.
type BacktestResult struct {
	ID        string    `json:"id"`
	SymbolID  int64     `json:"symbol_id"`
	Symbol    string    `json:"symbol,omitempty"`
	Timeframe string    `json:"timeframe"`
	StartDate Timestamp `json:"start_date"`
	EndDate   Timestamp `json:"end_date"`

	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	TotalReturn    float64 `json:"total_return"`
	AnnualReturn   float64 `json:"annual_return"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	SharpeRatio    float64 `json:"sharpe_ratio"`

	TradeCount    int     `json:"trade_count"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	ProfitFactor  float64 `json:"profit_factor"`

	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`

	Trades []TradeRecord `json:"trades,omitempty"`
}

// TradeRecord is one simulated fill belonging to a backtest.
type TradeRecord struct {
	ID               string    `json:"id"`
	BacktestResultID string    `json:"backtest_result_id"`
	Timestamp        Timestamp `json:"timestamp"`
	TradeType        TradeType `json:"trade_type"`
	Price            float64   `json:"price"`
	Quantity         float64   `json:"quantity"`
	Amount           float64   `json:"amount"`
	Fee              float64   `json:"fee"`
	RemainingCapital float64   `json:"remaining_capital"`
	Position         float64   `json:"position"`

	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}
