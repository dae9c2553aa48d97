package market

import (
	"fmt"
	"strings"
)

type SignalType string

const (
	SignalBuy  SignalType = "buy"
	SignalSell SignalType = "sell"
	SignalHold SignalType = "hold"
)

// ParseSignalType accepts buy, sell or hold in any case.
func ParseSignalType(s string) (SignalType, error) {
	switch st := SignalType(strings.ToLower(strings.TrimSpace(s))); st {
	case SignalBuy, SignalSell, SignalHold:
		return st, nil
	}
	return "", fmt.Errorf("unknown signal type %q (supported: buy, sell, hold)", s)
}

// Signal is a buy/sell/hold event for a symbol. Source names the rule that
// produced it.
type Signal struct {
	ID         int64      `json:"id"`
	SymbolID   int64      `json:"symbol_id"`
	Symbol     string     `json:"symbol,omitempty"`
	Timestamp  Timestamp  `json:"timestamp"`
	SignalType SignalType `json:"signal_type"`
	Source     string     `json:"source"`
	Price      float64    `json:"price"`

	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}
