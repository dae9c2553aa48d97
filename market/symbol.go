package market

// Symbol identifies a tradable instrument and owns its bars, indicators,
// signals and backtests.
type Symbol struct {
	ID            int64    `json:"id"`
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name"`
	SymbolType    string   `json:"symbol_type"`
	Exchange      string   `json:"exchange"`
	BaseCurrency  *string  `json:"base_currency,omitempty"`
	QuoteCurrency *string  `json:"quote_currency,omitempty"`
	LotSize       *float64 `json:"lot_size,omitempty"`
	TickSize      *float64 `json:"tick_size,omitempty"`

	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// StringPtr and FloatPtr help fill optional columns.
func StringPtr(s string) *string { return &s }

func FloatPtr(f float64) *float64 { return &f }
