package market

// Indicator holds technical values computed elsewhere for one symbol and
// timestamp. Fields are nil during an indicator's warm-up period.
type Indicator struct {
	ID        int64     `json:"id"`
	SymbolID  int64     `json:"symbol_id"`
	Symbol    string    `json:"symbol,omitempty"`
	Timestamp Timestamp `json:"timestamp"`

	MAShort  *float64 `json:"ma_short"`
	MAMedium *float64 `json:"ma_medium"`
	MALong   *float64 `json:"ma_long"`

	RSI *float64 `json:"rsi"`

	MACD          *float64 `json:"macd"`
	MACDSignal    *float64 `json:"macd_signal"`
	MACDHistogram *float64 `json:"macd_histogram"`

	BollingerMiddle *float64 `json:"bollinger_middle"`
	BollingerUpper  *float64 `json:"bollinger_upper"`
	BollingerLower  *float64 `json:"bollinger_lower"`

	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}
