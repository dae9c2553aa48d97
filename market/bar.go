package market

import (
	"fmt"
	"math"
)

// Bar is one OHLC(V) observation for a symbol. Bars are immutable once
// stored; only a cascading symbol delete removes them.
type Bar struct {
	ID       int64  `json:"id"`
	SymbolID int64  `json:"symbol_id"`
	Symbol   string `json:"symbol,omitempty"`

	Timestamp Timestamp `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    *float64  `json:"volume,omitempty"`

	CreatedAt Timestamp `json:"created_at"`
}

// Validate rejects bars that cannot describe a real price interval. The store
// does not call it; producers such as the CSV importer do.
func (b Bar) Validate() error {
	for name, v := range map[string]float64{"open": b.Open, "high": b.High, "low": b.Low, "close": b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not a finite number", name)
		}
	}
	if b.High < b.Low {
		return fmt.Errorf("high %g below low %g", b.High, b.Low)
	}
	if b.Volume != nil && *b.Volume < 0 {
		return fmt.Errorf("negative volume %g", *b.Volume)
	}
	return nil
}
