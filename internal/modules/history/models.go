package history

// DailyPrice represents a daily OHLCV price bar.
// Dates use YYYY-MM-DD format throughout.
type DailyPrice struct {
	Date   string   `json:"date"`
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume *float64 `json:"volume,omitempty"`
}

// SymbolCoverage summarizes how much history is stored for a symbol.
type SymbolCoverage struct {
	Symbol    string `json:"symbol"`
	Bars      int    `json:"bars"`
	FirstDate string `json:"first_date"`
	LastDate  string `json:"last_date"`
}
