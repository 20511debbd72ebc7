package events

// BetPlaced é publicado no tópico "bet_placed" a cada linha do carrinho persistida.
type BetPlaced struct {
	BetID       string  `json:"bet_id"`
	LineID      string  `json:"line_id"` // id local da linha do carrinho
	EventID     string  `json:"event_id"`
	MarketCode  string  `json:"market_code"`
	Prediction  string  `json:"prediction"`
	Stake       string  `json:"stake"`
	OddValue    string  `json:"odd_value"` // odd efetivamente enviada (live)
	OddsAtAdd   string  `json:"odds_at_add"`
	Unconfirmed bool    `json:"unconfirmed"`
	Drift       float64 `json:"drift"`
	TsUnixMs    int64   `json:"ts_unix_ms"`
}
