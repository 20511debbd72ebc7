package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegisterBetRequest informa ao servidor um stake registrado para que ele recalcule as odds.
type RegisterBetRequest struct {
	EventID     string          `json:"event_id"`
	OutcomeCode string          `json:"outcome_code"`
	Amount      decimal.Decimal `json:"amount"`
	OddsUsed    decimal.Decimal `json:"odds_used"`
}

// CreateBetRequest é o payload de criação de aposta.
type CreateBetRequest struct {
	EventID     string          `json:"event_id"`
	MarketCode  string          `json:"market_code"`
	Stake       decimal.Decimal `json:"stake"`
	Odds        decimal.Decimal `json:"odds"`
	Prediction  string          `json:"prediction"`
	Detail      string          `json:"detail,omitempty"`
	Unconfirmed bool            `json:"unconfirmed"` // odd não confirmada pelo feed
}

// BetRecord é a aposta persistida pelo backend.
type BetRecord struct {
	BetID       string          `json:"bet_id"`
	EventID     string          `json:"event_id"`
	MarketCode  string          `json:"market_code"`
	Stake       decimal.Decimal `json:"stake"`
	Odds        decimal.Decimal `json:"odds"`
	Prediction  string          `json:"prediction"`
	Detail      string          `json:"detail,omitempty"`
	Unconfirmed bool            `json:"unconfirmed"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ErrorResponse é o corpo de erro padrão das APIs.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
