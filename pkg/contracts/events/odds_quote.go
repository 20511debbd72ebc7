package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// OddsQuote é a cotação corrente de um resultado (outcome) de um evento.
// Chave: (EventID, OutcomeCode). Uma mensagem do stream carrega exatamente uma OddsQuote.
type OddsQuote struct {
	EventID       string          `json:"event_id"`
	OutcomeCode   string          `json:"outcome_code"` // ex: "LOCAL" | "EMPATE" | "VISITANTE"
	CurrentValue  decimal.Decimal `json:"current_value"`
	PreviousValue decimal.Decimal `json:"previous_value"` // só para exibição de tendência
	LastUpdated   time.Time       `json:"last_updated"`   // timestamp do servidor
	Active        bool            `json:"active"`
}

// Key identifica a cotação dentro do cache.
func (q OddsQuote) Key() QuoteKey {
	return QuoteKey{EventID: q.EventID, OutcomeCode: q.OutcomeCode}
}

// QuoteKey é a chave composta (evento, resultado).
type QuoteKey struct {
	EventID     string
	OutcomeCode string
}
