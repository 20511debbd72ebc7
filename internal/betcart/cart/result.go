package cart

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-cart/internal/shared/apperr"
)

// LineOutcome registra o que aconteceu com cada linha tentada.
type LineOutcome struct {
	LineID     string          `json:"line_id"`
	EventID    string          `json:"event_id"`
	MarketCode string          `json:"market_code"`
	BetID      string          `json:"bet_id,omitempty"`
	OddsAtAdd  decimal.Decimal `json:"odds_at_add"`
	OddsSent   decimal.Decimal `json:"odds_sent"`
	Confirmed  bool            `json:"confirmed"`
	Drifted    bool            `json:"drifted"`
	Error      string          `json:"error,omitempty"`
}

// SubmitResult é o objeto de resultado do submit (sucesso ou parcial).
type SubmitResult struct {
	State      State         `json:"state"` // SUCCESS | PARTIAL_FAILURE
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Remaining  int           `json:"remaining"`
	Lines      []LineOutcome `json:"lines"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// PartialSubmissionError interrompe o submit. Linhas já persistidas não são
// desfeitas; a falha e as não tentadas continuam no carrinho.
type PartialSubmissionError struct {
	Succeeded int
	Failed    int
	Remaining int
	LineID    string
	Err       error
}

func (e *PartialSubmissionError) Error() string {
	return fmt.Sprintf("submission interrupted: succeeded=%d failed=%d remaining=%d: %v",
		e.Succeeded, e.Failed, e.Remaining, e.Err)
}

// Persisted indica se ao menos uma linha foi gravada antes da falha.
func (e *PartialSubmissionError) Persisted() bool { return e.Succeeded > 0 }

// Unwrap expõe o kind PartialSubmission e, abaixo dele, a causa original.
// Sem nenhuma linha gravada o kind é o da própria causa.
func (e *PartialSubmissionError) Unwrap() error {
	if !e.Persisted() {
		return e.Err
	}
	return apperr.Wrap(apperr.KindPartialSubmission, "cart.Submit", e.Err)
}
