package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

type State string

const (
	StateOpen           State = "OPEN"
	StateSubmitting     State = "SUBMITTING"
	StateSuccess        State = "SUCCESS"
	StatePartialFailure State = "PARTIAL_FAILURE"
)

// Selection é o que a camada de apresentação envia ao incluir uma linha.
// DisplayedOdds é a odd da listagem estática, usada só sem cotação no feed.
type Selection struct {
	EventID         string          `json:"event_id"`
	HomeTeam        string          `json:"home_team"`
	AwayTeam        string          `json:"away_team"`
	MatchTime       time.Time       `json:"match_time"`
	MarketCode      string          `json:"market_code"`
	MarketLabel     string          `json:"market_label"`
	PredictionLabel string          `json:"prediction_label"`
	DetailCode      string          `json:"detail_code,omitempty"`
	DisplayedOdds   decimal.Decimal `json:"displayed_odds"`
	Stake           decimal.Decimal `json:"stake"`
}

// Line é uma aposta pendente. OddsAtAdd é cópia, não referência ao feed.
type Line struct {
	ID              string          `json:"id"`
	EventID         string          `json:"event_id"`
	HomeTeam        string          `json:"home_team"`
	AwayTeam        string          `json:"away_team"`
	MatchTime       time.Time       `json:"match_time"`
	MarketCode      string          `json:"market_code"`
	MarketLabel     string          `json:"market_label"`
	OddsAtAdd       decimal.Decimal `json:"odds_at_add"`
	Stake           decimal.Decimal `json:"stake"`
	PotentialPayout decimal.Decimal `json:"potential_payout"`
	PredictionLabel string          `json:"prediction_label"`
	DetailCode      string          `json:"detail_code,omitempty"`
	AddedAt         time.Time       `json:"added_at"`
	Confirmed       bool            `json:"confirmed"` // odd veio do feed
}

func (l *Line) recompute() { l.PotentialPayout = l.Stake.Mul(l.OddsAtAdd) }

type Totals struct {
	Count          int             `json:"count"`
	TotalStake     decimal.Decimal `json:"total_stake"`
	TotalPotential decimal.Decimal `json:"total_potential"`
}

func totalsOf(lines []Line) Totals {
	t := Totals{Count: len(lines), TotalStake: decimal.Zero, TotalPotential: decimal.Zero}
	for _, l := range lines {
		t.TotalStake = t.TotalStake.Add(l.Stake)
		t.TotalPotential = t.TotalPotential.Add(l.Stake.Mul(l.OddsAtAdd))
	}
	return t
}

// Snapshot é a visão do carrinho para a apresentação.
type Snapshot struct {
	State  State  `json:"state"`
	Lines  []Line `json:"lines"`
	Totals Totals `json:"totals"`
}
