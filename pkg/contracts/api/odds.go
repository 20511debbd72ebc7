package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction classifica a variação de curto prazo de uma odd.
type Direction string

const (
	DirectionUp     Direction = "UP"
	DirectionDown   Direction = "DOWN"
	DirectionStable Direction = "STABLE"
)

// OddsTrend é a visão derivada de tendência de um resultado dentro de um evento.
type OddsTrend struct {
	EventID         string          `json:"event_id"`
	OutcomeCode     string          `json:"outcome_code"`
	CurrentValue    decimal.Decimal `json:"current_value"`
	Direction       Direction       `json:"direction"`
	PercentChange   decimal.Decimal `json:"percent_change"`
	AggregateVolume decimal.Decimal `json:"aggregate_volume"`
}

// TrendFilter restringe a consulta de tendências.
type TrendFilter struct {
	Direction Direction
	Limit     int
}

// VolumeRecord acumula o volume apostado num resultado.
type VolumeRecord struct {
	EventID     string          `json:"event_id"`
	OutcomeCode string          `json:"outcome_code"`
	TotalStaked decimal.Decimal `json:"total_staked"`
	BetCount    int64           `json:"bet_count"`
	LastBetAt   time.Time       `json:"last_bet_at"`
}

// OddsStatistics resume o mercado de um evento.
type OddsStatistics struct {
	EventID      string          `json:"event_id"`
	TotalStaked  decimal.Decimal `json:"total_staked"`
	TotalBets    int64           `json:"total_bets"`
	OutcomeCount int             `json:"outcome_count"`
	MostBacked   string          `json:"most_backed,omitempty"`
	HighestOdds  decimal.Decimal `json:"highest_odds"`
	LowestOdds   decimal.Decimal `json:"lowest_odds"`
	AverageOdds  decimal.Decimal `json:"average_odds"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
