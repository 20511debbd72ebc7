package feed

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
)

var (
	trendThreshold = decimal.NewFromInt(5)
	hundred        = decimal.NewFromInt(100)
)

// PercentChange devolve a variação percentual de prev para cur, sem arredondar.
// Sem valor anterior válido a variação é zero.
func PercentChange(cur, prev decimal.Decimal) decimal.Decimal {
	if !prev.IsPositive() {
		return decimal.Zero
	}
	return cur.Sub(prev).Div(prev).Mul(hundred)
}

// Trend classifica pela variação exata e devolve o percentual arredondado em
// 4 casas só para exibição.
func Trend(cur, prev decimal.Decimal) (decimal.Decimal, api.Direction) {
	pct := PercentChange(cur, prev)
	return pct.Round(4), Classify(pct)
}

// Classify usa desigualdade estrita: exatamente ±5 é STABLE.
func Classify(pct decimal.Decimal) api.Direction {
	switch {
	case pct.GreaterThan(trendThreshold):
		return api.DirectionUp
	case pct.LessThan(trendThreshold.Neg()):
		return api.DirectionDown
	default:
		return api.DirectionStable
	}
}

func deriveTrend(q events.OddsQuote, vol api.VolumeRecord) api.OddsTrend {
	pct, dir := Trend(q.CurrentValue, q.PreviousValue)
	return api.OddsTrend{
		EventID:         q.EventID,
		OutcomeCode:     q.OutcomeCode,
		CurrentValue:    q.CurrentValue,
		Direction:       dir,
		PercentChange:   pct,
		AggregateVolume: vol.TotalStaked,
	}
}

func matchesFilter(t api.OddsTrend, f api.TrendFilter) bool {
	return f.Direction == "" || t.Direction == f.Direction
}
