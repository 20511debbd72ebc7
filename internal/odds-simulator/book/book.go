// Package book é o livro de preços em memória do simulador: cotações por
// resultado, volume apostado e recálculo das odds a cada aposta.
package book

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-cart/internal/betcart/feed"
	"github.com/radieske/sports-bet-cart/internal/shared/apperr"
	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
)

// Códigos de resultado do mercado 1x2
const (
	OutcomeHome = "LOCAL"
	OutcomeDraw = "EMPATE"
	OutcomeAway = "VISITANTE"
)

var (
	minOdd    = decimal.RequireFromString("1.01")
	liquidity = decimal.NewFromInt(1000) // profundidade fictícia do mercado
	backShade = decimal.RequireFromString("0.5")
	layShade  = decimal.RequireFromString("0.25")
)

// Event descreve uma partida do catálogo.
type Event struct {
	ID       string    `json:"event_id"`
	HomeTeam string    `json:"home_team"`
	AwayTeam string    `json:"away_team"`
	Market   string    `json:"market"`
	StartsAt time.Time `json:"starts_at"`
}

// Seed é uma partida com as odds iniciais por resultado.
type Seed struct {
	Event
	Odds map[string]decimal.Decimal
}

// DefaultCatalog é o catálogo fixo de partidas simuladas.
func DefaultCatalog(now time.Time) []Seed {
	mk := func(id, home, away string, offset time.Duration, h, d, a string) Seed {
		return Seed{
			Event: Event{ID: id, HomeTeam: home, AwayTeam: away, Market: "1x2", StartsAt: now.Add(offset).Truncate(time.Minute)},
			Odds: map[string]decimal.Decimal{
				OutcomeHome: decimal.RequireFromString(h),
				OutcomeDraw: decimal.RequireFromString(d),
				OutcomeAway: decimal.RequireFromString(a),
			},
		}
	}
	return []Seed{
		mk("55", "Flamengo", "Palmeiras", 2*time.Hour, "1.90", "3.40", "4.10"),
		mk("56", "Grêmio", "Internacional", 3*time.Hour, "2.30", "3.10", "3.20"),
		mk("57", "Corinthians", "Santos", 26*time.Hour, "2.05", "3.25", "3.70"),
		mk("58", "São Paulo", "Vasco", 27*time.Hour, "1.75", "3.60", "4.80"),
	}
}

type entry struct {
	info   Event
	quotes map[string]events.OddsQuote
	volume map[string]api.VolumeRecord
}

type Book struct {
	mu     sync.RWMutex
	events map[string]*entry
	order  []string
	now    func() time.Time
	rng    *rand.Rand
}

type Option func(*Book)

func WithClock(now func() time.Time) Option { return func(b *Book) { b.now = now } }

func WithRand(r *rand.Rand) Option { return func(b *Book) { b.rng = r } }

func New(seeds []Seed, opts ...Option) *Book {
	b := &Book{
		events: make(map[string]*entry, len(seeds)),
		now:    time.Now,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(b)
	}

	at := b.now().UTC()
	for _, s := range seeds {
		e := &entry{
			info:   s.Event,
			quotes: make(map[string]events.OddsQuote, len(s.Odds)),
			volume: make(map[string]api.VolumeRecord, len(s.Odds)),
		}
		for code, v := range s.Odds {
			e.quotes[code] = events.OddsQuote{
				EventID:       s.ID,
				OutcomeCode:   code,
				CurrentValue:  v,
				PreviousValue: v,
				LastUpdated:   at,
				Active:        true,
			}
			e.volume[code] = api.VolumeRecord{EventID: s.ID, OutcomeCode: code, TotalStaked: decimal.Zero}
		}
		b.events[s.ID] = e
		b.order = append(b.order, s.ID)
	}
	return b
}

func notFound(op, eventID string) error {
	return apperr.New(apperr.KindNotFound, op, "event "+eventID+" not found")
}

func (b *Book) Events() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.events[id].info)
	}
	return out
}

func (b *Book) Odds(eventID string) ([]events.OddsQuote, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.events[eventID]
	if !ok {
		return nil, notFound("book.Odds", eventID)
	}
	return sortedQuotes(e), nil
}

// Trends calcula as tendências; eventID vazio cobre todo o catálogo.
func (b *Book) Trends(eventID string, f api.TrendFilter) ([]api.OddsTrend, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := b.order
	if eventID != "" {
		if _, ok := b.events[eventID]; !ok {
			return nil, notFound("book.Trends", eventID)
		}
		ids = []string{eventID}
	}

	out := []api.OddsTrend{}
	for _, id := range ids {
		e := b.events[id]
		for _, q := range sortedQuotes(e) {
			pct, dir := feed.Trend(q.CurrentValue, q.PreviousValue)
			t := api.OddsTrend{
				EventID:         q.EventID,
				OutcomeCode:     q.OutcomeCode,
				CurrentValue:    q.CurrentValue,
				Direction:       dir,
				PercentChange:   pct,
				AggregateVolume: e.volume[q.OutcomeCode].TotalStaked,
			}
			if f.Direction != "" && t.Direction != f.Direction {
				continue
			}
			out = append(out, t)
			if f.Limit > 0 && len(out) == f.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func (b *Book) Volume(eventID string) ([]api.VolumeRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.events[eventID]
	if !ok {
		return nil, notFound("book.Volume", eventID)
	}
	out := make([]api.VolumeRecord, 0, len(e.volume))
	for _, v := range e.volume {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OutcomeCode < out[j].OutcomeCode })
	return out, nil
}

func (b *Book) Statistics(eventID string) (api.OddsStatistics, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.events[eventID]
	if !ok {
		return api.OddsStatistics{}, notFound("book.Statistics", eventID)
	}

	st := api.OddsStatistics{EventID: eventID, TotalStaked: decimal.Zero, UpdatedAt: b.now().UTC()}
	mostStaked := decimal.Zero
	sum := decimal.Zero
	for _, q := range sortedQuotes(e) {
		v := e.volume[q.OutcomeCode]
		st.TotalStaked = st.TotalStaked.Add(v.TotalStaked)
		st.TotalBets += v.BetCount
		if v.TotalStaked.GreaterThan(mostStaked) {
			mostStaked, st.MostBacked = v.TotalStaked, q.OutcomeCode
		}

		st.OutcomeCount++
		sum = sum.Add(q.CurrentValue)
		if st.HighestOdds.IsZero() || q.CurrentValue.GreaterThan(st.HighestOdds) {
			st.HighestOdds = q.CurrentValue
		}
		if st.LowestOdds.IsZero() || q.CurrentValue.LessThan(st.LowestOdds) {
			st.LowestOdds = q.CurrentValue
		}
	}
	if st.OutcomeCount > 0 {
		st.AverageOdds = sum.Div(decimal.NewFromInt(int64(st.OutcomeCount))).Round(2)
	}
	return st, nil
}

// RegisterBet registra o stake e recalcula as odds do evento: o resultado
// apostado encurta, os demais alongam. Devolve as cotações alteradas.
func (b *Book) RegisterBet(req api.RegisterBetRequest) ([]events.OddsQuote, error) {
	const op = "book.RegisterBet"
	if !req.Amount.IsPositive() {
		return nil, apperr.Validation(op, "amount must be greater than zero")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.events[req.EventID]
	if !ok {
		return nil, notFound(op, req.EventID)
	}
	if _, ok := e.quotes[req.OutcomeCode]; !ok {
		return nil, apperr.New(apperr.KindNotFound, op, "outcome "+req.OutcomeCode+" not found")
	}

	now := b.now().UTC()
	v := e.volume[req.OutcomeCode]
	v.TotalStaked = v.TotalStaked.Add(req.Amount)
	v.BetCount++
	v.LastBetAt = now
	e.volume[req.OutcomeCode] = v

	shade := req.Amount.Div(req.Amount.Add(liquidity))
	changed := make([]events.OddsQuote, 0, len(e.quotes))
	for code, q := range e.quotes {
		factor := decimal.NewFromInt(1).Add(layShade.Mul(shade))
		if code == req.OutcomeCode {
			factor = decimal.NewFromInt(1).Sub(backShade.Mul(shade))
		}
		next := clampOdd(q.CurrentValue.Mul(factor))
		if next.Equal(q.CurrentValue) {
			continue
		}
		q.PreviousValue, q.CurrentValue, q.LastUpdated = q.CurrentValue, next, now
		e.quotes[code] = q
		changed = append(changed, q)
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].OutcomeCode < changed[j].OutcomeCode })
	return changed, nil
}

// Drift aplica um passeio aleatório de até ±maxPct% nas odds ativas.
func (b *Book) Drift(maxPct float64) []events.OddsQuote {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now().UTC()
	var changed []events.OddsQuote
	for _, id := range b.order {
		e := b.events[id]
		for _, code := range sortedCodes(e) {
			q := e.quotes[code]
			if !q.Active || b.rng.Intn(2) == 0 {
				continue
			}
			pct := (b.rng.Float64()*2 - 1) * maxPct / 100
			next := clampOdd(q.CurrentValue.Mul(decimal.NewFromFloat(1 + pct)))
			if next.Equal(q.CurrentValue) {
				continue
			}
			q.PreviousValue, q.CurrentValue, q.LastUpdated = q.CurrentValue, next, now
			e.quotes[code] = q
			changed = append(changed, q)
		}
	}
	return changed
}

// SetActive suspende ou reabre um resultado.
func (b *Book) SetActive(eventID, outcomeCode string, active bool) (events.OddsQuote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.events[eventID]
	if !ok {
		return events.OddsQuote{}, notFound("book.SetActive", eventID)
	}
	q, ok := e.quotes[outcomeCode]
	if !ok {
		return events.OddsQuote{}, apperr.New(apperr.KindNotFound, "book.SetActive", "outcome "+outcomeCode+" not found")
	}
	q.Active = active
	q.LastUpdated = b.now().UTC()
	e.quotes[outcomeCode] = q
	return q, nil
}

func clampOdd(v decimal.Decimal) decimal.Decimal {
	v = v.Round(2)
	if v.LessThan(minOdd) {
		return minOdd
	}
	return v
}

func sortedCodes(e *entry) []string {
	codes := make([]string, 0, len(e.quotes))
	for c := range e.quotes {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func sortedQuotes(e *entry) []events.OddsQuote {
	out := make([]events.OddsQuote, 0, len(e.quotes))
	for _, c := range sortedCodes(e) {
		out = append(out, e.quotes[c])
	}
	return out
}
