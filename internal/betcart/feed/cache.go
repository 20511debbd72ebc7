// Package feed guarda a última cotação conhecida por (evento, resultado)
// e as agregações de tendência e volume derivadas dela.
package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-cart/internal/shared/apperr"
	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
)

// Source é o colaborador REST consultado pelo cache.
type Source interface {
	GetOdds(ctx context.Context, eventID string) ([]events.OddsQuote, error)
	GetTrends(ctx context.Context, eventID string, f api.TrendFilter) ([]api.OddsTrend, error)
	GetVolume(ctx context.Context, eventID string) ([]api.VolumeRecord, error)
	GetStatistics(ctx context.Context, eventID string) (api.OddsStatistics, error)
}

// Mirror replica as cotações num armazenamento externo (ex.: Redis).
type Mirror interface {
	Put(ctx context.Context, q events.OddsQuote) error
	Load(ctx context.Context, eventID string) ([]events.OddsQuote, error)
	DropEvent(ctx context.Context, eventID string) error
}

// Hooks de métricas; qualquer campo pode ser nil.
type Hooks struct {
	OnApplied   func()
	OnStale     func()
	OnLoadError func(view string)
}

// Status resume a disponibilidade do feed para um evento.
type Status struct {
	EventID       string    `json:"event_id"`
	Available     bool      `json:"available"`
	LastSuccessAt time.Time `json:"last_success_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorAt   time.Time `json:"last_error_at,omitempty"`
}

type Option func(*Cache)

func WithMirror(m Mirror) Option { return func(c *Cache) { c.mirror = m } }

func WithHooks(h Hooks) Option { return func(c *Cache) { c.hooks = h } }

func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// Cache é a fonte única de verdade sobre o preço corrente de cada resultado.
type Cache struct {
	src    Source
	mirror Mirror
	log    *zap.Logger
	hooks  Hooks
	now    func() time.Time

	mu     sync.RWMutex
	quotes map[string]map[string]events.OddsQuote // evento -> resultado -> cotação
	trends map[string]map[string]api.OddsTrend
	volume map[string]map[string]api.VolumeRecord
	stats  map[string]api.OddsStatistics
	status map[string]Status

	// seq conta os pushes aplicados; pushed guarda o seq do último push por resultado
	seq    uint64
	pushed map[string]map[string]uint64
}

func New(src Source, log *zap.Logger, opts ...Option) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Cache{
		src:    src,
		log:    log,
		now:    time.Now,
		quotes: make(map[string]map[string]events.OddsQuote),
		trends: make(map[string]map[string]api.OddsTrend),
		volume: make(map[string]map[string]api.VolumeRecord),
		stats:  make(map[string]api.OddsStatistics),
		status: make(map[string]Status),
		pushed: make(map[string]map[string]uint64),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// LoadOdds busca as cotações do evento e substitui as do cache.
// Em falha mantém as últimas conhecidas e devolve FeedUnavailable junto com elas.
func (c *Cache) LoadOdds(ctx context.Context, eventID string) ([]events.OddsQuote, error) {
	c.mu.RLock()
	start := c.seq
	c.mu.RUnlock()

	fetched, err := c.src.GetOdds(ctx, eventID)
	if err != nil {
		c.markFailure(eventID, "odds", err)
		return c.Quotes(eventID), apperr.Wrap(apperr.KindFeedUnavailable, "feed.LoadOdds", err)
	}

	changed := make([]events.OddsQuote, 0, len(fetched))

	c.mu.Lock()
	current := c.quotes[eventID]
	next := make(map[string]events.OddsQuote, len(fetched))
	for _, q := range fetched {
		if q.EventID == "" {
			q.EventID = eventID
		}
		if err := validateQuote(q); err != nil || q.EventID != eventID {
			c.log.Warn("discarding invalid quote from poll",
				zap.String("event_id", eventID), zap.String("outcome", q.OutcomeCode))
			continue
		}
		prev, ok := current[q.OutcomeCode]
		if ok && q.LastUpdated.Before(prev.LastUpdated) {
			// push mais recente já aplicado; o poll atrasado não regride o cache
			next[q.OutcomeCode] = prev
			c.fire(c.hooks.OnStale)
			continue
		}
		q = carryPrevious(q, prev, ok)
		next[q.OutcomeCode] = q
		if !ok || !sameQuote(prev, q) {
			changed = append(changed, q)
		}
	}
	// resultados que chegaram por push depois do início do poll ficam
	for code, seq := range c.pushed[eventID] {
		if _, ok := next[code]; ok || seq <= start {
			continue
		}
		if prev, ok := current[code]; ok {
			next[code] = prev
		}
	}
	c.quotes[eventID] = next
	c.rebuildTrendsLocked(eventID)
	c.status[eventID] = Status{EventID: eventID, Available: true, LastSuccessAt: c.now()}
	c.mu.Unlock()

	c.mirrorPut(ctx, changed...)
	return c.Quotes(eventID), nil
}

// ApplyUpdate faz upsert idempotente por (evento, resultado).
// Cotações mais antigas que a cacheada (timestamp do servidor) são ignoradas.
func (c *Cache) ApplyUpdate(ctx context.Context, q events.OddsQuote) (bool, error) {
	if err := validateQuote(q); err != nil {
		return false, err
	}

	c.mu.Lock()
	byOutcome, ok := c.quotes[q.EventID]
	if !ok {
		byOutcome = make(map[string]events.OddsQuote)
		c.quotes[q.EventID] = byOutcome
	}
	prev, had := byOutcome[q.OutcomeCode]
	if had && q.LastUpdated.Before(prev.LastUpdated) {
		c.mu.Unlock()
		c.fire(c.hooks.OnStale)
		c.log.Debug("stale quote ignored",
			zap.String("event_id", q.EventID),
			zap.String("outcome", q.OutcomeCode),
			zap.Time("incoming", q.LastUpdated),
			zap.Time("cached", prev.LastUpdated))
		return false, nil
	}
	q = carryPrevious(q, prev, had)
	byOutcome[q.OutcomeCode] = q
	c.seq++
	if c.pushed[q.EventID] == nil {
		c.pushed[q.EventID] = make(map[string]uint64)
	}
	c.pushed[q.EventID][q.OutcomeCode] = c.seq
	c.updateTrendLocked(q)
	c.mu.Unlock()

	c.fire(c.hooks.OnApplied)
	c.mirrorPut(ctx, q)
	return true, nil
}

// ApplyVolume aceita apenas registros que não diminuem o volume acumulado.
func (c *Cache) ApplyVolume(v api.VolumeRecord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyVolumeLocked(v)
}

func (c *Cache) applyVolumeLocked(v api.VolumeRecord) bool {
	byOutcome, ok := c.volume[v.EventID]
	if !ok {
		byOutcome = make(map[string]api.VolumeRecord)
		c.volume[v.EventID] = byOutcome
	}
	if prev, had := byOutcome[v.OutcomeCode]; had {
		if v.TotalStaked.LessThan(prev.TotalStaked) || v.BetCount < prev.BetCount {
			return false
		}
	}
	byOutcome[v.OutcomeCode] = v
	if q, ok := c.quotes[v.EventID][v.OutcomeCode]; ok {
		c.updateTrendLocked(q)
	} else if t, ok := c.trends[v.EventID][v.OutcomeCode]; ok {
		t.AggregateVolume = v.TotalStaked
		c.trends[v.EventID][v.OutcomeCode] = t
	}
	return true
}

// LoadTrends consulta as tendências no servidor e mescla no cache.
// eventID vazio traz todos os eventos.
func (c *Cache) LoadTrends(ctx context.Context, eventID string, f api.TrendFilter) ([]api.OddsTrend, error) {
	fetched, err := c.src.GetTrends(ctx, eventID, f)
	if err != nil {
		c.markFailure(eventID, "trends", err)
		return c.Trends(eventID, f), apperr.Wrap(apperr.KindFeedUnavailable, "feed.LoadTrends", err)
	}

	c.mu.Lock()
	for _, t := range fetched {
		if t.EventID == "" || t.OutcomeCode == "" {
			continue
		}
		// a cotação local mais nova prevalece sobre a tendência do servidor
		if q, ok := c.quotes[t.EventID][t.OutcomeCode]; ok && !q.CurrentValue.Equal(t.CurrentValue) {
			continue
		}
		byOutcome, ok := c.trends[t.EventID]
		if !ok {
			byOutcome = make(map[string]api.OddsTrend)
			c.trends[t.EventID] = byOutcome
		}
		switch t.Direction {
		case api.DirectionUp, api.DirectionDown, api.DirectionStable:
		default:
			t.Direction = Classify(t.PercentChange)
		}
		byOutcome[t.OutcomeCode] = t
	}
	c.mu.Unlock()

	return c.Trends(eventID, f), nil
}

// LoadVolume consulta o volume do evento e aplica a regra de monotonicidade.
func (c *Cache) LoadVolume(ctx context.Context, eventID string) ([]api.VolumeRecord, error) {
	fetched, err := c.src.GetVolume(ctx, eventID)
	if err != nil {
		c.markFailure(eventID, "volume", err)
		return c.Volume(eventID), apperr.Wrap(apperr.KindFeedUnavailable, "feed.LoadVolume", err)
	}

	c.mu.Lock()
	for _, v := range fetched {
		if v.EventID == "" {
			v.EventID = eventID
		}
		if v.EventID != eventID || v.OutcomeCode == "" {
			continue
		}
		if !c.applyVolumeLocked(v) {
			c.log.Debug("volume regression ignored",
				zap.String("event_id", eventID), zap.String("outcome", v.OutcomeCode))
		}
	}
	c.mu.Unlock()

	return c.Volume(eventID), nil
}

// LoadStatistics consulta as estatísticas do evento; em falha devolve a última cópia.
func (c *Cache) LoadStatistics(ctx context.Context, eventID string) (api.OddsStatistics, error) {
	st, err := c.src.GetStatistics(ctx, eventID)
	if err != nil {
		c.markFailure(eventID, "statistics", err)
		cached, _ := c.Statistics(eventID)
		return cached, apperr.Wrap(apperr.KindFeedUnavailable, "feed.LoadStatistics", err)
	}
	if st.EventID == "" {
		st.EventID = eventID
	}

	c.mu.Lock()
	c.stats[eventID] = st
	c.mu.Unlock()
	return st, nil
}

// Warm restaura as cotações do espelho externo, respeitando a regra de timestamp.
func (c *Cache) Warm(ctx context.Context, eventID string) (int, error) {
	if c.mirror == nil {
		return 0, nil
	}
	quotes, err := c.mirror.Load(ctx, eventID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, q := range quotes {
		if ok, err := c.ApplyUpdate(ctx, q); err == nil && ok {
			n++
		}
	}
	return n, nil
}

// CloseEvent remove tudo o que o cache sabe sobre um evento encerrado.
func (c *Cache) CloseEvent(ctx context.Context, eventID string) {
	c.mu.Lock()
	delete(c.quotes, eventID)
	delete(c.trends, eventID)
	delete(c.volume, eventID)
	delete(c.stats, eventID)
	delete(c.status, eventID)
	delete(c.pushed, eventID)
	c.mu.Unlock()

	if c.mirror != nil {
		if err := c.mirror.DropEvent(ctx, eventID); err != nil {
			c.log.Warn("mirror drop failed", zap.String("event_id", eventID), zap.Error(err))
		}
	}
}

// Quote devolve a cotação cacheada de um resultado.
func (c *Cache) Quote(eventID, outcomeCode string) (events.OddsQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[eventID][outcomeCode]
	return q, ok
}

// Quotes devolve as cotações do evento ordenadas por resultado.
func (c *Cache) Quotes(eventID string) []events.OddsQuote {
	c.mu.RLock()
	out := make([]events.OddsQuote, 0, len(c.quotes[eventID]))
	for _, q := range c.quotes[eventID] {
		out = append(out, q)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].OutcomeCode < out[j].OutcomeCode })
	return out
}

// Trends devolve as tendências cacheadas; eventID vazio lista todos os eventos.
func (c *Cache) Trends(eventID string, f api.TrendFilter) []api.OddsTrend {
	c.mu.RLock()
	var out []api.OddsTrend
	for ev, byOutcome := range c.trends {
		if eventID != "" && ev != eventID {
			continue
		}
		for _, t := range byOutcome {
			if matchesFilter(t, f) {
				out = append(out, t)
			}
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EventID != out[j].EventID {
			return out[i].EventID < out[j].EventID
		}
		return out[i].OutcomeCode < out[j].OutcomeCode
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func (c *Cache) Volume(eventID string) []api.VolumeRecord {
	c.mu.RLock()
	out := make([]api.VolumeRecord, 0, len(c.volume[eventID]))
	for _, v := range c.volume[eventID] {
		out = append(out, v)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].OutcomeCode < out[j].OutcomeCode })
	return out
}

func (c *Cache) Statistics(eventID string) (api.OddsStatistics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.stats[eventID]
	return st, ok
}

func (c *Cache) Status(eventID string) Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.status[eventID]
	if !ok {
		return Status{EventID: eventID}
	}
	return st
}

func (c *Cache) updateTrendLocked(q events.OddsQuote) {
	byOutcome, ok := c.trends[q.EventID]
	if !ok {
		byOutcome = make(map[string]api.OddsTrend)
		c.trends[q.EventID] = byOutcome
	}
	byOutcome[q.OutcomeCode] = deriveTrend(q, c.volume[q.EventID][q.OutcomeCode])
}

func (c *Cache) rebuildTrendsLocked(eventID string) {
	byOutcome := make(map[string]api.OddsTrend, len(c.quotes[eventID]))
	for _, q := range c.quotes[eventID] {
		byOutcome[q.OutcomeCode] = deriveTrend(q, c.volume[eventID][q.OutcomeCode])
	}
	c.trends[eventID] = byOutcome
}

func (c *Cache) markFailure(eventID, view string, err error) {
	c.log.Warn("feed load failed, keeping cached data",
		zap.String("event_id", eventID), zap.String("view", view), zap.Error(err))
	if c.hooks.OnLoadError != nil {
		c.hooks.OnLoadError(view)
	}
	if eventID == "" {
		return
	}

	c.mu.Lock()
	st := c.status[eventID]
	st.EventID = eventID
	st.Available = false
	st.LastError = err.Error()
	st.LastErrorAt = c.now()
	c.status[eventID] = st
	c.mu.Unlock()
}

func (c *Cache) mirrorPut(ctx context.Context, quotes ...events.OddsQuote) {
	if c.mirror == nil || len(quotes) == 0 {
		return
	}
	// o espelho não pode herdar o cancelamento de quem disparou o poll
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 500*time.Millisecond)
	defer cancel()
	for _, q := range quotes {
		if err := c.mirror.Put(mctx, q); err != nil {
			c.log.Warn("mirror put failed",
				zap.String("event_id", q.EventID), zap.String("outcome", q.OutcomeCode), zap.Error(err))
			return
		}
	}
}

func (c *Cache) fire(fn func()) {
	if fn != nil {
		fn()
	}
}

func validateQuote(q events.OddsQuote) error {
	switch {
	case q.EventID == "" || q.OutcomeCode == "":
		return apperr.Validation("feed.ApplyUpdate", "quote without event or outcome")
	case !q.CurrentValue.IsPositive():
		return apperr.Validation("feed.ApplyUpdate", "quote value must be positive")
	}
	return nil
}

// carryPrevious preserva o valor anterior para exibição de tendência
// quando o servidor não o envia.
func carryPrevious(q, prev events.OddsQuote, had bool) events.OddsQuote {
	if !had || q.PreviousValue.IsPositive() {
		return q
	}
	if prev.CurrentValue.Equal(q.CurrentValue) {
		q.PreviousValue = prev.PreviousValue
	} else {
		q.PreviousValue = prev.CurrentValue
	}
	return q
}

func sameQuote(a, b events.OddsQuote) bool {
	return a.CurrentValue.Equal(b.CurrentValue) && a.LastUpdated.Equal(b.LastUpdated) && a.Active == b.Active
}
