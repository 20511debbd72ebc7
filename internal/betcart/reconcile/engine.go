// Package reconcile decide qual odd vale em cada momento que envolve dinheiro:
// na inclusão da linha no carrinho e no envio da aposta.
package reconcile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-cart/internal/shared/apperr"
	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
)

// QuoteReader é a leitura do cache de odds (feed.Cache satisfaz).
type QuoteReader interface {
	Quote(eventID, outcomeCode string) (events.OddsQuote, bool)
}

// Resolution é a odd escolhida e se ela veio do feed.
type Resolution struct {
	Odds      decimal.Decimal
	Confirmed bool // false = sem cotação viva, valor exibido/da inclusão
	Drifted   bool
	Drift     decimal.Decimal // live - oddsAtAdd, só no envio
}

// DriftNotice avisa que a odd viva se afastou da odd vista pelo usuário.
type DriftNotice struct {
	EventID     string
	OutcomeCode string
	AtAdd       decimal.Decimal
	Live        decimal.Decimal
	Delta       decimal.Decimal
}

type Option func(*Engine)

// WithTolerance define a diferença absoluta tolerada antes do aviso de drift.
func WithTolerance(t decimal.Decimal) Option {
	return func(e *Engine) {
		if !t.IsNegative() {
			e.tolerance = t
		}
	}
}

// WithStrictLive exige cotação viva nos dois momentos.
func WithStrictLive(strict bool) Option { return func(e *Engine) { e.strict = strict } }

// Fallback é uma segunda fonte de cotação (espelho Redis), consultada só
// quando o cache local não conhece o resultado e não há valor exibido.
type Fallback interface {
	CurrentOdd(ctx context.Context, eventID, outcomeCode string) (decimal.Decimal, error)
}

func WithFallback(f Fallback) Option { return func(e *Engine) { e.fallback = f } }

// WithDriftNotice registra o callback de aviso. Não deve bloquear.
func WithDriftNotice(fn func(DriftNotice)) Option { return func(e *Engine) { e.notify = fn } }

type Engine struct {
	quotes    QuoteReader
	tolerance decimal.Decimal
	strict    bool
	notify    func(DriftNotice)
	fallback  Fallback
	log       *zap.Logger
}

const fallbackTimeout = 200 * time.Millisecond

var DefaultTolerance = decimal.RequireFromString("0.01")

func New(quotes QuoteReader, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{quotes: quotes, tolerance: DefaultTolerance, log: log}
	for _, o := range opts {
		o(e)
	}
	return e
}

// live devolve a cotação utilizável: existente, ativa e positiva.
// suspended indica resultado conhecido mas fechado para apostas.
func (e *Engine) live(eventID, outcomeCode string) (v decimal.Decimal, ok, suspended bool) {
	q, found := e.quotes.Quote(eventID, outcomeCode)
	if !found {
		return decimal.Zero, false, false
	}
	if !q.Active {
		return decimal.Zero, false, true
	}
	if !q.CurrentValue.IsPositive() {
		return decimal.Zero, false, false
	}
	return q.CurrentValue, true, false
}

func suspendedErr(op, eventID, outcomeCode string) error {
	return apperr.New(apperr.KindFeedUnavailable, op, "outcome suspended: "+eventID+"/"+outcomeCode)
}

// ResolveForAdd escolhe a oddsAtAdd. Cache primeiro; senão o valor exibido
// na listagem, marcado como não confirmado. Resultado suspenso não entra.
func (e *Engine) ResolveForAdd(eventID, outcomeCode string, displayed decimal.Decimal) (Resolution, error) {
	const op = "reconcile.ResolveForAdd"

	v, ok, suspended := e.live(eventID, outcomeCode)
	switch {
	case ok:
		return Resolution{Odds: v, Confirmed: true}, nil
	case suspended:
		return Resolution{}, suspendedErr(op, eventID, outcomeCode)
	case e.strict:
		return Resolution{}, apperr.New(apperr.KindFeedUnavailable, op, "no live quote for "+eventID+"/"+outcomeCode)
	}
	if displayed.IsPositive() {
		return Resolution{Odds: displayed, Confirmed: false}, nil
	}
	if v, ok := e.fromFallback(eventID, outcomeCode); ok {
		return Resolution{Odds: v, Confirmed: false}, nil
	}
	return Resolution{}, apperr.New(apperr.KindFeedUnavailable, op, "no quote known for "+eventID+"/"+outcomeCode)
}

func (e *Engine) fromFallback(eventID, outcomeCode string) (decimal.Decimal, bool) {
	if e.fallback == nil {
		return decimal.Zero, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), fallbackTimeout)
	defer cancel()
	v, err := e.fallback.CurrentOdd(ctx, eventID, outcomeCode)
	if err != nil || !v.IsPositive() {
		e.log.Debug("fallback quote unavailable", zap.String("event_id", eventID), zap.String("outcome", outcomeCode), zap.Error(err))
		return decimal.Zero, false
	}
	return v, true
}

// ResolveForSubmit relê o cache. Havendo valor vivo, é ele que vai na aposta,
// mesmo que tenha se afastado de oddsAtAdd.
func (e *Engine) ResolveForSubmit(eventID, outcomeCode string, oddsAtAdd decimal.Decimal) (Resolution, error) {
	const op = "reconcile.ResolveForSubmit"

	v, ok, suspended := e.live(eventID, outcomeCode)
	if suspended {
		return Resolution{}, suspendedErr(op, eventID, outcomeCode)
	}
	if !ok {
		if e.strict || !oddsAtAdd.IsPositive() {
			return Resolution{}, apperr.New(apperr.KindFeedUnavailable, op, "no live quote for "+eventID+"/"+outcomeCode)
		}
		return Resolution{Odds: oddsAtAdd, Confirmed: false}, nil
	}

	res := Resolution{Odds: v, Confirmed: true, Drift: v.Sub(oddsAtAdd)}
	if res.Drift.Abs().GreaterThan(e.tolerance) {
		res.Drifted = true
		e.log.Info("odds drifted since add",
			zap.String("event_id", eventID),
			zap.String("outcome", outcomeCode),
			zap.String("at_add", oddsAtAdd.String()),
			zap.String("live", v.String()),
		)
		if e.notify != nil {
			e.notify(DriftNotice{
				EventID:     eventID,
				OutcomeCode: outcomeCode,
				AtAdd:       oddsAtAdd,
				Live:        v,
				Delta:       res.Drift,
			})
		}
	}
	return res, nil
}
