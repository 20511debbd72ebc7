// Package session monta o contexto de serviço: cache de odds, supervisor de
// assinaturas, motor de reconciliação e carrinho, criados explicitamente e
// injetados na camada de apresentação.
package session

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-cart/internal/betcart/cart"
	"github.com/radieske/sports-bet-cart/internal/betcart/feed"
	"github.com/radieske/sports-bet-cart/internal/betcart/reconcile"
	"github.com/radieske/sports-bet-cart/internal/betcart/subscription"
	"github.com/radieske/sports-bet-cart/internal/shared/logger"
)

// Collaborator é o backend de odds e apostas (oddsapi.Client satisfaz).
type Collaborator interface {
	feed.Source
	cart.Submitter
	cart.Registrar
}

type Hooks struct {
	Feed         feed.Hooks
	Subscription subscription.Hooks
	OnDrift      func(reconcile.DriftNotice)
	OnCartState  func(from, to cart.State)
}

type Options struct {
	Stream       subscription.Stream // nil = só poll
	Mirror       feed.Mirror
	Publisher    cart.Publisher
	Subscription subscription.Options
	Tolerance    *decimal.Decimal // nil = reconcile.DefaultTolerance; zero exige odd idêntica
	StrictLive   bool
	Hooks        Hooks
}

const maxNotices = 50

type Session struct {
	Feed       *feed.Cache
	Supervisor *subscription.Supervisor
	Engine     *reconcile.Engine
	Cart       *cart.Cart

	log *zap.Logger

	mu      sync.Mutex
	notices []reconcile.DriftNotice
}

func New(collab Collaborator, log *zap.Logger, opts Options) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{log: log}

	feedOpts := []feed.Option{feed.WithHooks(opts.Hooks.Feed)}
	if opts.Mirror != nil {
		feedOpts = append(feedOpts, feed.WithMirror(opts.Mirror))
	}
	s.Feed = feed.New(collab, logger.Component(log, "feed"), feedOpts...)

	s.Supervisor = subscription.NewSupervisor(s.Feed, opts.Stream, opts.Subscription, opts.Hooks.Subscription, logger.Component(log, "subscription"))

	engineOpts := []reconcile.Option{
		reconcile.WithStrictLive(opts.StrictLive),
		reconcile.WithDriftNotice(func(n reconcile.DriftNotice) {
			s.recordNotice(n)
			if opts.Hooks.OnDrift != nil {
				opts.Hooks.OnDrift(n)
			}
		}),
	}
	if opts.Tolerance != nil {
		engineOpts = append(engineOpts, reconcile.WithTolerance(*opts.Tolerance))
	}
	// espelho Redis serve de última fonte quando não há cotação nem valor exibido
	if fb, ok := opts.Mirror.(reconcile.Fallback); ok {
		engineOpts = append(engineOpts, reconcile.WithFallback(fb))
	}
	s.Engine = reconcile.New(s.Feed, logger.Component(log, "reconcile"), engineOpts...)

	cartOpts := []cart.Option{cart.WithRegistrar(collab, s.Feed)}
	if opts.Publisher != nil {
		cartOpts = append(cartOpts, cart.WithPublisher(opts.Publisher))
	}
	if opts.Hooks.OnCartState != nil {
		cartOpts = append(cartOpts, cart.WithStateHook(opts.Hooks.OnCartState))
	}
	s.Cart = cart.New(s.Engine, collab, logger.Component(log, "cart"), cartOpts...)

	return s
}

// Attach aquece o cache pelo espelho e abre push + poll para o evento.
func (s *Session) Attach(ctx context.Context, eventID string) subscription.Health {
	if n, err := s.Feed.Warm(ctx, eventID); err != nil {
		s.log.Warn("mirror warm failed", zap.String("event_id", eventID), zap.Error(err))
	} else if n > 0 {
		s.log.Debug("feed warmed from mirror", zap.String("event_id", eventID), zap.Int("quotes", n))
	}
	return s.Supervisor.Attach(eventID).Health()
}

// Detach encerra push e poll do evento. O cache mantém as cotações.
func (s *Session) Detach(eventID string) bool {
	return s.Supervisor.Detach(eventID)
}

// CloseEvent é o fim do evento: desanexa e limpa o cache.
func (s *Session) CloseEvent(ctx context.Context, eventID string) {
	s.Supervisor.Detach(eventID)
	s.Feed.CloseEvent(ctx, eventID)
}

// Notices devolve os avisos de drift mais recentes, do mais antigo ao mais novo.
func (s *Session) Notices() []reconcile.DriftNotice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]reconcile.DriftNotice, len(s.notices))
	copy(out, s.notices)
	return out
}

func (s *Session) recordNotice(n reconcile.DriftNotice) {
	s.mu.Lock()
	s.notices = append(s.notices, n)
	if len(s.notices) > maxNotices {
		s.notices = s.notices[len(s.notices)-maxNotices:]
	}
	s.mu.Unlock()
}

func (s *Session) Close() {
	s.Supervisor.Close()
}
