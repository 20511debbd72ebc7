package subscription

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Supervisor garante no máximo uma Subscription por evento.
type Supervisor struct {
	feed   Feed
	stream Stream
	opts   Options
	hooks  Hooks
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	subs map[string]*Subscription
}

// NewSupervisor cria o supervisor. stream nil significa poll-only.
func NewSupervisor(feed Feed, stream Stream, opts Options, hooks Hooks, log *zap.Logger) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		feed:   feed,
		stream: stream,
		opts:   opts.withDefaults(),
		hooks:  hooks,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string]*Subscription),
	}
}

// Attach abre push + poll para o evento; se já houver assinatura, devolve a existente.
func (s *Supervisor) Attach(eventID string) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subs[eventID]; ok {
		return sub
	}
	sub := newSubscription(eventID, s.stream, s.feed, s.opts, s.hooks, s.log)
	s.subs[eventID] = sub
	sub.Start(s.ctx)
	return sub
}

// Detach é o teardown obrigatório: fecha o push e cancela o poll.
func (s *Supervisor) Detach(eventID string) bool {
	s.mu.Lock()
	sub, ok := s.subs[eventID]
	delete(s.subs, eventID)
	s.mu.Unlock()

	if !ok {
		return false
	}
	sub.Stop()
	return true
}

func (s *Supervisor) Health(eventID string) (Health, bool) {
	s.mu.Lock()
	sub, ok := s.subs[eventID]
	s.mu.Unlock()
	if !ok {
		return Health{EventID: eventID}, false
	}
	return sub.Health(), true
}

// Attached lista os eventos com assinatura ativa.
func (s *Supervisor) Attached() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.subs))
	for id := range s.subs {
		out = append(out, id)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

// Close desanexa todos os eventos.
func (s *Supervisor) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[string]*Subscription)
	s.mu.Unlock()

	s.cancel()
	for _, sub := range subs {
		sub.Stop()
	}
}
