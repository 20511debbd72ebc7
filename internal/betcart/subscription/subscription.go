// Package subscription mantém um único caminho de dados ativo por evento:
// canal push + poll periódico de consistência.
package subscription

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
)

// Conn é uma conexão push aberta para um evento.
type Conn interface {
	// Read bloqueia até a próxima cotação ou erro
	Read(ctx context.Context) (events.OddsQuote, error)
	Close() error
}

// Stream abre canais push. Implementações: WSStream, RedisStream.
type Stream interface {
	Dial(ctx context.Context, eventID string) (Conn, error)
}

// Feed é o subconjunto do cache de odds usado pelo supervisor.
type Feed interface {
	LoadOdds(ctx context.Context, eventID string) ([]events.OddsQuote, error)
	ApplyUpdate(ctx context.Context, q events.OddsQuote) (bool, error)
}

// Health é o estado de conexão exposto para a camada de apresentação.
type Health struct {
	EventID           string    `json:"event_id"`
	Connected         bool      `json:"connected"`
	LastUpdateAt      time.Time `json:"last_update_at,omitempty"`
	ReconnectAttempts int       `json:"reconnect_attempts"`
	PollOnly          bool      `json:"poll_only"`
}

type Options struct {
	PollInterval time.Duration
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int // falhas consecutivas antes de cair em poll-only
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 30 * time.Second
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	return o
}

// Hooks de métricas; qualquer campo pode ser nil.
type Hooks struct {
	OnPushError func()
	OnPollOnly  func()
	OnPoll      func(ok bool)
}

// Subscription é o handle de um evento observado. Start/Stop são explícitos;
// Stop só retorna depois que push, poll e aplicação encerraram.
type Subscription struct {
	eventID string
	stream  Stream
	feed    Feed
	opts    Options
	hooks   Hooks
	log     *zap.Logger

	// canal de consumidor único entre o push e a aplicação no cache
	quotes chan events.OddsQuote

	mu     sync.Mutex
	health Health

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func newSubscription(eventID string, stream Stream, feed Feed, opts Options, hooks Hooks, log *zap.Logger) *Subscription {
	return &Subscription{
		eventID: eventID,
		stream:  stream,
		feed:    feed,
		opts:    opts,
		hooks:   hooks,
		log:     log.With(zap.String("event_id", eventID)),
		quotes:  make(chan events.OddsQuote, 64),
		health:  Health{EventID: eventID, PollOnly: stream == nil},
	}
}

func (s *Subscription) EventID() string { return s.eventID }

// Start dispara push, poll e aplicação. Chamadas repetidas não têm efeito.
func (s *Subscription) Start(parent context.Context) {
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		s.cancel = cancel

		s.wg.Add(2)
		go s.runApply(ctx)
		go s.runPoll(ctx)
		if s.stream != nil {
			s.wg.Add(1)
			go s.runPush(ctx)
		}
		s.log.Info("subscription started", zap.Duration("poll_interval", s.opts.PollInterval))
	})
}

// Stop encerra push e poll e espera as goroutines terminarem.
func (s *Subscription) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()

		s.mu.Lock()
		s.health.Connected = false
		s.mu.Unlock()
		s.log.Info("subscription stopped")
	})
}

func (s *Subscription) Health() Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health
}

func (s *Subscription) runApply(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-s.quotes:
			if _, err := s.feed.ApplyUpdate(ctx, q); err != nil {
				s.log.Warn("push quote rejected", zap.String("outcome", q.OutcomeCode), zap.Error(err))
			}
		}
	}
}

// runPoll carrega as odds já no início e depois a cada PollInterval,
// independente da saúde do push.
func (s *Subscription) runPoll(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		s.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Subscription) poll(ctx context.Context) {
	_, err := s.feed.LoadOdds(ctx, s.eventID)
	if ctx.Err() != nil {
		return
	}
	if s.hooks.OnPoll != nil {
		s.hooks.OnPoll(err == nil)
	}
	if err != nil {
		// o cache já manteve os últimos valores; aqui é só aviso
		s.log.Debug("poll failed", zap.Error(err))
		return
	}
	s.touch()
}

func (s *Subscription) runPush(ctx context.Context) {
	defer s.wg.Done()

	delay := s.opts.BaseDelay
	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.stream.Dial(ctx, s.eventID)
		if err == nil {
			s.setConnected(true, failures)
			s.log.Info("push channel connected")

			// só uma conexão estável zera o backoff: entregou cotação ou
			// ficou de pé por pelo menos MaxDelay
			connectedAt := time.Now()
			var delivered bool
			delivered, err = s.readLoop(ctx, conn)
			_ = conn.Close()
			if delivered || time.Since(connectedAt) >= s.opts.MaxDelay {
				failures = 0
				delay = s.opts.BaseDelay
			}
		}
		if ctx.Err() != nil {
			return
		}

		failures++
		s.setConnected(false, failures)
		if s.hooks.OnPushError != nil {
			s.hooks.OnPushError()
		}
		s.log.Warn("push channel error", zap.Int("attempt", failures), zap.Duration("retry_in", delay), zap.Error(err))

		if failures >= s.opts.MaxAttempts {
			if s.hooks.OnPollOnly != nil {
				s.hooks.OnPollOnly()
			}
			s.mu.Lock()
			s.health.PollOnly = true
			s.mu.Unlock()
			s.log.Warn("push disabled, falling back to poll only", zap.Int("attempts", failures))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > s.opts.MaxDelay {
			delay = s.opts.MaxDelay
		}
	}
}

func (s *Subscription) readLoop(ctx context.Context, conn Conn) (delivered bool, err error) {
	// conexões que não observam ctx (WebSocket) são destravadas pelo Close
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		q, err := conn.Read(ctx)
		if err != nil {
			return delivered, err
		}
		if q.EventID != s.eventID {
			continue
		}
		if !delivered {
			delivered = true
			s.setConnected(true, 0)
		}
		s.touch()
		select {
		case s.quotes <- q:
		case <-ctx.Done():
			return delivered, ctx.Err()
		}
	}
}

func (s *Subscription) setConnected(connected bool, attempts int) {
	s.mu.Lock()
	s.health.Connected = connected
	s.health.ReconnectAttempts = attempts
	s.mu.Unlock()
}

func (s *Subscription) touch() {
	s.mu.Lock()
	s.health.LastUpdateAt = time.Now()
	s.mu.Unlock()
}
