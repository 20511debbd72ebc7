// Package cart guarda as linhas pendentes e conduz o submit.
package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-cart/internal/betcart/reconcile"
	"github.com/radieske/sports-bet-cart/internal/shared/apperr"
	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
)

// Resolver é o motor de reconciliação (reconcile.Engine satisfaz).
type Resolver interface {
	ResolveForAdd(eventID, outcomeCode string, displayed decimal.Decimal) (reconcile.Resolution, error)
	ResolveForSubmit(eventID, outcomeCode string, oddsAtAdd decimal.Decimal) (reconcile.Resolution, error)
}

// Submitter é o colaborador de criação de aposta.
type Submitter interface {
	CreateBet(ctx context.Context, req api.CreateBetRequest) (api.BetRecord, error)
}

// Registrar avisa o servidor do stake para recalcular as odds.
type Registrar interface {
	RegisterBet(ctx context.Context, req api.RegisterBetRequest) ([]events.OddsQuote, error)
}

// QuoteSink recebe as odds recalculadas (feed.Cache satisfaz).
type QuoteSink interface {
	ApplyUpdate(ctx context.Context, q events.OddsQuote) (bool, error)
}

type Publisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
}

type Option func(*Cart)

// WithRegistrar liga o register-bet após cada linha persistida; as odds
// devolvidas vão para sink.
func WithRegistrar(r Registrar, sink QuoteSink) Option {
	return func(c *Cart) { c.registrar, c.sink = r, sink }
}

func WithPublisher(p Publisher) Option { return func(c *Cart) { c.publisher = p } }

// WithStateHook observa as transições de estado. Chamado fora do lock.
func WithStateHook(fn func(from, to State)) Option { return func(c *Cart) { c.onState = fn } }

func WithClock(now func() time.Time) Option { return func(c *Cart) { c.now = now } }

func WithIDFunc(fn func() string) Option { return func(c *Cart) { c.newID = fn } }

type Cart struct {
	resolver  Resolver
	submitter Submitter
	registrar Registrar
	sink      QuoteSink
	publisher Publisher
	onState   func(from, to State)
	now       func() time.Time
	newID     func() string
	log       *zap.Logger

	// mu nunca é mantido durante chamadas de rede
	mu    sync.Mutex
	state State
	lines []Line
	last  *SubmitResult
}

func New(resolver Resolver, submitter Submitter, log *zap.Logger, opts ...Option) *Cart {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Cart{
		resolver:  resolver,
		submitter: submitter,
		now:       time.Now,
		newID:     uuid.NewString,
		log:       log,
		state:     StateOpen,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// AddLine inclui uma linha com a odd resolvida pelo motor de reconciliação.
// Um segundo add para o mesmo (evento, mercado) não altera nada e devolve a
// linha existente com erro de validação.
func (c *Cart) AddLine(sel Selection) (Line, error) {
	const op = "cart.AddLine"

	if sel.EventID == "" || sel.MarketCode == "" {
		return Line{}, apperr.Validation(op, "eventId and marketCode are required")
	}
	if !sel.Stake.IsPositive() {
		return Line{}, apperr.Validation(op, "stake must be greater than zero")
	}

	c.mu.Lock()
	if c.state != StateOpen {
		st := c.state
		c.mu.Unlock()
		return Line{}, invalidState(op, st)
	}
	if i := c.indexByMarketLocked(sel.EventID, sel.MarketCode); i >= 0 {
		existing := c.lines[i]
		c.mu.Unlock()
		return existing, apperr.Validation(op, "line already in cart for "+sel.EventID+"/"+sel.MarketCode)
	}
	c.mu.Unlock()

	// leitura do cache; o espelho Redis só entra sem cotação nem valor exibido
	res, err := c.resolver.ResolveForAdd(sel.EventID, sel.MarketCode, sel.DisplayedOdds)
	if err != nil {
		return Line{}, err
	}

	l := Line{
		ID:              c.newID(),
		EventID:         sel.EventID,
		HomeTeam:        sel.HomeTeam,
		AwayTeam:        sel.AwayTeam,
		MatchTime:       sel.MatchTime,
		MarketCode:      sel.MarketCode,
		MarketLabel:     sel.MarketLabel,
		OddsAtAdd:       res.Odds,
		Stake:           sel.Stake,
		PredictionLabel: sel.PredictionLabel,
		DetailCode:      sel.DetailCode,
		AddedAt:         c.now(),
		Confirmed:       res.Confirmed,
	}
	l.recompute()

	c.mu.Lock()
	defer c.mu.Unlock()
	// o estado pode ter mudado enquanto resolvíamos
	if c.state != StateOpen {
		return Line{}, invalidState(op, c.state)
	}
	if i := c.indexByMarketLocked(sel.EventID, sel.MarketCode); i >= 0 {
		return c.lines[i], apperr.Validation(op, "line already in cart for "+sel.EventID+"/"+sel.MarketCode)
	}
	c.lines = append(c.lines, l)
	return l, nil
}

func (c *Cart) RemoveLine(lineID string) error {
	const op = "cart.RemoveLine"

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return invalidState(op, c.state)
	}
	i := c.indexLocked(lineID)
	if i < 0 {
		return apperr.New(apperr.KindNotFound, op, "line "+lineID+" not in cart")
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return nil
}

func (c *Cart) UpdateStake(lineID string, stake decimal.Decimal) (Line, error) {
	const op = "cart.UpdateStake"

	if !stake.IsPositive() {
		return Line{}, apperr.Validation(op, "stake must be greater than zero")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return Line{}, invalidState(op, c.state)
	}
	i := c.indexLocked(lineID)
	if i < 0 {
		return Line{}, apperr.New(apperr.KindNotFound, op, "line "+lineID+" not in cart")
	}
	c.lines[i].Stake = stake
	c.lines[i].recompute()
	return c.lines[i], nil
}

func (c *Cart) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return invalidState("cart.Clear", c.state)
	}
	c.lines = nil
	return nil
}

func (c *Cart) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := make([]Line, len(c.lines))
	copy(lines, c.lines)
	return Snapshot{State: c.state, Lines: lines, Totals: totalsOf(lines)}
}

func (c *Cart) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalsOf(c.lines)
}

func (c *Cart) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastResult devolve o resultado do último submit concluído.
func (c *Cart) LastResult() (SubmitResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return SubmitResult{}, false
	}
	return *c.last, true
}

func (c *Cart) indexLocked(lineID string) int {
	for i := range c.lines {
		if c.lines[i].ID == lineID {
			return i
		}
	}
	return -1
}

func (c *Cart) indexByMarketLocked(eventID, marketCode string) int {
	for i := range c.lines {
		if c.lines[i].EventID == eventID && c.lines[i].MarketCode == marketCode {
			return i
		}
	}
	return -1
}

func (c *Cart) fire(from, to State) {
	if c.onState != nil && from != to {
		c.onState(from, to)
	}
}

func invalidState(op string, st State) error {
	return apperr.New(apperr.KindInvalidState, op, "cart is "+string(st))
}
