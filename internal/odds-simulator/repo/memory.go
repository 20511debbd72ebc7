package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
)

// Memory é usado quando não há POSTGRES_DSN.
type Memory struct {
	mu   sync.RWMutex
	bets map[string]api.BetRecord
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{bets: make(map[string]api.BetRecord), now: time.Now}
}

func (m *Memory) Create(_ context.Context, req api.CreateBetRequest) (api.BetRecord, error) {
	rec := api.BetRecord{
		BetID:       uuid.NewString(),
		EventID:     req.EventID,
		MarketCode:  req.MarketCode,
		Stake:       req.Stake,
		Odds:        req.Odds,
		Prediction:  req.Prediction,
		Detail:      req.Detail,
		Unconfirmed: req.Unconfirmed,
		Status:      StatusAccepted,
		CreatedAt:   m.now().UTC(),
	}
	m.mu.Lock()
	m.bets[rec.BetID] = rec
	m.mu.Unlock()
	return rec, nil
}

func (m *Memory) Get(_ context.Context, betID string) (api.BetRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.bets[betID]
	if !ok {
		return api.BetRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) Ping(context.Context) error { return nil }
