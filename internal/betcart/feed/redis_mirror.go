package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
)

// RedisMirror replica as cotações em Redis para outros processos.
// Um hash por evento: "odds:event:{eventID}" -> {outcome: OddsQuote JSON}
type RedisMirror struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisMirror(c *redis.Client, ttl time.Duration) *RedisMirror {
	return &RedisMirror{Client: c, TTL: ttl}
}

func keyEvent(eventID string) string { return "odds:event:" + eventID }

// Put grava a cotação e renova o TTL do evento
func (m *RedisMirror) Put(ctx context.Context, q events.OddsQuote) error {
	b, err := json.Marshal(q)
	if err != nil {
		return err
	}
	_, err = m.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, keyEvent(q.EventID), q.OutcomeCode, b)
		if m.TTL > 0 {
			p.Expire(ctx, keyEvent(q.EventID), m.TTL)
		}
		return nil
	})
	return err
}

func (m *RedisMirror) Load(ctx context.Context, eventID string) ([]events.OddsQuote, error) {
	raw, err := m.Client.HGetAll(ctx, keyEvent(eventID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]events.OddsQuote, 0, len(raw))
	for _, v := range raw {
		var q events.OddsQuote
		if err := json.Unmarshal([]byte(v), &q); err != nil {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

// CurrentOdd devolve só o valor corrente; redis.Nil quando não há cotação.
func (m *RedisMirror) CurrentOdd(ctx context.Context, eventID, outcomeCode string) (decimal.Decimal, error) {
	v, err := m.Client.HGet(ctx, keyEvent(eventID), outcomeCode).Bytes()
	if err != nil {
		return decimal.Zero, err
	}
	var q events.OddsQuote
	if err := json.Unmarshal(v, &q); err != nil {
		return decimal.Zero, err
	}
	return q.CurrentValue, nil
}

func (m *RedisMirror) DropEvent(ctx context.Context, eventID string) error {
	return m.Client.Del(ctx, keyEvent(eventID)).Err()
}
