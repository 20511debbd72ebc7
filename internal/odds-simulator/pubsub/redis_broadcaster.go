package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
	"github.com/radieske/sports-bet-cart/pkg/contracts/topics"
)

// RedisBroadcaster publica cada cotação alterada no canal de broadcast,
// consumido pelo RedisStream do carrinho.
type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = topics.OddsBroadcast
	}
	return &RedisBroadcaster{r: r, channel: channel}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, q events.OddsQuote) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, payload).Err()
}
