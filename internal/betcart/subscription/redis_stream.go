package subscription

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-cart/internal/shared/apperr"
	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
	"github.com/radieske/sports-bet-cart/pkg/contracts/topics"
)

// RedisStream assina o canal Pub/Sub de broadcast de odds.
// Uma assinatura por evento; mensagens de outros eventos são descartadas.
type RedisStream struct {
	Client  *redis.Client
	Channel string
	Log     *zap.Logger
}

func NewRedisStream(client *redis.Client, channel string, log *zap.Logger) *RedisStream {
	if channel == "" {
		channel = topics.OddsBroadcast
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisStream{Client: client, Channel: channel, Log: log}
}

func (s *RedisStream) Dial(ctx context.Context, eventID string) (Conn, error) {
	sub := s.Client.Subscribe(ctx, s.Channel)
	// confirma a inscrição antes de considerar o canal conectado
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, apperr.Network("subscription.RedisStream.Dial", err)
	}
	return &redisConn{sub: sub, eventID: eventID, log: s.Log}, nil
}

type redisConn struct {
	sub     *redis.PubSub
	eventID string
	log     *zap.Logger
}

func (c *redisConn) Read(ctx context.Context) (events.OddsQuote, error) {
	for {
		msg, err := c.sub.ReceiveMessage(ctx)
		if err != nil {
			return events.OddsQuote{}, apperr.Network("subscription.redisConn.Read", err)
		}
		var q events.OddsQuote
		if err := json.Unmarshal([]byte(msg.Payload), &q); err != nil {
			c.log.Warn("invalid broadcast payload", zap.Error(err))
			continue
		}
		if q.EventID != c.eventID {
			continue
		}
		return q, nil
	}
}

func (c *redisConn) Close() error { return c.sub.Close() }
