package cart

import (
	"context"

	"github.com/radieske/sports-bet-cart/internal/shared/kafka"
	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
)

// KafkaPublisher publica bet_placed; a chave é o evento para manter a ordem
// por partida.
type KafkaPublisher struct {
	Writer kafka.MessageWriter
}

func NewKafkaPublisher(w kafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Writer: w}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	return kafka.WriteJSON(ctx, p.Writer, e.EventID, e)
}
