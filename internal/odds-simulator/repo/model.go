package repo

import (
	"context"
	"errors"

	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
)

const StatusAccepted = "ACCEPTED"

var ErrNotFound = errors.New("bet not found")

// Store persiste as apostas criadas pelo carrinho.
type Store interface {
	Create(ctx context.Context, req api.CreateBetRequest) (api.BetRecord, error)
	Get(ctx context.Context, betID string) (api.BetRecord, error)
	Ping(ctx context.Context) error
}
