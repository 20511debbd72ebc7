package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
)

const schema = `
CREATE TABLE IF NOT EXISTS cart_bets (
	id          UUID PRIMARY KEY,
	event_id    TEXT NOT NULL,
	market_code TEXT NOT NULL,
	stake       NUMERIC(14,2) NOT NULL,
	odds        NUMERIC(10,2) NOT NULL,
	prediction  TEXT NOT NULL DEFAULT '',
	detail      TEXT NOT NULL DEFAULT '',
	unconfirmed BOOLEAN NOT NULL DEFAULT FALSE,
	status      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres implementa Store sobre a tabela cart_bets.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// EnsureSchema cria a tabela se ainda não existir
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *Postgres) Create(ctx context.Context, req api.CreateBetRequest) (api.BetRecord, error) {
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
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO cart_bets (id,event_id,market_code,stake,odds,prediction,detail,unconfirmed,status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		rec.BetID, rec.EventID, rec.MarketCode, rec.Stake, rec.Odds, rec.Prediction, rec.Detail, rec.Unconfirmed, rec.Status,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return api.BetRecord{}, err
	}
	return rec, nil
}

func (p *Postgres) Get(ctx context.Context, betID string) (api.BetRecord, error) {
	var rec api.BetRecord
	err := p.db.QueryRowContext(ctx, `
		SELECT id,event_id,market_code,stake,odds,prediction,detail,unconfirmed,status,created_at
		FROM cart_bets WHERE id=$1`, betID,
	).Scan(&rec.BetID, &rec.EventID, &rec.MarketCode, &rec.Stake, &rec.Odds,
		&rec.Prediction, &rec.Detail, &rec.Unconfirmed, &rec.Status, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return api.BetRecord{}, ErrNotFound
	}
	return rec, err
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
