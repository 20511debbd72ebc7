package cart

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-cart/internal/shared/apperr"
	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
)

// Submit envia as linhas em ordem, parando na primeira falha.
//
// O carrinho vai para SUBMITTING antes de qualquer chamada de rede, o que
// barra um segundo submit. Sempre termina em OPEN, inclusive em panic.
// Cancelar ctx não interrompe o envio.
func (c *Cart) Submit(ctx context.Context) (res SubmitResult, err error) {
	const op = "cart.Submit"

	c.mu.Lock()
	if c.state != StateOpen {
		st := c.state
		c.mu.Unlock()
		return SubmitResult{}, invalidState(op, st)
	}
	if len(c.lines) == 0 {
		c.mu.Unlock()
		return SubmitResult{}, apperr.Validation(op, "cart is empty")
	}
	pending := make([]Line, len(c.lines))
	copy(pending, c.lines)
	c.state = StateSubmitting
	c.mu.Unlock()
	c.fire(StateOpen, StateSubmitting)

	ctx = context.WithoutCancel(ctx)
	res = SubmitResult{State: StatePartialFailure, StartedAt: c.now()}

	defer func() {
		res.FinishedAt = c.now()
		c.mu.Lock()
		if res.State == StateSuccess {
			c.lines = nil
		}
		c.state = StateOpen
		last := res
		c.last = &last
		c.mu.Unlock()

		c.fire(StateSubmitting, res.State)
		c.fire(res.State, StateOpen)
	}()

	for i, l := range pending {
		out, bet, lerr := c.submitLine(ctx, l)
		res.Lines = append(res.Lines, out)
		if lerr != nil {
			res.Failed = 1
			res.Remaining = len(pending) - i - 1
			c.log.Warn("submission interrupted",
				zap.String("line_id", l.ID),
				zap.Int("succeeded", res.Succeeded),
				zap.Int("remaining", res.Remaining),
				zap.Error(lerr),
			)
			return res, &PartialSubmissionError{
				Succeeded: res.Succeeded,
				Failed:    res.Failed,
				Remaining: res.Remaining,
				LineID:    l.ID,
				Err:       lerr,
			}
		}

		// persistida: sai do carrinho na hora
		c.mu.Lock()
		if j := c.indexLocked(l.ID); j >= 0 {
			c.lines = append(c.lines[:j], c.lines[j+1:]...)
		}
		c.mu.Unlock()
		res.Succeeded++

		c.afterPersist(ctx, l, out, bet)
	}

	res.State = StateSuccess
	c.log.Info("cart submitted", zap.Int("bets", res.Succeeded))
	return res, nil
}

func (c *Cart) submitLine(ctx context.Context, l Line) (LineOutcome, api.BetRecord, error) {
	out := LineOutcome{
		LineID:     l.ID,
		EventID:    l.EventID,
		MarketCode: l.MarketCode,
		OddsAtAdd:  l.OddsAtAdd,
	}

	r, err := c.resolver.ResolveForSubmit(l.EventID, l.MarketCode, l.OddsAtAdd)
	if err != nil {
		out.Error = err.Error()
		return out, api.BetRecord{}, err
	}
	out.OddsSent, out.Confirmed, out.Drifted = r.Odds, r.Confirmed, r.Drifted

	bet, err := c.submitter.CreateBet(ctx, api.CreateBetRequest{
		EventID:     l.EventID,
		MarketCode:  l.MarketCode,
		Stake:       l.Stake,
		Odds:        r.Odds,
		Prediction:  l.PredictionLabel,
		Detail:      l.DetailCode,
		Unconfirmed: !r.Confirmed,
	})
	if err != nil {
		out.Error = err.Error()
		return out, api.BetRecord{}, err
	}
	out.BetID = bet.BetID
	return out, bet, nil
}

// afterPersist: register-bet e bet_placed. Falhas aqui só geram log; a
// aposta já está persistida.
func (c *Cart) afterPersist(ctx context.Context, l Line, out LineOutcome, bet api.BetRecord) {
	if c.registrar != nil {
		quotes, err := c.registrar.RegisterBet(ctx, api.RegisterBetRequest{
			EventID:     l.EventID,
			OutcomeCode: l.MarketCode,
			Amount:      l.Stake,
			OddsUsed:    out.OddsSent,
		})
		if err != nil {
			c.log.Warn("register bet for odds update failed", zap.String("bet_id", bet.BetID), zap.Error(err))
		}
		if c.sink != nil {
			for _, q := range quotes {
				if _, err := c.sink.ApplyUpdate(ctx, q); err != nil {
					c.log.Debug("recomputed quote rejected", zap.Error(err))
				}
			}
		}
	}

	if c.publisher != nil {
		drift, _ := out.OddsSent.Sub(out.OddsAtAdd).Float64()
		err := c.publisher.PublishBetPlaced(ctx, events.BetPlaced{
			BetID:       bet.BetID,
			LineID:      l.ID,
			EventID:     l.EventID,
			MarketCode:  l.MarketCode,
			Prediction:  l.PredictionLabel,
			Stake:       l.Stake.String(),
			OddValue:    out.OddsSent.String(),
			OddsAtAdd:   out.OddsAtAdd.String(),
			Unconfirmed: !out.Confirmed,
			Drift:       drift,
			TsUnixMs:    c.now().UnixMilli(),
		})
		if err != nil {
			c.log.Warn("publish bet_placed failed", zap.String("bet_id", bet.BetID), zap.Error(err))
		}
	}
}
