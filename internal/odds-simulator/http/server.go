// Package httpapi é a superfície REST + WebSocket do simulador de odds.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-cart/internal/odds-simulator/book"
	"github.com/radieske/sports-bet-cart/internal/odds-simulator/repo"
	"github.com/radieske/sports-bet-cart/internal/shared/apperr"
	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
)

// Publisher recebe cada cotação alterada (hub WS, broadcast Redis).
type Publisher interface {
	Publish(ctx context.Context, q events.OddsQuote) error
}

// Hooks de métricas; qualquer campo pode ser nil.
type Hooks struct {
	OnBet       func(accepted bool)
	OnPublished func(n int)
}

type Server struct {
	Book       *book.Book
	Store      repo.Store
	Publishers []Publisher
	WS         http.HandlerFunc // handler do hub; nil desliga /ws
	Log        *zap.Logger
	Hooks      Hooks

	// RejectRate simula recusas do backend (0..1) para exercitar falhas parciais
	RejectRate float64

	rngMu sync.Mutex
	rng   *rand.Rand
}

func (s *Server) Router() http.Handler {
	if s.Log == nil {
		s.Log = zap.NewNop()
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/v1/events", s.listEvents)
	r.Get("/v1/events/{id}/odds", s.getOdds)
	r.Get("/v1/events/{id}/volume", s.getVolume)
	r.Get("/v1/events/{id}/statistics", s.getStatistics)
	r.Post("/v1/events/{id}/outcomes/{code}/suspend", s.setActive(false))
	r.Post("/v1/events/{id}/outcomes/{code}/resume", s.setActive(true))
	r.Get("/v1/trends", s.getTrends)
	r.Post("/v1/odds/register-bet", s.registerBet)
	r.Post("/v1/bets", s.createBet)
	r.Get("/v1/bets/{id}", s.getBet)
	if s.WS != nil {
		r.Get("/ws", s.WS)
	}
	return r
}

// Drift oscila os preços e publica as cotações alteradas. Usado pelo cron.
func (s *Server) Drift(ctx context.Context, maxPct float64) int {
	changed := s.Book.Drift(maxPct)
	s.publish(ctx, changed)
	return len(changed)
}

func (s *Server) publish(ctx context.Context, quotes []events.OddsQuote) {
	if len(quotes) == 0 {
		return
	}
	for _, p := range s.Publishers {
		for _, q := range quotes {
			if err := p.Publish(ctx, q); err != nil {
				s.Log.Warn("publish quote failed", zap.String("event_id", q.EventID), zap.Error(err))
				break
			}
		}
	}
	if s.Hooks.OnPublished != nil {
		s.Hooks.OnPublished(len(quotes))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindNetwork:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Kind: string(apperr.KindOf(err))})
}

func (s *Server) listEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Book.Events())
}

func (s *Server) getOdds(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.Book.Odds(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

func (s *Server) getVolume(w http.ResponseWriter, r *http.Request) {
	vol, err := s.Book.Volume(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vol)
}

func (s *Server) getStatistics(w http.ResponseWriter, r *http.Request) {
	st, err := s.Book.Statistics(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) getTrends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := api.TrendFilter{Direction: api.Direction(strings.ToUpper(q.Get("direction")))}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, apperr.Validation("simulator.getTrends", "invalid limit"))
			return
		}
		f.Limit = n
	}
	trends, err := s.Book.Trends(q.Get("eventId"), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

func (s *Server) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := s.Book.SetActive(chi.URLParam(r, "id"), chi.URLParam(r, "code"), active)
		if err != nil {
			writeError(w, err)
			return
		}
		s.publish(r.Context(), []events.OddsQuote{q})
		writeJSON(w, http.StatusOK, q)
	}
}

// registerBet registra o stake e devolve as odds recalculadas, que também
// saem pelo stream.
func (s *Server) registerBet(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("simulator.registerBet", "bad json"))
		return
	}
	changed, err := s.Book.RegisterBet(req)
	if err != nil {
		writeError(w, err)
		return
	}
	s.publish(r.Context(), changed)
	writeJSON(w, http.StatusOK, changed)
}

func (s *Server) createBet(w http.ResponseWriter, r *http.Request) {
	const op = "simulator.createBet"

	var req api.CreateBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation(op, "bad json"))
		return
	}
	if req.EventID == "" || req.MarketCode == "" || !req.Stake.IsPositive() || !req.Odds.IsPositive() {
		writeError(w, apperr.Validation(op, "invalid payload"))
		return
	}
	if _, err := s.Book.Odds(req.EventID); err != nil {
		writeError(w, err)
		return
	}

	if s.reject() {
		s.bet(false)
		writeError(w, apperr.Network(op, errors.New("supplier_reject_mock")))
		return
	}

	rec, err := s.Store.Create(r.Context(), req)
	if err != nil {
		s.bet(false)
		s.Log.Error("persist bet failed", zap.Error(err))
		writeError(w, err)
		return
	}
	s.bet(true)
	s.Log.Info("bet accepted",
		zap.String("bet_id", rec.BetID),
		zap.String("event_id", rec.EventID),
		zap.String("market", rec.MarketCode),
		zap.String("odds", rec.Odds.String()),
		zap.Bool("unconfirmed", rec.Unconfirmed),
	)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, apperr.New(apperr.KindNotFound, "simulator.getBet", "bet not found"))
		return
	}
	rec, err := s.Store.Get(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, apperr.New(apperr.KindNotFound, "simulator.getBet", "bet not found"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) reject() bool {
	if s.RejectRate <= 0 {
		return false
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64() < s.RejectRate
}

func (s *Server) bet(accepted bool) {
	if s.Hooks.OnBet != nil {
		s.Hooks.OnBet(accepted)
	}
}
