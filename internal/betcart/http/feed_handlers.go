package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/sports-bet-cart/internal/betcart/feed"
	"github.com/radieske/sports-bet-cart/internal/betcart/subscription"
	"github.com/radieske/sports-bet-cart/internal/shared/apperr"
	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
)

// feedView embrulha uma leitura do feed. Stale indica que o colaborador
// falhou e os dados vieram do cache.
type feedView struct {
	EventID string `json:"event_id"`
	Data    any    `json:"data"`
	Stale   bool   `json:"stale"`
	Notice  string `json:"notice,omitempty"`
}

type healthView struct {
	Attached     bool                `json:"attached"`
	Subscription subscription.Health `json:"subscription"`
	Feed         feed.Status         `json:"feed"`
}

// writeView aplica a política do caminho de leitura: com dado em cache a
// falha vira aviso; sem nada em cache, vira erro.
func writeView(w http.ResponseWriter, eventID string, data any, empty bool, err error) {
	if err != nil && empty {
		writeError(w, err)
		return
	}
	v := feedView{EventID: eventID, Data: data}
	if err != nil {
		v.Stale = true
		v.Notice = err.Error()
	}
	writeJSON(w, http.StatusOK, v)
}

func refresh(r *http.Request) bool {
	v := r.URL.Query().Get("refresh")
	return v == "1" || v == "true"
}

func (a *API) attach(w http.ResponseWriter, r *http.Request) {
	h := a.Session.Attach(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, h)
}

func (a *API) detach(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !a.Session.Detach(id) {
		writeError(w, apperr.New(apperr.KindNotFound, "httpapi.detach", "event "+id+" not attached"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) closeEvent(w http.ResponseWriter, r *http.Request) {
	a.Session.CloseEvent(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h, attached := a.Session.Supervisor.Health(id)
	writeJSON(w, http.StatusOK, healthView{Attached: attached, Subscription: h, Feed: a.Session.Feed.Status(id)})
}

func (a *API) subscriptions(w http.ResponseWriter, _ *http.Request) {
	ids := a.Session.Supervisor.Attached()
	out := make([]subscription.Health, 0, len(ids))
	for _, id := range ids {
		if h, ok := a.Session.Supervisor.Health(id); ok {
			out = append(out, h)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// getOdds lê do cache; ?refresh=true força um LoadOdds no colaborador.
func (a *API) getOdds(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !refresh(r) {
		writeView(w, id, a.Session.Feed.Quotes(id), false, nil)
		return
	}
	quotes, err := a.Session.Feed.LoadOdds(r.Context(), id)
	writeView(w, id, quotes, len(quotes) == 0, err)
}

func (a *API) getTrends(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f := api.TrendFilter{Direction: api.Direction(strings.ToUpper(r.URL.Query().Get("direction")))}
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, apperr.Validation("httpapi.getTrends", "limit must be a non-negative integer"))
			return
		}
		f.Limit = n
	}
	switch f.Direction {
	case "", api.DirectionUp, api.DirectionDown, api.DirectionStable:
	default:
		writeError(w, apperr.Validation("httpapi.getTrends", "direction must be UP, DOWN or STABLE"))
		return
	}

	if !refresh(r) {
		writeView(w, id, a.Session.Feed.Trends(id, f), false, nil)
		return
	}
	trends, err := a.Session.Feed.LoadTrends(r.Context(), id, f)
	writeView(w, id, trends, len(trends) == 0, err)
}

func (a *API) getVolume(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	vol, err := a.Session.Feed.LoadVolume(r.Context(), id)
	writeView(w, id, vol, len(vol) == 0, err)
}

func (a *API) getStatistics(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := a.Session.Feed.LoadStatistics(r.Context(), id)
	_, cached := a.Session.Feed.Statistics(id)
	writeView(w, id, st, !cached, err)
}
