// Package httpapi expõe carrinho e feed para a camada de apresentação.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-cart/internal/betcart/session"
)

type API struct {
	Session     *session.Session
	Log         *zap.Logger
	CORSOrigins []string
}

func (a *API) Router() http.Handler {
	if a.Log == nil {
		a.Log = zap.NewNop()
	}
	origins := a.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(a.Log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/v1/cart", func(r chi.Router) {
		r.Get("/", a.getCart)
		r.Delete("/", a.clearCart)
		r.Post("/lines", a.addLine)
		r.Patch("/lines/{id}", a.updateStake)
		r.Delete("/lines/{id}", a.removeLine)
		r.Post("/submit", a.submit)
		r.Get("/result", a.lastResult)
		r.Get("/notices", a.notices)
	})

	r.Route("/v1/events/{id}", func(r chi.Router) {
		r.Post("/attach", a.attach)
		r.Delete("/attach", a.detach)
		r.Delete("/", a.closeEvent)
		r.Get("/health", a.health)
		r.Get("/odds", a.getOdds)
		r.Get("/trends", a.getTrends)
		r.Get("/volume", a.getVolume)
		r.Get("/statistics", a.getStatistics)
	})
	r.Get("/v1/subscriptions", a.subscriptions)

	return r
}

// requestLogger registra método, rota, status e latência de cada request.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
