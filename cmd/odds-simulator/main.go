package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-cart/internal/odds-simulator/book"
	"github.com/radieske/sports-bet-cart/internal/odds-simulator/cronrunner"
	httpapi "github.com/radieske/sports-bet-cart/internal/odds-simulator/http"
	"github.com/radieske/sports-bet-cart/internal/odds-simulator/pubsub"
	"github.com/radieske/sports-bet-cart/internal/odds-simulator/repo"
	"github.com/radieske/sports-bet-cart/internal/odds-simulator/ws"
	"github.com/radieske/sports-bet-cart/internal/shared/cache"
	"github.com/radieske/sports-bet-cart/internal/shared/config"
	"github.com/radieske/sports-bet-cart/internal/shared/db"
	"github.com/radieske/sports-bet-cart/internal/shared/logger"
	"github.com/radieske/sports-bet-cart/internal/shared/metrics"
)

// Métricas Prometheus do simulador
var (
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simulator_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	wsMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_ws_messages_sent_total",
		Help: "Total de mensagens WS enviadas",
	})
	betsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulator_bets_total",
		Help: "Apostas recebidas por resultado",
	}, []string{"result"})
	quotesPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_quotes_published_total",
		Help: "Cotações publicadas (drift, register-bet, suspensão)",
	})
)

func init() {
	prometheus.MustRegister(wsConnections, wsMessagesSent, betsTotal, quotesPublished)
}

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "odds-simulator"
	}

	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	var checks []metrics.Check

	// apostas: Postgres se configurado, senão memória
	var store repo.Store = repo.NewMemory()
	if cfg.PostgresDSN != "" {
		pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()

		p := repo.NewPostgres(pg)
		if err := p.EnsureSchema(ctx); err != nil {
			log.Fatal("failed to ensure schema", zap.Error(err))
		}
		store = p
		log.Info("postgres connected")
	}
	checks = append(checks, metrics.Check{Name: "store", Fn: store.Ping})

	hub := ws.NewHub(nil, logger.Component(log, "ws"), ws.Hooks{
		OnConnect:    wsConnections.Inc,
		OnDisconnect: wsConnections.Dec,
		OnSent:       wsMessagesSent.Inc,
	})
	publishers := []httpapi.Publisher{hub}

	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		publishers = append(publishers, pubsub.NewRedisBroadcaster(rdb, cfg.RedisPubSubChannel))
		checks = append(checks, metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }})
		log.Info("redis broadcaster ready", zap.String("channel", cfg.RedisPubSubChannel))
	}

	sim := &httpapi.Server{
		Book:       book.New(book.DefaultCatalog(time.Now())),
		Store:      store,
		Publishers: publishers,
		WS:         hub.HandleWS,
		Log:        logger.Component(log, "http"),
		RejectRate: cfg.RejectRate,
		Hooks: httpapi.Hooks{
			OnBet: func(accepted bool) {
				if accepted {
					betsTotal.WithLabelValues("accepted").Inc()
					return
				}
				betsTotal.WithLabelValues("rejected").Inc()
			},
			OnPublished: func(n int) { quotesPublished.Add(float64(n)) },
		},
	}

	runner := cronrunner.New(logger.Component(log, "cron"), ctx)
	if _, err := runner.Add("odds-drift", cfg.DriftSchedule, func(ctx context.Context) {
		if n := sim.Drift(ctx, cfg.DriftMaxPct); n > 0 {
			log.Debug("odds drifted", zap.Int("quotes", n))
		}
	}); err != nil {
		log.Fatal("invalid drift schedule", zap.String("schedule", cfg.DriftSchedule), zap.Error(err))
	}
	runner.Start()

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, checks...)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           sim.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("simulator listening", zap.String("addr", srv.Addr), zap.String("drift", cfg.DriftSchedule))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	runner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
