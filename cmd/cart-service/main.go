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
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-cart/internal/betcart/cart"
	"github.com/radieske/sports-bet-cart/internal/betcart/feed"
	httpapi "github.com/radieske/sports-bet-cart/internal/betcart/http"
	"github.com/radieske/sports-bet-cart/internal/betcart/oddsapi"
	"github.com/radieske/sports-bet-cart/internal/betcart/reconcile"
	"github.com/radieske/sports-bet-cart/internal/betcart/session"
	"github.com/radieske/sports-bet-cart/internal/betcart/subscription"
	"github.com/radieske/sports-bet-cart/internal/shared/cache"
	"github.com/radieske/sports-bet-cart/internal/shared/config"
	"github.com/radieske/sports-bet-cart/internal/shared/kafka"
	"github.com/radieske/sports-bet-cart/internal/shared/logger"
	"github.com/radieske/sports-bet-cart/internal/shared/metrics"
)

var (
	feedApplied = prometheus.NewCounter(prometheus.CounterOpts{Name: "cart_feed_updates_applied_total", Help: "cotações aplicadas no cache"})
	feedStale   = prometheus.NewCounter(prometheus.CounterOpts{Name: "cart_feed_updates_stale_total", Help: "cotações descartadas por serem antigas"})
	feedErrors  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "cart_feed_load_errors_total", Help: "falhas de carga por visão"}, []string{"view"})
	pushErrors  = prometheus.NewCounter(prometheus.CounterOpts{Name: "cart_push_errors_total", Help: "falhas de conexão do stream"})
	pollOnly    = prometheus.NewCounter(prometheus.CounterOpts{Name: "cart_push_poll_only_total", Help: "assinaturas que caíram para só poll"})
	polls       = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "cart_polls_total", Help: "polls REST por resultado"}, []string{"result"})
	drifts      = prometheus.NewCounter(prometheus.CounterOpts{Name: "cart_odds_drift_total", Help: "divergências entre odd adicionada e odd ao vivo"})
	cartState   = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "cart_state", Help: "estado atual do carrinho (1 = ativo)"}, []string{"state"})
)

func init() {
	prometheus.MustRegister(feedApplied, feedStale, feedErrors, pushErrors, pollOnly, polls, drifts, cartState)
}

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "cart-service"
	}

	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	collab := oddsapi.New(cfg.OddsAPIURL, cfg.HTTPTimeout)

	var checks []metrics.Check
	tolerance := decimal.NewFromFloat(cfg.DriftTolerance)
	opts := session.Options{
		Subscription: subscription.Options{
			PollInterval: cfg.PollInterval,
			BaseDelay:    cfg.ReconnectBaseDelay,
			MaxDelay:     cfg.MaxReconnectDelay,
			MaxAttempts:  cfg.MaxReconnectAttempts,
		},
		Tolerance:  &tolerance,
		StrictLive: cfg.StrictLive,
		Hooks:      hooks(),
	}

	// Redis é opcional: espelho do cache e, se STREAM_SOURCE=redis, o stream
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		log.Info("redis connected", zap.String("addr", cfg.RedisAddr))

		opts.Mirror = feed.NewRedisMirror(rdb, cfg.MirrorTTL)
		checks = append(checks, metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }})
	}

	switch cfg.StreamSource {
	case "redis":
		if rdb == nil {
			log.Fatal("STREAM_SOURCE=redis requires REDIS_ADDR")
		}
		opts.Stream = subscription.NewRedisStream(rdb, cfg.RedisPubSubChannel, logger.Component(log, "stream"))
	case "ws":
		opts.Stream = subscription.NewWSStream(cfg.OddsStreamURL, logger.Component(log, "stream"))
	case "none", "":
		log.Warn("push stream disabled, running poll-only")
	default:
		log.Fatal("unknown STREAM_SOURCE", zap.String("source", cfg.StreamSource))
	}

	var writer *kafka.Writer
	if cfg.KafkaBrokers != "" {
		writer = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
		defer writer.Close()
		opts.Publisher = cart.NewKafkaPublisher(writer)
		log.Info("kafka writer ready", zap.String("topic", cfg.TopicBetPlaced))
	}

	sess := session.New(collab, log, opts)
	cartState.WithLabelValues(string(cart.StateOpen)).Set(1)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, checks...)

	api := &httpapi.API{Session: sess, Log: logger.Component(log, "http"), CORSOrigins: cfg.CORSOrigins}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("cart api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	sess.Close()
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func hooks() session.Hooks {
	return session.Hooks{
		Feed: feed.Hooks{
			OnApplied:   feedApplied.Inc,
			OnStale:     feedStale.Inc,
			OnLoadError: func(view string) { feedErrors.WithLabelValues(view).Inc() },
		},
		Subscription: subscription.Hooks{
			OnPushError: pushErrors.Inc,
			OnPollOnly:  pollOnly.Inc,
			OnPoll: func(ok bool) {
				if ok {
					polls.WithLabelValues("ok").Inc()
					return
				}
				polls.WithLabelValues("error").Inc()
			},
		},
		OnDrift: func(reconcile.DriftNotice) { drifts.Inc() },
		OnCartState: func(from, to cart.State) {
			cartState.WithLabelValues(string(from)).Set(0)
			cartState.WithLabelValues(string(to)).Set(1)
		},
	}
}
