package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	ctopics "github.com/radieske/sports-bet-cart/pkg/contracts/topics"
)

// Config centraliza variáveis de ambiente e parâmetros de execução dos serviços
// Inclui conexões, tópicos, URLs do colaborador, parâmetros do feed e portas
type Config struct {
	Env         string // "local", "dev", "prod"
	ServiceName string // "cart-service" | "odds-simulator"

	PostgresDSN  string // vazio: simulador guarda apostas em memória
	RedisAddr    string // vazio: sem espelho/stream Redis
	KafkaBrokers string // "a:9092,b:9092"; vazio desliga o publisher

	// Tópicos/canais
	TopicBetPlaced     string
	RedisPubSubChannel string

	// Colaborador (API de odds e apostas)
	OddsAPIURL    string
	OddsStreamURL string
	StreamSource  string // "ws" | "redis"
	HTTPTimeout   time.Duration

	// Feed / supervisor
	PollInterval         time.Duration
	ReconnectBaseDelay   time.Duration
	MaxReconnectDelay    time.Duration
	MaxReconnectAttempts int
	MirrorTTL            time.Duration

	// Reconciliação
	DriftTolerance float64
	StrictLive     bool

	// Simulador
	DriftSchedule string  // spec cron, ex: "@every 3s"
	DriftMaxPct   float64 // oscilação máxima por rodada, em %
	RejectRate    float64 // fração de apostas recusadas pelo simulador

	LogLevel    string   // debug | info | warn | error
	CORSOrigins []string // origens liberadas na API do carrinho

	// Portas do serviço atual
	HTTPPort    string // Porta pública (API REST)
	MetricsPort string // Porta exclusiva para /metrics e /healthz
}

// Load carrega variáveis de ambiente e define defaults para cada serviço
// Resolve portas conforme o SERVICE_NAME. Um .env no diretório atual, se existir,
// complementa o ambiente sem sobrescrever o que já está definido.
func Load() Config {
	_ = godotenv.Load()

	svc := getEnv("SERVICE_NAME", "")
	env := getEnv("ENV", "local")

	cfg := Config{
		Env:         env,
		ServiceName: svc,

		PostgresDSN:  getEnv("POSTGRES_DSN", ""),
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		KafkaBrokers: getEnv("KAFKA_BROKERS", ""),

		TopicBetPlaced:     getEnv("KAFKA_TOPIC_BET_PLACED", ctopics.BetPlaced),
		RedisPubSubChannel: getEnv("REDIS_PUBSUB_CHANNEL", ctopics.OddsBroadcast),

		OddsAPIURL:    getEnv("ODDS_API_URL", "http://localhost:8081"),
		OddsStreamURL: getEnv("ODDS_STREAM_URL", "ws://localhost:8081/ws"),
		StreamSource:  getEnv("STREAM_SOURCE", "ws"),
		HTTPTimeout:   getEnvDuration("HTTP_TIMEOUT", 5*time.Second),

		PollInterval:         getEnvDuration("POLL_INTERVAL", 30*time.Second),
		ReconnectBaseDelay:   getEnvDuration("RECONNECT_BASE_DELAY", time.Second),
		MaxReconnectDelay:    getEnvDuration("RECONNECT_MAX_DELAY", 30*time.Second),
		MaxReconnectAttempts: getEnvInt("RECONNECT_MAX_ATTEMPTS", 5),
		MirrorTTL:            getEnvDuration("REDIS_MIRROR_TTL", 60*time.Second),

		DriftTolerance: getEnvFloat("DRIFT_TOLERANCE", 0.01),
		StrictLive:     getEnvBool("STRICT_LIVE_ODDS", false),

		DriftSchedule: getEnv("SIM_DRIFT_SCHEDULE", "@every 3s"),
		DriftMaxPct:   getEnvFloat("SIM_DRIFT_MAX_PCT", 3),
		RejectRate:    getEnvFloat("SIM_BET_REJECT_RATE", 0),

		LogLevel:    getEnv("LOG_LEVEL", ""),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),
	}

	// Define portas padrão para cada serviço
	switch svc {
	case "cart-service":
		cfg.HTTPPort = getEnv("HTTP_PORT_CART", "8083")
		cfg.MetricsPort = getEnv("METRICS_PORT_CART", "9099")
	case "odds-simulator":
		cfg.HTTPPort = getEnv("HTTP_PORT_SIMULATOR", "8081")
		cfg.MetricsPort = getEnv("METRICS_PORT_SIMULATOR", "9094")
	default:
		cfg.HTTPPort = getEnv("HTTP_PORT", "8080")
		cfg.MetricsPort = getEnv("METRICS_PORT", "9095")
	}

	return cfg
}

// getEnv retorna o valor da variável de ambiente ou o default
func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getEnvInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getEnvList lê uma lista separada por vírgula
func getEnvList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
