package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "cart-service")

	cfg := Load()
	if cfg.HTTPPort != "8083" || cfg.MetricsPort != "9099" {
		t.Fatalf("ports = %s/%s, want 8083/9099", cfg.HTTPPort, cfg.MetricsPort)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Fatalf("poll interval = %v, want 30s", cfg.PollInterval)
	}
	if cfg.StreamSource != "ws" {
		t.Fatalf("stream source = %q", cfg.StreamSource)
	}
	if cfg.TopicBetPlaced != "bet_placed" {
		t.Fatalf("topic = %q", cfg.TopicBetPlaced)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "odds-simulator")
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("RECONNECT_MAX_ATTEMPTS", "3")
	t.Setenv("DRIFT_TOLERANCE", "0.05")
	t.Setenv("STRICT_LIVE_ODDS", "true")
	t.Setenv("HTTP_TIMEOUT", "not-a-duration")

	cfg := Load()
	if cfg.HTTPPort != "8081" {
		t.Fatalf("http port = %s, want 8081", cfg.HTTPPort)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("poll interval = %v", cfg.PollInterval)
	}
	if cfg.MaxReconnectAttempts != 3 {
		t.Fatalf("attempts = %d", cfg.MaxReconnectAttempts)
	}
	if cfg.DriftTolerance != 0.05 || !cfg.StrictLive {
		t.Fatalf("reconcile cfg = %v/%v", cfg.DriftTolerance, cfg.StrictLive)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Fatalf("invalid duration should fall back to default, got %v", cfg.HTTPTimeout)
	}
}

func TestCORSOrigins(t *testing.T) {
	if got := Load().CORSOrigins; len(got) != 1 || got[0] != "*" {
		t.Fatalf("default origins = %v", got)
	}

	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://app.example.com,")
	got := Load().CORSOrigins
	if len(got) != 2 || got[0] != "http://localhost:3000" || got[1] != "https://app.example.com" {
		t.Fatalf("origins = %v", got)
	}
}

func TestDotEnvFillsMissingVars(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SIM_DRIFT_MAX_PCT=7.5\nSIM_BET_REJECT_RATE=0.2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		_ = os.Unsetenv("SIM_DRIFT_MAX_PCT")
		_ = os.Unsetenv("SIM_BET_REJECT_RATE")
	})
	// variável já definida vence o .env
	t.Setenv("SIM_BET_REJECT_RATE", "0.5")

	cfg := Load()
	if cfg.DriftMaxPct != 7.5 {
		t.Fatalf("drift pct = %v, want 7.5", cfg.DriftMaxPct)
	}
	if cfg.RejectRate != 0.5 {
		t.Fatalf("reject rate = %v, want 0.5", cfg.RejectRate)
	}
}
