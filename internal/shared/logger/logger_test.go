package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	l, err := New("cart-service", "local", "warn")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug should be disabled at warn level")
	}

	if _, err := New("cart-service", "prod", "loud"); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestComponentNil(t *testing.T) {
	if Component(nil, "feed") == nil {
		t.Fatal("Component(nil) must return a usable logger")
	}
}
