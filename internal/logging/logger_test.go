package logging_test

import (
	"testing"

	"github.com/septivank/city-signals/internal/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Level(t *testing.T) {
	logger, err := logging.NewLogger("city-signals", "debug")
	if err != nil {
		t.Fatalf("Failed to build logger: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("Expected debug level to be enabled")
	}

	if _, err := logging.NewLogger("city-signals", "loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestWithRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	logging.WithRequestID(logger, "req-1").Info("hello")
	logging.WithRequestID(logger, "").Info("bare")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].ContextMap()["request_id"] != "req-1" {
		t.Errorf("Expected request_id field, got %v", entries[0].ContextMap())
	}
	if _, ok := entries[1].ContextMap()["request_id"]; ok {
		t.Error("Expected no request_id field for empty id")
	}
}
