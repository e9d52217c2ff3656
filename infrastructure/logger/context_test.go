package logger_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
)

func TestWithContext_FromContext_RoundTrip(t *testing.T) {
	t.Parallel()

	want := mustFileLogger(t)
	ctx := logger.WithContext(context.Background(), want)

	if got := logger.FromContext(ctx); got != want {
		t.Errorf("FromContext returned %v, want %v", got, want)
	}
}

func TestFromContext_FallbackIsUsable(t *testing.T) {
	t.Parallel()

	fallback := logger.FromContext(context.Background())
	if fallback == nil {
		t.Fatal("FromContext on empty context returned nil")
	}

	fallback.Debug("debug message")
	fallback.Warn("message with field", logger.String("key", "value"))
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	t.Parallel()

	l, err := logger.New(logger.Config{
		Level:       "chatty",
		OutputPaths: []string{filepath.Join(t.TempDir(), "out.log")},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.With(logger.String("component", "test")).Info("hello", logger.Int("n", 1))
	_ = l.Sync()
}

func mustFileLogger(t *testing.T) logger.Logger {
	t.Helper()

	l, err := logger.New(logger.Config{
		Level:       "debug",
		OutputPaths: []string{filepath.Join(t.TempDir(), "test.log")},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}
