package logger_test

import (
	"bytes"
	"context"
	"testing"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"

	"github.com/consentforge/consentforge/pkg/logger"
)

func TestFromContext(t *testing.T) {
	t.Run("Should return attached logger", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.NewLogger(&logger.Config{Level: charmlog.DebugLevel, Output: &buf})
		ctx := logger.ContextWithLogger(context.Background(), log)
		logger.FromContext(ctx).Info("hello", "k", "v")
		assert.Contains(t, buf.String(), "hello")
		assert.Contains(t, buf.String(), "k=v")
	})
	t.Run("Should never return nil for bare context", func(t *testing.T) {
		assert.NotNil(t, logger.FromContext(context.Background()))
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, charmlog.DebugLevel, logger.ParseLevel("debug"))
	assert.Equal(t, charmlog.ErrorLevel, logger.ParseLevel("error"))
	assert.Equal(t, charmlog.InfoLevel, logger.ParseLevel("unknown"))
}

func TestWith(t *testing.T) {
	t.Run("Should carry key values into child logger", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.NewLogger(&logger.Config{Level: charmlog.InfoLevel, Output: &buf})
		log.With("run_id", "run_123").Info("section finished")
		assert.Contains(t, buf.String(), "run_id=run_123")
	})
}
