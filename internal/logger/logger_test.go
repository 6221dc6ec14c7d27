package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Keoroanthony/shopnow-api/configs"
	"github.com/Keoroanthony/shopnow-api/internal/logger"
)

func TestNew(t *testing.T) {
	t.Run("production honours configured level", func(t *testing.T) {
		log, err := logger.New(config.LoggerConfig{Level: "warn", Encoding: "json"}, false)
		require.NoError(t, err)
		assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("development defaults to debug", func(t *testing.T) {
		log, err := logger.New(config.LoggerConfig{}, true)
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		_, err := logger.New(config.LoggerConfig{Level: "loud"}, false)
		assert.Error(t, err)
	})
}
