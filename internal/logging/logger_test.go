package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInit_RejectsUnknownLevel(t *testing.T) {
	err := Init("development", "loud")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestInit_AppliesLevel(t *testing.T) {
	t.Cleanup(func() { globalLogger = nil })
	require.NoError(t, Init("production", "warn"))

	assert.False(t, GetLogger().Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Named("webhook-queue-worker").Desugar().Core().Enabled(zapcore.WarnLevel))
}

func TestNamed_BeforeInit(t *testing.T) {
	globalLogger = nil
	t.Cleanup(func() { globalLogger = nil })

	log := Named("jobs")
	require.NotNil(t, log)
	assert.Equal(t, "jobs", log.Desugar().Name())
}
