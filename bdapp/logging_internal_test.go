package bdapp

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testEnv struct {
	BaseEnvironment
}

func newTestEnv(level zapcore.Level, exporter string) testEnv {
	return testEnv{BaseEnvironment{
		Port:           8080,
		ServiceName:    "test",
		HealthPath:     "/health",
		MetricsPath:    "/metrics",
		LogLevel:       level,
		OtelExporter:   exporter,
		RequestTimeout: time.Second,
		AWSRegion:      "us-east-1",
	}}
}

func TestNewLogger(t *testing.T) {
	for _, level := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel} {
		t.Run(level.String(), func(t *testing.T) {
			logger, err := NewLogger(newTestEnv(level, "none"))
			require.NoError(t, err)

			assert.True(t, logger.Core().Enabled(level))
			if level > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(level-1))
			}
		})
	}
}

func TestDispatchLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewDispatchLogger(zap.New(core))

	l.LogUnhandledServeError(errors.New("boom"))
	l.LogImplicitFlushError(errors.New("broken pipe"))
	l.LogBodyCleanupError(errors.New("busy"))

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "unhandled server error", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "bdispatch", entries[0].LoggerName)
	assert.Equal(t, "error while flushing implicitly", entries[1].Message)
	assert.Equal(t, "error while cleaning up request body", entries[2].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "busy", entries[2].ContextMap()["error"])
}
