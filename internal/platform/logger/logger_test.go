package logger_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uibattles/uibattles-api/internal/config"
	"github.com/uibattles/uibattles-api/internal/platform/logger"
)

func TestSetupWithWriterLevels(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
	}{
		{"debug", true, true},
		{"INFO", false, true},
		{"warn", false, false},
		{"bogus", false, true},
	}

	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			buf := &logger.TestLogBuffer{}
			l := logger.SetupWithWriter(config.ServerConfig{LogLevel: tc.level}, buf)
			require.NotNil(t, l)

			l.Debug("debug message")
			l.Info("info message")

			assert.Equal(t, tc.debugSeen, strings.Contains(buf.String(), "debug message"))
			assert.Equal(t, tc.infoSeen, strings.Contains(buf.String(), "info message"))
			assert.Same(t, l, slog.Default())
		})
	}
}

func TestSetupWritesJSON(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	buf := &logger.TestLogBuffer{}
	l := logger.SetupWithWriter(config.ServerConfig{LogLevel: "info"}, buf)
	l.Info("hello", slog.String("component", "test"))

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0]["msg"])
	assert.Equal(t, "test", entries[0]["component"])
	assert.Equal(t, "INFO", entries[0]["level"])
}

func TestContextLogger(t *testing.T) {
	l, buf := logger.NewTestLogger(t)
	def, defBuf := logger.NewTestLogger(t)

	ctx := logger.WithLogger(context.Background(), l)
	logger.FromContextOrDefault(ctx, def).Info("from context")
	logger.AssertLogContains(t, buf, "from context")
	assert.Empty(t, defBuf.String())

	logger.FromContextOrDefault(context.Background(), def).Info("from default")
	logger.AssertLogContains(t, defBuf, "from default")

	assert.Same(t, l, logger.FromContext(ctx))
	assert.Same(t, slog.Default(), logger.FromContext(context.Background()))
	assert.Same(t, slog.Default(), logger.FromContextOrDefault(context.Background(), nil))
}

func TestParseLevel(t *testing.T) {
	level, ok := logger.ParseLevel(" Warn ")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelWarn, level)

	level, ok = logger.ParseLevel("fatal")
	assert.False(t, ok)
	assert.Equal(t, slog.LevelInfo, level)
}
