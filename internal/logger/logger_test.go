package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("create logger with console output", func(t *testing.T) {
		cfg := Config{
			Level:   "info",
			Console: true,
			Pretty:  false,
		}

		logger, err := New(cfg)
		require.NoError(t, err)
		assert.NotNil(t, logger)

		logger.Close()
	})

	t.Run("create logger with file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")

		cfg := Config{
			Level:   "debug",
			File:    logFile,
			Console: false,
		}

		logger, err := New(cfg)
		require.NoError(t, err)

		logger.Info().Msg("test message")
		logger.Close()

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "test message")
	})

	t.Run("creates missing log directory", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "nested", "dir", "test.log")

		logger, err := New(Config{File: logFile})
		require.NoError(t, err)
		logger.Close()

		_, err = os.Stat(logFile)
		assert.NoError(t, err)
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")

		logger, err := New(Config{Level: "nope", File: logFile})
		require.NoError(t, err)

		logger.Debug().Msg("should be filtered")
		logger.Info().Msg("should appear")
		logger.Close()

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "should be filtered")
		assert.Contains(t, string(data), "should appear")
	})
}

func TestLoggerMethods(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	logger, err := New(Config{Level: "debug", File: logFile})
	require.NoError(t, err)

	logger.Debug().Msg("debug line")
	logger.Info().Msg("info line")
	logger.Warn().Msg("warn line")
	logger.Error().Msg("error line")
	logger.Close()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	for _, want := range []string{"debug line", "info line", "warn line", "error line"} {
		assert.Contains(t, string(data), want)
	}
}

func TestTailLogFileRoundTrip(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	logger, err := New(Config{File: logFile})
	require.NoError(t, err)
	logger.Info().Msg("first")
	logger.Info().Msg("second")
	logger.Close()

	lines, err := Tail(logFile, 1)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, strings.Contains(lines[0], "second"))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
}
