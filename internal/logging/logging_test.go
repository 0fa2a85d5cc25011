package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesselframework/vessel/internal/logging"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("text format by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := logging.NewWithWriter(logging.Config{}, &buf)
		logger.Info("hello", "component", "store")

		out := buf.String()
		assert.Contains(t, out, "msg=hello")
		assert.Contains(t, out, "component=store")
	})

	t.Run("json format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := logging.NewWithWriter(logging.Config{Format: logging.FormatJSON}, &buf)
		logger.Info("hello", "component", "store")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "hello", record["msg"])
		assert.Equal(t, "store", record["component"])
	})

	t.Run("level filtering", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := logging.NewWithWriter(logging.Config{Level: "warn"}, &buf)

		logger.Debug("quiet")
		logger.Info("quiet")
		assert.Empty(t, buf.String())

		logger.Warn("loud")
		assert.Contains(t, buf.String(), "msg=loud")
	})

	t.Run("debug level enables debug records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := logging.NewWithWriter(logging.Config{Level: "debug"}, &buf)
		logger.Debug("verbose")
		assert.Contains(t, buf.String(), "msg=verbose")
	})

	t.Run("unknown levels default to info", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := logging.NewWithWriter(logging.Config{Level: "shout"}, &buf)
		logger.Debug("quiet")
		assert.Empty(t, buf.String())
		logger.Info("loud")
		assert.NotEmpty(t, buf.String())
	})
}

func TestNop(t *testing.T) {
	t.Parallel()

	logger := logging.Nop()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
	logger.Error("dropped")
}
