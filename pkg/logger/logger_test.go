package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNopBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		Info("not initialised yet", zap.Int("n", 1))
	})
}

func TestInitFileJSON(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	path := filepath.Join(t.TempDir(), "logs", "app.log")
	require.NoError(t, Init("warn", "json", "file", path))

	Info("dropped")
	Warn("kept", zap.String("k", "v"))
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"msg":"kept"`)
	assert.True(t, Logger.Core().Enabled(zapcore.WarnLevel))
}
