package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitRejectsBadLevel(t *testing.T) {
	assert.Error(t, Init("loud", "json", "stdout"))
}

func TestInitWritesJSONFile(t *testing.T) {
	defer SetLogger(nil)

	path := filepath.Join(t.TempDir(), "console.log")
	require.NoError(t, Init("info", "json", path))

	Debug("hidden")
	Info("upload finished", zap.String("filename", "report.pdf"))
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"upload finished"`)
	assert.Contains(t, string(data), `"filename":"report.pdf"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestSetLoggerRoutesPackageFunctions(t *testing.T) {
	defer SetLogger(nil)

	core, logs := observer.New(zapcore.WarnLevel)
	SetLogger(zap.New(core))

	Info("ignored")
	Warn("listing discarded")
	Error("delete failed")
	GetLogger().Warn("direct")

	require.Equal(t, 3, logs.Len())
	assert.Equal(t, "listing discarded", logs.All()[0].Message)
	assert.Equal(t, "direct", logs.All()[2].Message)
}
