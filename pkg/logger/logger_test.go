package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitRejectsUnknownLevel(t *testing.T) {
	err := Init("loud", "json", "stdout")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInitWritesJSONToRotatingFile(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	path := filepath.Join(t.TempDir(), "extractor.log")
	require.NoError(t, InitWithRotation("info", "json", path, Rotation{MaxSizeMB: 1}))

	Info("Manuscript processed", zap.String("manuscript_id", "990001"))
	Debug("Hidden at info level")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"Manuscript processed"`)
	assert.Contains(t, string(data), `"manuscript_id":"990001"`)
	assert.NotContains(t, string(data), "Hidden at info level")
}

func TestDefaultLoggerIsUsableBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		GetLogger().Info("no-op")
		Named("gazetteer").Warn("no-op")
	})
}
