package logging

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

func TestNew_Levels(t *testing.T) {
	logger, err := New("debug", "console")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = New("bogus", "json")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestWithCase_AddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	WithCase(zap.New(core), 2, "BraTS_003").Info("loaded")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, int64(2), fields["case_index"])
	assert.Equal(t, "BraTS_003", fields["case"])
}

func TestNewWithOutput_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.log")
	logger, err := NewWithOutput("info", "console", path)
	require.NoError(t, err)

	logger.Info("case opened", zap.String("case", "BraTS_001"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "case opened")
	assert.Contains(t, string(data), "BraTS_001")
	assert.NotContains(t, string(data), "\x1b[", "no color codes in files")
}
