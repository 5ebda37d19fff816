package monitoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core))

	l.Debug("predict", "step", 3)
	l.Info("calibration computed", "error_px", 12.5)
	l.Warn("corrupt calibration record", "mode", "AFFINE")
	l.Error("storage failed", errors.New("disk full"), "key", "calibration.AFFINE")

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, int64(3), entries[0].ContextMap()["step"])
	assert.Equal(t, zap.WarnLevel, entries[2].Level)
	assert.Equal(t, "storage failed", entries[3].Message)
	assert.Equal(t, "disk full", entries[3].ContextMap()["error"])
}

func TestErrorWithoutCause(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core))

	l.Error("no cause", nil)
	require.Len(t, logs.All(), 1)
	_, hasErr := logs.All()[0].ContextMap()["error"]
	assert.False(t, hasErr)
}

func TestSetLogger(t *testing.T) {
	original := L()
	defer SetLogger(original)

	core, logs := observer.New(zap.InfoLevel)
	SetLogger(FromZap(zap.New(core)))
	L().Info("hello")
	assert.Equal(t, 1, logs.Len())

	// nil installs a no-op logger rather than leaving a nil interface.
	SetLogger(nil)
	assert.NotPanics(t, func() { L().Info("discarded") })
	assert.Equal(t, 1, logs.Len())
}

func TestNewLogger(t *testing.T) {
	for _, dev := range []bool{true, false} {
		l, err := NewLogger(dev)
		require.NoError(t, err)
		l.Info("built", "development", dev)
	}
}
