package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorPrependsErrField(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))

	Error("schedule load failed", errors.New("boom"), "path", "fechas.txt")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "schedule load failed", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "boom", fields["err"])
	assert.Equal(t, "fechas.txt", fields["path"])
}

func TestInfoAndDebugKeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))

	Debug("hidden", "k", 1)
	Info("theme switched", "from", "monokai", "to", "dark")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "theme switched", entries[0].Message)
	assert.Equal(t, "dark", entries[0].ContextMap()["to"])
}
