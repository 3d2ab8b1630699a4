package logger

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/saiset-co/sai-request/config"
	"github.com/saiset-co/sai-request/types"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLogLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, parseLogLevel("verbose"))
}

func TestDefaultLoggerWritesFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "client.log")

	l, err := NewDefaultLogger(&types.LoggerConfig{
		Level: "debug",
		Config: map[string]interface{}{
			"format": "json",
			"output": "file",
			"file":   logFile,
		},
	})
	require.NoError(t, err)

	l.Info("request settled", zap.String("outcome", "success"))
	l.ErrorWithErrStack("request failed", errors.New("boom"))
	require.NoError(t, l.Sync())

	assert.FileExists(t, logFile)
}

func TestEnsureLogDirRejectsBareName(t *testing.T) {
	assert.ErrorIs(t, ensureLogDir("client.log"), types.ErrLogFileWrongFormat)
	assert.ErrorIs(t, ensureLogDir(""), types.ErrLogFileIsEmpty)
}

func TestManagerLifecycle(t *testing.T) {
	cm, err := config.NewStaticManager(context.Background(), &types.ServiceConfig{
		Name:    "logger-test",
		Version: "0.0.1",
		Logger:  &types.LoggerConfig{Level: "error", Config: map[string]interface{}{"output": "stderr"}},
		Client:  &types.ClientConfig{},
	})
	require.NoError(t, err)

	m, err := NewManager(context.Background(), cm)
	require.NoError(t, err)

	require.NoError(t, m.Start())
	assert.ErrorIs(t, m.Start(), types.ErrServerAlreadyRunning)
	m.Debug("suppressed")

	// Sync on stderr may report an error on some platforms.
	_ = m.Stop()
	assert.False(t, m.IsRunning())
}

func TestUnknownLoggerType(t *testing.T) {
	_, err := createLogger(&types.LoggerConfig{Type: "missing", Level: "info"})
	assert.ErrorIs(t, err, types.ErrLoggerTypeUnknown)
}

func TestChildLoggersShareLevel(t *testing.T) {
	l, err := NewDefaultLogger(&types.LoggerConfig{
		Level:  "info",
		Config: map[string]interface{}{"output": "file", "file": filepath.Join(t.TempDir(), "logs", "client.log")},
	})
	require.NoError(t, err)

	child := l.Named("client").(*ZapWrapper)
	withFields := child.With(zap.String("tenant", "acme")).(*ZapWrapper)
	assert.Equal(t, zapcore.InfoLevel, withFields.Level())

	l.SetLevel("debug")
	assert.Equal(t, zapcore.DebugLevel, child.Level())
	assert.Equal(t, zapcore.DebugLevel, withFields.Level())
	assert.True(t, withFields.Logger.Core().Enabled(zapcore.DebugLevel))
}

func TestFailureFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &ZapWrapper{Logger: zap.New(core), level: zap.NewAtomicLevel()}

	desc := &types.RequestDescriptor{Method: "GET", URL: "/api/orders"}
	l.Warn("API failed", With(Request(desc), Failure(types.NewApplicationError(403, "denied")))...)
	l.Warn("API failed", Failure(errors.New("plain"))...)

	entries := logs.All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, "GET", first["method"])
	assert.Equal(t, "/api/orders", first["url"])
	assert.Equal(t, "application", first["error_kind"])
	assert.EqualValues(t, 403, first["error_code"])

	second := entries[1].ContextMap()
	assert.NotContains(t, second, "error_kind")
	assert.Equal(t, "plain", second["error"])
}

func TestErrorWithErrStackRecordsFrames(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &ZapWrapper{Logger: zap.New(core), level: zap.NewAtomicLevel()}

	cause := pkgerrors.New("connection reset")
	l.ErrorWithErrStack("Transport failure", types.NewNetworkError(0, "", cause))

	entries := logs.All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "network", fields["error_kind"])

	frames, ok := fields["stack"].([]interface{})
	require.True(t, ok, "stack field is recorded")
	require.NotEmpty(t, frames)
	assert.True(t, strings.Contains(frames[0].(string), "TestErrorWithErrStackRecordsFrames"))
	for _, frame := range frames {
		assert.NotContains(t, frame, "runtime.goexit")
	}
}
