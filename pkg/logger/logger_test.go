package logger_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/st9db/st9.go/pkg/logger"
)

func TestLog(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).Make()
	require.NoError(t, err)
	require.NotNil(t, templogger)
	require.Equal(t, buff.Len(), 0)

	templogger.Info("find", "type", "widget", "ms", 3)
	require.Contains(t, buff.String(), `"message":"find"`)
	require.Contains(t, buff.String(), `"type":"widget"`)
	require.Contains(t, buff.String(), `"level":"info"`)
}

func TestLogLevel(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).Level("warn").Make()
	require.NoError(t, err)

	templogger.Debug("hidden")
	templogger.Info("hidden")
	require.Equal(t, 0, buff.Len())

	templogger.Warn("shown")
	require.Contains(t, buff.String(), "shown")
}

func TestLogToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "st9.log")
	templogger, err := logger.New().FromPath(path).Make()
	require.NoError(t, err)

	templogger.Error("boom", "status", 500)
	require.NoError(t, templogger.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), `"status":500`)
}

func TestNop(t *testing.T) {
	var l logger.Logger = logger.Nop()
	l.Error("nothing")
	l.Debug("nothing")
}
