package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcm-wellness-backend/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		settings *config.LoggerSettings
		wantErr  bool
	}{
		{
			name:     "console logger",
			settings: &config.LoggerSettings{LogLevel: config.LogLevelInfo, LogType: config.LogTypeConsole},
		},
		{
			name: "file logger with rotation",
			settings: &config.LoggerSettings{
				LogLevel:   config.LogLevelDebug,
				LogType:    config.LogTypeFile,
				FilePath:   filepath.Join(t.TempDir(), "server.log"),
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
		{
			name:     "invalid log level",
			settings: &config.LoggerSettings{LogLevel: "loud", LogType: config.LogTypeConsole},
			wantErr:  true,
		},
		{
			name:     "file logger without path",
			settings: &config.LoggerSettings{LogLevel: config.LogLevelInfo, LogType: config.LogTypeFile, MaxSize: 1, MaxBackups: 1, MaxAge: 1},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, l)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, l)
			assert.NotPanics(t, func() { l.Info("hello") })
		})
	}
}

func TestFileLogger_WritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	l := NewFileLogger(config.LogLevelInfo, path, 1, 1, 1)

	l.Info("analysis", "completed")
	l.Debug("hidden")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, `"msg":"analysis completed"`)
	assert.NotContains(t, out, "hidden")
}

func TestTextLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newTextLogger(&buf, config.LogLevelWarning)

	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestFatal_Exits(t *testing.T) {
	var code int
	exit = func(c int) { code = c }
	defer func() { exit = os.Exit }()

	var buf bytes.Buffer
	newTextLogger(&buf, config.LogLevelInfo).Fatal("boom")

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "boom")
}

func TestFormatArgs(t *testing.T) {
	assert.Equal(t, "", formatArgs())
	assert.Equal(t, "a 1 true", formatArgs("a", 1, true))
}
