package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerSettingsValidation(t *testing.T) {
	tests := []struct {
		name          string
		settings      *LoggerSettings
		expectedError bool
	}{
		{
			name:     "valid console logger",
			settings: &LoggerSettings{LogLevel: LogLevelInfo, LogType: LogTypeConsole},
		},
		{
			name: "valid file logger with rotation",
			settings: &LoggerSettings{
				LogLevel:   LogLevelDebug,
				LogType:    LogTypeFile,
				FilePath:   "/var/log/tcm/server.log",
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
		{
			name:          "missing log level",
			settings:      &LoggerSettings{LogType: LogTypeConsole},
			expectedError: true,
		},
		{
			name:          "invalid log type",
			settings:      &LoggerSettings{LogLevel: LogLevelInfo, LogType: "syslog"},
			expectedError: true,
		},
		{
			name: "file logger missing path",
			settings: &LoggerSettings{
				LogLevel: LogLevelInfo, LogType: LogTypeFile,
				MaxSize: 10, MaxBackups: 3, MaxAge: 28,
			},
			expectedError: true,
		},
		{
			name: "file logger max size too large",
			settings: &LoggerSettings{
				LogLevel: LogLevelInfo, LogType: LogTypeFile, FilePath: "/tmp/x.log",
				MaxSize: 101, MaxBackups: 3, MaxAge: 28,
			},
			expectedError: true,
		},
		{
			name: "file logger max backups out of range",
			settings: &LoggerSettings{
				LogLevel: LogLevelInfo, LogType: LogTypeFile, FilePath: "/tmp/x.log",
				MaxSize: 10, MaxBackups: 0, MaxAge: 28,
			},
			expectedError: true,
		},
		{
			name: "console logger ignores rotation settings",
			settings: &LoggerSettings{
				LogLevel: LogLevelError, LogType: LogTypeConsole,
				MaxSize: 1000, MaxBackups: 1000, MaxAge: 1000,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.settings.Validate()
			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
