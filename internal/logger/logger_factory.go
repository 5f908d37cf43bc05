package logger

import (
	"fmt"
	"log/slog"
	"os"

	"tcm-wellness-backend/internal/config"
)

var exit = os.Exit

// New builds a Logger from validated settings.
func New(c *config.LoggerSettings) (Logger, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	switch c.LogType {
	case config.LogTypeConsole:
		return NewConsoleLogger(c.LogLevel), nil
	case config.LogTypeFile:
		return NewFileLogger(c.LogLevel, c.FilePath, c.MaxSize, c.MaxBackups, c.MaxAge), nil
	default:
		return nil, fmt.Errorf("unsupported log type: %s", c.LogType)
	}
}

type slogLogger struct {
	logger *slog.Logger
}

func (l *slogLogger) Debug(args ...interface{}) { l.logger.Debug(formatArgs(args...)) }
func (l *slogLogger) Info(args ...interface{})  { l.logger.Info(formatArgs(args...)) }
func (l *slogLogger) Warn(args ...interface{})  { l.logger.Warn(formatArgs(args...)) }
func (l *slogLogger) Error(args ...interface{}) { l.logger.Error(formatArgs(args...)) }

// Fatal logs at error level and exits.
func (l *slogLogger) Fatal(args ...interface{}) {
	l.logger.Error(formatArgs(args...))
	exit(1)
}

func parseLevel(level string) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelInfo:
		return slog.LevelInfo
	case config.LogLevelWarning:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// formatArgs joins args with spaces, like log.Println without the newline.
func formatArgs(args ...interface{}) string {
	if len(args) == 0 {
		return ""
	}
	s := fmt.Sprintln(args...)
	return s[:len(s)-1]
}
