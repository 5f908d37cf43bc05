package logger

import (
	"io"
	"log/slog"
	"os"
)

// NewConsoleLogger creates a text logger writing to stdout at the given level.
func NewConsoleLogger(level string) Logger {
	return newTextLogger(os.Stdout, level)
}

func newTextLogger(w io.Writer, level string) Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return &slogLogger{logger: slog.New(handler)}
}
