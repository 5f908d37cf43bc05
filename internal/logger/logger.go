package logger

// Logger defines the logging interface used across the service.
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})
}

type nopLogger struct{}

// NewNop returns a Logger that discards everything. Fatal still exits.
func NewNop() Logger { return nopLogger{} }

func (nopLogger) Debug(args ...interface{}) {}
func (nopLogger) Info(args ...interface{})  {}
func (nopLogger) Warn(args ...interface{})  {}
func (nopLogger) Error(args ...interface{}) {}
func (nopLogger) Fatal(args ...interface{}) { exit(1) }
