package appshell

// Logger defines the interface for framework logging.
// The framework uses structured logging with key-value pairs so that
// hosting applications can plug in slog, zap, logrus, or any other
// structured logging library.
//
// The Logger interface uses variadic arguments in key-value pairs:
//
//	logger.Info("message", "key1", "value1", "key2", "value2")
//
// All framework operations (plugin bootstrap, state transitions,
// event-page teardown, etc.) are logged through this interface.
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	// Used for normal lifecycle events like launches and state changes.
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	// Used for failures that degrade behaviour but never crash the host.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, args ...any)
}

// NopLogger discards everything. It is the default when no logger is
// supplied, so callers never have to nil-check.
type NopLogger struct{}

func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Debug(string, ...any) {}
