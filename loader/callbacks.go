package loader

import "github.com/sirupsen/logrus"

// StatusFunc receives short progress strings ("Loading 200/512...") for the
// UI to render. Implementations should return quickly; the flasher is
// single-threaded and a slow callback stretches the whole update.
type StatusFunc func(message string)

// Logger is an optional logging interface so the library can feed any
// logging framework.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}

// LogrusLogger adapts a logrus logger to the Logger interface.
type LogrusLogger struct {
	L *logrus.Logger
}

func (l *LogrusLogger) Debug(msg string, kv ...interface{}) { l.entry(kv).Debug(msg) }
func (l *LogrusLogger) Info(msg string, kv ...interface{})  { l.entry(kv).Info(msg) }
func (l *LogrusLogger) Error(msg string, kv ...interface{}) { l.entry(kv).Error(msg) }

func (l *LogrusLogger) entry(kv []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			fields[k] = kv[i+1]
		}
	}
	return l.L.WithFields(fields)
}
