package logger

import (
	"strings"
	"sync"
)

// Log levels accepted in config.yml (log.level).
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns the process-wide logger. The first call fixes the level and
// format; later calls return the same instance.
func Get(level, format string) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(normalize(level), normalize(format))
	})
	return globalLogger
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Named returns a child logger tagged with a component name. Safe on nil.
func (l *Logger) Named(component string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{SugaredLogger: l.SugaredLogger.Named(component)}
}

// With returns a child logger carrying the given key/value pairs. Safe on nil.
func (l *Logger) With(kv ...interface{}) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{SugaredLogger: l.SugaredLogger.With(kv...)}
}
