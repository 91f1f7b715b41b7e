// Package logging provides structured logging for the openlocale engine.
//
// Components obtain a named logger via GetLogger and either log printf-style
// messages or attach structured key=value fields:
//
//	logger := logging.GetLogger("resolver")
//	logger.Info("registered namespace %s", ns)
//	logger.InfoWithFields("sync finished",
//	    logging.Field("namespace", ns),
//	    logging.Field("uploaded", n),
//	)
//
// Logger instances are immutable; WithField returns a child logger carrying
// persistent fields, which makes loggers safe to share across goroutines.
// DEBUG/INFO/WARN are written to stdout, ERROR/FATAL to stderr. The
// LOG_TIMESTAMP environment variable pins timestamps for deterministic test
// output.
package logging

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level is the logging severity.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

// ParseLevel converts a level name into a Level. Unknown names default to
// INFO with an error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	case "FATAL":
		return FATAL, nil
	default:
		return INFO, fmt.Errorf("invalid log level %q", s)
	}
}

// LogField is a structured key/value pair attached to a log line.
type LogField struct {
	Key   string
	Value interface{}
}

// Field creates a structured logging field.
func Field(key string, value interface{}) LogField {
	return LogField{Key: key, Value: value}
}

var (
	defaultLevel = INFO
	levelMutex   sync.RWMutex
	// exitFunc is called by Fatal; replaced in tests.
	exitFunc = os.Exit
)

// Initialize sets the process-wide default log level.
func Initialize(levelStr string) error {
	level, err := ParseLevel(levelStr)
	if err != nil {
		return err
	}
	levelMutex.Lock()
	defaultLevel = level
	levelMutex.Unlock()
	return nil
}

// Logger writes leveled, optionally structured log lines. Instances are
// immutable and safe for concurrent use.
type Logger struct {
	name   string
	fields map[string]interface{}
}

// GetLogger returns a logger with the specified component name.
func GetLogger(name string) *Logger {
	return &Logger{name: name}
}

// WithField returns a child logger that includes key=value on every line.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	child := &Logger{name: l.name, fields: cloneFields(l.fields)}
	child.fields[key] = value
	return child
}

// WithFields returns a child logger that includes all given fields.
func (l *Logger) WithFields(fields ...LogField) *Logger {
	child := &Logger{name: l.name, fields: cloneFields(l.fields)}
	for _, f := range fields {
		child.fields[f.Key] = f.Value
	}
	return child
}

func cloneFields(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src)+1)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func enabled(level Level) bool {
	levelMutex.RLock()
	defer levelMutex.RUnlock()
	return level >= defaultLevel
}

// Debug logs a formatted debug message.
func (l *Logger) Debug(msg string, args ...interface{}) { l.logf(DEBUG, msg, args...) }

// Info logs a formatted info message.
func (l *Logger) Info(msg string, args ...interface{}) { l.logf(INFO, msg, args...) }

// Warn logs a formatted warning message.
func (l *Logger) Warn(msg string, args ...interface{}) { l.logf(WARN, msg, args...) }

// Error logs a formatted error message.
func (l *Logger) Error(msg string, args ...interface{}) { l.logf(ERROR, msg, args...) }

// ErrorWithErr logs an error message together with an error object.
func (l *Logger) ErrorWithErr(msg string, err error, args ...interface{}) {
	args = append(args, err)
	l.logf(ERROR, msg+" - %v", args...)
}

// Fatal logs a fatal message and terminates the process with exit code 1.
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.logf(FATAL, msg, args...)
	exitFunc(1)
}

// DebugWithFields logs a debug message with structured fields.
func (l *Logger) DebugWithFields(msg string, fields ...LogField) { l.logFields(DEBUG, msg, fields) }

// InfoWithFields logs an info message with structured fields.
func (l *Logger) InfoWithFields(msg string, fields ...LogField) { l.logFields(INFO, msg, fields) }

// WarnWithFields logs a warning message with structured fields.
func (l *Logger) WarnWithFields(msg string, fields ...LogField) { l.logFields(WARN, msg, fields) }

// ErrorWithFields logs an error message with structured fields.
func (l *Logger) ErrorWithFields(msg string, fields ...LogField) { l.logFields(ERROR, msg, fields) }

func (l *Logger) logf(level Level, msg string, args ...interface{}) {
	if !enabled(level) {
		return
	}
	l.write(level, fmt.Sprintf(msg, args...), l.fields)
}

func (l *Logger) logFields(level Level, msg string, fields []LogField) {
	if !enabled(level) {
		return
	}
	merged := cloneFields(l.fields)
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	l.write(level, msg, merged)
}

func (l *Logger) write(level Level, msg string, fields map[string]interface{}) {
	line := fmt.Sprintf("[%s] [%s] %s: %s", timestamp(), levelNames[level], l.name, msg)
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		line += " |"
		for _, k := range keys {
			line += fmt.Sprintf(" %s=%v", k, fields[k])
		}
	}
	out := os.Stdout
	if level >= ERROR {
		out = os.Stderr
	}
	fmt.Fprintln(out, line)
}

// timestamp returns the current RFC3339 timestamp, or the LOG_TIMESTAMP
// environment variable when set (used by tests for deterministic output).
func timestamp() string {
	if fixed := os.Getenv("LOG_TIMESTAMP"); fixed != "" {
		return fixed
	}
	return time.Now().UTC().Format(time.RFC3339)
}
