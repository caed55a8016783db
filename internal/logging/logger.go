// Package logging provides the leveled, structured logger used across telcoagent.
//
// Initialize the logger once at startup, then ask for named loggers:
//
//	logging.Initialize("info", map[string]string{"agent.*": "debug"})
//	logger := logging.GetLogger("agent.tools")
//	logger.Info("diagnosis for %s: %s", postCode, result)
//
// Structured fields are attached per call or per logger:
//
//	logger.InfoWithFields("state updated",
//	    logging.Field("field", "issue_type"),
//	    logging.Field("size", 2),
//	)
//	sessionLogger := logger.WithField("session_id", id)
//
// When a logger carries a context with an active OpenTelemetry span, the
// trace_id and span_id of that span are added to every entry.
//
// Entries can additionally be mirrored to a Sink, for example Google Cloud
// Logging, see NewCloudSink.
//
// Logger values are immutable; With* methods return copies, so a logger can be
// shared between goroutines.
package logging

import (
	"context"
	"os"
	"sync"
)

const rootLoggerName = "telcoagent"

var (
	globalLogger *Logger
	initOnce     sync.Once
	// exitFunc terminates the process on Fatal. Tests replace it.
	exitFunc = os.Exit
)

// Initialize sets the default level and optional per-package overrides.
// Package patterns support exact names ("agent.rag") and wildcards ("agent.*").
// Unknown default levels fall back to INFO.
func Initialize(levelStr string, packageLevels ...map[string]string) error {
	level, err := ParseLevel(levelStr)
	if err != nil {
		level = INFO
	}

	globalLogger = &Logger{
		level: level,
		name:  rootLoggerName,
	}

	if len(packageLevels) > 0 && packageLevels[0] != nil {
		if err := SetPackageLogLevels(packageLevels[0]); err != nil {
			return err
		}
	}
	return nil
}

// GetLogger returns a logger with the given name, initializing the package at
// INFO if Initialize has not been called yet.
func GetLogger(name string) *Logger {
	initOnce.Do(func() {
		if globalLogger == nil {
			_ = Initialize("info")
		}
	})
	return &Logger{
		level:  globalLogger.level,
		name:   name,
		fields: make(map[string]interface{}),
	}
}

// Name returns the logger name.
func (l *Logger) Name() string {
	return l.name
}

func (l *Logger) enabled(level LogLevel) bool {
	if pkgLevel := GetPackageLogLevel(l.name); pkgLevel >= 0 {
		return level >= pkgLevel
	}
	return level >= l.level
}

// Debug logs a printf-style message at DEBUG.
func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.enabled(DEBUG) {
		l.logf(DEBUG, msg, args...)
	}
}

// Info logs a printf-style message at INFO.
func (l *Logger) Info(msg string, args ...interface{}) {
	if l.enabled(INFO) {
		l.logf(INFO, msg, args...)
	}
}

// Warn logs a printf-style message at WARN.
func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.enabled(WARN) {
		l.logf(WARN, msg, args...)
	}
}

// Error logs a printf-style message at ERROR.
func (l *Logger) Error(msg string, args ...interface{}) {
	if l.enabled(ERROR) {
		l.logf(ERROR, msg, args...)
	}
}

// ErrorWithErr logs msg at ERROR with err appended.
func (l *Logger) ErrorWithErr(msg string, err error, args ...interface{}) {
	if l.enabled(ERROR) {
		args = append(args, err)
		l.logf(ERROR, msg+" - %v", args...)
	}
}

// Fatal logs at FATAL and exits with status 1.
func (l *Logger) Fatal(msg string, args ...interface{}) {
	if l.enabled(FATAL) {
		l.logf(FATAL, msg, args...)
		flushSinks()
		exitFunc(1)
	}
}

// DebugWithFields logs msg at DEBUG with structured fields.
func (l *Logger) DebugWithFields(msg string, fields ...LogField) {
	if l.enabled(DEBUG) {
		l.logWithFields(DEBUG, msg, fields...)
	}
}

// InfoWithFields logs msg at INFO with structured fields.
func (l *Logger) InfoWithFields(msg string, fields ...LogField) {
	if l.enabled(INFO) {
		l.logWithFields(INFO, msg, fields...)
	}
}

// WarnWithFields logs msg at WARN with structured fields.
func (l *Logger) WarnWithFields(msg string, fields ...LogField) {
	if l.enabled(WARN) {
		l.logWithFields(WARN, msg, fields...)
	}
}

// ErrorWithFields logs msg at ERROR with structured fields.
func (l *Logger) ErrorWithFields(msg string, fields ...LogField) {
	if l.enabled(ERROR) {
		l.logWithFields(ERROR, msg, fields...)
	}
}

// WithName returns a copy of the logger under a different name.
// Persistent fields are not carried over.
func (l *Logger) WithName(name string) *Logger {
	return &Logger{
		level:  l.level,
		name:   name,
		fields: make(map[string]interface{}),
		ctx:    l.ctx,
	}
}

// WithField returns a copy of the logger with one additional persistent field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	child := l.clone()
	child.fields[key] = value
	return child
}

// WithFields returns a copy of the logger with additional persistent fields.
func (l *Logger) WithFields(fields ...LogField) *Logger {
	child := l.clone()
	for _, f := range fields {
		child.fields[f.Key] = f.Value
	}
	return child
}

// WithContext returns a copy of the logger bound to ctx. Trace and span ids
// of the span active in ctx are added to every entry.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	child := l.clone()
	child.ctx = ctx
	return child
}

func (l *Logger) clone() *Logger {
	return &Logger{
		level:  l.level,
		name:   l.name,
		fields: cloneFields(l.fields),
		ctx:    l.ctx,
	}
}
