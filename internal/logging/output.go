package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Record is a single formatted entry as handed to sinks.
type Record struct {
	Time    time.Time
	Level   LogLevel
	Logger  string
	Message string
	Fields  map[string]interface{}
	TraceID string
	SpanID  string
}

var (
	outputMu sync.Mutex
	stdout   io.Writer = os.Stdout
	stderr   io.Writer = os.Stderr
)

// SetOutput redirects console output. DEBUG, INFO and WARN go to out,
// ERROR and FATAL go to errOut. Passing nil keeps the current writer.
func SetOutput(out, errOut io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	if out != nil {
		stdout = out
	}
	if errOut != nil {
		stderr = errOut
	}
}

func (l *Logger) logf(level LogLevel, msg string, args ...interface{}) {
	formatted := msg
	if len(args) > 0 {
		formatted = fmt.Sprintf(msg, args...)
	}
	l.writeLog(level, formatted, l.mergeFields(nil))
}

func (l *Logger) logWithFields(level LogLevel, msg string, fields ...LogField) {
	l.writeLog(level, msg, l.mergeFields(fields))
}

// mergeFields merges span ids, persistent fields and call fields, later
// sources overriding earlier ones.
func (l *Logger) mergeFields(fields []LogField) map[string]interface{} {
	spanFields := extractContextFields(l.ctx)
	if len(spanFields) == 0 && len(l.fields) == 0 && len(fields) == 0 {
		return nil
	}
	merged := make(map[string]interface{}, len(spanFields)+len(l.fields)+len(fields))
	for k, v := range spanFields {
		merged[k] = v
	}
	for k, v := range l.fields {
		merged[k] = v
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	return merged
}

func (l *Logger) writeLog(level LogLevel, msg string, fields map[string]interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s: %s", GetTimestamp(), level, l.name, msg)
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	b.WriteByte('\n')

	outputMu.Lock()
	w := stdout
	if level >= ERROR {
		w = stderr
	}
	_, _ = io.WriteString(w, b.String())
	outputMu.Unlock()

	if hasSinks() {
		rec := Record{
			Time:    time.Now(),
			Level:   level,
			Logger:  l.name,
			Message: msg,
			Fields:  fields,
		}
		if sc := trace.SpanContextFromContext(contextOrBackground(l.ctx)); sc.IsValid() {
			rec.TraceID = sc.TraceID().String()
			rec.SpanID = sc.SpanID().String()
		}
		dispatch(rec)
	}
}

// GetTimestamp returns the current time in RFC3339. LOG_TIMESTAMP overrides it
// for deterministic test output.
func GetTimestamp() string {
	if override := os.Getenv("LOG_TIMESTAMP"); override != "" {
		return override
	}
	return time.Now().Format(time.RFC3339)
}

// extractContextFields returns trace_id and span_id of the span active in ctx.
func extractContextFields(ctx context.Context) map[string]interface{} {
	if ctx == nil {
		return nil
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return map[string]interface{}{
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	}
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
