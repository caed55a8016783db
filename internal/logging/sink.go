package logging

import (
	"context"
	"fmt"
	"sync"

	cloudlogging "cloud.google.com/go/logging"
	"google.golang.org/api/option"
)

// Sink receives a copy of every entry written by any logger.
type Sink interface {
	Write(rec Record)
	Flush() error
}

var (
	sinksMu sync.RWMutex
	sinks   []Sink
)

// AddSink registers s to receive entries. It returns a function that removes it.
func AddSink(s Sink) func() {
	sinksMu.Lock()
	sinks = append(sinks, s)
	sinksMu.Unlock()

	return func() {
		sinksMu.Lock()
		defer sinksMu.Unlock()
		for i, existing := range sinks {
			if existing == s {
				sinks = append(sinks[:i], sinks[i+1:]...)
				return
			}
		}
	}
}

func hasSinks() bool {
	sinksMu.RLock()
	defer sinksMu.RUnlock()
	return len(sinks) > 0
}

func dispatch(rec Record) {
	sinksMu.RLock()
	defer sinksMu.RUnlock()
	for _, s := range sinks {
		s.Write(rec)
	}
}

func flushSinks() {
	sinksMu.RLock()
	defer sinksMu.RUnlock()
	for _, s := range sinks {
		_ = s.Flush()
	}
}

// cloudLogger is the subset of *cloudlogging.Logger used by CloudSink.
type cloudLogger interface {
	Log(e cloudlogging.Entry)
	Flush() error
}

// CloudSink mirrors entries to Google Cloud Logging. It is registered as a
// sink on Start and flushed and closed on Stop.
type CloudSink struct {
	project string
	logID   string
	opts    []option.ClientOption

	client *cloudlogging.Client
	logger cloudLogger
	remove func()
}

// NewCloudSink creates a sink writing to the log logID of project.
func NewCloudSink(project, logID string, opts ...option.ClientOption) *CloudSink {
	if logID == "" {
		logID = rootLoggerName
	}
	return &CloudSink{project: project, logID: logID, opts: opts}
}

// Start opens the Cloud Logging client and begins mirroring entries.
func (s *CloudSink) Start(ctx context.Context) error {
	if s.remove != nil {
		return nil
	}
	if s.project == "" {
		return fmt.Errorf("cloud logging requires a project")
	}
	client, err := cloudlogging.NewClient(ctx, s.project, s.opts...)
	if err != nil {
		return fmt.Errorf("failed to create cloud logging client: %w", err)
	}
	s.client = client
	s.logger = client.Logger(s.logID)
	s.remove = AddSink(s)
	return nil
}

// Stop detaches the sink, flushes buffered entries and closes the client.
func (s *CloudSink) Stop(ctx context.Context) error {
	if s.remove == nil {
		return nil
	}
	s.remove()
	s.remove = nil

	done := make(chan error, 1)
	go func() {
		if err := s.logger.Flush(); err != nil {
			done <- err
			return
		}
		done <- s.client.Close()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Name implements lifecycle.Component.
func (s *CloudSink) Name() string {
	return "Cloud Logging Sink"
}

// Write implements Sink.
func (s *CloudSink) Write(rec Record) {
	if s.logger == nil {
		return
	}
	s.logger.Log(s.toEntry(rec))
}

// Flush implements Sink.
func (s *CloudSink) Flush() error {
	if s.logger == nil {
		return nil
	}
	return s.logger.Flush()
}

func (s *CloudSink) toEntry(rec Record) cloudlogging.Entry {
	payload := make(map[string]interface{}, len(rec.Fields)+1)
	for k, v := range rec.Fields {
		payload[k] = fmt.Sprint(v)
	}
	payload["message"] = rec.Message

	entry := cloudlogging.Entry{
		Timestamp: rec.Time,
		Severity:  severityFor(rec.Level),
		Payload:   payload,
		Labels:    map[string]string{"logger": rec.Logger},
	}
	if rec.TraceID != "" {
		entry.Trace = fmt.Sprintf("projects/%s/traces/%s", s.project, rec.TraceID)
		entry.SpanID = rec.SpanID
	}
	return entry
}

func severityFor(level LogLevel) cloudlogging.Severity {
	switch level {
	case DEBUG:
		return cloudlogging.Debug
	case INFO:
		return cloudlogging.Info
	case WARN:
		return cloudlogging.Warning
	case ERROR:
		return cloudlogging.Error
	case FATAL:
		return cloudlogging.Critical
	default:
		return cloudlogging.Default
	}
}
