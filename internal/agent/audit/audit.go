// Package audit writes a JSONL transcript of agent runs: user messages, agent
// text, tool calls and results, state changes and transfers between agents.
// Each line is one Event.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"google.golang.org/adk/session"
)

// EventType represents the type of audit event.
type EventType string

const (
	EventTypeSessionStart  EventType = "session_start"
	EventTypeUserMessage   EventType = "user_message"
	EventTypeAgentText     EventType = "agent_text"
	EventTypeToolCall      EventType = "tool_call"
	EventTypeToolResult    EventType = "tool_result"
	EventTypeStateDelta    EventType = "state_delta"
	EventTypeAgentTransfer EventType = "agent_transfer"
	EventTypeTurnComplete  EventType = "turn_complete"
	EventTypeError         EventType = "error"
	EventTypeSessionEnd    EventType = "session_end"
)

// maxTextLen bounds free text copied into the transcript.
const maxTextLen = 2000

// Event represents a single audit log line.
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      EventType              `json:"type"`
	SessionID string                 `json:"session_id"`
	Agent     string                 `json:"agent,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Logger writes audit events to a JSONL file. A nil *Logger discards events,
// so callers do not need to check whether auditing is enabled.
type Logger struct {
	file      *os.File
	writer    *bufio.Writer
	mutex     sync.Mutex
	sessionID string
	now       func() time.Time
}

// NewLogger opens filePath for appending.
func NewLogger(filePath, sessionID string) (*Logger, error) {
	// #nosec G304 -- audit log path is operator configuration
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &Logger{
		file:      file,
		writer:    bufio.NewWriter(file),
		sessionID: sessionID,
		now:       time.Now,
	}, nil
}

// SessionID returns the session the logger records.
func (l *Logger) SessionID() string {
	if l == nil {
		return ""
	}
	return l.sessionID
}

// SetSessionID labels subsequent events with id. An empty id is ignored.
func (l *Logger) SetSessionID(id string) {
	if l == nil || id == "" {
		return
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.sessionID = id
}

func (l *Logger) write(eventType EventType, agentName string, data map[string]interface{}) error {
	if l == nil {
		return nil
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()

	line, err := json.Marshal(Event{
		Timestamp: l.now().UTC(),
		Type:      eventType,
		SessionID: l.sessionID,
		Agent:     agentName,
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	if _, err := l.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	// Flush per line so a crashed run still leaves a usable transcript.
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush audit log: %w", err)
	}
	return nil
}

// LogSessionStart records the application, model and user of a session.
func (l *Logger) LogSessionStart(appName, model, userID string) error {
	return l.write(EventTypeSessionStart, "", map[string]interface{}{
		"app_name": appName,
		"model":    model,
		"user_id":  userID,
	})
}

// LogUserMessage records a message sent by the customer.
func (l *Logger) LogUserMessage(message string) error {
	return l.write(EventTypeUserMessage, "", map[string]interface{}{
		"message": truncateString(message, maxTextLen),
	})
}

// LogAgentText records text produced by an agent.
func (l *Logger) LogAgentText(agentName, content string, isFinal bool) error {
	return l.write(EventTypeAgentText, agentName, map[string]interface{}{
		"content":  truncateString(content, maxTextLen),
		"is_final": isFinal,
	})
}

// LogToolCall records a tool invocation requested by the model.
func (l *Logger) LogToolCall(agentName, toolName string, args map[string]interface{}) error {
	return l.write(EventTypeToolCall, agentName, map[string]interface{}{
		"tool_name": toolName,
		"args":      args,
	})
}

// LogToolResult records the response a tool returned.
func (l *Logger) LogToolResult(agentName, toolName string, response map[string]interface{}) error {
	_, failed := response["error"]
	return l.write(EventTypeToolResult, agentName, map[string]interface{}{
		"tool_name": toolName,
		"success":   !failed,
		"response":  response,
	})
}

// LogStateDelta records the session state keys an event changed.
func (l *Logger) LogStateDelta(agentName string, delta map[string]interface{}) error {
	keys := make([]string, 0, len(delta))
	for k := range delta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return l.write(EventTypeStateDelta, agentName, map[string]interface{}{
		"keys":   keys,
		"values": delta,
	})
}

// LogAgentTransfer records control moving between agents.
func (l *Logger) LogAgentTransfer(fromAgent, toAgent string) error {
	return l.write(EventTypeAgentTransfer, fromAgent, map[string]interface{}{
		"from_agent": fromAgent,
		"to_agent":   toAgent,
	})
}

// LogTurnComplete records the end of one user turn.
func (l *Logger) LogTurnComplete(events int, duration time.Duration) error {
	return l.write(EventTypeTurnComplete, "", map[string]interface{}{
		"events":      events,
		"duration_ms": duration.Milliseconds(),
	})
}

// LogError records an error raised while running the agents.
func (l *Logger) LogError(agentName string, err error) error {
	if err == nil {
		return nil
	}
	return l.write(EventTypeError, agentName, map[string]interface{}{
		"error": err.Error(),
	})
}

// LogSessionEnd records the end of a session.
func (l *Logger) LogSessionEnd() error {
	return l.write(EventTypeSessionEnd, "", nil)
}

// Record writes the audit lines for one ADK event: tool calls, tool results,
// agent text, state changes and transfers, in that order.
func (l *Logger) Record(ev *session.Event) error {
	if l == nil || ev == nil {
		return nil
	}
	var errs []error
	if ev.Content != nil {
		for _, part := range ev.Content.Parts {
			switch {
			case part.FunctionCall != nil:
				errs = append(errs, l.LogToolCall(ev.Author, part.FunctionCall.Name, part.FunctionCall.Args))
			case part.FunctionResponse != nil:
				errs = append(errs, l.LogToolResult(ev.Author, part.FunctionResponse.Name, part.FunctionResponse.Response))
			case part.Text != "" && !part.Thought:
				errs = append(errs, l.LogAgentText(ev.Author, part.Text, ev.IsFinalResponse()))
			}
		}
	}
	if len(ev.Actions.StateDelta) > 0 {
		errs = append(errs, l.LogStateDelta(ev.Author, ev.Actions.StateDelta))
	}
	if ev.Actions.TransferToAgent != "" {
		errs = append(errs, l.LogAgentTransfer(ev.Author, ev.Actions.TransferToAgent))
	}
	return errors.Join(errs...)
}

// Close flushes pending writes and closes the file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()

	var errs []error
	if err := l.writer.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush audit log: %w", err))
	}
	if err := l.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close audit log file: %w", err))
	}
	return errors.Join(errs...)
}

// ReadEvents parses a JSONL transcript.
func ReadEvents(filePath string) ([]Event, error) {
	// #nosec G304 -- reads a transcript the operator points at
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("audit log line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return events, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "...[truncated]"
}
