// Package harness drives the agent tree locally through the ADK runner: it
// creates a session, streams a conversation turn and reports the text each
// agent produced.
package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/moolen/telcoagent/internal/agent/audit"
	"github.com/moolen/telcoagent/internal/agent/state"
	"github.com/moolen/telcoagent/internal/logging"
	"github.com/moolen/telcoagent/internal/metrics"
)

// Config contains the harness configuration.
type Config struct {
	AppName string
	UserID  string
	Agent   agent.Agent

	// Model is recorded in the audit transcript.
	Model string

	// SessionService defaults to an in-memory service.
	SessionService session.Service

	// Audit, when set, receives a transcript of every turn.
	Audit   *audit.Logger
	Metrics *metrics.Metrics
}

// Reply is one piece of text an agent produced during a turn.
type Reply struct {
	Author  string
	Text    string
	IsFinal bool
}

// TurnResult summarises one user turn.
type TurnResult struct {
	SessionID string
	Replies   []Reply
	// Agents lists event authors in the order they first spoke.
	Agents   []string
	Events   int
	Duration time.Duration
}

// FinalText returns the text of the last final reply, or "".
func (t *TurnResult) FinalText() string {
	for i := len(t.Replies) - 1; i >= 0; i-- {
		if t.Replies[i].IsFinal {
			return t.Replies[i].Text
		}
	}
	return ""
}

// Harness runs conversations against one agent tree.
type Harness struct {
	config   Config
	runner   *runner.Runner
	sessions session.Service
	logger   *logging.Logger
}

// New creates a harness.
func New(cfg Config) (*Harness, error) {
	if cfg.Agent == nil {
		return nil, errors.New("agent must not be nil")
	}
	if cfg.AppName == "" {
		return nil, errors.New("app name must not be empty")
	}
	if cfg.UserID == "" {
		return nil, errors.New("user id must not be empty")
	}
	if cfg.SessionService == nil {
		cfg.SessionService = session.InMemoryService()
	}

	r, err := runner.New(runner.Config{
		AppName:        cfg.AppName,
		Agent:          cfg.Agent,
		SessionService: cfg.SessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ADK runner: %w", err)
	}

	return &Harness{
		config:   cfg,
		runner:   r,
		sessions: cfg.SessionService,
		logger:   logging.GetLogger("harness"),
	}, nil
}

// NewSession creates a session for the configured user. An empty sessionID
// gets a random one.
func (h *Harness) NewSession(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	resp, err := h.sessions.Create(ctx, &session.CreateRequest{
		AppName:   h.config.AppName,
		UserID:    h.config.UserID,
		SessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	id := resp.Session.ID()
	h.config.Audit.SetSessionID(id)
	_ = h.config.Audit.LogSessionStart(h.config.AppName, h.config.Model, h.config.UserID)
	h.logger.Debug("Created session %s for user %s", id, h.config.UserID)
	return id, nil
}

// Resume returns sessionID if it exists, or creates it.
func (h *Harness) Resume(ctx context.Context, sessionID string) (string, error) {
	if sessionID != "" {
		_, err := h.sessions.Get(ctx, &session.GetRequest{
			AppName:   h.config.AppName,
			UserID:    h.config.UserID,
			SessionID: sessionID,
		})
		if err == nil {
			h.config.Audit.SetSessionID(sessionID)
			h.logger.Info("Resuming session %s", sessionID)
			return sessionID, nil
		}
	}
	return h.NewSession(ctx, sessionID)
}

// Send streams one user message through the agent tree. onReply, when set,
// is called for every text part as it arrives.
func (h *Harness) Send(ctx context.Context, sessionID, message string, onReply func(Reply)) (*TurnResult, error) {
	start := time.Now()
	result := &TurnResult{SessionID: sessionID}
	_ = h.config.Audit.LogUserMessage(message)

	content := genai.NewContentFromText(message, genai.RoleUser)
	seen := make(map[string]bool)
	var currentAgent string

	for event, err := range h.runner.Run(ctx, h.config.UserID, sessionID, content, agent.RunConfig{}) {
		if err != nil {
			_ = h.config.Audit.LogError(currentAgent, err)
			return result, fmt.Errorf("agent error: %w", err)
		}
		if event == nil {
			continue
		}
		result.Events++
		h.config.Metrics.ObserveEvent(event.Author)
		if err := h.config.Audit.Record(event); err != nil {
			h.logger.Warn("Failed to write audit event: %v", err)
		}

		if event.Author != "" && event.Author != currentAgent {
			currentAgent = event.Author
			if !seen[currentAgent] {
				seen[currentAgent] = true
				result.Agents = append(result.Agents, currentAgent)
			}
		}

		if event.Content == nil {
			continue
		}
		final := event.IsFinalResponse()
		for _, part := range event.Content.Parts {
			if part == nil || part.Text == "" || part.Thought {
				continue
			}
			reply := Reply{Author: event.Author, Text: part.Text, IsFinal: final}
			result.Replies = append(result.Replies, reply)
			if onReply != nil {
				onReply(reply)
			}
		}
	}

	result.Duration = time.Since(start)
	_ = h.config.Audit.LogTurnComplete(result.Events, result.Duration)
	return result, nil
}

// Run creates a fresh session, sends message and logs every text part as
// "[local test] <text>".
func (h *Harness) Run(ctx context.Context, message string) (*TurnResult, error) {
	if strings.TrimSpace(message) == "" {
		message = DefaultMessage
	}
	sessionID, err := h.NewSession(ctx, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = h.config.Audit.LogSessionEnd() }()

	return h.Send(ctx, sessionID, message, func(r Reply) {
		h.logger.Info("[local test] %s", r.Text)
	})
}

// State returns the session state as field -> accumulated values. Keys that
// do not hold string sequences are skipped.
func (h *Harness) State(ctx context.Context, sessionID string) (map[string][]string, error) {
	resp, err := h.sessions.Get(ctx, &session.GetRequest{
		AppName:   h.config.AppName,
		UserID:    h.config.UserID,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return state.Snapshot(resp.Session.State()), nil
}

// UserID returns the user the harness runs as.
func (h *Harness) UserID() string {
	return h.config.UserID
}
