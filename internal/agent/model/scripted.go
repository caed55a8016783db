package model

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/moolen/telcoagent/internal/logging"
)

// ScenarioPrefix selects the scripted model, e.g. "mock:testdata/outage.yaml".
const ScenarioPrefix = "mock:"

// completedText is returned once every step has been consumed.
const completedText = "[scripted scenario completed]"

// ScriptedLLM implements model.LLM by replaying a Scenario. It lets the agent
// tree run end to end without network access.
type ScriptedLLM struct {
	scenario *Scenario
	matcher  *StepMatcher
	logger   *logging.Logger

	mu        sync.Mutex
	requests  int
	callCount int
	log       []ConversationEntry
}

// ConversationEntry records one request/response pair.
type ConversationEntry struct {
	Timestamp time.Time
	Request   string
	Response  string
	ToolCalls []string
}

// NewScriptedLLM loads the scenario at path.
func NewScriptedLLM(path string) (*ScriptedLLM, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, err
	}
	return NewScriptedLLMFromScenario(scenario), nil
}

// NewScriptedLLMFromScenario wraps an already loaded scenario.
func NewScriptedLLMFromScenario(scenario *Scenario) *ScriptedLLM {
	return &ScriptedLLM{
		scenario: scenario,
		matcher:  NewStepMatcher(scenario),
		logger:   logging.GetLogger("model.scripted").WithField("scenario", scenario.Name),
	}
}

// Name implements model.LLM.
func (m *ScriptedLLM) Name() string {
	return ScenarioPrefix + m.scenario.Name
}

// Scenario returns the scenario being replayed.
func (m *ScriptedLLM) Scenario() *Scenario {
	return m.scenario
}

// GenerateContent implements model.LLM. Streaming is ignored; exactly one
// response is yielded per call.
func (m *ScriptedLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		content := extractRequestContent(req)

		m.mu.Lock()
		m.requests++
		delay := time.Duration(m.scenario.thinkingDelay(m.matcher.CurrentStepIndex())) * time.Millisecond
		step, index := m.matcher.next(content)
		resp := m.buildResponse(step)
		m.record(content, resp)
		m.mu.Unlock()

		if delay > 0 {
			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			case <-time.After(delay):
			}
		}

		if step == nil {
			m.logger.Debug("No step matched request %d, completing", m.requests)
		} else {
			m.logger.Debug("Replaying step %d", index)
		}
		yield(resp, nil)
	}
}

// buildResponse converts a step to a model response. It must be called with
// m.mu held.
func (m *ScriptedLLM) buildResponse(step *ScenarioStep) *model.LLMResponse {
	if step == nil {
		return textResponse(completedText)
	}

	parts := make([]*genai.Part, 0, 1+len(step.ToolCalls))
	if step.Text != "" {
		parts = append(parts, &genai.Part{Text: step.Text})
	}
	for _, tc := range step.ToolCalls {
		args := tc.Args
		if args == nil {
			args = make(map[string]interface{})
		}
		m.callCount++
		parts = append(parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   fmt.Sprintf("scripted_call_%d", m.callCount),
				Name: tc.Name,
				Args: args,
			},
		})
	}

	return &model.LLMResponse{
		Content:      &genai.Content{Parts: parts, Role: genai.RoleModel},
		FinishReason: genai.FinishReasonStop,
		TurnComplete: true,
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			// #nosec G115 -- scripted estimates are small
			CandidatesTokenCount: int32(len(step.Text) / 4),
			// #nosec G115 -- scripted estimates are small
			TotalTokenCount: int32(len(step.Text) / 4),
		},
	}
}

func textResponse(text string) *model.LLMResponse {
	return &model.LLMResponse{
		Content: &genai.Content{
			Parts: []*genai.Part{{Text: text}},
			Role:  genai.RoleModel,
		},
		FinishReason: genai.FinishReasonStop,
		TurnComplete: true,
	}
}

func (m *ScriptedLLM) record(request string, resp *model.LLMResponse) {
	entry := ConversationEntry{
		Timestamp: time.Now(),
		Request:   truncateString(request, 200),
	}
	if resp != nil && resp.Content != nil {
		var texts []string
		for _, part := range resp.Content.Parts {
			if part.Text != "" {
				texts = append(texts, truncateString(part.Text, 100))
			}
			if part.FunctionCall != nil {
				entry.ToolCalls = append(entry.ToolCalls, part.FunctionCall.Name)
			}
		}
		entry.Response = strings.Join(texts, " | ")
	}
	m.log = append(m.log, entry)
}

// ConversationLog returns a copy of every recorded exchange.
func (m *ScriptedLLM) ConversationLog() []ConversationEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ConversationEntry{}, m.log...)
}

// Done reports whether every step has been replayed.
func (m *ScriptedLLM) Done() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.matcher.HasMoreSteps()
}

// Reset rewinds the scenario for a new conversation.
func (m *ScriptedLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matcher.Reset()
	m.requests = 0
	m.log = nil
}

// ScriptedQuerier answers every RAG query with the scenario's canned answer.
type ScriptedQuerier struct {
	Answer string
}

// Query implements tools.Querier.
func (q ScriptedQuerier) Query(context.Context, string) (string, error) {
	return q.Answer, nil
}

// extractRequestContent flattens the request into text for trigger matching.
// Tool results are rendered as "[tool_result:<name>] <json>".
func extractRequestContent(req *model.LLMRequest) string {
	if req == nil {
		return ""
	}
	var parts []string
	for _, content := range req.Contents {
		if content == nil {
			continue
		}
		for _, part := range content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" {
				parts = append(parts, part.Text)
			}
			if part.FunctionResponse != nil {
				respJSON, _ := json.Marshal(part.FunctionResponse.Response)
				parts = append(parts, fmt.Sprintf("[tool_result:%s] %s", part.FunctionResponse.Name, respJSON))
			}
		}
	}
	return strings.Join(parts, "\n")
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

var _ model.LLM = (*ScriptedLLM)(nil)
