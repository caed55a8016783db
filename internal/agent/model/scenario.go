package model

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted conversation replayed by ScriptedLLM.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// ThinkingDelayMs is applied before every response. Zero disables it.
	ThinkingDelayMs int `yaml:"thinking_delay_ms,omitempty"`

	// RAGAnswer is returned by ScriptedQuerier for every RAG query.
	RAGAnswer string `yaml:"rag_answer,omitempty"`

	Steps []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one scripted model response.
type ScenarioStep struct {
	// Trigger must match the request for the step to fire. Empty triggers
	// fire unconditionally. Supported forms:
	//   - "user_message"           any request
	//   - "tool_result:<name>"     the request carries a result of tool <name>
	//   - "contains:<text>"        case-insensitive substring of the request
	//   - anything else            same as contains:
	Trigger string `yaml:"trigger,omitempty"`

	Text      string     `yaml:"text,omitempty"`
	ToolCalls []ToolCall `yaml:"tool_calls,omitempty"`
	DelayMs   int        `yaml:"delay_ms,omitempty"`
}

// ToolCall is a function call emitted by a step.
type ToolCall struct {
	Name string                 `yaml:"name"`
	Args map[string]interface{} `yaml:"args"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	// #nosec G304 -- scenario path is operator supplied
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", path, err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}
	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Validate checks that the scenario is usable.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario must have at least one step")
	}
	for i, step := range s.Steps {
		if step.Text == "" && len(step.ToolCalls) == 0 {
			return fmt.Errorf("step[%d]: must have either text or tool_calls", i)
		}
		for j, tc := range step.ToolCalls {
			if tc.Name == "" {
				return fmt.Errorf("step[%d].tool_calls[%d]: name is required", i, j)
			}
		}
	}
	return nil
}

// thinkingDelay returns the delay for step i in milliseconds.
func (s *Scenario) thinkingDelay(i int) int {
	if i >= 0 && i < len(s.Steps) && s.Steps[i].DelayMs > 0 {
		return s.Steps[i].DelayMs
	}
	return s.ThinkingDelayMs
}

// StepMatcher walks a scenario in order. A step is consumed when its trigger
// matches; steps are never replayed.
type StepMatcher struct {
	scenario  *Scenario
	stepIndex int
}

// NewStepMatcher creates a matcher positioned at the first step.
func NewStepMatcher(scenario *Scenario) *StepMatcher {
	return &StepMatcher{scenario: scenario}
}

// next returns the first step at or after the current position whose trigger
// matches content, and its index. It returns -1 when nothing matches.
func (m *StepMatcher) next(content string) (*ScenarioStep, int) {
	for i := m.stepIndex; i < len(m.scenario.Steps); i++ {
		step := &m.scenario.Steps[i]
		if matchesTrigger(step.Trigger, content) {
			m.stepIndex = i + 1
			return step, i
		}
	}
	return nil, -1
}

func matchesTrigger(trigger string, content string) bool {
	switch {
	case trigger == "", trigger == "user_message":
		return true
	case strings.HasPrefix(trigger, "tool_result:"):
		return strings.Contains(content, "[tool_result:"+strings.TrimPrefix(trigger, "tool_result:")+"]")
	case strings.HasPrefix(trigger, "contains:"):
		trigger = strings.TrimPrefix(trigger, "contains:")
	}
	return strings.Contains(strings.ToLower(content), strings.ToLower(trigger))
}

// CurrentStepIndex returns the index of the next unconsumed step.
func (m *StepMatcher) CurrentStepIndex() int {
	return m.stepIndex
}

// HasMoreSteps reports whether any step is left.
func (m *StepMatcher) HasMoreSteps() bool {
	return m.stepIndex < len(m.scenario.Steps)
}

// Reset rewinds to the first step.
func (m *StepMatcher) Reset() {
	m.stepIndex = 0
}
