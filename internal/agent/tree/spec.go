// Package tree describes the agent hierarchy as data and builds it into ADK
// agents. The built-in tree is the three-stage telco support flow:
// greeter, then diagnostic_agent, then troubleshooting_rag_agent.
package tree

import (
	"fmt"
	"regexp"
	"strings"
)

// AgentSpec declares one agent and its sub-agents.
type AgentSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Model overrides the default model for this agent only.
	Model       string `yaml:"model,omitempty"`
	Instruction string `yaml:"instruction"`
	// Temperature defaults to 0 when unset.
	Temperature *float32    `yaml:"temperature,omitempty"`
	Tools       []string    `yaml:"tools,omitempty"`
	SubAgents   []AgentSpec `yaml:"sub_agents,omitempty"`
}

// ValidationError reports a problem with one agent of the tree.
type ValidationError struct {
	Agent  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Agent == "" {
		return "invalid agent tree: " + e.Reason
	}
	return fmt.Sprintf("invalid agent %q: %s", e.Agent, e.Reason)
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ToolChecker reports whether a tool name can be resolved.
type ToolChecker interface {
	Has(name string) bool
}

// Validate checks names, instructions and, when tools is non-nil, that every
// tool name is known.
func (s *AgentSpec) Validate(tools ToolChecker) error {
	seen := make(map[string]bool)
	return s.validate(tools, seen)
}

func (s *AgentSpec) validate(tools ToolChecker, seen map[string]bool) error {
	name := strings.TrimSpace(s.Name)
	switch {
	case name == "":
		return &ValidationError{Reason: "agent name must not be empty"}
	case !identifierPattern.MatchString(name):
		return &ValidationError{Agent: name, Reason: "name must start with a letter or underscore and contain only letters, digits and underscores"}
	case name == "user":
		return &ValidationError{Agent: name, Reason: `"user" is reserved`}
	case seen[name]:
		return &ValidationError{Agent: name, Reason: "duplicate agent name"}
	case strings.TrimSpace(s.Instruction) == "":
		return &ValidationError{Agent: name, Reason: "instruction must not be empty"}
	}
	seen[name] = true

	toolSeen := make(map[string]bool, len(s.Tools))
	for _, t := range s.Tools {
		if toolSeen[t] {
			return &ValidationError{Agent: name, Reason: fmt.Sprintf("tool %q listed twice", t)}
		}
		toolSeen[t] = true
		if tools != nil && !tools.Has(t) {
			return &ValidationError{Agent: name, Reason: fmt.Sprintf("unknown tool %q", t)}
		}
	}

	if s.Temperature != nil && (*s.Temperature < 0 || *s.Temperature > 2) {
		return &ValidationError{Agent: name, Reason: "temperature must be between 0 and 2"}
	}

	for i := range s.SubAgents {
		if err := s.SubAgents[i].validate(tools, seen); err != nil {
			return err
		}
	}
	return nil
}

// Walk calls fn for s and every descendant, depth first, parents first.
func (s *AgentSpec) Walk(fn func(spec *AgentSpec, depth int)) {
	s.walk(fn, 0)
}

func (s *AgentSpec) walk(fn func(*AgentSpec, int), depth int) {
	fn(s, depth)
	for i := range s.SubAgents {
		s.SubAgents[i].walk(fn, depth+1)
	}
}

// Names returns every agent name in walk order.
func (s *AgentSpec) Names() []string {
	var names []string
	s.Walk(func(spec *AgentSpec, _ int) {
		names = append(names, spec.Name)
	})
	return names
}

// Find returns the agent named name, or nil.
func (s *AgentSpec) Find(name string) *AgentSpec {
	var found *AgentSpec
	s.Walk(func(spec *AgentSpec, _ int) {
		if found == nil && spec.Name == name {
			found = spec
		}
	})
	return found
}
