package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"google.golang.org/adk/tool"

	"github.com/moolen/telcoagent/internal/logging"
)

// MaxToolResponseBytes caps the data returned by Execute. RAG answers can be
// long and MCP clients feed them straight back into a model context.
const MaxToolResponseBytes = 50 * 1024

// Factory builds a fresh ADK tool.
type Factory func() (tool.Tool, error)

// Callable is a tool that can run outside an agent session. Only stateless
// tools are callable; append_to_state needs session state and is not.
type Callable interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, input json.RawMessage) (*Result, error)
}

// Result represents the output of a direct tool execution.
type Result struct {
	Success         bool        `json:"success"`
	Data            interface{} `json:"data,omitempty"`
	Error           string      `json:"error,omitempty"`
	ExecutionTimeMs int64       `json:"executionTimeMs"`
}

// UnknownToolError is returned when a name has no registered factory.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// Registry maps tool names to factories.
type Registry struct {
	factories map[string]Factory
	callables map[string]Callable
	mu        sync.RWMutex
	logger    *logging.Logger
}

// NewRegistry creates a registry with the built-in telco tools. Tools whose
// dependencies are missing are still registered and fail when resolved.
func NewRegistry(deps Dependencies) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		callables: make(map[string]Callable),
		logger:    logging.GetLogger("tools"),
	}

	ts := NewToolset(deps)
	r.Register(NameAppendToState, ts.NewAppendToStateTool)
	r.Register(NameFixedDiagnos, ts.NewFixedDiagnosTool)
	r.Register(NameQueryRAG, ts.NewQueryRAGTool)
	r.Register(NameGoogleSearch, ts.NewGoogleSearchTool)

	r.RegisterCallable(newCallable(NameFixedDiagnos,
		"Diagnose a customer's issue from their postcode: outage or device_issue.",
		map[string]interface{}{
			"post_code": map[string]interface{}{"type": "string", "description": "The customer's postcode"},
		},
		[]string{"post_code"},
		ts.fixedDiagnos,
	))
	if deps.RAG != nil {
		r.RegisterCallable(newCallable(NameQueryRAG,
			"Answer a troubleshooting question from the device manual knowledge base.",
			map[string]interface{}{
				"query": map[string]interface{}{"type": "string", "description": "The question to answer"},
			},
			[]string{"query"},
			ts.queryRAG,
		))
	}
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	r.logger.Debug("registered tool %s", name)
}

// RegisterCallable adds a tool that can be executed directly.
func (r *Registry) RegisterCallable(c Callable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callables[c.Name()] = c
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve builds the tools named, in order.
func (r *Registry) Resolve(names []string) ([]tool.Tool, error) {
	out := make([]tool.Tool, 0, len(names))
	for _, name := range names {
		r.mu.RLock()
		factory, ok := r.factories[name]
		r.mu.RUnlock()
		if !ok {
			return nil, &UnknownToolError{Name: name}
		}
		t, err := factory()
		if err != nil {
			return nil, fmt.Errorf("failed to build tool %q: %w", name, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// Callables returns the directly executable tools sorted by name.
func (r *Registry) Callables() []Callable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Callable, 0, len(r.callables))
	for _, c := range r.callables {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Execute runs a callable tool by name with the given input.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) *Result {
	r.mu.RLock()
	c, ok := r.callables[name]
	r.mu.RUnlock()
	if !ok {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("tool %q not found", name),
		}
	}

	start := time.Now()
	result, err := c.Execute(ctx, input)
	if err != nil {
		return &Result{
			Success:         false,
			Error:           err.Error(),
			ExecutionTimeMs: time.Since(start).Milliseconds(),
		}
	}
	result.ExecutionTimeMs = time.Since(start).Milliseconds()

	return truncateResult(result, MaxToolResponseBytes)
}

// callable adapts a typed handler to Callable.
type callable[A, R any] struct {
	name        string
	description string
	properties  map[string]interface{}
	required    []string
	handler     func(context.Context, A) (R, error)
}

func newCallable[A, R any](name, description string, properties map[string]interface{}, required []string, handler func(context.Context, A) (R, error)) *callable[A, R] {
	return &callable[A, R]{
		name:        name,
		description: description,
		properties:  properties,
		required:    required,
		handler:     handler,
	}
}

func (c *callable[A, R]) Name() string        { return c.name }
func (c *callable[A, R]) Description() string { return c.description }

func (c *callable[A, R]) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": c.properties,
		"required":   c.required,
	}
}

func (c *callable[A, R]) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var args A
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
	}
	out, err := c.handler(ctx, args)
	if err != nil {
		return nil, err
	}
	return &Result{Success: true, Data: out}, nil
}

// truncatedData replaces Result.Data when it exceeds the size limit.
type truncatedData struct {
	Truncated      bool   `json:"_truncated"`
	OriginalBytes  int    `json:"_original_bytes"`
	TruncatedBytes int    `json:"_truncated_bytes"`
	TruncationNote string `json:"_truncation_note"`
	PartialData    string `json:"partial_data"`
}

// truncateResult keeps the first ~80% of maxBytes of an oversized payload.
func truncateResult(result *Result, maxBytes int) *Result {
	if result == nil || result.Data == nil {
		return result
	}

	dataBytes, err := json.Marshal(result.Data)
	if err != nil {
		return result
	}
	if len(dataBytes) <= maxBytes {
		return result
	}

	partial := string(dataBytes)
	if limit := maxBytes * 80 / 100; len(partial) > limit {
		partial = partial[:limit]
	}

	return &Result{
		Success: result.Success,
		Data: &truncatedData{
			Truncated:      true,
			OriginalBytes:  len(dataBytes),
			TruncatedBytes: maxBytes,
			TruncationNote: fmt.Sprintf("Response truncated from %d to ~%d bytes. Ask a narrower question.", len(dataBytes), maxBytes),
			PartialData:    partial,
		},
		Error:           result.Error,
		ExecutionTimeMs: result.ExecutionTimeMs,
	}
}
