// Package model resolves model names to ADK model.LLM implementations.
//
// Names are resolved as follows:
//   - "mock:<path>"  a ScriptedLLM replaying the scenario file at path
//   - "claude-*"     Claude through the Anthropic Messages API
//   - anything else  Gemini through Vertex AI, or the Gemini API when only an
//     API key is configured
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"github.com/moolen/telcoagent/internal/logging"
)

// Options configures model backends.
type Options struct {
	Project  string
	Location string
	// APIKey selects the Gemini API instead of Vertex AI.
	APIKey string
}

// Factory builds models by name and caches them so agents naming the same
// model share one client.
type Factory struct {
	opts   Options
	logger *logging.Logger

	mu     sync.Mutex
	models map[string]model.LLM
}

// NewFactory creates a model factory.
func NewFactory(opts Options) *Factory {
	return &Factory{
		opts:   opts,
		logger: logging.GetLogger("model"),
		models: make(map[string]model.LLM),
	}
}

// Register makes m available under name, replacing any cached model.
func (f *Factory) Register(name string, m model.LLM) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models[name] = m
}

// Model returns the model for name, creating it on first use.
func (f *Factory) Model(ctx context.Context, name string) (model.LLM, error) {
	if name == "" {
		return nil, errors.New("model name must not be empty")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.models[name]; ok {
		return m, nil
	}

	m, err := f.create(ctx, name)
	if err != nil {
		return nil, err
	}
	f.models[name] = m
	return m, nil
}

func (f *Factory) create(ctx context.Context, name string) (model.LLM, error) {
	switch {
	case strings.HasPrefix(name, ScenarioPrefix):
		path := strings.TrimPrefix(name, ScenarioPrefix)
		f.logger.Info("Using scripted model from %s", path)
		return NewScriptedLLM(path)

	case strings.HasPrefix(name, ClaudePrefix):
		f.logger.Info("Using Claude model %s", name)
		return NewClaudeLLM(ctx, name, f.opts.Project, f.opts.Location), nil

	default:
		cfg, err := f.ClientConfig()
		if err != nil {
			return nil, err
		}
		m, err := gemini.NewModel(ctx, name, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini model %q: %w", name, err)
		}
		f.logger.Info("Using Gemini model %s (%s)", name, backendName(cfg.Backend))
		return m, nil
	}
}

// ClientConfig returns the genai client configuration for the configured
// backend. Vertex AI wins when a project is set.
func (f *Factory) ClientConfig() (*genai.ClientConfig, error) {
	switch {
	case f.opts.Project != "":
		if f.opts.Location == "" {
			return nil, errors.New("location is required for Vertex AI")
		}
		return &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  f.opts.Project,
			Location: f.opts.Location,
		}, nil
	case f.opts.APIKey != "":
		return &genai.ClientConfig{
			Backend: genai.BackendGeminiAPI,
			APIKey:  f.opts.APIKey,
		}, nil
	default:
		return nil, errors.New("no model backend configured: set GOOGLE_CLOUD_PROJECT or GOOGLE_API_KEY")
	}
}

// NewGenAIClient creates a genai client for the configured backend.
func (f *Factory) NewGenAIClient(ctx context.Context) (*genai.Client, error) {
	cfg, err := f.ClientConfig()
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

// IsScripted reports whether name selects the scripted model.
func IsScripted(name string) bool {
	return strings.HasPrefix(name, ScenarioPrefix)
}

func backendName(b genai.Backend) string {
	if b == genai.BackendVertexAI {
		return "vertex"
	}
	return "gemini-api"
}
