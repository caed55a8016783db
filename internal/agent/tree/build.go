package tree

import (
	"context"
	"fmt"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"

	"github.com/moolen/telcoagent/internal/agent/callbacks"
	"github.com/moolen/telcoagent/internal/logging"
)

// ModelResolver returns the model for a name.
type ModelResolver interface {
	Model(ctx context.Context, name string) (model.LLM, error)
}

// ToolResolver turns tool names into ADK tools.
type ToolResolver interface {
	ToolChecker
	Resolve(names []string) ([]tool.Tool, error)
}

// Builder turns an AgentSpec into an ADK agent tree.
type Builder struct {
	models       ModelResolver
	tools        ToolResolver
	defaultModel string
	logger       *logging.Logger
}

// NewBuilder creates a builder. Agents without a model use defaultModel.
func NewBuilder(models ModelResolver, tools ToolResolver, defaultModel string) *Builder {
	return &Builder{
		models:       models,
		tools:        tools,
		defaultModel: defaultModel,
		logger:       logging.GetLogger("tree"),
	}
}

// Build validates spec against the tool registry and constructs the agents
// bottom-up. The returned agent is the root.
func (b *Builder) Build(ctx context.Context, spec *AgentSpec) (agent.Agent, error) {
	if spec == nil {
		return nil, &ValidationError{Reason: "agent tree is empty"}
	}
	if err := spec.Validate(b.tools); err != nil {
		return nil, err
	}
	root, err := b.build(ctx, spec)
	if err != nil {
		return nil, err
	}
	b.logger.Info("Built agent tree rooted at %s (%d agents)", spec.Name, len(spec.Names()))
	return root, nil
}

func (b *Builder) build(ctx context.Context, spec *AgentSpec) (agent.Agent, error) {
	subAgents := make([]agent.Agent, 0, len(spec.SubAgents))
	for i := range spec.SubAgents {
		sub, err := b.build(ctx, &spec.SubAgents[i])
		if err != nil {
			return nil, err
		}
		subAgents = append(subAgents, sub)
	}

	modelName := spec.Model
	if modelName == "" {
		modelName = b.defaultModel
	}
	llm, err := b.models.Model(ctx, modelName)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", spec.Name, err)
	}

	agentTools, err := b.tools.Resolve(spec.Tools)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", spec.Name, err)
	}

	temperature := float32(0)
	if spec.Temperature != nil {
		temperature = *spec.Temperature
	}

	a, err := llmagent.New(llmagent.Config{
		Name:        spec.Name,
		Description: spec.Description,
		Model:       llm,
		Instruction: spec.Instruction,
		GenerateContentConfig: &genai.GenerateContentConfig{
			Temperature: genai.Ptr(temperature),
		},
		Tools:                agentTools,
		SubAgents:            subAgents,
		BeforeModelCallbacks: callbacks.Before(),
		AfterModelCallbacks:  callbacks.After(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent %s: %w", spec.Name, err)
	}
	b.logger.Debug("Created agent %s (model=%s, tools=%v, sub_agents=%d)",
		spec.Name, llm.Name(), spec.Tools, len(subAgents))
	return a, nil
}
