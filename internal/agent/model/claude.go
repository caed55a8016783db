package model

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/vertex"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// ClaudePrefix selects the Claude adapter for a model name.
const ClaudePrefix = "claude-"

const defaultClaudeMaxTokens = 4096

// messageCreator is the subset of anthropic.MessageService used by ClaudeLLM.
type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// ClaudeLLM implements model.LLM on the Anthropic Messages API. Requests are
// sent through Vertex AI when a project is configured, otherwise to the
// Anthropic API with ANTHROPIC_API_KEY.
type ClaudeLLM struct {
	name      string
	maxTokens int64
	messages  messageCreator
}

// NewClaudeLLM creates the adapter. With a project and location the client
// authenticates with Google application default credentials.
func NewClaudeLLM(ctx context.Context, name, project, location string) *ClaudeLLM {
	var opts []option.RequestOption
	if project != "" && location != "" {
		opts = append(opts, vertex.WithGoogleAuth(ctx, location, project))
	}
	client := anthropic.NewClient(opts...)
	return &ClaudeLLM{
		name:      name,
		maxTokens: defaultClaudeMaxTokens,
		messages:  &client.Messages,
	}
}

// Name implements model.LLM.
func (c *ClaudeLLM) Name() string {
	return c.name
}

// GenerateContent implements model.LLM. Only non-streaming calls are made.
func (c *ClaudeLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := c.messages.New(ctx, c.buildParams(req))
		if err != nil {
			yield(nil, fmt.Errorf("claude messages call failed: %w", err))
			return
		}
		yield(convertClaudeResponse(resp), nil)
	}
}

func (c *ClaudeLLM) buildParams(req *model.LLMRequest) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.name),
		MaxTokens: c.maxTokens,
	}
	if req == nil {
		return params
	}

	cfg := req.Config
	if cfg != nil {
		if system := extractSystemPrompt(cfg); system != "" {
			params.System = []anthropic.TextBlockParam{{Text: system}}
		}
		if cfg.Temperature != nil {
			params.Temperature = anthropic.Float(float64(*cfg.Temperature))
		}
		if cfg.MaxOutputTokens > 0 {
			params.MaxTokens = int64(cfg.MaxOutputTokens)
		}
		params.Tools = convertTools(cfg)
	}
	params.Messages = convertContents(req.Contents)
	return params
}

func extractSystemPrompt(cfg *genai.GenerateContentConfig) string {
	if cfg == nil || cfg.SystemInstruction == nil {
		return ""
	}
	var parts []string
	for _, part := range cfg.SystemInstruction.Parts {
		if part != nil && part.Text != "" {
			parts = append(parts, part.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// convertContents maps genai contents to Anthropic messages. Consecutive
// contents with the same role are merged since the API requires alternation.
func convertContents(contents []*genai.Content) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	var lastRole string

	for _, content := range contents {
		if content == nil {
			continue
		}
		role := genai.RoleUser
		if content.Role == genai.RoleModel {
			role = genai.RoleModel
		}

		blocks := convertParts(content.Parts)
		if len(blocks) == 0 {
			continue
		}

		if role == lastRole && len(messages) > 0 {
			last := &messages[len(messages)-1]
			last.Content = append(last.Content, blocks...)
			continue
		}
		if role == genai.RoleModel {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
		lastRole = role
	}
	return messages
}

func convertParts(parts []*genai.Part) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	for _, part := range parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(part.Text))
		}
		if fc := part.FunctionCall; fc != nil {
			args := fc.Args
			if args == nil {
				args = map[string]any{}
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(fc.ID, args, fc.Name))
		}
		if fr := part.FunctionResponse; fr != nil {
			result := ""
			if fr.Response != nil {
				if b, err := json.Marshal(fr.Response); err == nil {
					result = string(b)
				}
			}
			_, isErr := fr.Response["error"]
			blocks = append(blocks, anthropic.NewToolResultBlock(fr.ID, result, isErr))
		}
	}
	return blocks
}

func convertTools(cfg *genai.GenerateContentConfig) []anthropic.ToolUnionParam {
	var tools []anthropic.ToolUnionParam
	for _, t := range cfg.Tools {
		if t == nil {
			continue
		}
		for _, fn := range t.FunctionDeclarations {
			if fn == nil {
				continue
			}
			schema := convertSchemaToMap(fn.Parameters, fn.ParametersJsonSchema)
			required, _ := schema["required"].([]string)
			tools = append(tools, anthropic.ToolUnionParam{
				OfTool: &anthropic.ToolParam{
					Name:        fn.Name,
					Description: anthropic.String(fn.Description),
					InputSchema: anthropic.ToolInputSchemaParam{
						Properties: schema["properties"],
						Required:   required,
					},
				},
			})
		}
	}
	return tools
}

// convertSchemaToMap renders a genai schema, or a raw JSON schema, as a map.
func convertSchemaToMap(schema *genai.Schema, jsonSchema any) map[string]interface{} {
	if jsonSchema != nil {
		if m, ok := jsonSchema.(map[string]interface{}); ok {
			return normalizeRequired(m)
		}
		if data, err := json.Marshal(jsonSchema); err == nil {
			var m map[string]interface{}
			if json.Unmarshal(data, &m) == nil {
				return normalizeRequired(m)
			}
		}
	}

	if schema == nil {
		return map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	}

	result := map[string]interface{}{"type": schemaTypeToString(schema.Type)}
	if schema.Description != "" {
		result["description"] = schema.Description
	}
	if len(schema.Properties) > 0 {
		props := make(map[string]interface{}, len(schema.Properties))
		for name, prop := range schema.Properties {
			props[name] = convertSchemaToMap(prop, nil)
		}
		result["properties"] = props
	}
	if len(schema.Required) > 0 {
		result["required"] = schema.Required
	}
	if schema.Items != nil {
		result["items"] = convertSchemaToMap(schema.Items, nil)
	}
	if len(schema.Enum) > 0 {
		result["enum"] = schema.Enum
	}
	return result
}

// normalizeRequired turns a JSON-decoded required list into []string.
func normalizeRequired(m map[string]interface{}) map[string]interface{} {
	raw, ok := m["required"].([]interface{})
	if !ok {
		return m
	}
	required := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			required = append(required, s)
		}
	}
	m["required"] = required
	return m
}

func schemaTypeToString(t genai.Type) string {
	switch t {
	case genai.TypeString:
		return "string"
	case genai.TypeNumber:
		return "number"
	case genai.TypeInteger:
		return "integer"
	case genai.TypeBoolean:
		return "boolean"
	case genai.TypeArray:
		return "array"
	default:
		return "object"
	}
}

func convertClaudeResponse(resp *anthropic.Message) *model.LLMResponse {
	if resp == nil {
		return &model.LLMResponse{TurnComplete: true}
	}

	parts := make([]*genai.Part, 0, len(resp.Content))
	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			parts = append(parts, &genai.Part{Text: block.Text})
		case "tool_use":
			var args map[string]any
			if len(block.Input) > 0 {
				_ = json.Unmarshal(block.Input, &args)
			}
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{ID: block.ID, Name: block.Name, Args: args},
			})
		}
	}

	finish := genai.FinishReasonStop
	if resp.StopReason == anthropic.StopReasonMaxTokens {
		finish = genai.FinishReasonMaxTokens
	}

	return &model.LLMResponse{
		Content:      &genai.Content{Parts: parts, Role: genai.RoleModel},
		FinishReason: finish,
		TurnComplete: true,
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			// #nosec G115 -- token counts are bounded by the context window
			PromptTokenCount: int32(resp.Usage.InputTokens),
			// #nosec G115 -- token counts are bounded by the context window
			CandidatesTokenCount: int32(resp.Usage.OutputTokens),
			// #nosec G115 -- token counts are bounded by the context window
			TotalTokenCount: int32(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
}

var _ model.LLM = (*ClaudeLLM)(nil)
