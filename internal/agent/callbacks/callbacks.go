// Package callbacks provides model callbacks that log every model exchange.
// They never alter the request or the response.
package callbacks

import (
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/moolen/telcoagent/internal/logging"
)

const maxLoggedText = 500

// BeforeModel logs the agent name and the most recent user text.
func BeforeModel(ctx agent.CallbackContext, req *model.LLMRequest) (*model.LLMResponse, error) {
	logging.GetLogger("callbacks").WithContext(ctx).InfoWithFields("Before model call",
		logging.Field("agent", ctx.AgentName()),
		logging.Field("text", truncate(lastUserText(req), maxLoggedText)),
	)
	return nil, nil
}

// AfterModel logs the agent name and the response text, or the model error.
func AfterModel(ctx agent.CallbackContext, resp *model.LLMResponse, respErr error) (*model.LLMResponse, error) {
	l := logging.GetLogger("callbacks").WithContext(ctx).WithField("agent", ctx.AgentName())
	if respErr != nil {
		l.Error("Model call failed: %v", respErr)
		return nil, nil
	}
	l.InfoWithFields("After model call", logging.Field("text", truncate(responseText(resp), maxLoggedText)))
	return nil, nil
}

// Before returns the before-model callbacks to attach to an agent.
func Before() []llmagent.BeforeModelCallback {
	return []llmagent.BeforeModelCallback{BeforeModel}
}

// After returns the after-model callbacks to attach to an agent.
func After() []llmagent.AfterModelCallback {
	return []llmagent.AfterModelCallback{AfterModel}
}

func lastUserText(req *model.LLMRequest) string {
	if req == nil {
		return ""
	}
	for i := len(req.Contents) - 1; i >= 0; i-- {
		c := req.Contents[i]
		if c == nil || c.Role != genai.RoleUser {
			continue
		}
		if text := contentText(c); text != "" {
			return text
		}
	}
	return ""
}

func responseText(resp *model.LLMResponse) string {
	if resp == nil {
		return ""
	}
	return contentText(resp.Content)
}

func contentText(c *genai.Content) string {
	if c == nil {
		return ""
	}
	var text string
	for _, p := range c.Parts {
		if p == nil || p.Thought {
			continue
		}
		if p.Text != "" {
			text += p.Text
		}
		if p.FunctionCall != nil {
			text += "[call " + p.FunctionCall.Name + "]"
		}
	}
	return text
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
