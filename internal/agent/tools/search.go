package tools

import (
	"errors"

	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/agenttool"
	"google.golang.org/adk/tool/geminitool"
)

const searchInstruction = `You are a search assistant. Use the google_search tool to find
information that answers the request, then reply with a short factual summary.`

// NewGoogleSearchTool creates google_search. Gemini does not accept its
// built-in search tool next to function tools, so search runs in a dedicated
// sub-agent that is exposed to the caller as a tool of the same name.
func (t *Toolset) NewGoogleSearchTool() (tool.Tool, error) {
	if t.deps.SearchModel == nil {
		return nil, errors.New("google_search requires a search model")
	}
	searchAgent, err := llmagent.New(llmagent.Config{
		Name:        NameGoogleSearch,
		Model:       t.deps.SearchModel,
		Description: "Searches the web with Google Search and summarises the findings.",
		Instruction: searchInstruction,
		Tools: []tool.Tool{
			geminitool.GoogleSearch{},
		},
	})
	if err != nil {
		return nil, err
	}
	return agenttool.New(searchAgent, nil), nil
}
