package commands

import (
	"fmt"
	"strings"
)

// HelpHandler implements the /help command.
type HelpHandler struct{}

func (h *HelpHandler) Entry() Entry {
	return Entry{
		Name:        "help",
		Description: "Show help message",
		Usage:       "/help",
	}
}

func (h *HelpHandler) Execute(ctx *Context, _ []string) Result {
	if ctx.Registry == nil {
		return Result{Success: false, Message: "no commands registered", IsInfo: true}
	}

	var msg strings.Builder
	msg.WriteString("Available Commands:\n\n")
	for _, e := range ctx.Registry.AllEntries() {
		fmt.Fprintf(&msg, "  %-20s %s\n", e.Usage, e.Description)
	}

	return Result{
		Success: true,
		Message: msg.String(),
		IsInfo:  true,
	}
}
