package commands

import (
	"fmt"
	"sort"
	"strings"
)

// StateHandler implements the /state command.
type StateHandler struct{}

func (h *StateHandler) Entry() Entry {
	return Entry{
		Name:        "state",
		Description: "Show what the agents recorded in this session",
		Usage:       "/state",
	}
}

func (h *StateHandler) Execute(ctx *Context, _ []string) Result {
	st, err := ctx.Sessions.State(ctx.Ctx, ctx.SessionID)
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	if len(st) == 0 {
		return Result{Success: true, Message: "state is empty", IsInfo: true}
	}

	keys := make([]string, 0, len(st))
	for k := range st {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var msg strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&msg, "%s: %s\n", k, strings.Join(st[k], ", "))
	}
	return Result{Success: true, Message: strings.TrimRight(msg.String(), "\n"), IsInfo: true}
}

// NewSessionHandler implements the /new command.
type NewSessionHandler struct{}

func (h *NewSessionHandler) Entry() Entry {
	return Entry{
		Name:        "new",
		Description: "Start a new session",
		Usage:       "/new",
	}
}

func (h *NewSessionHandler) Execute(ctx *Context, _ []string) Result {
	id, err := ctx.Sessions.NewSession(ctx.Ctx, "")
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	ctx.SwitchSession(id)
	return Result{Success: true, Message: "new session " + id, IsInfo: true}
}

// SessionHandler implements the /session command.
type SessionHandler struct{}

func (h *SessionHandler) Entry() Entry {
	return Entry{
		Name:        "session",
		Description: "Show the active session id",
		Usage:       "/session",
	}
}

func (h *SessionHandler) Execute(ctx *Context, _ []string) Result {
	return Result{Success: true, Message: "session " + ctx.SessionID, IsInfo: true}
}

// ResumeHandler implements the /resume command.
type ResumeHandler struct{}

func (h *ResumeHandler) Entry() Entry {
	return Entry{
		Name:        "resume",
		Description: "Switch to an existing session",
		Usage:       "/resume <id>",
	}
}

func (h *ResumeHandler) Execute(ctx *Context, args []string) Result {
	if len(args) != 1 {
		return Result{Success: false, Message: "Usage: /resume <id>"}
	}
	id, err := ctx.Sessions.Resume(ctx.Ctx, args[0])
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	ctx.SwitchSession(id)
	return Result{Success: true, Message: "resumed session " + id, IsInfo: true}
}
