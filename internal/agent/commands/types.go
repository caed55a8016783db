// Package commands provides slash command handling for the interactive chat.
package commands

import "context"

// Command represents a parsed slash command.
type Command struct {
	Name string
	Args []string
}

// Result contains the result of command execution.
type Result struct {
	Success bool
	Message string
	IsInfo  bool // true for info messages (help, state, etc)
}

// Entry describes a command for the help display.
type Entry struct {
	Name        string // e.g., "help" (without the leading slash)
	Description string // e.g., "Show this help message"
	Usage       string // e.g., "/help" or "/resume <id>"
}

// Sessions is the session control a command may use.
type Sessions interface {
	NewSession(ctx context.Context, sessionID string) (string, error)
	Resume(ctx context.Context, sessionID string) (string, error)
	State(ctx context.Context, sessionID string) (map[string][]string, error)
}

// Context provides handlers access to chat state.
type Context struct {
	Ctx       context.Context
	SessionID string
	Sessions  Sessions
	Registry  *Registry

	SwitchSession func(id string) // Make id the active session
	QuitFunc      func()          // Signal the chat to end
}

// Handler is the interface that command handlers must implement.
type Handler interface {
	// Entry returns the command metadata for help display.
	Entry() Entry

	// Execute runs the command with the given context and arguments.
	Execute(ctx *Context, args []string) Result
}
