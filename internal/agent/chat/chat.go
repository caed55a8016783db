// Package chat is an interactive Bubble Tea front end over the harness.
// Agent replies are rendered as markdown when the output is a terminal.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/moolen/telcoagent/internal/agent/harness"
)

// Sender is the part of the harness the chat drives.
type Sender interface {
	NewSession(ctx context.Context, sessionID string) (string, error)
	Resume(ctx context.Context, sessionID string) (string, error)
	Send(ctx context.Context, sessionID, message string, onReply func(harness.Reply)) (*harness.TurnResult, error)
	State(ctx context.Context, sessionID string) (map[string][]string, error)
}

// Config configures a chat.
type Config struct {
	In  io.Reader
	Out io.Writer
	// Markdown renders replies with glamour.
	Markdown bool
	// SessionID resumes an existing session when set.
	SessionID string
	Title     string
}

// Chat runs an interactive conversation.
type Chat struct {
	sender    Sender
	config    Config
	sessionID string
}

// New creates a chat.
func New(sender Sender, cfg Config) *Chat {
	return &Chat{sender: sender, config: cfg}
}

// SessionID returns the active session. After Run it is the session the
// conversation ended in.
func (c *Chat) SessionID() string {
	return c.sessionID
}

// Run resumes or creates the session and runs the program until /quit,
// ctrl+c, the end of a piped input or cancellation.
func (c *Chat) Run(ctx context.Context) error {
	id, err := c.sender.Resume(ctx, c.config.SessionID)
	if err != nil {
		return err
	}
	c.sessionID = id

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newModel(ctx, c.sender, id, c.config)
	opts := []tea.ProgramOption{
		tea.WithOutput(c.config.Out),
		tea.WithContext(ctx),
	}
	var piped *closeNotifier
	if isTerminal(c.config.In) {
		opts = append(opts, tea.WithInput(c.config.In))
	} else {
		piped = &closeNotifier{r: c.config.In}
		opts = append(opts, tea.WithInput(piped))
	}

	p := tea.NewProgram(m, opts...)
	if piped != nil {
		piped.program = p
	}

	final, err := p.Run()
	if fm, ok := final.(*Model); ok && fm != nil {
		c.sessionID = fm.sessionID
	}
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("chat: %w", err)
	}
	return nil
}

// closeNotifier tells the program when a piped input is exhausted so a
// scripted conversation ends once its last line has been answered.
type closeNotifier struct {
	r       io.Reader
	program *tea.Program
}

func (c *closeNotifier) Read(p []byte) (int, error) {
	if c.r == nil {
		c.notify()
		return 0, io.EOF
	}
	n, err := c.r.Read(p)
	if errors.Is(err, io.EOF) {
		c.notify()
	}
	return n, err
}

func (c *closeNotifier) notify() {
	if c.program != nil {
		c.program.Send(inputClosedMsg{})
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
