package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/moolen/telcoagent/internal/agent/commands"
	"github.com/moolen/telcoagent/internal/agent/harness"
	"github.com/moolen/telcoagent/internal/logging"
)

const (
	defaultTitle = "Telco support agent"
	helpText     = "/help lists commands, /state shows what the agents recorded, /quit exits"
	placeholder  = "Describe the problem with your connection..."
	wrapWidth    = 76
)

// Model is the Bubble Tea model of the chat. Finished output is printed above
// the program with tea.Println so the conversation stays in the terminal
// scrollback; the view itself only holds the input line.
type Model struct {
	ctx      context.Context
	sender   Sender
	config   Config
	commands *commands.Registry
	logger   *logging.Logger

	input      textinput.Model
	mdRenderer *glamour.TermRenderer
	width      int

	sessionID string

	// Lines submitted while a turn is running wait here.
	pending []string
	// events streams the running turn; nil when idle.
	events     <-chan tea.Msg
	busy       bool
	lastAuthor string

	// outbox holds lines not yet printed; printing is set while one is in
	// flight so lines keep their order and a quit waits for them.
	outbox   []string
	printing bool

	inputClosed bool
	quitting    bool
}

func newModel(ctx context.Context, sender Sender, sessionID string, cfg Config) *Model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(">") + " "
	ti.Placeholder = placeholder
	ti.CharLimit = 4000
	ti.Focus()

	m := &Model{
		ctx:       ctx,
		sender:    sender,
		config:    cfg,
		commands:  commands.NewDefaultRegistry(),
		logger:    logging.GetLogger("chat"),
		input:     ti,
		sessionID: sessionID,
	}
	if cfg.Markdown {
		m.mdRenderer = m.newRenderer(wrapWidth)
	}
	return m
}

func (m *Model) newRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		m.logger.Warn("Markdown rendering disabled: %v", err)
		return nil
	}
	return r
}

// Init prints the banner and starts the cursor.
func (m *Model) Init() tea.Cmd {
	title := m.config.Title
	if title == "" {
		title = defaultTitle
	}
	return tea.Batch(
		m.emit(
			titleStyle.Render(title)+" "+helpStyle.Render("(session "+m.sessionID+")"),
			helpStyle.Render(helpText),
		),
		textinput.Blink,
	)
}

// emit queues lines for printing above the program.
func (m *Model) emit(lines ...string) tea.Cmd {
	m.outbox = append(m.outbox, lines...)
	return m.flushOutbox()
}

// flushOutbox prints the next queued line, or quits once everything is out
// and a quit was requested.
func (m *Model) flushOutbox() tea.Cmd {
	if m.printing {
		return nil
	}
	if len(m.outbox) == 0 {
		if m.quitting {
			return tea.Quit
		}
		return nil
	}
	line := m.outbox[0]
	m.outbox = m.outbox[1:]
	m.printing = true
	return tea.Sequence(tea.Println(line), func() tea.Msg { return printedMsg{} })
}

// sendCmd starts an agent turn and returns the command that waits for its
// first event.
func (m *Model) sendCmd(message string) tea.Cmd {
	events := make(chan tea.Msg, 16)
	m.events = events
	m.busy = true
	m.lastAuthor = ""

	ctx, sender, sessionID := m.ctx, m.sender, m.sessionID
	push := func(msg tea.Msg) {
		select {
		case events <- msg:
		case <-ctx.Done():
		}
	}
	go func() {
		defer close(events)
		_, err := sender.Send(ctx, sessionID, message, func(r harness.Reply) {
			push(replyMsg(r))
		})
		push(turnDoneMsg{err: err})
	}()
	return waitForEvent(events)
}

// waitForEvent returns a command that waits for the next turn event.
func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return turnDoneMsg{}
		}
		return msg
	}
}
