package chat

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/moolen/telcoagent/internal/agent/commands"
)

// Update handles all incoming messages and updates the model accordingly.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		if msg.Width != m.width {
			m.width = msg.Width
			m.input.Width = msg.Width - 4
			if m.config.Markdown && msg.Width > 8 {
				m.mdRenderer = m.newRenderer(min(msg.Width-4, wrapWidth))
			}
		}
		return m, nil

	case replyMsg:
		return m, tea.Batch(m.printReply(msg), waitForEvent(m.events))

	case printedMsg:
		m.printing = false
		return m, m.flushOutbox()

	case turnDoneMsg:
		return m.handleTurnDone(msg)

	case inputClosedMsg:
		m.inputClosed = true
		return m, m.drain()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "ctrl+d":
		if m.input.Value() == "" {
			m.inputClosed = true
			return m, m.drain()
		}

	// Piped input delivers a bare line feed as ctrl+j.
	case "enter", "ctrl+j":
		line := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if line == "" {
			return m, nil
		}
		m.pending = append(m.pending, line)
		return m, m.drain()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleTurnDone(msg turnDoneMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	m.events = nil

	var cmds []tea.Cmd
	if msg.err != nil {
		cmds = append(cmds, m.emit(errorStyle.Render("error: "+msg.err.Error())))
	}
	cmds = append(cmds, m.emit(separatorStyle.Render(strings.Repeat("─", 40))), m.drain())
	return m, tea.Batch(cmds...)
}

// drain submits queued lines until one starts an agent turn. Once the input
// is closed and nothing is left the program quits.
func (m *Model) drain() tea.Cmd {
	var cmds []tea.Cmd
	for !m.busy && !m.quitting && len(m.pending) > 0 {
		line := m.pending[0]
		m.pending = m.pending[1:]
		cmds = append(cmds, m.submit(line))
	}
	if !m.busy && !m.quitting && m.inputClosed {
		m.quitting = true
	}
	if m.quitting {
		m.pending = nil
		cmds = append(cmds, m.flushOutbox())
	}
	return tea.Batch(cmds...)
}

// submit runs a slash command or starts an agent turn for line.
func (m *Model) submit(line string) tea.Cmd {
	if cmd := commands.ParseCommand(line); cmd != nil {
		return m.execute(cmd)
	}
	return tea.Batch(
		m.emit(promptStyle.Render(">")+" "+line),
		m.sendCmd(line),
	)
}

// execute runs a slash command and prints its result.
func (m *Model) execute(cmd *commands.Command) tea.Cmd {
	result := m.commands.Execute(&commands.Context{
		Ctx:           m.ctx,
		SessionID:     m.sessionID,
		Sessions:      m.sender,
		SwitchSession: func(id string) { m.sessionID = id },
		QuitFunc:      func() { m.quitting = true },
	}, cmd)

	switch {
	case !result.Success:
		return m.emit(errorStyle.Render(result.Message))
	case m.quitting:
		return m.emit(helpStyle.Render(result.Message))
	default:
		return m.emit(result.Message)
	}
}

func (m *Model) printReply(r replyMsg) tea.Cmd {
	var b strings.Builder
	if r.Author != m.lastAuthor {
		b.WriteString(agentLabelStyle.Render(r.Author))
		b.WriteString("\n")
		m.lastAuthor = r.Author
	}
	b.WriteString(m.render(r.Text))
	return m.emit(b.String())
}

func (m *Model) render(text string) string {
	if m.mdRenderer == nil {
		return text
	}
	out, err := m.mdRenderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
