package chat

import (
	"strconv"
	"strings"
)

// View renders the status and input lines.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	if m.busy {
		b.WriteString(helpStyle.Italic(true).Render("Agents are working..."))
		if n := len(m.pending); n > 0 {
			b.WriteString(helpStyle.Render(" (" + pluralLines(n) + " queued)"))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	return b.String()
}

func pluralLines(n int) string {
	if n == 1 {
		return "1 message"
	}
	return strconv.Itoa(n) + " messages"
}
