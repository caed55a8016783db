package chat

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/telcoagent/internal/agent/harness"
)

type fakeSender struct {
	mu       sync.Mutex
	resumed  string
	sessions int
	sent     []string
	sendErr  error
	state    map[string][]string
}

func (f *fakeSender) NewSession(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	return "new-session", nil
}

func (f *fakeSender) Resume(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed = id
	if id == "" {
		id = "s1"
	}
	return id, nil
}

func (f *fakeSender) Send(_ context.Context, sessionID, message string, onReply func(harness.Reply)) (*harness.TurnResult, error) {
	f.mu.Lock()
	f.sent = append(f.sent, sessionID+":"+message)
	err := f.sendErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	onReply(harness.Reply{Author: "greeter", Text: "Hello, what is your postcode?"})
	onReply(harness.Reply{Author: "diagnostic_agent", Text: "There is an outage.", IsFinal: true})
	return &harness.TurnResult{SessionID: sessionID}, nil
}

func (f *fakeSender) State(context.Context, string) (map[string][]string, error) {
	return f.state, nil
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// typed joins lines the way a terminal submits them.
func typed(lines ...string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\r") + "\r"
}

func runChat(t *testing.T, sender *fakeSender, input string, sessionID string) (string, *Chat) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	c := New(sender, Config{In: strings.NewReader(input), Out: &out, SessionID: sessionID})
	require.NoError(t, c.Run(ctx))
	return out.String(), c
}

func TestChatSendsMessages(t *testing.T) {
	sender := &fakeSender{}
	out, c := runChat(t, sender, typed("my internet is down", "", "/quit", "ignored"), "")

	assert.Equal(t, []string{"s1:my internet is down"}, sender.messages())
	assert.Equal(t, "s1", c.SessionID())
	assert.Contains(t, out, "greeter")
	assert.Contains(t, out, "Hello, what is your postcode?")
	assert.Contains(t, out, "diagnostic_agent")
	assert.Contains(t, out, "There is an outage.")
}

func TestChatAcceptsLineFeeds(t *testing.T) {
	sender := &fakeSender{}
	runChat(t, sender, "first\nsecond\n", "")
	assert.Equal(t, []string{"s1:first", "s1:second"}, sender.messages())
}

func TestChatResumesSession(t *testing.T) {
	sender := &fakeSender{}
	out, c := runChat(t, sender, "", "existing")
	assert.Equal(t, "existing", sender.resumed)
	assert.Equal(t, "existing", c.SessionID())
	assert.Contains(t, out, "session existing")
}

func TestChatCommands(t *testing.T) {
	sender := &fakeSender{state: map[string][]string{
		"post_code":  {"250601"},
		"issue_type": {"slow internet", "no connection"},
	}}
	out, c := runChat(t, sender, typed("/state", "/new", "hi"), "")

	assert.Contains(t, out, "250601")
	assert.Contains(t, out, "slow internet, no connection")
	assert.Equal(t, 1, sender.sessions)
	assert.Equal(t, "new-session", c.SessionID())
	assert.Equal(t, []string{"new-session:hi"}, sender.messages())
}

func TestChatEmptyState(t *testing.T) {
	out, _ := runChat(t, &fakeSender{}, typed("/state"), "")
	assert.Contains(t, out, "state is empty")
}

func TestChatReportsErrorsAndContinues(t *testing.T) {
	sender := &fakeSender{sendErr: errors.New("quota exceeded")}
	out, _ := runChat(t, sender, typed("one", "two"), "")
	assert.Contains(t, out, "quota exceeded")
	assert.Equal(t, []string{"s1:one", "s1:two"}, sender.messages())
}

func TestChatUnknownCommandSuggests(t *testing.T) {
	sender := &fakeSender{}
	out, _ := runChat(t, sender, typed("/stat", "/session"), "abc")
	assert.Contains(t, out, "did you mean /state?")
	assert.Contains(t, out, "session abc")
	assert.Empty(t, sender.messages())
}

func TestChatCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	defer pw.Close()

	c := New(&fakeSender{}, Config{In: pr, Out: &bytes.Buffer{}})
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("chat did not stop after cancellation")
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelQueuesInputWhileBusy(t *testing.T) {
	sender := &fakeSender{}
	m := newModel(context.Background(), sender, "s1", Config{})
	m.busy = true

	m.Update(keyRunes("second"))
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{"second"}, m.pending)
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "1 message queued")

	m.Update(turnDoneMsg{})
	assert.Empty(t, m.pending)
	assert.True(t, m.busy)

	for range m.events {
	}
	assert.Equal(t, []string{"s1:second"}, sender.messages())
}

func TestModelIgnoresBlankLines(t *testing.T) {
	m := newModel(context.Background(), &fakeSender{}, "s1", Config{})
	m.Update(keyRunes("   "))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, m.busy)
	assert.Empty(t, m.pending)
}

func TestModelCtrlCQuits(t *testing.T) {
	m := newModel(context.Background(), &fakeSender{}, "s1", Config{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestModelInputClosedWaitsForTurn(t *testing.T) {
	m := newModel(context.Background(), &fakeSender{}, "s1", Config{})
	m.busy = true

	m.Update(inputClosedMsg{})
	assert.False(t, m.quitting)

	m.Update(turnDoneMsg{})
	assert.True(t, m.quitting)
}

func TestModelQuitWaitsForQueuedOutput(t *testing.T) {
	m := newModel(context.Background(), &fakeSender{}, "s1", Config{})
	m.Init()
	require.True(t, m.printing)

	m.Update(keyRunes("/quit"))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.quitting)
	require.NotEmpty(t, m.outbox)
	if cmd != nil {
		_, isQuit := cmd().(tea.QuitMsg)
		assert.False(t, isQuit)
	}

	printed := 0
	for printed < 10 {
		_, cmd = m.Update(printedMsg{})
		printed++
		if cmd == nil {
			continue
		}
		if _, ok := cmd().(tea.QuitMsg); ok {
			break
		}
	}
	assert.Empty(t, m.outbox)
	assert.Equal(t, 3, printed)
}
