package commands

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/moolen/telcoagent/internal/agent/chat"
	"github.com/moolen/telcoagent/internal/agent/harness"
	"github.com/moolen/telcoagent/internal/agent/tree"
)

var (
	chatSessionID  string
	chatNoMarkdown bool
	chatWatch      bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the agent tree interactively",
	Long: `Start an interactive conversation with the agent tree on the terminal.

Sessions persist across restarts when SESSION_DB names a SQLite file; pass
--session to continue one. With --watch and an --agent-tree file, edits to
the tree are picked up between turns without losing the conversation.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "Resume this session id")
	chatCmd.Flags().BoolVar(&chatNoMarkdown, "no-markdown", false, "Print replies as plain text")
	chatCmd.Flags().BoolVar(&chatWatch, "watch", false, "Reload the agent tree file when it changes")
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.shutdown()
	ctx := cmd.Context()

	if chatWatch && a.cfg.AgentTree == "" {
		return errors.New("--watch needs an agent tree file (--agent-tree or AGENT_TREE)")
	}

	sessions, err := a.newSessionService()
	if err != nil {
		return err
	}
	auditLog, err := a.newAudit(chatSessionID)
	if err != nil {
		return err
	}
	defer func() { _ = auditLog.Close() }()

	registry, err := a.toolRegistry(ctx)
	if err != nil {
		return err
	}
	builder := tree.NewBuilder(a.models, registry, a.cfg.Model)
	current := &harnessHolder{}
	rebuild := func(spec *tree.AgentSpec) error {
		root, err := builder.Build(ctx, spec)
		if err != nil {
			return err
		}
		h, err := a.harnessFor(root, sessions, auditLog)
		if err != nil {
			return err
		}
		current.set(h)
		a.logger.Info("Agent tree ready: %v", spec.Names())
		return nil
	}

	if chatWatch {
		w, err := tree.NewWatcher(tree.WatcherConfig{
			FilePath:  a.cfg.AgentTree,
			Validator: registry,
		}, rebuild)
		if err != nil {
			return err
		}
		if err := a.manager.Register(w); err != nil {
			return err
		}
	} else {
		spec, err := a.loadTree()
		if err != nil {
			return err
		}
		if err := rebuild(spec); err != nil {
			return err
		}
	}
	if err := a.registerMetricsServer(); err != nil {
		return err
	}
	if err := a.start(ctx); err != nil {
		return err
	}

	markdown := !chatNoMarkdown && term.IsTerminal(int(os.Stdout.Fd()))
	return chat.New(current, chat.Config{
		In:        os.Stdin,
		Out:       os.Stdout,
		Markdown:  markdown,
		SessionID: chatSessionID,
		Title:     a.cfg.AppName,
	}).Run(ctx)
}

// harnessHolder lets the tree watcher swap the harness between turns. All
// harnesses share one session service, so sessions survive a swap.
type harnessHolder struct {
	mu sync.RWMutex
	h  *harness.Harness
}

func (s *harnessHolder) set(h *harness.Harness) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.h = h
}

func (s *harnessHolder) get() *harness.Harness {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h
}

func (s *harnessHolder) NewSession(ctx context.Context, sessionID string) (string, error) {
	return s.get().NewSession(ctx, sessionID)
}

func (s *harnessHolder) Resume(ctx context.Context, sessionID string) (string, error) {
	return s.get().Resume(ctx, sessionID)
}

func (s *harnessHolder) Send(ctx context.Context, sessionID, message string, onReply func(harness.Reply)) (*harness.TurnResult, error) {
	return s.get().Send(ctx, sessionID, message, onReply)
}

func (s *harnessHolder) State(ctx context.Context, sessionID string) (map[string][]string, error) {
	return s.get().State(ctx, sessionID)
}
