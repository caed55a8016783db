package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	runMessage     string
	runMessageFile string
	runSessionDB   string
	runAuditLog    string
	runSessionID   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Send one message through the agent tree and print every reply",
	Long: `Run the local test harness: create a session, send one message and print
each text part the agents produce, prefixed with "[local test]".

Without --message the built-in vehicle-sales dialog is sent. Use
--model mock:<scenario.yaml> to run against a scripted model.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runMessage, "message", "m", "", "Message to send")
	runCmd.Flags().StringVar(&runMessageFile, "message-file", "", "Read the message from a file")
	runCmd.Flags().StringVar(&runSessionDB, "session-db", "", "SQLite file for persistent sessions (overrides SESSION_DB)")
	runCmd.Flags().StringVar(&runAuditLog, "audit-log", "", "Write a JSONL transcript to this file (overrides AUDIT_LOG)")
	runCmd.Flags().StringVar(&runSessionID, "session", "", "Continue an existing session instead of starting a new one")
}

func runRun(cmd *cobra.Command, _ []string) error {
	message, err := readMessage(runMessage, runMessageFile)
	if err != nil {
		return err
	}
	if runSessionID != "" && strings.TrimSpace(message) == "" {
		return fmt.Errorf("--message is required when continuing a session")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.shutdown()
	if runSessionDB != "" {
		a.cfg.Session.DBPath = runSessionDB
	}
	if runAuditLog != "" {
		a.cfg.Audit.Path = runAuditLog
	}
	if err := a.start(cmd.Context()); err != nil {
		return err
	}

	ctx := cmd.Context()
	sessions, err := a.newSessionService()
	if err != nil {
		return err
	}
	auditLog, err := a.newAudit(runSessionID)
	if err != nil {
		return err
	}
	defer func() { _ = auditLog.Close() }()

	h, err := a.newHarness(ctx, sessions, auditLog)
	if err != nil {
		return err
	}

	if runSessionID == "" {
		result, err := h.Run(ctx, message)
		if err != nil {
			return err
		}
		a.logger.Info("Session %s finished: %d events from %s in %s",
			result.SessionID, result.Events, strings.Join(result.Agents, " -> "), result.Duration.Round(time.Millisecond))
		return nil
	}

	sessionID, err := h.Resume(ctx, runSessionID)
	if err != nil {
		return err
	}
	result, err := h.Send(ctx, sessionID, message, nil)
	if err != nil {
		return err
	}
	for _, r := range result.Replies {
		a.logger.Info("[local test] %s", r.Text)
	}
	return nil
}

// readMessage returns the inline message, or the file contents when a file
// is named. Both empty yields "".
func readMessage(inline, path string) (string, error) {
	if inline != "" && path != "" {
		return "", fmt.Errorf("--message and --message-file are mutually exclusive")
	}
	if path == "" {
		return inline, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read message file: %w", err)
	}
	return string(data), nil
}
