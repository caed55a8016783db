package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/cmd/launcher"
	"google.golang.org/adk/cmd/launcher/full"
)

var serveCmd = &cobra.Command{
	Use:   "serve [-- launcher args...]",
	Short: "Serve the agent tree with the ADK launcher",
	Long: `Hand the agent tree to the ADK launcher, which provides the console, the
REST API and the web UI. Everything after "--" goes to the launcher, e.g.

  telcoagent serve -- web api webui

Prometheus metrics are served on metrics.addr when it is set.`,
	Args: cobra.ArbitraryArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.shutdown()
	ctx := cmd.Context()

	if err := a.registerMetricsServer(); err != nil {
		return err
	}
	if err := a.start(ctx); err != nil {
		return err
	}

	root, _, err := a.buildAgent(ctx)
	if err != nil {
		return err
	}
	sessions, err := a.newSessionService()
	if err != nil {
		return err
	}

	l := full.NewLauncher()
	if err := l.Execute(ctx, &launcher.Config{
		AgentLoader:    agent.NewSingleLoader(root),
		SessionService: sessions,
	}, args); err != nil {
		return fmt.Errorf("launcher failed: %w\n\n%s", err, l.CommandLineSyntax())
	}
	return nil
}
