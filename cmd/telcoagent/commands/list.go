package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/moolen/telcoagent/internal/agentengine"
)

var listSince string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List hosted agents in the project",
	Long: `List the Agent Engine deployments of the configured project and location,
oldest first. Each entry prints the display name and the resource name.`,
	Example: `  telcoagent list
  telcoagent list --since "3 days ago"
  telcoagent list --since now-2h`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listSince, "since", "", "Only show agents created after this time")
}

func runList(cmd *cobra.Command, _ []string) error {
	since, err := parseSince(listSince, time.Now().UTC())
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.shutdown()
	ctx := cmd.Context()

	client, err := a.engineClient(ctx, false)
	if err != nil {
		return err
	}
	if err := a.start(ctx); err != nil {
		return err
	}

	engines, err := client.List(ctx, agentengine.ListOptions{Since: since})
	if err != nil {
		return err
	}
	printEngines(cmd.OutOrStdout(), engines)
	return nil
}
