package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete RESOURCE_NAME...",
	Short: "Delete hosted agents",
	Long: `Delete Agent Engine deployments by full resource name or by engine id.
Child resources such as sessions are deleted with the engine.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
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

	for _, name := range args {
		if err := client.Delete(ctx, name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", client.ResolveName(name))
	}
	return nil
}
