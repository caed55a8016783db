package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moolen/telcoagent/internal/agent/tools"
	"github.com/moolen/telcoagent/internal/agent/tree"
)

var treeOutline bool

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Validate and print the agent tree",
	Long: `Load the agent tree (the built-in telco tree, or --agent-tree), check it
and print it as YAML. With --outline only the agent hierarchy and tools are
printed.`,
	RunE: runTree,
}

func init() {
	treeCmd.Flags().BoolVar(&treeOutline, "outline", false, "Print the hierarchy instead of YAML")
}

func runTree(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.shutdown()

	spec, err := a.loadTree()
	if err != nil {
		return err
	}
	if err := spec.Validate(tools.NewRegistry(tools.Dependencies{})); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if treeOutline {
		fmt.Fprint(out, outline(spec, a.cfg.Model))
		return nil
	}
	data, err := tree.Marshal(spec)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// outline renders one indented line per agent with its model and tools.
func outline(spec *tree.AgentSpec, defaultModel string) string {
	var b strings.Builder
	spec.Walk(func(s *tree.AgentSpec, depth int) {
		model := s.Model
		if model == "" {
			model = defaultModel
		}
		fmt.Fprintf(&b, "%s%s (%s)", strings.Repeat("  ", depth), s.Name, model)
		if len(s.Tools) > 0 {
			fmt.Fprintf(&b, " tools: %s", strings.Join(s.Tools, ", "))
		}
		b.WriteString("\n")
	})
	return b.String()
}
