package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moolen/telcoagent/internal/agent/tools"
	"github.com/moolen/telcoagent/internal/agent/tree"
	"github.com/moolen/telcoagent/internal/agentengine"
)

var (
	deployDisplayName string
	deployDescription string
	deployPython      string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the agent tree to Vertex AI Agent Engine",
	Long: `Stage the agent tree and its requirements in the staging bucket, create a
hosted agent from them and print its resource name.

Note: the hosted google-adk runtime loads a pickled Python agent from the
package URI. The staged object is the agent tree YAML consumed by this
binary's Go runtime, so the created engine records the deployment but does
not serve the agent as-is. Serve the tree with "telcoagent serve" or provide
a Python wrapper that reads the staged YAML.`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringVar(&deployDisplayName, "display-name", "", "Display name (default: app_name)")
	deployCmd.Flags().StringVar(&deployDescription, "description", "", "Description (default: deploy.description)")
	deployCmd.Flags().StringVar(&deployPython, "python-version", "", "Runtime python version (default: deploy.python_version)")
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.shutdown()
	ctx := cmd.Context()

	spec, err := a.loadTree()
	if err != nil {
		return err
	}
	if err := spec.Validate(tools.NewRegistry(tools.Dependencies{})); err != nil {
		return err
	}
	treeYAML, err := tree.Marshal(spec)
	if err != nil {
		return err
	}

	client, err := a.engineClient(ctx, true)
	if err != nil {
		return err
	}
	if err := a.start(ctx); err != nil {
		return err
	}

	engine, err := client.Deploy(ctx, deployRequest(a, treeYAML))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), engine.ResourceName)
	return nil
}

func deployRequest(a *app, treeYAML []byte) agentengine.DeployRequest {
	req := agentengine.DeployRequest{
		DisplayName:   a.cfg.AppName,
		Description:   a.cfg.Deploy.Description,
		Tree:          treeYAML,
		Requirements:  a.cfg.Deploy.Requirements,
		PythonVersion: a.cfg.Deploy.PythonVersion,
		Env: map[string]string{
			"GOOGLE_CLOUD_PROJECT":  a.cfg.Project,
			"GOOGLE_CLOUD_LOCATION": a.cfg.Location,
			"APP_NAME":              a.cfg.AppName,
			"MODEL":                 a.cfg.Model,
			"RAG_CORPUS":            a.cfg.RAG.Corpus,
			"RAG_MODEL":             a.cfg.RAG.Model,
			"OUTAGE_POST_CODES":     strings.Join(a.cfg.Diagnosis.OutagePostCodes, ","),
		},
	}
	if deployDisplayName != "" {
		req.DisplayName = deployDisplayName
	}
	if deployDescription != "" {
		req.Description = deployDescription
	}
	if deployPython != "" {
		req.PythonVersion = deployPython
	}
	return req
}
