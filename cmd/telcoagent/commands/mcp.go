package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/moolen/telcoagent/internal/logging"
	"github.com/moolen/telcoagent/internal/mcp"
)

var (
	mcpTransport string
	mcpAddr      string
	mcpPath      string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the support tools over the Model Context Protocol",
	Long: `Serve fixed_diagnos and query_rag_tool as MCP tools, plus a
troubleshoot_internet prompt, so other agents can use them.

Transports:
  - http:  streamable HTTP on --addr at --path (stateless)
  - stdio: standard input/output for subprocess-based MCP clients`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpTransport, "transport", "http", "Transport type: http or stdio")
	mcpCmd.Flags().StringVar(&mcpAddr, "addr", ":8082", "HTTP listen address")
	mcpCmd.Flags().StringVar(&mcpPath, "path", "/mcp", "HTTP endpoint path")
}

func runMCP(cmd *cobra.Command, _ []string) error {
	if mcpTransport != "http" && mcpTransport != "stdio" {
		return fmt.Errorf("invalid transport type: %s (must be 'http' or 'stdio')", mcpTransport)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.shutdown()
	ctx := cmd.Context()

	// stdout carries the protocol in stdio mode.
	if mcpTransport == "stdio" {
		logging.SetOutput(os.Stderr, os.Stderr)
	}

	registry, err := a.toolRegistry(ctx)
	if err != nil {
		return err
	}
	srv, err := mcp.NewServer(registry, Version)
	if err != nil {
		return err
	}

	if err := a.registerMetricsServer(); err != nil {
		return err
	}

	if mcpTransport == "stdio" {
		if err := a.start(ctx); err != nil {
			return err
		}
		return srv.ServeStdio()
	}

	if err := a.manager.Register(mcp.NewHTTPServer(srv, mcpAddr, mcpPath)); err != nil {
		return err
	}
	if err := a.start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.logger.Info("Shutting down MCP server")
	return nil
}
