// Package mcp exposes the stateless telco tools over the Model Context
// Protocol so other agents and IDEs can call fixed_diagnos and query_rag_tool
// without running the agent tree.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/moolen/telcoagent/internal/agent/tools"
	"github.com/moolen/telcoagent/internal/logging"
)

// ServerName is reported to MCP clients.
const ServerName = "Telco Agent MCP Server"

// ToolExecutor lists and runs directly callable tools.
type ToolExecutor interface {
	Callables() []tools.Callable
	Execute(ctx context.Context, name string, input json.RawMessage) *tools.Result
}

// Server wraps an mcp-go server around the tool registry.
type Server struct {
	mcpServer *server.MCPServer
	executor  ToolExecutor
	logger    *logging.Logger
}

// NewServer registers every callable tool of executor.
func NewServer(executor ToolExecutor, version string) (*Server, error) {
	if executor == nil {
		return nil, errors.New("tool executor must not be nil")
	}
	s := &Server{
		mcpServer: server.NewMCPServer(
			ServerName,
			version,
			server.WithToolCapabilities(false),
			server.WithPromptCapabilities(false),
			server.WithLogging(),
		),
		executor: executor,
		logger:   logging.GetLogger("mcp"),
	}

	for _, c := range executor.Callables() {
		if err := s.registerTool(c); err != nil {
			return nil, err
		}
	}
	s.registerPrompts()
	return s, nil
}

func (s *Server) registerTool(c tools.Callable) error {
	schemaJSON, err := json.Marshal(c.InputSchema())
	if err != nil {
		return fmt.Errorf("failed to marshal schema for tool %s: %w", c.Name(), err)
	}
	s.mcpServer.AddTool(mcp.NewToolWithRawSchema(c.Name(), c.Description(), schemaJSON), s.toolHandler(c.Name()))
	s.logger.Debug("Registered MCP tool %s", c.Name())
	return nil
}

func (s *Server) toolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(request.Params.Arguments)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		result := s.executor.Execute(ctx, name, args)
		if !result.Success {
			s.logger.Warn("MCP tool %s failed: %s", name, result.Error)
			return mcp.NewToolResultError(fmt.Sprintf("Tool execution failed: %s", result.Error)), nil
		}

		resultJSON, err := json.MarshalIndent(result.Data, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}

func (s *Server) registerPrompts() {
	prompt := mcp.Prompt{
		Name:        "troubleshoot_internet",
		Description: "Diagnose a customer's internet problem from their postcode, issue and device",
		Arguments: []mcp.PromptArgument{
			{Name: "post_code", Description: "The customer's postcode", Required: true},
			{Name: "issue_type", Description: "For example 'slow internet' or 'no connection'", Required: false},
			{Name: "device", Description: "Device name or model number", Required: false},
		},
	}

	s.mcpServer.AddPrompt(prompt, func(_ context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		postCode := request.Params.Arguments["post_code"]
		issue := request.Params.Arguments["issue_type"]
		device := request.Params.Arguments["device"]

		var b strings.Builder
		fmt.Fprintf(&b, "Use fixed_diagnos with post_code %q to check for an outage.", postCode)
		b.WriteString(" If the result is 'outage', tell the customer to wait for the maintenance to finish.")
		b.WriteString(" If it is 'device_issue', use query_rag_tool to find troubleshooting steps")
		if issue != "" {
			fmt.Fprintf(&b, " for %q", issue)
		}
		if device != "" {
			fmt.Fprintf(&b, " on the %s", device)
		}
		b.WriteString(".")

		return &mcp.GetPromptResult{
			Description: "Telco troubleshooting workflow",
			Messages: []mcp.PromptMessage{{
				Role:    mcp.RoleUser,
				Content: mcp.TextContent{Type: "text", Text: b.String()},
			}},
		}, nil
	})
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves newline-delimited JSON-RPC on stdin and stdout until EOF.
func (s *Server) ServeStdio() error {
	s.logger.Info("Starting stdio transport")
	return server.ServeStdio(s.mcpServer)
}

// HTTPServer serves the streamable HTTP transport and implements
// lifecycle.Component.
type HTTPServer struct {
	addr         string
	endpointPath string
	mcpServer    *server.MCPServer
	httpSrv      *http.Server
	listener     net.Listener
	logger       *logging.Logger
}

// NewHTTPServer creates a streamable HTTP transport for s.
func NewHTTPServer(s *Server, addr, endpointPath string) *HTTPServer {
	if endpointPath == "" {
		endpointPath = "/mcp"
	} else if endpointPath[0] != '/' {
		endpointPath = "/" + endpointPath
	}
	return &HTTPServer{
		addr:         addr,
		endpointPath: endpointPath,
		mcpServer:    s.mcpServer,
		logger:       logging.GetLogger("mcp"),
	}
}

// Start binds the listener and serves in the background.
func (h *HTTPServer) Start(context.Context) error {
	if h.httpSrv != nil {
		return nil
	}
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	// Stateless so clients that do not manage MCP sessions still work.
	mux.Handle(h.endpointPath, server.NewStreamableHTTPServer(
		h.mcpServer,
		server.WithEndpointPath(h.endpointPath),
		server.WithStateLess(true),
	))

	h.listener = ln
	h.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := h.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("MCP HTTP server error: %v", err)
		}
	}()
	h.logger.Info("Serving MCP on http://%s%s", ln.Addr(), h.endpointPath)
	return nil
}

// Stop shuts the HTTP server down.
func (h *HTTPServer) Stop(ctx context.Context) error {
	if h.httpSrv == nil {
		return nil
	}
	err := h.httpSrv.Shutdown(ctx)
	h.httpSrv = nil
	return err
}

// Name implements lifecycle.Component.
func (h *HTTPServer) Name() string {
	return "MCP HTTP Server"
}

// Addr returns the bound address once started.
func (h *HTTPServer) Addr() string {
	if h.listener == nil {
		return h.addr
	}
	return h.listener.Addr().String()
}

// EndpointPath returns the path the MCP handler is mounted on.
func (h *HTTPServer) EndpointPath() string {
	return h.endpointPath
}
