// Package mcpserver exposes execute and complete as Model Context Protocol
// tools over stdio. Executed code never writes to the protocol stream; its
// output is captured and returned in the tool result.
package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/teranos/pyrunner/complete"
	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/interp"
	"github.com/teranos/pyrunner/logger"
	"github.com/teranos/pyrunner/version"
)

// Tool names
const (
	ToolExecute  = "python_execute"
	ToolComplete = "python_complete"
	ToolReset    = "python_reset"
)

// MCPServer serves one persistent python session and a completion adapter
type MCPServer struct {
	adapter    *complete.Adapter
	newSession interp.SessionFactory
	logger     *zap.SugaredLogger
	server     *server.MCPServer

	mu      sync.Mutex
	session *interp.Session
	out     interp.Capture
}

// New creates an MCP server. The session starts on the first execute.
func New(adapter *complete.Adapter, newSession interp.SessionFactory, logger *zap.SugaredLogger) *MCPServer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &MCPServer{
		adapter:    adapter,
		newSession: newSession,
		logger:     logger,
	}

	s.server = server.NewMCPServer(
		"pyrunner",
		version.Get().Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	s.registerTools()
	return s
}

// registerTools registers the python tools
func (s *MCPServer) registerTools() {
	executeTool := mcp.NewTool(ToolExecute,
		mcp.WithDescription("Execute Python code in a persistent session. Definitions survive between calls; input() sees end of file."),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Python source to execute"),
		),
		mcp.WithString("filename",
			mcp.Description("Filename shown in tracebacks (default: main.py)"),
		),
	)
	s.server.AddTool(executeTool, s.handleExecute)

	completeTool := mcp.NewTool(ToolComplete,
		mcp.WithDescription("Complete Python code at a cursor position. Returns a JSON array of {label, type, complete, signature}."),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Full source text"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("Cursor line (one-based)"),
		),
		mcp.WithNumber("column",
			mcp.Required(),
			mcp.Description("Cursor column (zero-based)"),
		),
	)
	s.server.AddTool(completeTool, s.handleComplete)

	resetTool := mcp.NewTool(ToolReset,
		mcp.WithDescription("Clear every name defined in the Python session"),
	)
	s.server.AddTool(resetTool, s.handleReset)
}

// sessionLocked returns the session, starting it on first use. Callers
// hold s.mu.
func (s *MCPServer) sessionLocked(ctx context.Context) (*interp.Session, error) {
	if s.session != nil {
		return s.session, nil
	}
	if s.newSession == nil {
		return nil, errors.Wrap(errors.ErrServiceUnavailable, "no python session configured")
	}
	sess, err := s.newSession(ctx, s.out.Stdout(), s.out.Stderr(), interp.NoInput)
	if err != nil {
		return nil, err
	}
	s.session = sess
	s.logger.Infow("MCP session started", logger.FieldSessionID, sess.ID(), logger.FieldPython, sess.Version())
	return sess, nil
}

// handleExecute handles python_execute tool calls
func (s *MCPServer) handleExecute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	filename := request.GetString("filename", "")

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessionLocked(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to start python: %v", err)), nil
	}

	s.out.Take()
	result, err := sess.Execute(ctx, code, filename)
	stdout, stderr := s.out.Take()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Execution failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatExecution(result, stdout, stderr)), nil
}

// formatExecution renders a result and its output as plain text
func formatExecution(result interp.ExecutionResult, stdout, stderr string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ok: %t\n", result.OK)
	if stdout != "" {
		b.WriteString("--- stdout ---\n")
		b.WriteString(stdout)
		if !strings.HasSuffix(stdout, "\n") {
			b.WriteString("\n")
		}
	}
	if stderr != "" {
		b.WriteString("--- stderr ---\n")
		b.WriteString(stderr)
		if !strings.HasSuffix(stderr, "\n") {
			b.WriteString("\n")
		}
	}
	if result.Error != "" {
		b.WriteString("--- error ---\n")
		b.WriteString(result.Error)
	}
	return b.String()
}

// handleComplete handles python_complete tool calls
func (s *MCPServer) handleComplete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := request.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	line, err := request.RequireInt("line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	column, err := request.RequireInt("column")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.adapter.CompleteJSON(ctx, source, line, column)), nil
}

// handleReset handles python_reset tool calls
func (s *MCPServer) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return mcp.NewToolResultText("session is empty"), nil
	}
	if err := s.session.Reset(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Reset failed: %v", err)), nil
	}
	return mcp.NewToolResultText("session cleared"), nil
}

// Serve starts the MCP server using stdio transport
func (s *MCPServer) Serve() error {
	return server.ServeStdio(s.server)
}

// Close shuts the python session down
func (s *MCPServer) Close(ctx context.Context) error {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()

	if sess == nil {
		return nil
	}
	return sess.Close(ctx)
}
