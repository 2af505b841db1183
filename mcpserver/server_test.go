package mcpserver

import (
	"context"
	"io"
	"os/exec"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/pyrunner/complete"
	"github.com/teranos/pyrunner/complete/treesitter"
	"github.com/teranos/pyrunner/config"
	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/internal/app"
	"github.com/teranos/pyrunner/interp"
)

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func newTestServer(t *testing.T, factory interp.SessionFactory) *MCPServer {
	logger := zaptest.NewLogger(t).Sugar()
	s := New(complete.NewAdapter(treesitter.New(logger), logger), factory, logger)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestComplete(t *testing.T) {
	s := newTestServer(t, nil)

	res, err := s.handleComplete(context.Background(), callTool(ToolComplete, map[string]any{
		"source": "def greet(name):\n    pass\n\ngr",
		"line":   4,
		"column": 2,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `[{"label":"greet","type":"function","complete":"eet","signature":"(name)"}]`, resultText(t, res))

	res, err = s.handleComplete(context.Background(), callTool(ToolComplete, map[string]any{
		"source": "x = 'open\ngr",
		"line":   2,
		"column": 2,
	}))
	require.NoError(t, err)
	assert.Equal(t, "[]", resultText(t, res))
}

func TestCompleteRequiresArguments(t *testing.T) {
	s := newTestServer(t, nil)

	res, err := s.handleComplete(context.Background(), callTool(ToolComplete, map[string]any{"source": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestExecuteWithoutPython(t *testing.T) {
	s := newTestServer(t, func(ctx context.Context, stdout, stderr io.Writer, input interp.Inputter) (*interp.Session, error) {
		return nil, errors.New("interpreter missing")
	})

	res, err := s.handleExecute(context.Background(), callTool(ToolExecute, map[string]any{"code": "print(1)"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "interpreter missing")

	res, err = s.handleExecute(context.Background(), callTool(ToolExecute, map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "code is required")
}

func TestFormatExecution(t *testing.T) {
	got := formatExecution(interp.ExecutionResult{OK: false, Error: "Traceback...\nValueError: bad\n"}, "partial", "")
	assert.Equal(t, "ok: false\n--- stdout ---\npartial\n--- error ---\nTraceback...\nValueError: bad\n", got)

	assert.Equal(t, "ok: true\n", formatExecution(interp.ExecutionResult{OK: true}, "", ""))
}

func TestExecuteWithPython(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	cfg := config.Default()
	s := newTestServer(t, app.SessionFactory(cfg, zaptest.NewLogger(t).Sugar()))
	ctx := context.Background()

	res, err := s.handleExecute(ctx, callTool(ToolExecute, map[string]any{"code": "x = 5\nprint('x is', x)"}))
	require.NoError(t, err)
	assert.Equal(t, "ok: true\n--- stdout ---\nx is 5\n", resultText(t, res))

	res, err = s.handleExecute(ctx, callTool(ToolExecute, map[string]any{"code": "assert x == 5\n1 / 0", "filename": "cell.py"}))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "ok: false")
	assert.Contains(t, text, `File "cell.py"`)
	assert.Contains(t, text, "ZeroDivisionError")

	res, err = s.handleReset(ctx, callTool(ToolReset, nil))
	require.NoError(t, err)
	assert.Equal(t, "session cleared", resultText(t, res))

	res, err = s.handleExecute(ctx, callTool(ToolExecute, map[string]any{"code": "x"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "NameError")
}
