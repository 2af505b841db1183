package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/internal/app"
	"github.com/teranos/pyrunner/logger"
	"github.com/teranos/pyrunner/mcpserver"
)

// MCPCmd serves pyrunner's tools to MCP clients over stdio
var MCPCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve python_execute, python_complete and python_reset as MCP tools over stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout. Executed code shares one
persistent session; its output is captured and returned in the tool result,
never written to the protocol stream. Logs go to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cmd)
		if err != nil {
			return err
		}

		adapter, engine, err := app.NewAdapter(cfg, logger.Logger)
		if err != nil {
			return errors.Wrap(err, "failed to create completion engine")
		}
		defer engine.Close(context.Background())

		srv := mcpserver.New(adapter, app.SessionFactory(cfg, logger.ComponentLogger("interp")), logger.ComponentLogger("mcp"))
		defer srv.Close(context.Background())

		logger.Infow("MCP server starting on stdio", "engine", cfg.Completion.Engine)
		return srv.Serve()
	},
}
