package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/pyrunner/cmd/pyrunner/commands"
	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/logger"
)

var rootCmd = &cobra.Command{
	Use:   "pyrunner",
	Short: "pyrunner - Python execution and completion backend for editors",
	Long: `pyrunner - Python execution and completion backend for editors.

pyrunner runs Python code in persistent sessions, routes input() back to
whoever is driving the session and completes code at a cursor position.

Available commands:
  serve    - Start the WebSocket, LSP and JSON API server
  run      - Execute a Python file (optionally re-run on save)
  repl     - Interactive session on the terminal
  complete - Print completions for a cursor position in a file
  mcp      - Serve execute and complete as MCP tools over stdio
  config   - Show or create configuration
  version  - Show version information

Examples:
  pyrunner serve --port 8765         # Start the editor backend
  pyrunner run main.py --watch       # Re-run main.py each time it is saved
  pyrunner complete main.py -l 4 -c 2
  pyrunner config show               # Show effective configuration`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")

		// A broken config file is reported by the command that needs it
		jsonLogs := false
		if cfg, err := commands.LoadConfig(cmd); err == nil {
			jsonLogs = cfg.Log.JSON
		}
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ./pyrunner.toml merged over ~/.pyrunner/config.toml)")

	// Add commands
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ReplCmd)
	rootCmd.AddCommand(commands.CompleteCmd)
	rootCmd.AddCommand(commands.MCPCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// The traceback has already been printed
		if !errors.Is(err, commands.ErrExecutionFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			for _, hint := range errors.GetAllHints(err) {
				fmt.Fprintln(os.Stderr, "Hint:", hint)
			}
		}
		os.Exit(1)
	}
}
