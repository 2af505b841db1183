package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/internal/app"
	"github.com/teranos/pyrunner/logger"
)

// CompleteCmd prints completions for a cursor position in a file
var CompleteCmd = &cobra.Command{
	Use:   "complete FILE",
	Short: "Print completions at a cursor position as JSON",
	Long: `Print the completion payload for FILE at --line (one-based) and --column
(zero-based): a JSON array of at most 50 {label, type, complete, signature}
objects. Any failure prints [].`,
	Args: cobra.ExactArgs(1),
	RunE: runComplete,
}

var (
	completeLine   int
	completeColumn int
)

func init() {
	CompleteCmd.Flags().IntVarP(&completeLine, "line", "l", 1, "Cursor line (one-based)")
	CompleteCmd.Flags().IntVarP(&completeColumn, "column", "c", 0, "Cursor column (zero-based)")
}

func runComplete(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return err
	}

	source, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", args[0])
	}

	adapter, engine, err := app.NewAdapter(cfg, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "failed to create completion engine")
	}
	defer engine.Close(context.Background())

	fmt.Fprintln(cmd.OutOrStdout(), adapter.CompleteJSON(commandContext(cmd), string(source), completeLine, completeColumn))
	return nil
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
