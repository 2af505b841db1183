package commands

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/internal/app"
	"github.com/teranos/pyrunner/interp"
	"github.com/teranos/pyrunner/logger"
	"github.com/teranos/pyrunner/watch"
)

// RunCmd executes a Python file
var RunCmd = &cobra.Command{
	Use:   "run FILE",
	Short: "Execute a Python file in a persistent session",
	Long: `Execute FILE. input() prompts on the terminal and reads from stdin.

With --watch the file runs again every time it is saved. The session is kept
between runs, so names defined by earlier runs stay visible. Ctrl+C interrupts
running code; Ctrl+C while idle exits.`,
	Args: cobra.ExactArgs(1),
	RunE: runFile,
}

var runWatch bool

func init() {
	RunCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "Re-run the file each time it is saved")
}

func runFile(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return err
	}
	path := args[0]

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	out := cmd.OutOrStdout()
	sess, err := app.NewSession(ctx, cfg, out, cmd.ErrOrStderr(),
		interp.NewPrompter(out, cmd.InOrStdin()), logger.ComponentLogger("interp"))
	if err != nil {
		return errors.Wrap(err, "failed to start python")
	}
	defer sess.Close(context.Background())

	r := &runner{sess: sess, errOut: cmd.ErrOrStderr()}
	stopSignals := r.handleSignals(cancel)
	defer stopSignals()

	ok, err := r.execFile(ctx, path)
	if !runWatch {
		if err != nil {
			return err
		}
		if !ok {
			return ErrExecutionFailed
		}
		return nil
	}
	if err != nil {
		pterm.Warning.Printfln("%v", err)
	}

	return r.watchFile(ctx, path)
}

// execFile reads path and executes it tagged with its base name
func (r *runner) execFile(ctx context.Context, path string) (bool, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read %s", path)
	}
	return r.exec(ctx, string(code), filepath.Base(path))
}

// watchFile re-runs path on every save until ctx ends
func (r *runner) watchFile(ctx context.Context, path string) error {
	changes := make(chan struct{}, 1)
	fw, err := watch.NewFileWatcher(path, watch.DefaultDebounce, func(string) {
		select {
		case changes <- struct{}{}:
		default:
		}
	}, logger.ComponentLogger("watch"))
	if err != nil {
		return err
	}
	fw.Start()
	defer fw.Stop()

	pterm.Info.Printfln("Watching %s (Ctrl+C to exit)", path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			pterm.Info.Printfln("%s changed, re-running", filepath.Base(path))
			// A dead worker is restarted on the next run
			if _, err := r.execFile(ctx, path); err != nil && ctx.Err() == nil {
				pterm.Warning.Printfln("%v", err)
			}
		}
	}
}
