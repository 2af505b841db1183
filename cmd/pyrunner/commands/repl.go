package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/internal/app"
	"github.com/teranos/pyrunner/interp"
	"github.com/teranos/pyrunner/logger"
	"github.com/teranos/pyrunner/version"
)

// REPL prompts and commands
const (
	primaryPrompt      = ">>> "
	continuationPrompt = "... "
	replFilename       = "<stdin>"

	replQuit  = ":quit"
	replReset = ":reset"
)

// ReplCmd runs an interactive session on the terminal
var ReplCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive Python session",
	Long: `Read Python from stdin and execute it in one persistent session.

A line ending in ':' opens a block that runs once a blank line is entered.
Values of bare expressions are not echoed; use print(). Type :reset to clear
the namespace and :quit or Ctrl+D to exit.`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func runRepl(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	out := cmd.OutOrStdout()
	// input() and the REPL share one stdin pump, so a read abandoned by an
	// interrupt leaves its line for the next prompt
	lines := interp.NewLineReader(cmd.InOrStdin())
	sess, err := app.NewSession(ctx, cfg, out, cmd.ErrOrStderr(),
		interp.NewPrompterWithReader(out, lines), logger.ComponentLogger("interp"))
	if err != nil {
		return errors.Wrap(err, "failed to start python")
	}
	defer sess.Close(context.Background())

	fmt.Fprint(out, strings.TrimRight(version.PythonBanner(sess.Version()), "\r\n")+"\n")

	r := &runner{sess: sess, errOut: cmd.ErrOrStderr()}
	stopSignals := r.handleSignals(func() {
		pterm.Info.Println("\nKeyboardInterrupt (type :quit or Ctrl+D to exit)")
	})
	defer stopSignals()

	return r.repl(ctx, lines, out)
}

// repl reads and runs blocks until end of input or :quit
func (r *runner) repl(ctx context.Context, lines interp.LineReader, out io.Writer) error {
	for {
		block, err := readBlock(ctx, lines, out)
		if err == io.EOF {
			fmt.Fprintln(out)
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read input")
		}

		switch strings.TrimSpace(block) {
		case "":
			continue
		case replQuit:
			return nil
		case replReset:
			if err := r.sess.Reset(ctx); err != nil {
				pterm.Warning.Printfln("%v", err)
			}
			continue
		}

		if _, err := r.exec(ctx, block, replFilename); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// A dead worker is restarted on the next block
			pterm.Warning.Printfln("%v", err)
		}
	}
}

// readBlock reads one unit of input. A single line is a block unless it
// opens a suite (ends in ':' or '\') or leaves brackets unclosed; then
// lines are collected until a blank line. End of input inside a block runs
// what was read.
func readBlock(ctx context.Context, lines interp.LineReader, out io.Writer) (string, error) {
	fmt.Fprint(out, primaryPrompt)
	first, err := lines.ReadLine(ctx)
	if err != nil {
		return "", err
	}
	if !opensBlock(first) {
		return first, nil
	}

	block := []string{first}
	for {
		fmt.Fprint(out, continuationPrompt)
		line, err := lines.ReadLine(ctx)
		if err == io.EOF || (err == nil && strings.TrimSpace(line) == "") {
			return strings.Join(block, "\n") + "\n", nil
		}
		if err != nil {
			return "", err
		}
		block = append(block, line)
	}
}

// opensBlock reports whether line needs continuation lines
func opensBlock(line string) bool {
	trimmed := strings.TrimRight(line, " \t")
	if strings.HasSuffix(trimmed, ":") || strings.HasSuffix(trimmed, "\\") {
		return true
	}
	return bracketDepth(trimmed) > 0
}

// bracketDepth counts unclosed brackets outside string literals. It does
// not track triple-quoted strings spanning lines.
func bracketDepth(line string) int {
	depth := 0
	var quote rune
	escaped := false
	for _, ch := range line {
		switch {
		case escaped:
			escaped = false
		case quote != 0:
			if ch == '\\' {
				escaped = true
			} else if ch == quote {
				quote = 0
			}
		case ch == '#':
			return depth
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '(' || ch == '[' || ch == '{':
			depth++
		case ch == ')' || ch == ']' || ch == '}':
			depth--
		}
	}
	return depth
}
