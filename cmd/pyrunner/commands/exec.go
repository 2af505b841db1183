package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/teranos/pyrunner/interp"
	"github.com/teranos/pyrunner/logger"
)

// runner executes code in one session and tracks whether code is running
// so Ctrl+C can tell an interrupt from a request to quit
type runner struct {
	sess    *interp.Session
	errOut  io.Writer
	running atomic.Bool
}

// exec runs code and writes the traceback of a failed run to errOut. It
// reports whether the code completed without raising.
func (r *runner) exec(ctx context.Context, code, filename string) (bool, error) {
	r.running.Store(true)
	defer r.running.Store(false)

	result, err := r.sess.Execute(ctx, code, filename)
	if err != nil {
		return false, err
	}
	if !result.OK {
		fmt.Fprint(r.errOut, result.Error)
	}
	return result.OK, nil
}

// handleSignals raises KeyboardInterrupt in running code on Ctrl+C and
// calls idle when nothing is running. The returned func stops handling.
func (r *runner) handleSignals(idle func()) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-sigChan:
				if sig == os.Interrupt && r.running.Load() {
					if err := r.sess.Interrupt(); err != nil {
						logger.Warnw("Failed to interrupt python", "error", err)
					}
					continue
				}
				if idle != nil {
					idle()
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}
