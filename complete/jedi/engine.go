// Package jedi completes Python through jedi running in a dedicated worker
// process, separate from any execution session.
package jedi

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/pyrunner/complete"
	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/internal/pyworker"
)

// EngineName identifies this engine in logs and config
const EngineName = "jedi"

const installHint = "install jedi into the configured interpreter: `python3 -m pip install jedi`"

// Options configures the completion worker
type Options struct {
	Argv         []string
	MinVersion   string
	WorkDir      string
	StartTimeout time.Duration
	Logger       *zap.SugaredLogger
}

// Engine starts its worker on first use and restarts it if it dies.
// Once jedi is found missing the engine stays unavailable.
type Engine struct {
	opts   Options
	logger *zap.SugaredLogger

	mu          sync.Mutex
	client      *pyworker.Client
	unavailable error
}

// New returns an engine; no process is started until the first request
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{opts: opts, logger: logger}
}

// Name implements complete.Engine
func (e *Engine) Name() string {
	return EngineName
}

func (e *Engine) worker(ctx context.Context) (*pyworker.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.unavailable != nil {
		return nil, e.unavailable
	}
	if e.client != nil && e.client.Alive() {
		return e.client, nil
	}

	c, err := pyworker.Start(ctx, pyworker.Options{
		Argv:         e.opts.Argv,
		Dir:          e.opts.WorkDir,
		MinVersion:   e.opts.MinVersion,
		StartTimeout: e.opts.StartTimeout,
		Logger:       e.logger.Named("worker"),
	})
	if err != nil {
		// Not sticky: the interpreter may come back (e.g. a venv being created)
		return nil, errors.Mark(errors.Wrap(err, "failed to start jedi worker"), complete.ErrEngineUnavailable)
	}
	if !c.Info().Jedi {
		_ = c.Kill()
		e.unavailable = errors.Mark(
			errors.WithHint(errors.Newf("jedi is not importable by python %s", c.Info().VersionShort), installHint),
			complete.ErrEngineUnavailable,
		)
		e.logger.Infow("jedi not installed, completion engine disabled", "python", c.Info().VersionShort)
		return nil, e.unavailable
	}

	e.client = c
	return c, nil
}

// Complete implements complete.Engine
func (e *Engine) Complete(ctx context.Context, source string, line, column int) ([]complete.Candidate, error) {
	c, err := e.worker(ctx)
	if err != nil {
		return nil, err
	}

	ev, err := c.Call(ctx, pyworker.Request{
		Op:     pyworker.OpComplete,
		Source: source,
		Line:   line,
		Column: column,
		Limit:  complete.MaxItems,
	}, pyworker.Callbacks{})
	if err != nil {
		return nil, errors.Wrap(err, "jedi completion request failed")
	}

	switch {
	case ev.Event == pyworker.EventError:
		return nil, errors.Newf("jedi completion failed: %s", ev.Message)
	case ev.Unavailable:
		e.mu.Lock()
		e.unavailable = errors.Mark(
			errors.WithHint(errors.Newf("jedi import failed: %s", ev.Message), installHint),
			complete.ErrEngineUnavailable,
		)
		err := e.unavailable
		e.mu.Unlock()
		return nil, err
	}

	return toCandidates(ev.Completions), nil
}

// Close stops the worker
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	c := e.client
	e.client = nil
	e.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Close(ctx)
}

func toCandidates(raw []pyworker.RawCompletion) []complete.Candidate {
	out := make([]complete.Candidate, 0, len(raw))
	for _, r := range raw {
		out = append(out, candidate{raw: r})
	}
	return out
}

// candidate adapts a raw jedi completion
type candidate struct {
	raw pyworker.RawCompletion
}

func (c candidate) Name() string       { return c.raw.Name }
func (c candidate) Category() string   { return c.raw.Type }
func (c candidate) InsertText() string { return c.raw.Complete }

// Signatures implements complete.SignatureProvider. A nil list from the
// worker means extraction failed.
func (c candidate) Signatures() ([]complete.Signature, error) {
	if c.raw.Signatures == nil {
		return nil, complete.ErrNoSignature
	}
	sigs := make([]complete.Signature, 0, len(c.raw.Signatures))
	for _, params := range c.raw.Signatures {
		sigs = append(sigs, complete.Signature{Params: params})
	}
	return sigs, nil
}
