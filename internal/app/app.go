// Package app builds pyrunner's runtime pieces from configuration so every
// surface (server, MCP, CLI) wires them the same way.
package app

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/pyrunner/complete"
	"github.com/teranos/pyrunner/complete/jedi"
	"github.com/teranos/pyrunner/complete/treesitter"
	"github.com/teranos/pyrunner/config"
	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/interp"
)

// SessionOptions derives interp options from cfg. Output and input are
// left to the caller.
func SessionOptions(cfg *config.Config, logger *zap.SugaredLogger) (interp.Options, error) {
	argv, err := cfg.PythonArgv()
	if err != nil {
		return interp.Options{}, err
	}
	return interp.Options{
		Argv:       argv,
		MinVersion: cfg.Python.MinVersion,
		Filename:   cfg.Python.Filename,
		WorkDir:    cfg.Python.WorkDir,
		Grace:      time.Duration(cfg.Python.InterruptGraceMS) * time.Millisecond,
		Logger:     logger,
	}, nil
}

// NewSession starts a session with the given output and input
func NewSession(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, input interp.Inputter, logger *zap.SugaredLogger) (*interp.Session, error) {
	opts, err := SessionOptions(cfg, logger)
	if err != nil {
		return nil, err
	}
	opts.Stdout = stdout
	opts.Stderr = stderr
	opts.Input = input
	return interp.NewSession(ctx, opts)
}

// SessionFactory binds cfg and logger into an interp.SessionFactory
func SessionFactory(cfg *config.Config, logger *zap.SugaredLogger) interp.SessionFactory {
	return func(ctx context.Context, stdout, stderr io.Writer, input interp.Inputter) (*interp.Session, error) {
		return NewSession(ctx, cfg, stdout, stderr, input, logger)
	}
}

// Engine is a completion engine plus whatever it needs shut down
type Engine struct {
	complete.Engine
	closers []func(context.Context) error
}

// Close stops engine workers
func (e *Engine) Close(ctx context.Context) error {
	var firstErr error
	for _, c := range e.closers {
		if err := c(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewEngine builds the engine named by completion.engine. "auto" prefers
// jedi and falls back to tree-sitter when jedi cannot run.
func NewEngine(cfg *config.Config, logger *zap.SugaredLogger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ts := treesitter.New(logger.Named("complete.treesitter"))

	newJedi := func() (*jedi.Engine, error) {
		argv, err := cfg.PythonArgv()
		if err != nil {
			return nil, err
		}
		return jedi.New(jedi.Options{
			Argv:       argv,
			MinVersion: cfg.Python.MinVersion,
			WorkDir:    cfg.Python.WorkDir,
			Logger:     logger.Named("complete.jedi"),
		}), nil
	}

	switch cfg.Completion.Engine {
	case config.EngineTreeSitter:
		return &Engine{Engine: ts}, nil
	case config.EngineJedi:
		j, err := newJedi()
		if err != nil {
			return nil, err
		}
		return &Engine{Engine: j, closers: []func(context.Context) error{j.Close}}, nil
	case config.EngineAuto, "":
		j, err := newJedi()
		if err != nil {
			return nil, err
		}
		return &Engine{
			Engine:  &complete.Fallback{Primary: j, Secondary: ts, Logger: logger.Named("complete")},
			closers: []func(context.Context) error{j.Close},
		}, nil
	default:
		return nil, errors.WithHint(
			errors.Newf("unknown completion engine %q", cfg.Completion.Engine),
			"use one of: jedi, treesitter, auto",
		)
	}
}

// NewAdapter wraps NewEngine in a completion adapter
func NewAdapter(cfg *config.Config, logger *zap.SugaredLogger) (*complete.Adapter, *Engine, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	engine, err := NewEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return complete.NewAdapter(engine, logger.Named("complete")), engine, nil
}
