// Package interp runs Python code in a persistent namespace hosted by a
// worker process.
package interp

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/internal/pyworker"
	"github.com/teranos/pyrunner/logger"
)

// DefaultFilename tags executed code when the caller gives none
const DefaultFilename = "main.py"

// ExecutionResult is the outcome of one Execute call. Error holds the full
// formatted traceback when OK is false.
type ExecutionResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Options configures a Session
type Options struct {
	Argv       []string // Interpreter command
	MinVersion string
	Filename   string // Default filename, "main.py" when empty
	WorkDir    string
	Env        []string

	Stdout io.Writer
	Stderr io.Writer
	Input  Inputter // NoInput when nil

	Grace        time.Duration
	StartTimeout time.Duration
	Logger       *zap.SugaredLogger
}

// SessionFactory starts a session writing to the given streams and reading
// input from input
type SessionFactory func(ctx context.Context, stdout, stderr io.Writer, input Inputter) (*Session, error)

// Session owns a namespace that persists across Execute calls. Calls are
// serialized; a second Execute waits for the first.
type Session struct {
	id       string
	opts     Options
	stdout   *lockedWriter
	stderr   *lockedWriter
	input    Inputter
	logger   *zap.SugaredLogger
	started  time.Time
	restarts int

	mu     sync.Mutex
	client *pyworker.Client
	closed bool
}

// NewSession starts a worker and returns a session bound to it
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	if opts.Filename == "" {
		opts.Filename = DefaultFilename
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	input := opts.Input
	if input == nil {
		input = NoInput
	}

	id := uuid.NewString()
	s := &Session{
		id:      id,
		opts:    opts,
		stdout:  newLockedWriter(opts.Stdout),
		stderr:  newLockedWriter(opts.Stderr),
		input:   input,
		logger:  opts.Logger.With(logger.FieldSessionID, id),
		started: time.Now(),
	}

	if _, err := s.worker(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the session identifier used in logs
func (s *Session) ID() string {
	return s.id
}

// worker returns the live worker, starting a fresh one when the previous
// worker died. A fresh worker has an empty namespace.
func (s *Session) worker(ctx context.Context) (*pyworker.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.WithStack(errors.ErrSessionClosed)
	}
	if s.client != nil && s.client.Alive() {
		return s.client, nil
	}
	if s.client != nil {
		s.logger.Warnw("Python worker is gone, starting a fresh one (namespace lost)", logger.FieldWorkerPID, s.client.PID())
		s.restarts++
	}

	c, err := pyworker.Start(ctx, pyworker.Options{
		Argv:         s.opts.Argv,
		Dir:          s.opts.WorkDir,
		Env:          s.opts.Env,
		MinVersion:   s.opts.MinVersion,
		Stdout:       s.stdout,
		Stderr:       s.stderr,
		StartTimeout: s.opts.StartTimeout,
		Grace:        s.opts.Grace,
		Logger:       s.logger.Named("worker"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to start python session")
	}
	s.client = c
	return c, nil
}

func (s *Session) current() *pyworker.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

func (s *Session) callbacks() pyworker.Callbacks {
	return pyworker.Callbacks{
		Output: func(stream, data string) {
			w := s.stdout
			if stream == pyworker.EventStderr {
				w = s.stderr
			}
			if _, err := io.WriteString(w, data); err != nil {
				s.logger.Debugw("Failed to write python output", "stream", stream, "error", err)
			}
		},
		Input: s.input.Input,
	}
}

// Execute compiles code tagged with filename and runs it in the session
// namespace. Failures of the code itself come back as a result with OK
// false; the error return is reserved for worker and transport failures.
func (s *Session) Execute(ctx context.Context, code, filename string) (ExecutionResult, error) {
	if filename == "" {
		filename = s.opts.Filename
	}

	c, err := s.worker(ctx)
	if err != nil {
		return ExecutionResult{}, err
	}

	start := time.Now()
	ev, err := c.Call(ctx, pyworker.Request{Op: pyworker.OpRun, Code: code, Filename: filename}, s.callbacks())
	if err != nil {
		return ExecutionResult{}, errors.Wrapf(err, "failed to execute %s", filename)
	}

	result := ExecutionResult{OK: ev.OK, Error: ev.Error}
	if ev.Event == pyworker.EventError {
		result = ExecutionResult{OK: false, Error: ev.Message}
	}

	s.logger.Debugw("Executed python code",
		logger.FieldFile, filename,
		"ok", result.OK,
		logger.FieldSize, len(code),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return result, nil
}

// Interrupt signals the worker so running code raises KeyboardInterrupt.
// The signal is sent whether or not code is running; the worker discards
// one that arrives between requests.
func (s *Session) Interrupt() error {
	c := s.current()
	if c == nil || !c.Alive() {
		return errors.Wrap(errors.ErrWorkerExited, "no python worker to interrupt")
	}
	return c.Interrupt()
}

// Reset clears the namespace
func (s *Session) Reset(ctx context.Context) error {
	c, err := s.worker(ctx)
	if err != nil {
		return err
	}
	ev, err := c.Call(ctx, pyworker.Request{Op: pyworker.OpReset}, s.callbacks())
	if err != nil {
		return errors.Wrap(err, "failed to reset python session")
	}
	if ev.Event == pyworker.EventError {
		return errors.Newf("python session reset failed: %s", ev.Message)
	}
	return nil
}

// Version returns the interpreter's sys.version
func (s *Session) Version() string {
	if c := s.current(); c != nil {
		return c.Info().Version
	}
	return ""
}

// JediAvailable reports whether the worker interpreter can import jedi
func (s *Session) JediAvailable() bool {
	if c := s.current(); c != nil {
		return c.Info().Jedi
	}
	return false
}

// Close shuts the worker down, killing it if it does not exit before ctx
// expires. Subsequent calls fail with ErrSessionClosed.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	c := s.client
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	// Unblock a running call so the worker can read the closed request stream
	_ = c.Interrupt()
	return c.Close(ctx)
}
