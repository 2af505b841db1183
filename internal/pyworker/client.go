// Package pyworker drives a CPython worker process over a private JSON line
// protocol carried on two inherited file descriptors.
package pyworker

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/logger"
)

//go:embed bootstrap.py
var bootstrapSource string

const (
	defaultStartTimeout = 15 * time.Second
	defaultGrace        = 2 * time.Second
	maxEventSize        = 64 << 20
	stderrTailSize      = 4096
)

// Options configures a worker process
type Options struct {
	Argv       []string // Interpreter command, e.g. ["python3"] or ["uv", "run", "python"]
	Dir        string
	Env        []string
	MinVersion string // Rejected at handshake when the interpreter is older

	// Writes that bypass sys.stdout/sys.stderr (os.write, subprocesses, C extensions)
	Stdout io.Writer
	Stderr io.Writer

	StartTimeout time.Duration // Zero means 15s
	Grace        time.Duration // Wait after SIGINT before killing; zero means 2s
	Logger       *zap.SugaredLogger
}

// Info is what the worker reported at handshake
type Info struct {
	Version      string // sys.version
	VersionShort string // major.minor.micro
	Jedi         bool
	PID          int
}

// Callbacks receive the intermediate events of a Call
type Callbacks struct {
	Output func(stream, data string)
	// Input answers a read request from the executed code. Returning io.EOF
	// (or any error) makes the read raise EOFError inside the worker. An
	// implementation must return once ctx is done.
	Input func(ctx context.Context, prompt string) (string, error)
}

// Client owns one worker process
type Client struct {
	cmd      *exec.Cmd
	requests io.WriteCloser
	events   chan *Event
	readErr  error
	exited   chan struct{}
	stderr   *tailBuffer
	grace    time.Duration
	logger   *zap.SugaredLogger
	info     Info

	nextID  atomic.Int64
	callMu  sync.Mutex
	writeMu sync.Mutex
	closed  atomic.Bool
}

func newClient(requests io.WriteCloser, events io.ReadCloser, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	c := &Client{
		requests: requests,
		events:   make(chan *Event, 64),
		exited:   make(chan struct{}),
		stderr:   newTailBuffer(stderrTailSize),
		grace:    defaultGrace,
		logger:   logger,
	}
	go c.readLoop(events)
	return c
}

// Start launches the interpreter with the embedded bootstrap and waits for
// its ready event.
func Start(ctx context.Context, opts Options) (*Client, error) {
	if len(opts.Argv) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "python command is empty")
	}

	reqR, reqW, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create worker request pipe")
	}
	evtR, evtW, err := os.Pipe()
	if err != nil {
		reqR.Close()
		reqW.Close()
		return nil, errors.Wrap(err, "failed to create worker event pipe")
	}

	args := append(append([]string{}, opts.Argv[1:]...), "-u", "-c", bootstrapSource)
	cmd := exec.Command(opts.Argv[0], args...)
	cmd.Dir = opts.Dir
	cmd.Env = append(append(os.Environ(), opts.Env...), "PYTHONIOENCODING=utf-8", "PYTHONUNBUFFERED=1")
	// Child fd 3 reads requests, fd 4 writes events
	cmd.ExtraFiles = []*os.File{reqR, evtW}

	tail := newTailBuffer(stderrTailSize)
	cmd.Stdout = orDiscard(opts.Stdout)
	cmd.Stderr = io.MultiWriter(tail, orDiscard(opts.Stderr))

	if err := cmd.Start(); err != nil {
		reqR.Close()
		reqW.Close()
		evtR.Close()
		evtW.Close()
		return nil, errors.WithHint(
			errors.Wrapf(err, "failed to start python worker %q", opts.Argv[0]),
			"set python.command to an installed interpreter, e.g. \"python3\"",
		)
	}
	// The child holds its own copies
	reqR.Close()
	evtW.Close()

	c := newClient(reqW, evtR, opts.Logger)
	c.cmd = cmd
	c.stderr = tail
	if opts.Grace > 0 {
		c.grace = opts.Grace
	}

	go func() {
		err := cmd.Wait()
		c.logger.Debugw("Python worker exited", logger.FieldWorkerPID, cmd.Process.Pid, "error", err)
	}()

	timeout := opts.StartTimeout
	if timeout <= 0 {
		timeout = defaultStartTimeout
	}
	if err := c.handshake(ctx, opts.MinVersion, timeout); err != nil {
		_ = c.Kill()
		return nil, err
	}

	c.logger.Debugw("Python worker ready",
		logger.FieldWorkerPID, c.info.PID,
		logger.FieldPython, c.info.VersionShort,
		"jedi", c.info.Jedi,
	)
	return c, nil
}

func (c *Client) handshake(ctx context.Context, minVersion string, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev, ok := <-c.events:
		if !ok {
			return c.exitError("python worker exited before handshake")
		}
		if ev.Event != EventReady {
			return errors.Newf("unexpected first worker event %q", ev.Event)
		}
		c.info = Info{
			Version:      ev.Version,
			VersionShort: ev.VersionShort,
			Jedi:         ev.Jedi,
			PID:          ev.PID,
		}
	case <-timer.C:
		return errors.Wrapf(errors.ErrTimeout, "python worker did not become ready within %s", timeout)
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for python worker handshake")
	}

	return checkVersion(c.info.VersionShort, minVersion)
}

func checkVersion(have, minVersion string) error {
	if minVersion == "" {
		return nil
	}
	v, err := semver.NewVersion(have)
	if err != nil {
		return errors.Wrapf(err, "worker reported unparseable version %q", have)
	}
	constraint, err := semver.NewConstraint(">= " + minVersion)
	if err != nil {
		return errors.Wrapf(err, "invalid minimum python version %q", minVersion)
	}
	if !constraint.Check(v) {
		return errors.WithHintf(
			errors.Newf("python %s is older than the required %s", have, minVersion),
			"point python.command at Python %s or newer", minVersion,
		)
	}
	return nil
}

// readLoop turns event lines into Events until the worker closes fd 4
func (c *Client) readLoop(r io.ReadCloser) {
	defer close(c.exited)
	defer close(c.events)
	defer r.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			c.logger.Warnw("Dropping malformed worker event", "error", err, "size", len(scanner.Bytes()))
			continue
		}
		c.events <- &ev
	}
	c.readErr = scanner.Err()
}

// Call sends req and blocks until the worker finishes it. Output events
// reach cb in the order the worker produced them. Input runs on its own
// goroutine and its context ends with the call.
//
// Cancelling ctx interrupts the worker. The resulting KeyboardInterrupt is
// returned as a normal result; only a worker that ignores the interrupt
// past the grace period is killed and reported as an error.
func (c *Client) Call(ctx context.Context, req Request, cb Callbacks) (*Event, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	if c.closed.Load() {
		return nil, errors.WithStack(errors.ErrSessionClosed)
	}
	if !c.Alive() {
		return nil, c.exitError("python worker is not running")
	}

	req.ID = c.nextID.Add(1)
	if err := c.send(req); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to send %s request to worker", req.Op), errors.ErrWorkerExited)
	}

	// The input callback runs off the event loop so an interrupt or the
	// terminal event can end the call while a read is still pending.
	cancelInput := context.CancelFunc(func() {})
	defer func() { cancelInput() }()

	done := ctx.Done()
	var kill <-chan time.Time
	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				return nil, c.exitError("python worker exited during " + req.Op)
			}
			if ev.ID != 0 && ev.ID != req.ID {
				c.logger.Debugw("Dropping stale worker event", "event", ev.Event, "id", ev.ID, "want", req.ID)
				continue
			}
			if ev.Terminal() {
				if ev.ID == req.ID {
					return ev, nil
				}
				c.logger.Debugw("Dropping unsolicited terminal event", "event", ev.Event, "message", ev.Message)
				continue
			}
			if ev.Event == EventInput {
				cancelInput()
				cancelInput = c.answerInput(ctx, ev, cb)
				continue
			}
			c.dispatch(ev, cb)

		case <-done:
			done = nil
			c.logger.Infow("Interrupting python worker", logger.FieldOperation, req.Op, "reason", ctx.Err())
			if err := c.Interrupt(); err != nil {
				c.logger.Warnw("Failed to interrupt python worker", "error", err)
			}
			timer := time.NewTimer(c.grace)
			defer timer.Stop()
			kill = timer.C

		case <-kill:
			c.logger.Warnw("Python worker ignored interrupt, killing", "grace", c.grace)
			_ = c.Kill()
			return nil, errors.Mark(
				errors.Wrapf(ctx.Err(), "python worker did not stop within %s of interrupt", c.grace),
				errors.ErrTimeout,
			)
		}
	}
}

func (c *Client) dispatch(ev *Event, cb Callbacks) {
	switch ev.Event {
	case EventStdout, EventStderr:
		if cb.Output != nil {
			cb.Output(ev.Event, ev.Data)
		}
	default:
		c.logger.Debugw("Ignoring unknown worker event", "event", ev.Event)
	}
}

// answerInput asks cb for a line in the background and sends it to the
// worker. The returned cancel abandons the read; an abandoned read sends no
// reply.
func (c *Client) answerInput(ctx context.Context, ev *Event, cb Callbacks) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		reply := Request{ID: ev.ID, Op: OpInput, EOF: true}
		if cb.Input != nil {
			text, err := cb.Input(ctx, ev.Prompt)
			switch {
			case ctx.Err() != nil:
			case err == nil:
				reply.Text, reply.EOF = text, false
			case !errors.Is(err, io.EOF):
				c.logger.Warnw("Input source failed, sending EOF to worker", "error", err)
			}
		}
		if ctx.Err() != nil {
			c.logger.Debugw("Abandoned worker input request", "id", ev.ID)
			return
		}
		// A dead worker shows up as a closed event stream on the next read
		if err := c.send(reply); err != nil {
			c.logger.Debugw("Failed to answer worker input request", "error", err)
		}
	}()
	return cancel
}

func (c *Client) send(req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "failed to encode worker request")
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.requests.Write(data)
	return err
}

// Interrupt delivers SIGINT so the running code raises KeyboardInterrupt
func (c *Client) Interrupt() error {
	if c.cmd == nil || c.cmd.Process == nil {
		return errors.New("no python worker process to interrupt")
	}
	if runtime.GOOS == "windows" {
		return errors.New("interrupting the python worker is not supported on windows")
	}
	if err := c.cmd.Process.Signal(os.Interrupt); err != nil {
		return errors.Wrapf(err, "failed to interrupt python worker (pid %d)", c.cmd.Process.Pid)
	}
	return nil
}

// Close asks the worker to exit by closing its request stream, killing it
// if it has not gone when ctx expires.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.writeMu.Lock()
	_ = c.requests.Close()
	c.writeMu.Unlock()

	select {
	case <-c.exited:
		return nil
	case <-ctx.Done():
		if err := c.Kill(); err != nil {
			return err
		}
		return errors.Wrap(ctx.Err(), "timeout waiting for python worker to exit")
	}
}

// Kill terminates the worker immediately
func (c *Client) Kill() error {
	c.closed.Store(true)
	if c.cmd == nil || c.cmd.Process == nil {
		return errors.New("no python worker process to kill")
	}
	if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.Wrapf(err, "failed to kill python worker (pid %d)", c.cmd.Process.Pid)
	}
	return nil
}

// Alive reports whether the worker can still take requests
func (c *Client) Alive() bool {
	if c.closed.Load() {
		return false
	}
	select {
	case <-c.exited:
		return false
	default:
		return true
	}
}

// Exited is closed once the worker's event stream ends
func (c *Client) Exited() <-chan struct{} {
	return c.exited
}

// Info returns the handshake data
func (c *Client) Info() Info {
	return c.info
}

// PID returns the worker process id, or 0 when unknown
func (c *Client) PID() int {
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Pid
	}
	return c.info.PID
}

// exitError must only be called after the event channel is closed or the
// worker is known to be gone.
func (c *Client) exitError(msg string) error {
	err := errors.Wrap(errors.ErrWorkerExited, msg)
	select {
	case <-c.exited:
		if c.readErr != nil {
			err = errors.WithSecondaryError(err, c.readErr)
		}
	default:
	}
	if tail := c.stderr.String(); tail != "" {
		err = errors.WithDetail(err, "worker stderr:\n"+tail)
	}
	return err
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
