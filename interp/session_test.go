package interp

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/pyrunner/errors"
)

// syncBuffer is a bytes.Buffer safe for the worker's fd copy goroutines
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestSession(t *testing.T, opts Options) *Session {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping python session test in short mode")
	}
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not found in PATH")
	}

	opts.Argv = []string{"python3"}
	opts.MinVersion = "3.8"
	opts.Grace = time.Second
	opts.Logger = zaptest.NewLogger(t).Sugar()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	s, err := NewSession(ctx, opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}

func TestExecute(t *testing.T) {
	s := newTestSession(t, Options{})

	tests := []struct {
		name      string
		code      string
		wantOK    bool
		wantError string
	}{
		{name: "valid code", code: "y = [i * i for i in range(3)]", wantOK: true},
		{name: "syntax error", code: "def broken(:\n    pass", wantError: "SyntaxError"},
		{name: "division by zero", code: "x = 1 / 0", wantError: "ZeroDivisionError"},
		{name: "user raise", code: "raise ValueError('nope')", wantError: "ValueError: nope"},
		{name: "system exit is contained", code: "import sys\nsys.exit(2)", wantError: "SystemExit"},
		{name: "keyboard interrupt is contained", code: "raise KeyboardInterrupt", wantError: "KeyboardInterrupt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Execute(context.Background(), tt.code, "")
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, res.OK)
			if tt.wantOK {
				assert.Empty(t, res.Error)
			} else {
				assert.Contains(t, res.Error, tt.wantError)
			}
		})
	}
}

func TestExecuteNamespacePersists(t *testing.T) {
	s := newTestSession(t, Options{})
	ctx := context.Background()

	res, err := s.Execute(ctx, "x = 5", "")
	require.NoError(t, err)
	require.True(t, res.OK)

	res, err = s.Execute(ctx, "assert x == 5", "")
	require.NoError(t, err)
	assert.True(t, res.OK, res.Error)

	res, err = s.Execute(ctx, "assert __name__ == '__main__'", "")
	require.NoError(t, err)
	assert.True(t, res.OK, res.Error)

	require.NoError(t, s.Reset(ctx))
	res, err = s.Execute(ctx, "x", "")
	require.NoError(t, err)
	assert.Contains(t, res.Error, "NameError")
}

func TestExecuteFilenameTagsTraceback(t *testing.T) {
	s := newTestSession(t, Options{Filename: "snippet.py"})

	res, err := s.Execute(context.Background(), "1 / 0", "")
	require.NoError(t, err)
	assert.Contains(t, res.Error, `File "snippet.py"`)

	res, err = s.Execute(context.Background(), "1 / 0", "other.py")
	require.NoError(t, err)
	assert.Contains(t, res.Error, `File "other.py"`)
}

func TestExecuteStreamsOutput(t *testing.T) {
	var stdout, stderr syncBuffer
	s := newTestSession(t, Options{Stdout: &stdout, Stderr: &stderr})

	res, err := s.Execute(context.Background(), "import sys\nprint('out')\nprint('err', file=sys.stderr)", "")
	require.NoError(t, err)
	require.True(t, res.OK, res.Error)
	assert.Equal(t, "out\n", stdout.String())
	assert.Equal(t, "err\n", stderr.String())
}

func TestExecuteInputPromptsOnce(t *testing.T) {
	var stdout syncBuffer
	s := newTestSession(t, Options{
		Stdout: &stdout,
		Input:  NewPrompter(&stdout, strings.NewReader("Ada\n")),
	})

	res, err := s.Execute(context.Background(), "name = input('name? ')\nprint('hi', name)", "")
	require.NoError(t, err)
	require.True(t, res.OK, res.Error)
	assert.Equal(t, "name? hi Ada\n", stdout.String())

	res, err = s.Execute(context.Background(), "input('again? ')", "")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "EOFError")
}

func TestExecuteCancelInterrupts(t *testing.T) {
	s := newTestSession(t, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	res, err := s.Execute(ctx, "import time\nwhile True:\n    time.sleep(0.01)", "")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "KeyboardInterrupt")

	res, err = s.Execute(context.Background(), "pass", "")
	require.NoError(t, err)
	assert.True(t, res.OK)
}

// waitingForInput runs code that blocks in input() and returns once the
// prompt has been written
func waitingForInput(t *testing.T, s *Session, ctx context.Context, stdout *syncBuffer) <-chan ExecutionResult {
	t.Helper()
	done := make(chan ExecutionResult, 1)
	go func() {
		res, err := s.Execute(ctx, "name = input('name? ')", "")
		assert.NoError(t, err)
		done <- res
	}()
	require.Eventually(t, func() bool { return stdout.String() == "name? " },
		5*time.Second, 10*time.Millisecond, "prompt never appeared")
	return done
}

func TestInterruptWhileWaitingForInput(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	var stdout syncBuffer
	s := newTestSession(t, Options{Stdout: &stdout, Input: NewPrompter(&stdout, pr)})

	done := waitingForInput(t, s, context.Background(), &stdout)
	require.NoError(t, s.Interrupt())

	select {
	case res := <-done:
		assert.False(t, res.OK)
		assert.Contains(t, res.Error, "KeyboardInterrupt")
	case <-time.After(5 * time.Second):
		t.Fatal("Execute did not return after Interrupt while input() was pending")
	}

	// The next read gets the next line typed, nothing was swallowed
	go func() { _, _ = io.WriteString(pw, "Ada\n") }()
	res, err := s.Execute(context.Background(), "print(input())", "")
	require.NoError(t, err)
	require.True(t, res.OK, res.Error)
	assert.Equal(t, "name? Ada\n", stdout.String())
}

func TestCancelWhileWaitingForInput(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	var stdout syncBuffer
	s := newTestSession(t, Options{Stdout: &stdout, Input: NewPrompter(&stdout, pr)})

	ctx, cancel := context.WithCancel(context.Background())
	done := waitingForInput(t, s, ctx, &stdout)
	cancel()

	select {
	case res := <-done:
		assert.False(t, res.OK)
		assert.Contains(t, res.Error, "KeyboardInterrupt")
	case <-time.After(5 * time.Second):
		t.Fatal("Execute did not return after cancel while input() was pending")
	}

	res, err := s.Execute(context.Background(), "pass", "")
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestSessionStatsAndVersion(t *testing.T) {
	s := newTestSession(t, Options{})

	assert.NotEmpty(t, s.Version())
	st, err := s.Stats()
	require.NoError(t, err)
	assert.True(t, st.Alive)
	assert.NotZero(t, st.PID)
	assert.Equal(t, s.ID(), st.SessionID)
	assert.NotEmpty(t, st.Python)
}

func TestSessionClosed(t *testing.T) {
	s := newTestSession(t, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))

	_, err := s.Execute(context.Background(), "pass", "")
	assert.True(t, errors.Is(err, errors.ErrSessionClosed))
}
