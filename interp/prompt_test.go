package interp

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/pyrunner/errors"
)

// recordingReader notes what the prompt writer held at the moment of the read
type recordingReader struct {
	out        *bytes.Buffer
	seenOutput []string
	lines      []string
}

func (r *recordingReader) ReadLine(ctx context.Context) (string, error) {
	r.seenOutput = append(r.seenOutput, r.out.String())
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

type flushingWriter struct {
	bytes.Buffer
	flushes int
}

func (f *flushingWriter) Flush() error {
	f.flushes++
	return nil
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("closed pipe") }

func TestPrompterWritesPromptOnceBeforeReading(t *testing.T) {
	var out bytes.Buffer
	in := &recordingReader{out: &out, lines: []string{"Ada"}}
	p := NewPrompterWithReader(&out, in)

	got, err := p.Input(context.Background(), "name? ")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got)
	assert.Equal(t, "name? ", out.String(), "prompt must appear exactly once")
	assert.Equal(t, []string{"name? "}, in.seenOutput, "prompt must be visible before the read blocks")
}

func TestPrompterFlushes(t *testing.T) {
	out := &flushingWriter{}
	p := NewPrompter(out, strings.NewReader("x\n"))

	_, err := p.Input(context.Background(), "> ")
	require.NoError(t, err)
	assert.Equal(t, 1, out.flushes)
}

func TestPrompterLines(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantEOF bool
	}{
		{name: "unix newlines", input: "a\nb\n", want: []string{"a", "b"}, wantEOF: true},
		{name: "crlf", input: "a\r\n", want: []string{"a"}, wantEOF: true},
		{name: "final line without newline", input: "a\nlast", want: []string{"a", "last"}, wantEOF: true},
		{name: "empty line", input: "\n", want: []string{""}, wantEOF: true},
		{name: "empty input", input: "", wantEOF: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPrompter(io.Discard, strings.NewReader(tt.input))
			var got []string
			for {
				line, err := p.Input(context.Background(), "")
				if err != nil {
					assert.ErrorIs(t, err, io.EOF)
					break
				}
				got = append(got, line)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrompterWriteFailureIsReturned(t *testing.T) {
	p := NewPrompter(failingWriter{}, strings.NewReader("never read\n"))
	_, err := p.Input(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed pipe")
}

func TestPrompterEmptyPromptWritesNothing(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(&out, strings.NewReader("x\n"))
	_, err := p.Input(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestPrompterHonoursCancelledContext(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(&out, strings.NewReader("x\n"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Input(ctx, "prompt")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

func TestPrompterReturnsWhenContextEndsDuringRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	p := NewPrompter(io.Discard, pr)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := p.Input(ctx, "name? ")
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Input did not return after its context was cancelled")
	}

	// The line typed after the abandoned read goes to the next caller
	go func() { _, _ = io.WriteString(pw, "Ada\n") }()
	got, err := p.Input(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got)
}

func TestNoInput(t *testing.T) {
	_, err := NoInput.Input(context.Background(), "anything")
	assert.ErrorIs(t, err, io.EOF)
}
