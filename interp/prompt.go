package interp

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// Inputter answers line reads issued by executed code. A Session gets one at
// construction and keeps it for its lifetime.
//
// io.EOF means end of input; executed code sees it as EOFError.
type Inputter interface {
	Input(ctx context.Context, prompt string) (string, error)
}

// InputFunc adapts a function to Inputter
type InputFunc func(ctx context.Context, prompt string) (string, error)

// Input calls f
func (f InputFunc) Input(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// NoInput reports end of input for every read. Used where nobody can type,
// such as the HTTP and MCP surfaces.
var NoInput Inputter = InputFunc(func(ctx context.Context, prompt string) (string, error) {
	return "", io.EOF
})

// LineReader performs the blocking read. It never sees the prompt. A read
// abandoned through ctx must not consume a line.
type LineReader interface {
	ReadLine(ctx context.Context) (string, error)
}

// pumpLineReader reads from the underlying reader in one goroutine and hands
// lines over a channel, so a reader whose context ends can walk away while
// the pending line waits for the next caller.
type pumpLineReader struct {
	r     *bufio.Reader
	start sync.Once
	lines chan string
	err   error // set before lines is closed
}

// NewLineReader reads newline-terminated lines from r. A final line without
// a newline is returned before io.EOF. The pump goroutine starts on the
// first read and lives until r reports an error.
func NewLineReader(r io.Reader) LineReader {
	return &pumpLineReader{r: bufio.NewReader(r), lines: make(chan string)}
}

func (p *pumpLineReader) pump() {
	for {
		line, err := p.r.ReadString('\n')
		if err != nil {
			if err == io.EOF && line != "" {
				p.lines <- strings.TrimRight(line, "\r\n")
			}
			p.err = err
			close(p.lines)
			return
		}
		p.lines <- strings.TrimRight(line, "\r\n")
	}
}

func (p *pumpLineReader) ReadLine(ctx context.Context) (string, error) {
	p.start.Do(func() { go p.pump() })
	select {
	case line, ok := <-p.lines:
		if !ok {
			return "", p.err
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type flusher interface {
	Flush() error
}

// Prompter writes the prompt to its output, flushes it when the output
// buffers, then reads one line. The prompt is written exactly once.
type Prompter struct {
	out io.Writer
	in  LineReader
}

// NewPrompter builds a Prompter over out and in
func NewPrompter(out io.Writer, in io.Reader) *Prompter {
	return &Prompter{out: out, in: NewLineReader(in)}
}

// NewPrompterWithReader builds a Prompter over an existing LineReader
func NewPrompterWithReader(out io.Writer, in LineReader) *Prompter {
	return &Prompter{out: out, in: in}
}

// Input implements Inputter. Write and flush failures are returned as-is.
// The read gives up with ctx.Err() once ctx ends.
func (p *Prompter) Input(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if prompt != "" {
		if _, err := io.WriteString(p.out, prompt); err != nil {
			return "", err
		}
	}
	if f, ok := p.out.(flusher); ok {
		if err := f.Flush(); err != nil {
			return "", err
		}
	}
	return p.in.ReadLine(ctx)
}
