package interp

import (
	"bytes"
	"io"
	"sync"
)

// Capture collects a session's output between Take calls. Used where the
// caller wants output as a value rather than a stream.
type Capture struct {
	mu     sync.Mutex
	stdout bytes.Buffer
	stderr bytes.Buffer
}

// Stdout returns the writer for the session's standard output
func (c *Capture) Stdout() io.Writer {
	return &captureStream{c: c, buf: &c.stdout}
}

// Stderr returns the writer for the session's standard error
func (c *Capture) Stderr() io.Writer {
	return &captureStream{c: c, buf: &c.stderr}
}

// Take returns and clears everything captured so far
func (c *Capture) Take() (stdout, stderr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stdout, stderr = c.stdout.String(), c.stderr.String()
	c.stdout.Reset()
	c.stderr.Reset()
	return stdout, stderr
}

type captureStream struct {
	c   *Capture
	buf *bytes.Buffer
}

func (w *captureStream) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	return w.buf.Write(p)
}
