package interp

import (
	"io"
	"sync"
)

// lockedWriter serializes writes from the event dispatcher and the worker's
// raw fd 1/2 copy goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newLockedWriter(w io.Writer) *lockedWriter {
	if w == nil {
		w = io.Discard
	}
	if lw, ok := w.(*lockedWriter); ok {
		return lw
	}
	return &lockedWriter{w: w}
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Flush forwards to the wrapped writer so a Prompter sharing this writer
// still flushes.
func (l *lockedWriter) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if f, ok := l.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}
