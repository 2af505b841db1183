package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestWithHint(t *testing.T) {
	err := WithHint(New("jedi missing"), "pip install jedi")

	hints := GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Equal(t, "pip install jedi", hints[0])
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, WithHint(nil, "hint"))
	assert.False(t, IsWorkerGone(nil))
	assert.False(t, IsInvalidRequestError(nil))
}

func TestSentinelClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		workerGone  bool
		invalid     bool
		unavailable bool
	}{
		{"worker exited", Wrap(ErrWorkerExited, "read event"), true, false, false},
		{"session closed", Wrapf(ErrSessionClosed, "session %s", "abc"), true, false, false},
		{"invalid request", NewInvalidRequestError("line must be >= 1, got %d", 0), false, true, false},
		{"unavailable", Wrap(ErrServiceUnavailable, "jedi"), false, false, true},
		{"plain", New("boom"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.workerGone, IsWorkerGone(tt.err))
			assert.Equal(t, tt.invalid, IsInvalidRequestError(tt.err))
			assert.Equal(t, tt.unavailable, IsServiceUnavailableError(tt.err))
		})
	}
}

func TestNewInvalidRequestErrorMessage(t *testing.T) {
	err := NewInvalidRequestError("column must be >= 0, got %d", -1)
	assert.Contains(t, err.Error(), "column must be >= 0, got -1")
	assert.Contains(t, err.Error(), "invalid request")
}

func ExampleWrap() {
	baseErr := New("broken pipe")
	err := Wrap(baseErr, "failed to send request to worker")
	fmt.Println(err)
	// Output: failed to send request to worker: broken pipe
}
