package jedi

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/pyrunner/complete"
	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/internal/pyworker"
)

func TestCandidateSignatures(t *testing.T) {
	tests := []struct {
		name    string
		raw     pyworker.RawCompletion
		want    []complete.Signature
		wantErr bool
	}{
		{
			name: "one signature",
			raw:  pyworker.RawCompletion{Name: "greet", Type: "function", Complete: "eet", Signatures: [][]string{{"name", "greeting"}}},
			want: []complete.Signature{{Params: []string{"name", "greeting"}}},
		},
		{
			name: "not callable",
			raw:  pyworker.RawCompletion{Name: "x", Type: "statement", Signatures: [][]string{}},
			want: []complete.Signature{},
		},
		{
			name:    "extraction failed",
			raw:     pyworker.RawCompletion{Name: "weird", Type: "function"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cands := toCandidates([]pyworker.RawCompletion{tt.raw})
			require.Len(t, cands, 1)
			assert.Equal(t, tt.raw.Name, cands[0].Name())
			assert.Equal(t, tt.raw.Type, cands[0].Category())
			assert.Equal(t, tt.raw.Complete, cands[0].InsertText())

			sp, ok := cands[0].(complete.SignatureProvider)
			require.True(t, ok)
			sigs, err := sp.Signatures()
			if tt.wantErr {
				assert.ErrorIs(t, err, complete.ErrNoSignature)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sigs)
		})
	}
}

func TestMissingInterpreterIsUnavailable(t *testing.T) {
	e := New(Options{Argv: []string{"pyrunner-no-such-python"}, Logger: zaptest.NewLogger(t).Sugar()})
	_, err := e.Complete(context.Background(), "pr", 1, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, complete.ErrEngineUnavailable))
}

func newJediEngine(t *testing.T) *Engine {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping jedi integration test in short mode")
	}
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not found in PATH")
	}
	if err := exec.Command("python3", "-c", "import jedi").Run(); err != nil {
		t.Skip("jedi is not installed")
	}

	e := New(Options{Argv: []string{"python3"}, MinVersion: "3.8", Logger: zaptest.NewLogger(t).Sugar()})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Close(ctx)
	})
	return e
}

func TestJediCompletesUserFunction(t *testing.T) {
	e := newJediEngine(t)
	a := complete.NewAdapter(e, zaptest.NewLogger(t).Sugar())

	source := "def greet(name, greeting='hi'):\n    pass\n\ngr"
	items := a.Complete(context.Background(), source, 4, 2)
	require.NotEmpty(t, items)

	var greet *complete.Item
	for i := range items {
		if items[i].Label == "greet" {
			greet = &items[i]
		}
	}
	require.NotNil(t, greet, "greet should be suggested, got %v", items)
	assert.Equal(t, "function", greet.Type)
	assert.Equal(t, "eet", greet.Complete)
	assert.Equal(t, "(name, greeting)", greet.Signature)
	assert.LessOrEqual(t, len(items), complete.MaxItems)
}

func TestJediBadPositionIsEmpty(t *testing.T) {
	e := newJediEngine(t)
	a := complete.NewAdapter(e, zaptest.NewLogger(t).Sugar())

	assert.Equal(t, "[]", a.CompleteJSON(context.Background(), "x = 1", 40, 0))
}

func TestJediCapsResults(t *testing.T) {
	e := newJediEngine(t)
	a := complete.NewAdapter(e, zaptest.NewLogger(t).Sugar())

	items := a.Complete(context.Background(), "import os\nos.", 2, 3)
	assert.Len(t, items, complete.MaxItems)
}
