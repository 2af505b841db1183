package complete

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/pyrunner/errors"
)

type fakeCandidate struct {
	name, category, insert string
}

func (c fakeCandidate) Name() string       { return c.name }
func (c fakeCandidate) Category() string   { return c.category }
func (c fakeCandidate) InsertText() string { return c.insert }

type signedCandidate struct {
	fakeCandidate
	sigs  []Signature
	err   error
	panic bool
}

func (c signedCandidate) Signatures() ([]Signature, error) {
	if c.panic {
		panic("signature blew up")
	}
	return c.sigs, c.err
}

type fakeEngine struct {
	name       string
	candidates []Candidate
	err        error
	panic      bool
	calls      int
}

func (e *fakeEngine) Name() string { return e.name }

func (e *fakeEngine) Complete(ctx context.Context, source string, line, column int) ([]Candidate, error) {
	e.calls++
	if e.panic {
		panic("engine blew up")
	}
	return e.candidates, e.err
}

func newTestAdapter(t *testing.T, e Engine) *Adapter {
	return NewAdapter(e, zaptest.NewLogger(t).Sugar())
}

func TestAdapterMapsCandidates(t *testing.T) {
	engine := &fakeEngine{name: "fake", candidates: []Candidate{
		signedCandidate{
			fakeCandidate: fakeCandidate{"greet", "function", "eet"},
			sigs:          []Signature{{Params: []string{"name", "greeting"}}, {Params: []string{"other"}}},
		},
		fakeCandidate{"global", "keyword", ""},
		signedCandidate{fakeCandidate: fakeCandidate{"green", "statement", "een"}},
		signedCandidate{fakeCandidate: fakeCandidate{"grid", "function", "id"}, err: ErrNoSignature},
		signedCandidate{fakeCandidate: fakeCandidate{"grow", "function", "ow"}, panic: true},
		signedCandidate{fakeCandidate: fakeCandidate{"gro", "function", "o"}, sigs: []Signature{{}}},
	}}

	items := newTestAdapter(t, engine).Complete(context.Background(), "gr", 1, 2)
	assert.Equal(t, []Item{
		{Label: "greet", Type: "function", Complete: "eet", Signature: "(name, greeting)"},
		{Label: "global", Type: "keyword", Complete: "", Signature: ""},
		{Label: "green", Type: "statement", Complete: "een", Signature: ""},
		{Label: "grid", Type: "function", Complete: "id", Signature: ""},
		{Label: "grow", Type: "function", Complete: "ow", Signature: ""},
		{Label: "gro", Type: "function", Complete: "o", Signature: "()"},
	}, items)
}

func TestAdapterCapsAtMaxItemsInEngineOrder(t *testing.T) {
	var candidates []Candidate
	for i := 0; i < 120; i++ {
		candidates = append(candidates, fakeCandidate{name: fmt.Sprintf("name%03d", i), category: "statement"})
	}

	items := newTestAdapter(t, &fakeEngine{name: "fake", candidates: candidates}).Complete(context.Background(), "", 1, 0)
	require.Len(t, items, MaxItems)
	assert.Equal(t, "name000", items[0].Label)
	assert.Equal(t, "name049", items[MaxItems-1].Label)
}

func TestAdapterFailuresYieldEmptyList(t *testing.T) {
	tests := []struct {
		name   string
		engine Engine
		line   int
		column int
	}{
		{name: "engine error", engine: &fakeEngine{name: "fake", err: errors.Wrap(ErrMalformedSource, "unterminated string")}, line: 1},
		{name: "engine panic", engine: &fakeEngine{name: "fake", panic: true}, line: 1},
		{name: "no engine", engine: nil, line: 1},
		{name: "line before start", engine: &fakeEngine{name: "fake"}, line: 0},
		{name: "negative column", engine: &fakeEngine{name: "fake"}, line: 1, column: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t, tt.engine)
			items := a.Complete(context.Background(), "x = 'open", tt.line, tt.column)
			assert.NotNil(t, items)
			assert.Empty(t, items)
			assert.Equal(t, "[]", a.CompleteJSON(context.Background(), "x = 'open", tt.line, tt.column))
		})
	}
}

func TestCompleteJSONShape(t *testing.T) {
	engine := &fakeEngine{name: "fake", candidates: []Candidate{
		fakeCandidate{"print", "function", "int"},
	}}

	raw := newTestAdapter(t, engine).CompleteJSON(context.Background(), "pr", 1, 2)

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	require.Len(t, decoded, 1)
	assert.Len(t, decoded[0], 4)
	for _, key := range []string{"label", "type", "complete", "signature"} {
		_, isString := decoded[0][key].(string)
		assert.True(t, isString, "key %q must be a string", key)
	}
}

func TestCompleteJSONEmptyEngineResult(t *testing.T) {
	a := newTestAdapter(t, &fakeEngine{name: "fake"})
	assert.Equal(t, "[]", a.CompleteJSON(context.Background(), "", 1, 0))
}

func TestFallback(t *testing.T) {
	secondaryCandidates := []Candidate{fakeCandidate{"from_secondary", "statement", ""}}

	tests := []struct {
		name           string
		primaryErr     error
		wantSecondary  bool
		wantErr        bool
		wantCandidates int
	}{
		{name: "primary succeeds", wantCandidates: 1},
		{name: "primary unavailable", primaryErr: errors.Wrap(ErrEngineUnavailable, "jedi missing"), wantSecondary: true, wantCandidates: 1},
		{name: "primary fails otherwise", primaryErr: errors.New("jedi crashed"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &fakeEngine{name: "primary", candidates: []Candidate{fakeCandidate{"from_primary", "statement", ""}}, err: tt.primaryErr}
			secondary := &fakeEngine{name: "secondary", candidates: secondaryCandidates}
			f := &Fallback{Primary: primary, Secondary: secondary, Logger: zaptest.NewLogger(t).Sugar()}

			got, err := f.Complete(context.Background(), "", 1, 0)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Zero(t, secondary.calls)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantCandidates)
			if tt.wantSecondary {
				assert.Equal(t, 1, secondary.calls)
				assert.Equal(t, "from_secondary", got[0].Name())
			} else {
				assert.Zero(t, secondary.calls)
			}
		})
	}
	assert.Equal(t, "primary|secondary", (&Fallback{Primary: &fakeEngine{name: "primary"}, Secondary: &fakeEngine{name: "secondary"}}).Name())
}
