// Package complete turns completion candidates from an analysis engine into
// the flat items an editor front end renders.
package complete

import (
	"context"

	"github.com/teranos/pyrunner/errors"
)

// MaxItems caps every completion response
const MaxItems = 50

// Item is one completion suggestion as sent to the editor
type Item struct {
	Label     string `json:"label"`
	Type      string `json:"type"`
	Complete  string `json:"complete"`
	Signature string `json:"signature"`
}

// Candidate is what an engine proposes at the cursor
type Candidate interface {
	Name() string
	Category() string
	// InsertText is the text that completes the partial name, "" when absent
	InsertText() string
}

// Signature is one callable signature of a candidate
type Signature struct {
	Params []string
}

// SignatureProvider is implemented by candidates that may be callable.
// Returning no signatures or an error means "no signature" and never
// drops the candidate.
type SignatureProvider interface {
	Signatures() ([]Signature, error)
}

// Engine produces candidates for a cursor position. line is 1-based and
// column is 0-based, both counted in the source as given.
type Engine interface {
	Name() string
	Complete(ctx context.Context, source string, line, column int) ([]Candidate, error)
}

var (
	// ErrEngineUnavailable means the engine cannot run at all (missing
	// interpreter or analysis package). Fallback switches engines on it.
	ErrEngineUnavailable = errors.New("completion engine unavailable")

	// ErrMalformedSource means the source could not be analyzed at the cursor
	ErrMalformedSource = errors.New("source cannot be analyzed at the cursor")

	// ErrNoSignature is returned by SignatureProvider implementations when
	// signature extraction failed or is unsupported for the candidate.
	ErrNoSignature = errors.New("signature unavailable")
)
