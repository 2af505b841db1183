package complete

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/pyrunner/errors"
	"github.com/teranos/pyrunner/logger"
)

// emptyJSON is returned whenever a completion request fails as a whole
const emptyJSON = "[]"

// Adapter normalizes an Engine's candidates into Items. It never fails:
// any whole-request failure yields an empty list and is logged at debug
// level.
type Adapter struct {
	engine Engine
	logger *zap.SugaredLogger
}

// NewAdapter wraps engine
func NewAdapter(engine Engine, logger *zap.SugaredLogger) *Adapter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Adapter{engine: engine, logger: logger}
}

// Engine returns the wrapped engine
func (a *Adapter) Engine() Engine {
	return a.engine
}

// Complete returns at most MaxItems items in engine order
func (a *Adapter) Complete(ctx context.Context, source string, line, column int) (items []Item) {
	start := time.Now()
	log := a.logger.With(logger.FieldLine, line, logger.FieldColumn, column, logger.FieldSize, len(source))

	defer func() {
		if r := recover(); r != nil {
			log.Debugw("Completion engine panicked", "panic", r)
			items = []Item{}
		}
	}()

	if line < 1 || column < 0 {
		log.Debugw("Completion request rejected", "error", errors.NewInvalidRequestError("position %d:%d out of range", line, column))
		return []Item{}
	}
	if a.engine == nil {
		log.Debugw("Completion request failed", "error", errors.Wrap(ErrEngineUnavailable, "no engine configured"))
		return []Item{}
	}

	candidates, err := a.engine.Complete(ctx, source, line, column)
	if err != nil {
		log.Debugw("Completion request failed", "engine", a.engine.Name(), "error", err)
		return []Item{}
	}

	if len(candidates) > MaxItems {
		candidates = candidates[:MaxItems]
	}
	items = make([]Item, 0, len(candidates))
	for _, c := range candidates {
		if c == nil {
			continue
		}
		items = append(items, Item{
			Label:     c.Name(),
			Type:      c.Category(),
			Complete:  c.InsertText(),
			Signature: a.signature(c),
		})
	}

	log.Debugw("Completed",
		logger.FieldEngine, a.engine.Name(),
		logger.FieldCount, len(items),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return items
}

// CompleteJSON is Complete rendered as a JSON array; "[]" on any failure
func (a *Adapter) CompleteJSON(ctx context.Context, source string, line, column int) string {
	data, err := json.Marshal(a.Complete(ctx, source, line, column))
	if err != nil {
		a.logger.Debugw("Failed to encode completion items", "error", err)
		return emptyJSON
	}
	return string(data)
}

// signature renders the first signature as "(a, b)". Absence, errors and
// panics all yield "" and keep the candidate.
func (a *Adapter) signature(c Candidate) (sig string) {
	provider, ok := c.(SignatureProvider)
	if !ok {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Debugw("Signature extraction panicked", "candidate", c.Name(), "panic", r)
			sig = ""
		}
	}()

	sigs, err := provider.Signatures()
	if err != nil || len(sigs) == 0 {
		return ""
	}
	return FormatParams(sigs[0].Params)
}

// FormatParams joins parameter names as "(a, b)"
func FormatParams(params []string) string {
	return "(" + strings.Join(params, ", ") + ")"
}
