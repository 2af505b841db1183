package complete

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/pyrunner/errors"
)

// Fallback asks Primary first and Secondary only when Primary reports
// ErrEngineUnavailable. Other Primary failures are returned as-is.
type Fallback struct {
	Primary   Engine
	Secondary Engine
	Logger    *zap.SugaredLogger
}

// Name identifies both engines
func (f *Fallback) Name() string {
	return f.Primary.Name() + "|" + f.Secondary.Name()
}

// Complete implements Engine
func (f *Fallback) Complete(ctx context.Context, source string, line, column int) ([]Candidate, error) {
	candidates, err := f.Primary.Complete(ctx, source, line, column)
	if err == nil || !errors.Is(err, ErrEngineUnavailable) {
		return candidates, err
	}

	if f.Logger != nil {
		f.Logger.Debugw("Primary completion engine unavailable, falling back",
			"primary", f.Primary.Name(),
			"secondary", f.Secondary.Name(),
			"error", err,
		)
	}
	return f.Secondary.Complete(ctx, source, line, column)
}
