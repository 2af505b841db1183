// Package treesitter is a static completion engine built on the tree-sitter
// Python grammar. It needs no interpreter, so it backs up jedi when jedi is
// unavailable.
package treesitter

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"go.uber.org/zap"

	"github.com/teranos/pyrunner/complete"
	"github.com/teranos/pyrunner/errors"
)

// EngineName identifies this engine in logs and config
const EngineName = "treesitter"

// Engine is safe for concurrent use; every request gets its own parser
type Engine struct {
	logger *zap.SugaredLogger
}

// New returns a tree-sitter engine
func New(logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{logger: logger}
}

// Name implements complete.Engine
func (e *Engine) Name() string {
	return EngineName
}

// Complete implements complete.Engine. It suggests names in scope, builtins
// and keywords matching the partial name at the cursor. Attribute access
// is not inferred and yields no candidates.
func (e *Engine) Complete(ctx context.Context, source string, line, column int) ([]complete.Candidate, error) {
	cur, err := resolveCursor(source, line, column)
	if err != nil {
		return nil, err
	}

	state, err := scanTo(source, cur.offset)
	if err != nil {
		return nil, err
	}
	if state != inCode || cur.afterDot(source) {
		return nil, nil
	}
	if r, _ := utf8.DecodeRuneInString(cur.prefix); cur.prefix != "" && unicode.IsDigit(r) {
		return nil, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	src := []byte(source)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, errors.Wrap(err, "tree-sitter parse failed")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, errors.Wrap(complete.ErrMalformedSource, "tree-sitter returned no root node")
	}
	if root.HasError() {
		if bad := firstError(root); bad != nil && int(bad.EndPoint().Row) < line-1 {
			return nil, errors.Wrapf(complete.ErrMalformedSource,
				"syntax error on line %d before the cursor", bad.StartPoint().Row+1)
		}
	}

	c := newCollector(src, cur.offset)
	c.collectVisible(root, cur.column)

	candidates := rank(c.out, cur.prefix)
	e.logger.Debugw("tree-sitter completion",
		"prefix", cur.prefix,
		"count", len(candidates),
		"has_error", root.HasError(),
	)
	return candidates, nil
}

// collectVisible gathers bindings innermost scope first. Class bodies are
// only visible when the cursor sits directly in them.
func (c *collector) collectVisible(root *sitter.Node, cursorCol int) {
	scopes := c.enclosingScopes(root, cursorCol)
	for i := len(scopes) - 1; i >= 0; i-- {
		scope := scopes[i]
		if scope.Type() == "class_definition" && i != len(scopes)-1 {
			continue
		}
		c.collectScope(scope, groupLocal)
	}

	c.collectBlock(root, groupModule)

	for _, name := range builtinFunctions {
		params, ok := builtinSignatures[name]
		c.addStatic(name, kindFunction, groupBuiltin, params, ok)
	}
	for _, name := range builtinClasses {
		params, ok := builtinSignatures[name]
		c.addStatic(name, kindClass, groupBuiltin, params, ok)
	}
	for _, name := range builtinInstances {
		c.addStatic(name, kindInstance, groupBuiltin, nil, false)
	}
	for _, name := range keywords {
		c.addStatic(name, kindKeyword, groupKeyword, nil, false)
	}
}

// firstError returns the earliest ERROR or MISSING node in document order
func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !(child.HasError() || child.IsMissing()) {
			continue
		}
		if bad := firstError(child); bad != nil {
			return bad
		}
	}
	return nil
}

// rank filters by prefix (case-insensitive) and orders public names before
// private ones, then locals, module, builtins, keywords, then by name.
func rank(bindings []binding, prefix string) []complete.Candidate {
	lower := strings.ToLower(prefix)
	matched := make([]binding, 0, len(bindings))
	for _, b := range bindings {
		if strings.HasPrefix(strings.ToLower(b.name), lower) {
			matched = append(matched, b)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if pa, pb := isPrivate(a.name), isPrivate(b.name); pa != pb {
			return !pa
		}
		if a.group != b.group {
			return a.group < b.group
		}
		return strings.ToLower(a.name) < strings.ToLower(b.name)
	})

	out := make([]complete.Candidate, 0, len(matched))
	for _, b := range matched {
		insert := ""
		if len(prefix) <= len(b.name) {
			insert = b.name[len(prefix):]
		}
		out = append(out, candidate{binding: b, insert: insert})
	}
	return out
}

func isPrivate(name string) bool {
	return strings.HasPrefix(name, "_")
}

type candidate struct {
	binding
	insert string
}

func (c candidate) Name() string       { return c.name }
func (c candidate) Category() string   { return c.kind }
func (c candidate) InsertText() string { return c.insert }

// Signatures implements complete.SignatureProvider
func (c candidate) Signatures() ([]complete.Signature, error) {
	if !c.hasSig {
		return nil, complete.ErrNoSignature
	}
	return []complete.Signature{{Params: c.params}}, nil
}
