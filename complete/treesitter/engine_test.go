package treesitter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/pyrunner/complete"
	"github.com/teranos/pyrunner/errors"
)

func names(cands []complete.Candidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Name())
	}
	return out
}

func indexOf(list []string, name string) int {
	for i, n := range list {
		if n == name {
			return i
		}
	}
	return -1
}

func TestCompletesModuleFunctionWithSignature(t *testing.T) {
	e := New(zaptest.NewLogger(t).Sugar())
	a := complete.NewAdapter(e, zaptest.NewLogger(t).Sugar())

	source := "def greet(name, greeting='hi'):\n    pass\n\ngr"
	items := a.Complete(context.Background(), source, 4, 2)

	require.Len(t, items, 1)
	assert.Equal(t, complete.Item{Label: "greet", Type: "function", Complete: "eet", Signature: "(name, greeting)"}, items[0])
}

func TestUnterminatedStringIsMalformed(t *testing.T) {
	e := New(zaptest.NewLogger(t).Sugar())

	tests := []struct {
		name   string
		source string
		line   int
		column int
	}{
		{name: "before cursor", source: "x = 'abc\ngr", line: 2, column: 2},
		{name: "cursor inside", source: "print('hello", line: 1, column: 12},
		{name: "triple quoted", source: "s = '''doc\nmore\ngr", line: 3, column: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Complete(context.Background(), tt.source, tt.line, tt.column)
			require.Error(t, err)
			assert.True(t, errors.Is(err, complete.ErrMalformedSource))

			a := complete.NewAdapter(e, zaptest.NewLogger(t).Sugar())
			assert.Equal(t, "[]", a.CompleteJSON(context.Background(), tt.source, tt.line, tt.column))
		})
	}
}

func TestUnterminatedStringAfterCursorIsIgnored(t *testing.T) {
	e := New(zaptest.NewLogger(t).Sugar())
	got, err := e.Complete(context.Background(), "prin\nx = 'open", 1, 4)
	require.NoError(t, err)
	assert.Contains(t, names(got), "print")
}

func TestLocalsRankBeforeModuleBuiltinsKeywords(t *testing.T) {
	source := "import os\n" +
		"\n" +
		"def outer(alpha, beta=2):\n" +
		"    total = alpha + beta\n" +
		"    def inner():\n" +
		"        pass\n" +
		"    a"

	e := New(zaptest.NewLogger(t).Sugar())
	got, err := e.Complete(context.Background(), source, 7, 5)
	require.NoError(t, err)

	list := names(got)
	require.NotEmpty(t, list)
	assert.Equal(t, "alpha", list[0])
	assert.Equal(t, "param", got[0].Category())
	assert.Equal(t, "lpha", got[0].InsertText())

	abs, and := indexOf(list, "abs"), indexOf(list, "and")
	require.NotEqual(t, -1, abs)
	require.NotEqual(t, -1, and)
	assert.Less(t, abs, and, "builtins rank before keywords")
	assert.Equal(t, "keyword", got[and].Category())
}

func TestFunctionLocalsAreScoped(t *testing.T) {
	source := "def first(param_one):\n" +
		"    local_one = 1\n" +
		"\n" +
		"def second():\n" +
		"    local_two = 2\n" +
		"    loc"

	e := New(zaptest.NewLogger(t).Sugar())
	got, err := e.Complete(context.Background(), source, 6, 7)
	require.NoError(t, err)

	list := names(got)
	assert.Contains(t, list, "local_two")
	assert.NotContains(t, list, "local_one")
	assert.Contains(t, list, "locals", "builtin still offered")
}

func TestIndentedBlankLineStaysInFunction(t *testing.T) {
	source := "def f(argument):\n    x = 1\n    "

	e := New(zaptest.NewLogger(t).Sugar())
	got, err := e.Complete(context.Background(), source, 3, 4)
	require.NoError(t, err)
	assert.Contains(t, names(got), "argument")
}

func TestClassSignatureFromInit(t *testing.T) {
	source := "class Point:\n" +
		"    def __init__(self, x, y=0):\n" +
		"        self.x = x\n" +
		"\n" +
		"Po"

	a := complete.NewAdapter(New(zaptest.NewLogger(t).Sugar()), zaptest.NewLogger(t).Sugar())
	items := a.Complete(context.Background(), source, 5, 2)
	require.NotEmpty(t, items)
	assert.Equal(t, complete.Item{Label: "Point", Type: "class", Complete: "int", Signature: "(x, y)"}, items[0])
}

func TestBindingForms(t *testing.T) {
	source := "import numpy as np\n" +
		"import os.path\n" +
		"from os import path, sep as separator\n" +
		"for idx, item in enumerate([]):\n" +
		"    pass\n" +
		"with open('f') as fh:\n" +
		"    pass\n" +
		"try:\n" +
		"    pass\n" +
		"except ValueError as err:\n" +
		"    pass\n" +
		"if True:\n" +
		"    nested = 1\n" +
		"first = second = 0\n" +
		""

	e := New(zaptest.NewLogger(t).Sugar())
	got, err := e.Complete(context.Background(), source, 15, 0)
	require.NoError(t, err)

	list := names(got)
	for _, want := range []string{"np", "os", "path", "separator", "idx", "item", "fh", "err", "nested", "first", "second"} {
		assert.Contains(t, list, want)
	}
	assert.NotContains(t, list, "sep", "aliased import binds only the alias")
}

func TestNoCandidates(t *testing.T) {
	tests := []struct {
		name   string
		source string
		line   int
		column int
	}{
		{name: "attribute access", source: "import os\nos.pa", line: 2, column: 5},
		{name: "inside comment", source: "# gr", line: 1, column: 4},
		{name: "inside closed string", source: "x = 'gr'", line: 1, column: 7},
		{name: "number literal", source: "x = 12", line: 1, column: 6},
	}

	e := New(zaptest.NewLogger(t).Sugar())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Complete(context.Background(), tt.source, tt.line, tt.column)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestIncompleteCallStillCompletes(t *testing.T) {
	source := "def greet():\n    pass\nprint(gr"

	e := New(zaptest.NewLogger(t).Sugar())
	got, err := e.Complete(context.Background(), source, 3, 8)
	require.NoError(t, err)
	assert.Contains(t, names(got), "greet")
}

func TestRankPutsPrivateNamesLast(t *testing.T) {
	got := rank([]binding{
		{name: "_private_local", kind: kindStatement, group: groupLocal},
		{name: "public_module", kind: kindStatement, group: groupModule},
		{name: "pass", kind: kindKeyword, group: groupKeyword},
		{name: "__import__", kind: kindFunction, group: groupBuiltin},
		{name: "print", kind: kindFunction, group: groupBuiltin},
	}, "")

	assert.Equal(t, []string{"public_module", "print", "pass", "_private_local", "__import__"}, names(got))
}

func TestRankIsCaseInsensitive(t *testing.T) {
	got := rank([]binding{{name: "ValueError", kind: kindClass, group: groupBuiltin}}, "val")
	require.Len(t, got, 1)
	assert.Equal(t, "ueError", got[0].InsertText())
}

func TestBuiltinSignatures(t *testing.T) {
	a := complete.NewAdapter(New(zaptest.NewLogger(t).Sugar()), zaptest.NewLogger(t).Sugar())
	items := a.Complete(context.Background(), "prin", 1, 4)
	require.NotEmpty(t, items)
	assert.Equal(t, "print", items[0].Label)
	assert.Equal(t, "(values, sep, end, file, flush)", items[0].Signature)
}
