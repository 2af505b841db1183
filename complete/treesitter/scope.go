package treesitter

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Ranking groups, lowest first
const (
	groupLocal = iota
	groupModule
	groupBuiltin
	groupKeyword
)

// Categories share jedi's vocabulary so both engines render alike
const (
	kindFunction  = "function"
	kindClass     = "class"
	kindModule    = "module"
	kindParam     = "param"
	kindStatement = "statement"
	kindInstance  = "instance"
	kindKeyword   = "keyword"
)

type binding struct {
	name   string
	kind   string
	group  int
	params []string
	hasSig bool
}

// collector gathers the names visible at the cursor, inner scopes first
type collector struct {
	src    []byte
	cursor uint32
	seen   map[string]bool
	out    []binding
}

func newCollector(src []byte, cursor int) *collector {
	return &collector{src: src, cursor: uint32(cursor), seen: make(map[string]bool)}
}

func (c *collector) text(n *sitter.Node) string {
	return n.Content(c.src)
}

// add records name unless an inner scope already bound it or the node is
// the partial name under the cursor.
func (c *collector) add(ident *sitter.Node, b binding) {
	if ident == nil {
		return
	}
	if ident.StartByte() <= c.cursor && c.cursor <= ident.EndByte() {
		return
	}
	b.name = c.text(ident)
	if b.name == "" || c.seen[b.name] {
		return
	}
	c.seen[b.name] = true
	c.out = append(c.out, b)
}

func (c *collector) addStatic(name, kind string, group int, params []string, hasSig bool) {
	if c.seen[name] {
		return
	}
	c.seen[name] = true
	c.out = append(c.out, binding{name: name, kind: kind, group: group, params: params, hasSig: hasSig})
}

// enclosingScopes returns function, lambda and class nodes around the
// cursor, outermost first. A definition whose body ended on an earlier line
// still encloses an indented blank line after it.
func (c *collector) enclosingScopes(root *sitter.Node, cursorCol int) []*sitter.Node {
	var scopes []*sitter.Node
	node := root
	for node != nil {
		var next *sitter.Node
		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			child := node.Child(i)
			if child == nil || child.StartByte() >= c.cursor {
				continue
			}
			if c.reaches(child, cursorCol) {
				next = child
			}
			break
		}
		if next == nil {
			break
		}
		switch next.Type() {
		case "function_definition", "class_definition", "lambda":
			scopes = append(scopes, next)
		}
		node = next
	}
	return scopes
}

func (c *collector) reaches(n *sitter.Node, cursorCol int) bool {
	if c.cursor <= n.EndByte() {
		return true
	}
	gap := string(c.src[n.EndByte():c.cursor])
	return strings.TrimSpace(gap) == "" && strings.Contains(gap, "\n") && cursorCol > int(n.StartPoint().Column)
}

// collectScope adds the bindings of one function, lambda or class scope
func (c *collector) collectScope(scope *sitter.Node, group int) {
	if params := scope.ChildByFieldName("parameters"); params != nil {
		for _, p := range parameterIdents(params) {
			c.add(p, binding{kind: kindParam, group: group})
		}
	}
	if body := scope.ChildByFieldName("body"); body != nil {
		c.collectBlock(body, group)
	}
}

func (c *collector) collectBlock(block *sitter.Node, group int) {
	for i := 0; i < int(block.NamedChildCount()); i++ {
		c.collectStatement(block.NamedChild(i), group)
	}
}

func (c *collector) collectStatement(n *sitter.Node, group int) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "function_definition":
		c.add(n.ChildByFieldName("name"), c.functionBinding(n, group))
	case "class_definition":
		c.add(n.ChildByFieldName("name"), c.classBinding(n, group))
	case "decorated_definition":
		c.collectStatement(n.ChildByFieldName("definition"), group)
	case "expression_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c.collectExpression(n.NamedChild(i), group)
		}
	case "import_statement":
		c.collectImport(n, group)
	case "import_from_statement":
		c.collectFromImport(n, group)
	case "for_statement":
		c.collectTargets(n.ChildByFieldName("left"), group)
		c.collectCompound(n, group)
	case "with_statement":
		c.collectAsPatterns(n, group)
		c.collectCompound(n, group)
	case "except_clause":
		c.collectAsPatterns(n, group)
		c.collectCompound(n, group)
	case "if_statement", "while_statement", "try_statement", "match_statement",
		"elif_clause", "else_clause", "finally_clause", "except_group_clause", "case_clause", "block", "ERROR":
		c.collectCompound(n, group)
	}
}

// collectCompound descends into the nested blocks of a compound statement
func (c *collector) collectCompound(n *sitter.Node, group int) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch {
		case child.Type() == "block":
			c.collectBlock(child, group)
		case strings.HasSuffix(child.Type(), "_clause"), strings.HasSuffix(child.Type(), "_statement"),
			child.Type() == "function_definition", child.Type() == "class_definition",
			child.Type() == "decorated_definition", child.Type() == "ERROR":
			c.collectStatement(child, group)
		}
	}
}

func (c *collector) collectExpression(n *sitter.Node, group int) {
	switch n.Type() {
	case "assignment", "augmented_assignment":
		c.collectTargets(n.ChildByFieldName("left"), group)
		// Chained assignment: a = b = 1
		if right := n.ChildByFieldName("right"); right != nil && right.Type() == "assignment" {
			c.collectExpression(right, group)
		}
	case "named_expression":
		c.add(n.ChildByFieldName("name"), binding{kind: kindStatement, group: group})
	}
}

func (c *collector) collectTargets(n *sitter.Node, group int) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "identifier":
		c.add(n, binding{kind: kindStatement, group: group})
	case "pattern_list", "tuple_pattern", "list_pattern", "tuple", "list",
		"parenthesized_expression", "list_splat_pattern", "as_pattern_target":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c.collectTargets(n.NamedChild(i), group)
		}
	}
}

// collectAsPatterns binds `with x as y` and `except E as e` aliases
func (c *collector) collectAsPatterns(n *sitter.Node, group int) {
	var walk func(*sitter.Node)
	walk = func(m *sitter.Node) {
		for i := 0; i < int(m.NamedChildCount()); i++ {
			child := m.NamedChild(i)
			switch child.Type() {
			case "block":
				continue
			case "as_pattern":
				c.collectTargets(child.ChildByFieldName("alias"), group)
			case "with_clause", "with_item":
				walk(child)
			}
		}
	}
	walk(n)

	// Older grammars: except E as e with a bare identifier after `as`
	if n.Type() == "except_clause" {
		for i := 0; i+1 < int(n.ChildCount()); i++ {
			if n.Child(i).Type() == "as" && n.Child(i+1).Type() == "identifier" {
				c.add(n.Child(i+1), binding{kind: kindStatement, group: group})
			}
		}
	}
}

func (c *collector) collectImport(n *sitter.Node, group int) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			// `import os.path` binds os
			c.add(child.NamedChild(0), binding{kind: kindModule, group: group})
		case "aliased_import":
			c.add(child.ChildByFieldName("alias"), binding{kind: kindModule, group: group})
		}
	}
}

func (c *collector) collectFromImport(n *sitter.Node, group int) {
	sawImport := false
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "import":
			sawImport = true
		case "dotted_name":
			if sawImport {
				last := child.NamedChild(int(child.NamedChildCount()) - 1)
				c.add(last, binding{kind: kindStatement, group: group})
			}
		case "aliased_import":
			c.add(child.ChildByFieldName("alias"), binding{kind: kindStatement, group: group})
		}
	}
}

func (c *collector) functionBinding(def *sitter.Node, group int) binding {
	b := binding{kind: kindFunction, group: group, hasSig: true}
	if params := def.ChildByFieldName("parameters"); params != nil {
		b.params = c.names(parameterIdents(params))
	}
	return b
}

// classBinding takes its signature from __init__ without the receiver
func (c *collector) classBinding(def *sitter.Node, group int) binding {
	b := binding{kind: kindClass, group: group, hasSig: true}
	body := def.ChildByFieldName("body")
	if body == nil {
		return b
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		if stmt.Type() == "decorated_definition" {
			stmt = stmt.ChildByFieldName("definition")
		}
		if stmt == nil || stmt.Type() != "function_definition" {
			continue
		}
		if name := stmt.ChildByFieldName("name"); name == nil || c.text(name) != "__init__" {
			continue
		}
		if params := stmt.ChildByFieldName("parameters"); params != nil {
			names := c.names(parameterIdents(params))
			if len(names) > 0 {
				names = names[1:]
			}
			b.params = names
		}
	}
	return b
}

func (c *collector) names(idents []*sitter.Node) []string {
	out := make([]string, 0, len(idents))
	for _, id := range idents {
		out = append(out, c.text(id))
	}
	return out
}

// parameterIdents returns the identifier node of each named parameter,
// skipping the bare `*` and `/` separators.
func parameterIdents(params *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		var ident *sitter.Node
		switch p.Type() {
		case "identifier":
			ident = p
		case "default_parameter", "typed_default_parameter":
			ident = p.ChildByFieldName("name")
		case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
			ident = firstIdentifier(p)
		}
		if ident != nil {
			out = append(out, ident)
		}
	}
	return out
}

func firstIdentifier(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "identifier":
			return child
		case "list_splat_pattern", "dictionary_splat_pattern":
			if id := firstIdentifier(child); id != nil {
				return id
			}
		}
	}
	return nil
}
