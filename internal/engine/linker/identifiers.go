// # internal/engine/linker/identifiers.go
package linker

import (
	"sfclink/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type scope map[string]bool

// rewriteIdentifiers points every reference to an import binding at its
// accessor. Import statements and removed export statements are not walked.
func (t *transform) rewriteIdentifiers(root *sitter.Node) error {
	if len(t.bindings) == 0 {
		return nil
	}
	for _, stmt := range parser.NamedChildren(root) {
		if removedStatement(stmt) {
			continue
		}
		w := &identWalker{t: t, top: stmt}
		if err := w.walk(stmt, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func removedStatement(stmt *sitter.Node) bool {
	switch stmt.Kind() {
	case "import_statement":
		return true
	case "export_statement":
		return stmt.ChildByFieldName("declaration") == nil && stmt.ChildByFieldName("value") == nil
	}
	return false
}

type identWalker struct {
	t   *transform
	top *sitter.Node
}

// walk visits node with path holding its ancestors up to the top-level
// statement and scopes holding the shadowing declarations in effect.
func (w *identWalker) walk(node *sitter.Node, path []*sitter.Node, scopes []scope) error {
	if s := w.t.scopeDecls(node); len(s) > 0 {
		scopes = append(scopes[:len(scopes):len(scopes)], s)
	}

	switch node.Kind() {
	case "identifier":
		return w.identifier(node, path, scopes)
	case "shorthand_property_identifier":
		return w.shorthand(node, scopes)
	case "shorthand_property_identifier_pattern":
		if assignmentTarget(path) {
			return w.shorthand(node, scopes)
		}
		return nil
	}

	path = append(path, node)
	for i := uint(0); i < node.ChildCount(); i++ {
		if err := w.walk(node.Child(i), path, scopes); err != nil {
			return err
		}
	}
	return nil
}

func (w *identWalker) lookup(node *sitter.Node, scopes []scope) (string, string, bool) {
	name := w.t.text(node)
	accessor, ok := w.t.bindings[name]
	if !ok {
		return "", "", false
	}
	for _, s := range scopes {
		if s[name] {
			return "", "", false
		}
	}
	return name, accessor, true
}

// { foo } -> { foo: __import_1__.foo }
func (w *identWalker) shorthand(node *sitter.Node, scopes []scope) error {
	_, accessor, ok := w.lookup(node, scopes)
	if !ok {
		return nil
	}
	_, end := parser.Span(node)
	return w.t.patch.InsertAfter(end, ": "+accessor)
}

func (w *identWalker) identifier(node *sitter.Node, path []*sitter.Node, scopes []scope) error {
	name, accessor, ok := w.lookup(node, scopes)
	if !ok || !isReference(node, path) {
		return nil
	}
	if len(path) > 0 && path[len(path)-1].Kind() == "class_heritage" {
		// The heritage clause is evaluated when the class is defined, so the
		// binding is captured once in a local const above the statement.
		if w.t.hoisted[name] {
			return nil
		}
		w.t.hoisted[name] = true
		start, _ := parser.Span(w.top)
		return w.t.patch.InsertBefore(start, "const "+name+" = "+accessor+";\n")
	}
	start, end := parser.Span(node)
	return w.t.patch.Overwrite(start, end, accessor)
}

// isReference reports whether an identifier reads a binding rather than
// declaring one.
func isReference(node *sitter.Node, path []*sitter.Node) bool {
	if len(path) == 0 {
		return true
	}
	parent := path[len(path)-1]
	switch parent.Kind() {
	case "variable_declarator":
		return !parser.IsField(parent, "name", node)
	case "function_declaration", "generator_function_declaration", "class_declaration",
		"function_expression", "function", "generator_function", "class", "method_definition":
		return !parser.IsField(parent, "name", node)
	case "arrow_function":
		return !parser.IsField(parent, "parameter", node)
	case "catch_clause":
		return !parser.IsField(parent, "parameter", node)
	case "formal_parameters", "import_specifier", "namespace_import", "import_clause",
		"export_specifier", "namespace_export":
		return false
	case "for_in_statement":
		if parser.IsField(parent, "left", node) {
			return parent.ChildByFieldName("kind") == nil
		}
		return true
	case "assignment_pattern", "object_assignment_pattern":
		if parser.IsField(parent, "right", node) {
			return true
		}
		return assignmentTarget(path)
	case "array_pattern", "rest_pattern", "pair_pattern":
		return assignmentTarget(path)
	}
	return true
}

var patternKinds = map[string]bool{
	"object_pattern":            true,
	"array_pattern":             true,
	"pair_pattern":              true,
	"rest_pattern":              true,
	"assignment_pattern":        true,
	"object_assignment_pattern": true,
}

// assignmentTarget reports whether the pattern chain ending at path's last
// node is the left side of a plain assignment (or a declaration-less for-in)
// rather than a declaration or parameter list.
func assignmentTarget(path []*sitter.Node) bool {
	for i := len(path) - 1; i >= 0; i-- {
		n := path[i]
		if patternKinds[n.Kind()] {
			continue
		}
		if i+1 >= len(path) {
			return false
		}
		child := path[i+1]
		switch n.Kind() {
		case "assignment_expression":
			return parser.IsField(n, "left", child)
		case "for_in_statement":
			return parser.IsField(n, "left", child) && n.ChildByFieldName("kind") == nil
		}
		return false
	}
	return false
}

var functionKinds = map[string]bool{
	"function_declaration":           true,
	"generator_function_declaration": true,
	"function_expression":            true,
	"function":                       true,
	"generator_function":             true,
	"arrow_function":                 true,
	"method_definition":              true,
}

// scopeDecls returns the import-shadowing names a node declares for its
// descendants. Only names present in the binding table are tracked.
func (t *transform) scopeDecls(node *sitter.Node) scope {
	var names []string
	kind := node.Kind()
	switch {
	case functionKinds[kind]:
		if params := node.ChildByFieldName("parameters"); params != nil {
			for _, p := range parser.NamedChildren(params) {
				names = t.patternNames(p, names)
			}
		}
		if p := node.ChildByFieldName("parameter"); p != nil {
			names = t.patternNames(p, names)
		}
		if kind == "function_expression" || kind == "function" || kind == "generator_function" {
			names = t.patternNames(node.ChildByFieldName("name"), names)
		}
		if body := node.ChildByFieldName("body"); body != nil {
			names = t.varNames(body, names)
		}
	case kind == "class":
		names = t.patternNames(node.ChildByFieldName("name"), names)
	case kind == "statement_block":
		names = t.lexicalNames(parser.NamedChildren(node), names)
	case kind == "switch_body":
		for _, c := range parser.NamedChildren(node) {
			names = t.lexicalNames(parser.NamedChildren(c), names)
		}
	case kind == "for_statement":
		if init := node.ChildByFieldName("initializer"); init != nil && init.Kind() == "lexical_declaration" {
			names = t.lexicalNames([]*sitter.Node{init}, names)
		}
	case kind == "for_in_statement":
		if k := node.ChildByFieldName("kind"); k != nil && t.text(k) != "var" {
			names = t.patternNames(node.ChildByFieldName("left"), names)
		}
	case kind == "catch_clause":
		names = t.patternNames(node.ChildByFieldName("parameter"), names)
	}

	var s scope
	for _, name := range names {
		if _, ok := t.bindings[name]; ok {
			if s == nil {
				s = make(scope)
			}
			s[name] = true
		}
	}
	return s
}

// lexicalNames collects let/const/class/function declarations among stmts.
func (t *transform) lexicalNames(stmts []*sitter.Node, names []string) []string {
	for _, stmt := range stmts {
		switch stmt.Kind() {
		case "lexical_declaration", "function_declaration", "generator_function_declaration", "class_declaration":
			names = append(names, t.declaredNames(stmt)...)
		}
	}
	return names
}

// varNames collects var declarations hoisted to the enclosing function body.
func (t *transform) varNames(node *sitter.Node, names []string) []string {
	if functionKinds[node.Kind()] {
		return names
	}
	switch node.Kind() {
	case "variable_declaration":
		return append(names, t.declaredNames(node)...)
	case "for_in_statement":
		if k := node.ChildByFieldName("kind"); k != nil && t.text(k) == "var" {
			names = t.patternNames(node.ChildByFieldName("left"), names)
		}
	}
	for _, child := range parser.NamedChildren(node) {
		names = t.varNames(child, names)
	}
	return names
}
