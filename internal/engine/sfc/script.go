package sfc

import (
	"context"

	"sfclink/internal/engine/parser"
	"sfclink/internal/engine/patch"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// rewriteDefault turns the script's default export into `const <name> =`.
// When there is no default export, `const <name> = {}` is appended and found
// is false.
func (c *Compiler) rewriteDefault(ctx context.Context, filename, code, name string) (out string, found bool, err error) {
	tree, err := c.parser.Parse(ctx, parser.JavaScript, filename, []byte(code))
	if err != nil {
		return "", false, err
	}
	defer tree.Close()

	p := patch.New(code)
	for _, stmt := range parser.NamedChildren(tree.Root()) {
		if stmt.Kind() != "export_statement" {
			continue
		}
		if kw := parser.ChildOfKind(stmt, "default"); kw != nil {
			start, _ := parser.Span(parser.ChildOfKind(stmt, "export"))
			_, end := parser.Span(kw)
			if err := p.Overwrite(start, end, "const "+name+" ="); err != nil {
				return "", false, err
			}
			found = true
			continue
		}
		if stmt.ChildByFieldName("source") != nil {
			continue
		}
		if local, ok := defaultSpecifier(stmt, tree.Source); ok {
			if err := removeSpecifier(p, stmt, local, tree.Source); err != nil {
				return "", false, err
			}
			p.Append("\nconst " + name + " = " + local)
			found = true
		}
	}
	if !found {
		p.Append("\nconst " + name + " = {}")
	}
	return p.String(), found, nil
}

// defaultSpecifier finds `x as default` in an export clause.
func defaultSpecifier(stmt *sitter.Node, src []byte) (string, bool) {
	clause := parser.ChildOfKind(stmt, "export_clause")
	for _, spec := range parser.NamedChildren(clause) {
		alias := spec.ChildByFieldName("alias")
		if alias != nil && parser.Text(alias, src) == "default" {
			return parser.Text(spec.ChildByFieldName("name"), src), true
		}
	}
	return "", false
}

// removeSpecifier drops the default specifier, or the whole statement when it
// is the only one.
func removeSpecifier(p *patch.Patcher, stmt *sitter.Node, local string, src []byte) error {
	clause := parser.ChildOfKind(stmt, "export_clause")
	specs := parser.NamedChildren(clause)
	if len(specs) == 1 {
		return p.Remove(parser.Span(stmt))
	}
	for _, spec := range specs {
		alias := spec.ChildByFieldName("alias")
		if alias != nil && parser.Text(alias, src) == "default" {
			start, end := parser.Span(spec)
			return p.Overwrite(start, end, local)
		}
	}
	return nil
}
