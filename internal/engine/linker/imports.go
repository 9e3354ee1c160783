package linker

import (
	"sfclink/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// rewriteImports replaces every relative import declaration with a registry
// lookup and records its bindings. Bare imports stay as they are.
//
//	import foo from './a'        foo -> __import_1__.default
//	import { bar as b } from './a'  b -> __import_1__.bar
//	import * as ns from './a'    ns  -> __import_1__
func (t *transform) rewriteImports(root *sitter.Node) error {
	for _, stmt := range parser.NamedChildren(root) {
		if stmt.Kind() != "import_statement" {
			continue
		}
		specifier := parser.StringValue(stmt.ChildByFieldName("source"), t.src)
		if !isRelative(specifier) {
			continue
		}
		alias, err := t.defineImport(stmt, specifier)
		if err != nil {
			return err
		}
		if clause := parser.ChildOfKind(stmt, "import_clause"); clause != nil {
			t.bindClause(clause, alias)
		}
		if err := t.patch.Remove(parser.Span(stmt)); err != nil {
			return err
		}
	}
	return nil
}

func (t *transform) bindClause(clause *sitter.Node, alias string) {
	for _, child := range parser.NamedChildren(clause) {
		switch child.Kind() {
		case "identifier":
			t.bindings[t.text(child)] = alias + ".default"
		case "namespace_import":
			if local := parser.ChildOfKind(child, "identifier"); local != nil {
				t.bindings[t.text(local)] = alias
			}
		case "named_imports":
			for _, spec := range parser.NamedChildren(child) {
				if spec.Kind() != "import_specifier" {
					continue
				}
				imported := t.moduleExportName(spec.ChildByFieldName("name"))
				local := imported
				if a := spec.ChildByFieldName("alias"); a != nil {
					local = t.text(a)
				}
				t.bindings[local] = member(alias, imported)
			}
		}
	}
}
