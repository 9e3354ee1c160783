package linker

import (
	"sfclink/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// rewriteExports turns export declarations into live getters on the module
// object. Runs after rewriteImports so re-exported import bindings resolve.
func (t *transform) rewriteExports(root *sitter.Node) error {
	for _, stmt := range parser.NamedChildren(root) {
		if stmt.Kind() != "export_statement" {
			continue
		}
		var err error
		switch {
		case parser.ChildOfKind(stmt, "default") != nil:
			err = t.exportDefault(stmt)
		case stmt.ChildByFieldName("declaration") != nil:
			err = t.exportDeclaration(stmt)
		case stmt.ChildByFieldName("source") != nil:
			err = t.exportFrom(stmt)
		default:
			err = t.exportClause(stmt)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// export default <expr>  ->  __module__.default = <expr>
func (t *transform) exportDefault(stmt *sitter.Node) error {
	start := exportKeywordStart(stmt)
	_, end := parser.Span(parser.ChildOfKind(stmt, "default"))
	return t.patch.Overwrite(start, end, ModuleVarName+".default =")
}

// export function f() {} / export const a = 1, { b } = c
func (t *transform) exportDeclaration(stmt *sitter.Node) error {
	decl := stmt.ChildByFieldName("declaration")
	declStart, _ := parser.Span(decl)
	if err := t.patch.Remove(exportKeywordStart(stmt), declStart); err != nil {
		return err
	}
	for _, name := range t.declaredNames(decl) {
		t.patch.Append(exportCall(name, name))
	}
	return nil
}

// export { a, b as c } from './x' / export * from './x' / export * as ns from './x'
func (t *transform) exportFrom(stmt *sitter.Node) error {
	specifier := parser.StringValue(stmt.ChildByFieldName("source"), t.src)
	if !isRelative(specifier) {
		return nil
	}
	alias, err := t.defineImport(stmt, specifier)
	if err != nil {
		return err
	}

	switch {
	case parser.ChildOfKind(stmt, "namespace_export") != nil:
		ns := parser.NamedChildren(parser.ChildOfKind(stmt, "namespace_export"))
		if len(ns) > 0 {
			t.patch.Append(exportCall(t.moduleExportName(ns[0]), alias))
		}
	case parser.ChildOfKind(stmt, "export_clause") != nil:
		for _, spec := range t.exportSpecifiers(stmt) {
			t.patch.Append(exportCall(spec.exported, member(alias, spec.local)))
		}
	default:
		t.patch.Append(exportAllLoop(alias))
	}
	return t.patch.Remove(parser.Span(stmt))
}

// export { a, b as c }
func (t *transform) exportClause(stmt *sitter.Node) error {
	for _, spec := range t.exportSpecifiers(stmt) {
		target := spec.local
		if binding, ok := t.bindings[spec.local]; ok {
			target = binding
		}
		t.patch.Append(exportCall(spec.exported, target))
	}
	return t.patch.Remove(parser.Span(stmt))
}

type exportSpec struct {
	local, exported string
}

func (t *transform) exportSpecifiers(stmt *sitter.Node) []exportSpec {
	clause := parser.ChildOfKind(stmt, "export_clause")
	var out []exportSpec
	for _, spec := range parser.NamedChildren(clause) {
		if spec.Kind() != "export_specifier" {
			continue
		}
		local := t.moduleExportName(spec.ChildByFieldName("name"))
		exported := local
		if alias := spec.ChildByFieldName("alias"); alias != nil {
			exported = t.moduleExportName(alias)
		}
		out = append(out, exportSpec{local: local, exported: exported})
	}
	return out
}

// exportKeywordStart skips decorators that precede the export keyword.
func exportKeywordStart(stmt *sitter.Node) int {
	if kw := parser.ChildOfKind(stmt, "export"); kw != nil {
		start, _ := parser.Span(kw)
		return start
	}
	start, _ := parser.Span(stmt)
	return start
}

// declaredNames lists the bindings a top-level declaration introduces.
func (t *transform) declaredNames(decl *sitter.Node) []string {
	switch decl.Kind() {
	case "function_declaration", "generator_function_declaration", "class_declaration":
		if name := decl.ChildByFieldName("name"); name != nil {
			return []string{t.text(name)}
		}
	case "lexical_declaration", "variable_declaration":
		var names []string
		for _, d := range parser.NamedChildren(decl) {
			if d.Kind() == "variable_declarator" {
				names = t.patternNames(d.ChildByFieldName("name"), names)
			}
		}
		return names
	}
	return nil
}

// patternNames appends every identifier bound by a binding pattern.
func (t *transform) patternNames(node *sitter.Node, names []string) []string {
	if node == nil {
		return names
	}
	switch node.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		return append(names, t.text(node))
	case "object_pattern", "array_pattern", "rest_pattern":
		for _, child := range parser.NamedChildren(node) {
			names = t.patternNames(child, names)
		}
	case "pair_pattern":
		return t.patternNames(node.ChildByFieldName("value"), names)
	case "assignment_pattern", "object_assignment_pattern":
		return t.patternNames(node.ChildByFieldName("left"), names)
	}
	return names
}
