package linker

import (
	"sfclink/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// rewriteDynamicImports turns import('./x') into __dynamic_import__("x").
// Dynamic imports of bare specifiers or non-literal arguments are untouched.
func (t *transform) rewriteDynamicImports(node *sitter.Node) error {
	if node.Kind() == "call_expression" {
		if fn := node.ChildByFieldName("function"); fn != nil && fn.Kind() == "import" {
			if err := t.rewriteDynamicImport(fn, node.ChildByFieldName("arguments")); err != nil {
				return err
			}
		}
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if err := t.rewriteDynamicImports(node.Child(i)); err != nil {
			return err
		}
	}
	return nil
}

func (t *transform) rewriteDynamicImport(callee, args *sitter.Node) error {
	var arg *sitter.Node
	for _, c := range parser.NamedChildren(args) {
		if c.Kind() != "comment" {
			arg = c
			break
		}
	}
	if arg == nil || arg.Kind() != "string" {
		return nil
	}
	specifier := parser.StringValue(arg, t.src)
	if !isRelative(specifier) {
		return nil
	}
	filename, err := t.resolve(specifier)
	if err != nil {
		return err
	}
	start, end := parser.Span(callee)
	if err := t.patch.Overwrite(start, end, DynamicImportName); err != nil {
		return err
	}
	start, end = parser.Span(arg)
	if err := t.patch.Overwrite(start, end, quote(filename)); err != nil {
		return err
	}
	t.addDynamic(filename)
	return nil
}

func (t *transform) addDynamic(filename string) {
	if _, ok := t.aliases[filename]; ok {
		return
	}
	for _, f := range t.dynamic {
		if f == filename {
			return
		}
	}
	t.dynamic = append(t.dynamic, filename)
}
