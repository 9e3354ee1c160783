// # internal/engine/sfc/setup.go
package sfc

import (
	"context"
	"encoding/json"
	"strings"

	"sfclink/internal/engine/parser"
	"sfclink/internal/engine/patch"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Binding kinds reported in the analyzed bindings comment.
const (
	bindingSetupConst = "setup-const"
	bindingSetupLet   = "setup-let"
	bindingSetupProps = "setup-reactive-const"
	bindingImport     = "setup-maybe-ref"
)

type setupResult struct {
	imports    []string
	body       string
	props      string
	emits      string
	bindings   []string // declaration order
	kinds      map[string]string
	components []string
}

// compileSetup turns a <script setup> block into a component options object
// whose setup() returns every top-level binding. Imports are hoisted to module
// scope so the linker can resolve them; defineProps and defineEmits are lifted
// into the props and emits options.
func (c *Compiler) compileSetup(ctx context.Context, d *Descriptor) (string, error) {
	var b strings.Builder
	spreadDefault := false
	if d.Script != nil {
		code, found, err := c.rewriteDefault(ctx, d.Filename, d.Script.Content, "__default__")
		if err != nil {
			return "", err
		}
		spreadDefault = found
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(code))
		b.WriteString("\n")
	}

	res, err := c.analyzeSetup(ctx, d.Filename, d.ScriptSetup.Content)
	if err != nil {
		return "", err
	}

	var head strings.Builder
	for _, imp := range res.imports {
		head.WriteString(imp)
		head.WriteString("\n")
	}

	if len(res.kinds) > 0 {
		data, _ := json.MarshalIndent(res.kinds, "", "  ")
		b.WriteString("\n/* Analyzed bindings: ")
		b.Write(data)
		b.WriteString(" */")
	}

	b.WriteString("\nconst " + componentVar + " = {\n")
	if spreadDefault {
		b.WriteString("  ...__default__,\n")
	}
	if res.props != "" {
		b.WriteString("  props: " + res.props + ",\n")
	}
	if res.emits != "" {
		b.WriteString("  emits: " + res.emits + ",\n")
	}
	if len(res.components) > 0 {
		b.WriteString("  components: { " + strings.Join(res.components, ", ") + " },\n")
	}
	b.WriteString("  setup(__props, { emit: __emit }) {\n")
	if body := strings.TrimSpace(res.body); body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}
	if len(res.bindings) == 0 {
		b.WriteString("return {}\n")
	} else {
		b.WriteString("return { " + strings.Join(res.bindings, ", ") + " }\n")
	}
	b.WriteString("  }\n}")

	return head.String() + b.String(), nil
}

func (c *Compiler) analyzeSetup(ctx context.Context, filename, code string) (*setupResult, error) {
	tree, err := c.parser.Parse(ctx, parser.JavaScript, filename, []byte(code))
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	res := &setupResult{kinds: make(map[string]string)}
	src := tree.Source
	p := patch.New(code)
	bind := func(name, kind string) {
		if _, ok := res.kinds[name]; !ok {
			res.bindings = append(res.bindings, name)
		}
		res.kinds[name] = kind
	}

	for _, stmt := range parser.NamedChildren(tree.Root()) {
		switch stmt.Kind() {
		case "import_statement":
			res.imports = append(res.imports, parser.Text(stmt, src))
			for _, name := range importedNames(stmt, src) {
				bind(name, bindingImport)
				if isComponentName(name) {
					res.components = append(res.components, name)
				}
			}
			if err := p.Remove(parser.Span(stmt)); err != nil {
				return nil, err
			}

		case "export_statement":
			return nil, compileError(filename, "<script setup> cannot contain ES module exports.")

		case "expression_statement":
			call := stmt.NamedChild(0)
			if macro, arg, ok := macroCall(call, src); ok {
				res.setMacro(macro, arg)
				if err := p.Remove(parser.Span(stmt)); err != nil {
					return nil, err
				}
			}

		case "lexical_declaration", "variable_declaration":
			kind := bindingSetupLet
			if k := stmt.Child(0); k != nil && parser.Text(k, src) == "const" {
				kind = bindingSetupConst
			}
			for _, decl := range parser.NamedChildren(stmt) {
				if decl.Kind() != "variable_declarator" {
					continue
				}
				declKind := kind
				if value := decl.ChildByFieldName("value"); value != nil {
					if macro, arg, ok := macroCall(value, src); ok {
						res.setMacro(macro, arg)
						start, end := parser.Span(value)
						if err := p.Overwrite(start, end, macroReplacement[macro]); err != nil {
							return nil, err
						}
						if macro == "defineProps" {
							declKind = bindingSetupProps
						}
					}
				}
				for _, name := range declaredNames(decl.ChildByFieldName("name"), src, nil) {
					bind(name, declKind)
				}
			}

		case "function_declaration", "generator_function_declaration", "class_declaration":
			if name := stmt.ChildByFieldName("name"); name != nil {
				bind(parser.Text(name, src), bindingSetupConst)
			}
		}
	}

	res.body = p.String()
	return res, nil
}

var macroReplacement = map[string]string{
	"defineProps": "__props",
	"defineEmits": "__emit",
}

func (r *setupResult) setMacro(macro, arg string) {
	if arg == "" {
		return
	}
	switch macro {
	case "defineProps":
		r.props = arg
	case "defineEmits":
		r.emits = arg
	}
}

// macroCall matches defineProps(...) and defineEmits(...) and returns the
// first argument's source text.
func macroCall(node *sitter.Node, src []byte) (string, string, bool) {
	if node == nil || node.Kind() != "call_expression" {
		return "", "", false
	}
	fn := node.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "identifier" {
		return "", "", false
	}
	name := parser.Text(fn, src)
	if _, ok := macroReplacement[name]; !ok {
		return "", "", false
	}
	arg := ""
	for _, a := range parser.NamedChildren(node.ChildByFieldName("arguments")) {
		if a.Kind() != "comment" {
			arg = parser.Text(a, src)
			break
		}
	}
	return name, arg, true
}

func importedNames(stmt *sitter.Node, src []byte) []string {
	clause := parser.ChildOfKind(stmt, "import_clause")
	var names []string
	for _, child := range parser.NamedChildren(clause) {
		switch child.Kind() {
		case "identifier":
			names = append(names, parser.Text(child, src))
		case "namespace_import":
			names = append(names, parser.Text(parser.ChildOfKind(child, "identifier"), src))
		case "named_imports":
			for _, spec := range parser.NamedChildren(child) {
				if spec.Kind() != "import_specifier" {
					continue
				}
				local := spec.ChildByFieldName("alias")
				if local == nil {
					local = spec.ChildByFieldName("name")
				}
				names = append(names, parser.Text(local, src))
			}
		}
	}
	return names
}

// declaredNames lists identifiers bound by a declarator pattern.
func declaredNames(node *sitter.Node, src []byte, names []string) []string {
	if node == nil {
		return names
	}
	switch node.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		return append(names, parser.Text(node, src))
	case "object_pattern", "array_pattern", "rest_pattern":
		for _, child := range parser.NamedChildren(node) {
			names = declaredNames(child, src, names)
		}
	case "pair_pattern":
		return declaredNames(node.ChildByFieldName("value"), src, names)
	case "assignment_pattern", "object_assignment_pattern":
		return declaredNames(node.ChildByFieldName("left"), src, names)
	}
	return names
}

func isComponentName(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}
