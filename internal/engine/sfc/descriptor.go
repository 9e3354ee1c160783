// # internal/engine/sfc/descriptor.go
package sfc

import (
	"context"
	"strings"

	"sfclink/internal/core/errors"
	"sfclink/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Block is one top-level section of a single file component.
type Block struct {
	Type    string // template, script or style
	Content string
	Attrs   map[string]string
}

func (b *Block) Has(attr string) bool {
	_, ok := b.Attrs[attr]
	return ok
}

func (b *Block) Lang() string {
	return b.Attrs["lang"]
}

// Descriptor is the block layout of a .vue file.
type Descriptor struct {
	Filename    string
	Template    *Block
	Script      *Block
	ScriptSetup *Block
	Styles      []*Block
}

func (d *Descriptor) HasScoped() bool {
	for _, s := range d.Styles {
		if s.Has("scoped") {
			return true
		}
	}
	return false
}

// Parse splits source into blocks using the HTML grammar. Only top-level
// template, script and style elements are considered; custom blocks are ignored.
func Parse(ctx context.Context, p *parser.Parser, filename, source string) (*Descriptor, []error) {
	tree, err := p.ParseLenient(ctx, parser.HTML, filename, []byte(source))
	if err != nil {
		return nil, []error{err}
	}
	defer tree.Close()

	d := &Descriptor{Filename: filename}
	var errs []error
	dup := func(tag string) {
		errs = append(errs, compileError(filename, "Single file component can contain only one <"+tag+"> element."))
	}

	for _, node := range parser.NamedChildren(tree.Root()) {
		var block *Block
		switch node.Kind() {
		case "element":
			block = elementBlock(node, tree.Source)
		case "script_element":
			block = elementBlock(node, tree.Source)
			block.Type = "script"
		case "style_element":
			block = elementBlock(node, tree.Source)
			block.Type = "style"
		}
		if block == nil {
			continue
		}

		switch block.Type {
		case "template":
			if d.Template != nil {
				dup("template")
				continue
			}
			d.Template = block
		case "script":
			if block.Has("setup") {
				if d.ScriptSetup != nil {
					dup("script setup")
					continue
				}
				d.ScriptSetup = block
			} else {
				if d.Script != nil {
					dup("script")
					continue
				}
				d.Script = block
			}
		case "style":
			d.Styles = append(d.Styles, block)
		}
	}

	if d.Template == nil && d.Script == nil && d.ScriptSetup == nil && len(errs) == 0 {
		errs = append(errs, compileError(filename, "At least one <template> or <script> is required in a single file component."))
	}
	return d, errs
}

// elementBlock reads the tag, attributes and raw inner text of an element.
func elementBlock(node *sitter.Node, src []byte) *Block {
	start := parser.ChildOfKind(node, "start_tag")
	if start == nil {
		return nil
	}
	block := &Block{Attrs: make(map[string]string)}
	if name := parser.ChildOfKind(start, "tag_name"); name != nil {
		block.Type = strings.ToLower(parser.Text(name, src))
	}
	for _, attr := range parser.NamedChildren(start) {
		if attr.Kind() != "attribute" {
			continue
		}
		name := parser.Text(parser.ChildOfKind(attr, "attribute_name"), src)
		value := ""
		if v := parser.ChildOfKind(attr, "attribute_value"); v != nil {
			value = parser.Text(v, src)
		} else if q := parser.ChildOfKind(attr, "quoted_attribute_value"); q != nil {
			value = parser.Text(parser.ChildOfKind(q, "attribute_value"), src)
		}
		block.Attrs[strings.ToLower(name)] = value
	}

	_, contentStart := parser.Span(start)
	_, contentEnd := parser.Span(node)
	if end := parser.ChildOfKind(node, "end_tag"); end != nil {
		contentEnd, _ = parser.Span(end)
	}
	if contentEnd > contentStart {
		block.Content = string(src[contentStart:contentEnd])
	}
	return block
}

func compileError(filename, msg string) error {
	return errors.AddContext(errors.New(errors.CodeCompile, msg), errors.CtxFile, filename)
}
