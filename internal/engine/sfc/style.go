// # internal/engine/sfc/style.go
package sfc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"sfclink/internal/engine/parser"
	"sfclink/internal/engine/patch"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ScopeID derives the scoped-style id of a file: the first 8 hex characters
// of the SHA-256 of its name.
func ScopeID(filename string) string {
	sum := sha256.Sum256([]byte(filename))
	return hex.EncodeToString(sum[:])[:8]
}

var complexSelectors = map[string]bool{
	"descendant_selector":       true,
	"child_selector":            true,
	"sibling_selector":          true,
	"adjacent_sibling_selector": true,
}

// scopeCSS appends [data-v-<id>] to the last compound selector of every rule,
// and unwraps :deep(x) so x is not scoped. Syntax errors are tolerated: only
// well-formed rules are rewritten.
func (c *Compiler) scopeCSS(ctx context.Context, filename, css, id string) (string, error) {
	tree, err := c.parser.ParseLenient(ctx, parser.CSS, filename, []byte(css))
	if err != nil {
		return "", err
	}
	defer tree.Close()

	s := &scoper{src: tree.Source, patch: patch.New(css), attr: "[data-v-" + id + "]"}
	if err := s.walk(tree.Root()); err != nil {
		return "", err
	}
	return s.patch.String(), nil
}

type scoper struct {
	src   []byte
	patch *patch.Patcher
	attr  string
}

func (s *scoper) walk(node *sitter.Node) error {
	switch node.Kind() {
	case "ERROR", "keyframes_statement":
		return nil
	case "rule_set":
		if selectors := parser.ChildOfKind(node, "selectors"); selectors != nil {
			for _, sel := range parser.NamedChildren(selectors) {
				if err := s.scope(sel); err != nil {
					return err
				}
			}
		}
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if err := s.walk(node.NamedChild(i)); err != nil {
			return err
		}
	}
	return nil
}

// scope rewrites one complex selector.
func (s *scoper) scope(sel *sitter.Node) error {
	if complexSelectors[sel.Kind()] {
		children := parser.NamedChildren(sel)
		last := children[len(children)-1]
		if inner, ok := s.deepArgument(last); ok && len(children) > 1 {
			// .a :deep(.b) -> .a[data-v-x] .b
			if err := s.unwrap(last, inner); err != nil {
				return err
			}
			return s.scope(children[len(children)-2])
		}
		return s.scope(last)
	}
	if inner, ok := s.deepArgument(sel); ok {
		// :deep(.b) -> [data-v-x] .b
		start, end := parser.Span(sel)
		return s.patch.Overwrite(start, end, s.attr+" "+parser.Text(inner, s.src))
	}
	return s.patch.InsertBefore(s.insertionPoint(sel), s.attr)
}

// insertionPoint is the offset right after the last non-pseudo part of a
// compound selector: h1.title:hover -> after ".title".
func (s *scoper) insertionPoint(node *sitter.Node) int {
	switch node.Kind() {
	case "pseudo_class_selector", "pseudo_element_selector":
		first := node.Child(0)
		if first == nil || first.Kind() == ":" || first.Kind() == "::" {
			start, _ := parser.Span(node)
			return start
		}
		return s.insertionPoint(first)
	}
	_, end := parser.Span(node)
	return end
}

// deepArgument matches :deep(<selector>) and returns the selector.
func (s *scoper) deepArgument(node *sitter.Node) (*sitter.Node, bool) {
	if node.Kind() != "pseudo_class_selector" || node.Child(0) == nil || node.Child(0).Kind() != ":" {
		return nil, false
	}
	name := parser.ChildOfKind(node, "class_name")
	if name == nil || parser.Text(name, s.src) != "deep" {
		return nil, false
	}
	args := parser.NamedChildren(parser.ChildOfKind(node, "arguments"))
	if len(args) == 0 {
		return nil, false
	}
	return args[0], true
}

func (s *scoper) unwrap(deep, inner *sitter.Node) error {
	start, end := parser.Span(deep)
	return s.patch.Overwrite(start, end, parser.Text(inner, s.src))
}
