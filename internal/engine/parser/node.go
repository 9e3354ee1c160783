// # internal/engine/parser/node.go
package parser

import (
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func Text(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// Span returns the node's byte range as ints for text patching.
func Span(node *sitter.Node) (int, int) {
	return int(node.StartByte()), int(node.EndByte())
}

func NamedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := uint(0); i < node.NamedChildCount(); i++ {
		out = append(out, node.NamedChild(i))
	}
	return out
}

// ChildOfKind returns the first direct child (named or anonymous) of the given kind.
func ChildOfKind(node *sitter.Node, kind string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == kind {
			return child
		}
	}
	return nil
}

// SameNode compares two handles by kind and byte range.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Kind() == b.Kind() && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

// IsField reports whether child is the node stored under field on parent.
func IsField(parent *sitter.Node, field string, child *sitter.Node) bool {
	return SameNode(parent.ChildByFieldName(field), child)
}

// StringValue returns the contents of a JavaScript string literal node.
func StringValue(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	if node.Kind() != "string" {
		return Text(node, source)
	}
	var b strings.Builder
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		raw := Text(child, source)
		switch child.Kind() {
		case "string_fragment":
			b.WriteString(raw)
		case "escape_sequence":
			if unquoted, err := strconv.Unquote(`"` + raw + `"`); err == nil {
				b.WriteString(unquoted)
			} else {
				b.WriteString(strings.TrimPrefix(raw, `\`))
			}
		}
	}
	return b.String()
}
