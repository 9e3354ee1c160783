// # internal/engine/parser/parser.go
package parser

import (
	"context"
	"fmt"
	"time"

	"sfclink/internal/core/errors"
	"sfclink/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Parser struct {
	pools map[Language]*grammarPool
}

func NewParser(loader *GrammarLoader) *Parser {
	p := &Parser{pools: make(map[Language]*grammarPool)}
	for _, lang := range loader.Languages() {
		grammar, _ := loader.Language(lang)
		p.pools[lang] = newGrammarPool(lang, grammar)
	}
	return p
}

// Tree is a parsed source together with the bytes its offsets refer to.
// Nodes obtained from Root are only valid until Close.
type Tree struct {
	Filename string
	Language Language
	Source   []byte
	tree     *sitter.Tree
}

func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

func (t *Tree) Text(node *sitter.Node) string {
	return Text(node, t.Source)
}

func (t *Tree) Close() {
	if t != nil && t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// Parse parses source and fails with a PARSE_ERROR when the tree contains
// error or missing nodes.
func (p *Parser) Parse(ctx context.Context, lang Language, filename string, source []byte) (*Tree, error) {
	tree, err := p.ParseLenient(ctx, lang, filename, source)
	if err != nil {
		return nil, err
	}
	if root := tree.Root(); root.HasError() {
		perr := syntaxError(filename, root, source)
		tree.Close()
		return nil, perr
	}
	return tree, nil
}

// ParseLenient returns the tree even when it contains error nodes. Markup
// grammars use it because component templates are not strict HTML.
func (p *Parser) ParseLenient(ctx context.Context, lang Language, filename string, source []byte) (*Tree, error) {
	_, span := observability.Tracer.Start(ctx, "parser.Parse", trace.WithAttributes(
		attribute.String("language", string(lang)),
		attribute.String("file", filename),
	))
	defer span.End()

	pool := p.pools[lang]
	if pool == nil {
		return nil, errors.New(errors.CodeNotSupported, fmt.Sprintf("no grammar loaded for %s", lang))
	}

	start := time.Now()
	sp := pool.acquire()
	defer pool.release(sp)

	tree := sp.Parse(source, nil)
	observability.ParsingDuration.WithLabelValues(string(lang)).Observe(time.Since(start).Seconds())
	if tree == nil {
		err := errors.New(errors.CodeParse, "parse failed")
		return nil, errors.AddContext(err, errors.CtxFile, filename)
	}
	return &Tree{Filename: filename, Language: lang, Source: source, tree: tree}, nil
}

func syntaxError(filename string, root *sitter.Node, source []byte) error {
	node := firstErrorNode(root)
	if node == nil {
		node = root
	}
	msg := "syntax error"
	if node.IsMissing() {
		msg = fmt.Sprintf("missing %s", node.Kind())
	} else if text := Text(node, source); text != "" {
		if len(text) > 40 {
			text = text[:40] + "..."
		}
		msg = fmt.Sprintf("unexpected %q", text)
	}
	pos := node.StartPosition()
	err := errors.New(errors.CodeParse, msg)
	err = errors.AddContext(err, errors.CtxFile, filename)
	return errors.AddContext(err, errors.CtxPosition, fmt.Sprintf("%d:%d", pos.Row+1, pos.Column+1))
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	if !node.HasError() {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if found := firstErrorNode(node.Child(i)); found != nil {
			return found
		}
	}
	return nil
}
