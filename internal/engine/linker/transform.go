// # internal/engine/linker/transform.go
package linker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sfclink/internal/core/errors"
	"sfclink/internal/core/ports"
	"sfclink/internal/data/files"
	"sfclink/internal/engine/parser"
	"sfclink/internal/engine/patch"
	"sfclink/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// fileResult is the outcome of one file transform.
type fileResult struct {
	filename string
	text     string
	deps     []string // aliased files in first-encountered order, then dynamic targets
	errs     []error
}

func (r *fileResult) failed() bool {
	return len(r.errs) > 0
}

// transform holds the private state of one file's rewrite: its tree, its
// patcher and the alias and binding tables. Nothing here is shared.
type transform struct {
	filename string
	src      []byte
	store    ports.FileStore
	patch    *patch.Patcher

	aliases  map[string]string // target filename -> alias
	deps     []string
	dynamic  []string
	bindings map[string]string // local name -> accessor expression
	hoisted  map[string]bool
}

func (l *Linker) transformFile(ctx context.Context, file *files.File) *fileResult {
	ctx, span := observability.Tracer.Start(ctx, "linker.transform", trace.WithAttributes(
		attribute.String("file", file.Filename),
	))
	defer span.End()

	res := &fileResult{filename: file.Filename}
	fail := func(err error) *fileResult {
		err = errors.AddContext(err, errors.CtxFile, file.Filename)
		file.RecordErrors(err)
		res.errs = append(res.errs, err)
		span.RecordError(err)
		return res
	}

	l.compiler.CompileFile(ctx, file)
	compiled := file.Compiled()
	if len(compiled.Errors) > 0 {
		res.errs = compiled.Errors
		return res
	}

	tree, err := l.parser.Parse(ctx, parser.JavaScript, file.Filename, []byte(compiled.JS))
	if err != nil {
		return fail(err)
	}
	defer tree.Close()

	t := &transform{
		filename: file.Filename,
		src:      tree.Source,
		store:    l.store,
		patch:    patch.New(compiled.JS),
		aliases:  make(map[string]string),
		bindings: make(map[string]string),
		hoisted:  make(map[string]bool),
	}
	t.patch.Prepend(moduleHeader(file.Filename))

	root := tree.Root()
	steps := []func(*sitter.Node) error{
		t.rewriteImports,
		t.rewriteExports,
		t.rewriteIdentifiers,
		t.rewriteDynamicImports,
	}
	for _, step := range steps {
		if err := step(root); err != nil {
			return fail(err)
		}
	}

	if compiled.CSS != "" {
		t.patch.Append(styleAppend(l.opts.Global, compiled.CSS))
	}

	res.text = t.patch.String()
	res.deps = append(append(res.deps, t.deps...), t.dynamic...)
	slog.Debug("linked module", "file", file.Filename, "imports", len(t.deps), "dynamic", len(t.dynamic))
	return res
}

func isRelative(specifier string) bool {
	return strings.HasPrefix(specifier, "./")
}

// resolve maps a relative specifier to a filename known to the store.
func (t *transform) resolve(specifier string) (string, error) {
	filename := files.Normalize(specifier)
	if _, ok := t.store.Lookup(filename); !ok {
		return "", errors.MissingFile(filename)
	}
	return filename, nil
}

// defineImport returns the alias for specifier, declaring it right before
// stmt the first time the target is seen in this file.
func (t *transform) defineImport(stmt *sitter.Node, specifier string) (string, error) {
	filename, err := t.resolve(specifier)
	if err != nil {
		return "", err
	}
	if alias, ok := t.aliases[filename]; ok {
		return alias, nil
	}
	alias := fmt.Sprintf("__import_%d__", len(t.aliases)+1)
	t.aliases[filename] = alias
	t.deps = append(t.deps, filename)
	start, _ := parser.Span(stmt)
	if err := t.patch.InsertAfter(start, aliasDecl(alias, filename)); err != nil {
		return "", err
	}
	return alias, nil
}

func (t *transform) text(node *sitter.Node) string {
	return parser.Text(node, t.src)
}

// moduleExportName reads an identifier or string export/import name.
func (t *transform) moduleExportName(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	if node.Kind() == "string" {
		return parser.StringValue(node, t.src)
	}
	return t.text(node)
}

// member renders alias.name, falling back to a computed access for names
// that are not valid identifiers.
func member(alias, name string) string {
	if isIdentifierName(name) {
		return alias + "." + name
	}
	return alias + "[" + quote(name) + "]"
}

func isIdentifierName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		case r > 0x7f:
		default:
			return false
		}
	}
	return true
}
