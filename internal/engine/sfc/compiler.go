// # internal/engine/sfc/compiler.go
package sfc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"sfclink/internal/core/errors"
	"sfclink/internal/data/files"
	"sfclink/internal/engine/parser"
	"sfclink/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const componentVar = "__sfc__"

// Compiler turns single file components into a script that default-exports
// a component options object. Plain scripts pass through unchanged.
type Compiler struct {
	parser *parser.Parser
}

func New(p *parser.Parser) *Compiler {
	return &Compiler{parser: p}
}

// CompileFile replaces the file's compiled outputs. It never fails; errors
// are stored on the record.
func (c *Compiler) CompileFile(ctx context.Context, f *files.File) {
	f.SetCompiled(c.Compile(ctx, f.Filename, f.Code()))
}

func (c *Compiler) Compile(ctx context.Context, filename, code string) files.Compiled {
	kind := strings.TrimPrefix(path.Ext(filename), ".")
	ctx, span := observability.Tracer.Start(ctx, "sfc.Compile", trace.WithAttributes(
		attribute.String("file", filename),
	))
	defer span.End()
	start := time.Now()
	defer func() {
		observability.CompileDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	if strings.TrimSpace(code) == "" {
		return files.Compiled{}
	}
	if !strings.HasSuffix(filename, ".vue") {
		return files.Compiled{JS: code, SSR: code}
	}

	out, errs := c.compileSFC(ctx, filename, code)
	if len(errs) > 0 {
		for _, err := range errs {
			span.RecordError(err)
		}
		slog.Debug("compile failed", "file", filename, "errors", len(errs))
		return files.Compiled{Errors: errs}
	}
	return out
}

func (c *Compiler) compileSFC(ctx context.Context, filename, code string) (files.Compiled, []error) {
	d, errs := Parse(ctx, c.parser, filename, code)
	if len(errs) > 0 {
		return files.Compiled{}, errs
	}
	if err := checkBlocks(d); err != nil {
		return files.Compiled{}, []error{err}
	}

	id := ScopeID(filename)
	var js strings.Builder
	switch {
	case d.ScriptSetup != nil:
		script, err := c.compileSetup(ctx, d)
		if err != nil {
			return files.Compiled{}, []error{wrapCompile(filename, err)}
		}
		js.WriteString(script)
	case d.Script != nil:
		script, _, err := c.rewriteDefault(ctx, filename, d.Script.Content, componentVar)
		if err != nil {
			return files.Compiled{}, []error{wrapCompile(filename, err)}
		}
		js.WriteString("\n")
		js.WriteString(strings.TrimSpace(script))
	default:
		js.WriteString("\nconst " + componentVar + " = {}")
	}

	if d.Template != nil {
		fmt.Fprintf(&js, "\n%s.template = %s", componentVar, jsString(strings.TrimSpace(d.Template.Content)))
	}
	if d.HasScoped() {
		fmt.Fprintf(&js, "\n%s.__scopeId = %s", componentVar, jsString("data-v-"+id))
	}
	fmt.Fprintf(&js, "\n%s.__file = %s\nexport default %s", componentVar, jsString(filename), componentVar)

	var css strings.Builder
	for _, style := range d.Styles {
		content := style.Content
		if style.Has("scoped") {
			scoped, err := c.scopeCSS(ctx, filename, content, id)
			if err != nil {
				return files.Compiled{}, []error{wrapCompile(filename, err)}
			}
			content = scoped
		}
		css.WriteString(strings.TrimSpace(content))
		css.WriteString("\n")
	}

	script := strings.TrimLeft(js.String(), "\n")
	return files.Compiled{
		JS:  script,
		SSR: script,
		CSS: strings.TrimSpace(css.String()),
	}, nil
}

// checkBlocks rejects features the in-process compiler cannot handle.
func checkBlocks(d *Descriptor) error {
	blocks := []*Block{d.Template, d.Script, d.ScriptSetup}
	blocks = append(blocks, d.Styles...)
	for _, b := range blocks {
		if b != nil && b.Lang() != "" {
			return compileError(d.Filename, fmt.Sprintf("lang=%q pre-processors are not supported.", b.Lang()))
		}
	}
	for _, s := range d.Styles {
		if s.Has("module") {
			return compileError(d.Filename, "<style module> is not supported.")
		}
	}
	return nil
}

// wrapCompile keeps domain errors (parse errors carry their position) and
// files anything else as a compile error.
func wrapCompile(filename string, err error) error {
	if _, ok := errors.AsDomain(err); ok {
		return errors.AddContext(err, errors.CtxFile, filename)
	}
	return errors.AddContext(errors.Wrap(err, errors.CodeCompile, "compile failed"), errors.CtxFile, filename)
}

func jsString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
