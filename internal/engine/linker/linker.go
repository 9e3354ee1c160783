// # internal/engine/linker/linker.go
package linker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"sfclink/internal/core/errors"
	"sfclink/internal/core/ports"
	"sfclink/internal/data/files"
	"sfclink/internal/engine/parser"
	"sfclink/internal/shared/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

type Options struct {
	// DefaultRoot is linked when Link is called with an empty root.
	DefaultRoot string
	// Workers bounds concurrent file transforms.
	Workers int
	// Global is the host's global object the preamble writes to.
	Global string
	// Mount appends the app mount script after the modules.
	Mount bool
}

func DefaultOptions() Options {
	return Options{
		DefaultRoot: files.AppFile,
		Workers:     runtime.GOMAXPROCS(0),
		Global:      "window",
		Mount:       true,
	}
}

type Linker struct {
	store    ports.FileStore
	compiler ports.SourceCompiler
	parser   *parser.Parser
	opts     Options
}

func New(store ports.FileStore, compiler ports.SourceCompiler, p *parser.Parser, opts Options) *Linker {
	def := DefaultOptions()
	if opts.DefaultRoot == "" {
		opts.DefaultRoot = def.DefaultRoot
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.Global == "" {
		opts.Global = def.Global
	}
	return &Linker{store: store, compiler: compiler, parser: p, opts: opts}
}

// Output is one link of a module graph.
type Output struct {
	ID   uuid.UUID
	Root string
	// Modules are script texts in evaluation order: the preamble, one text
	// per linked file (matching Order), then the mount script when enabled.
	Modules []string
	Order   []string
	// Failures maps every file whose text was omitted to its errors.
	Failures map[string][]error
	// Edges maps every visited file to its relative dependencies, static
	// imports first in source order, then dynamic import targets.
	Edges map[string][]string
	// Visited counts the files reached by the walk, failed or not.
	Visited  int
	Duration time.Duration
}

func (o *Output) Failed() bool {
	return len(o.Failures) > 0
}

// Link walks the relative import graph from root and returns the emitted
// scripts. Per-file failures are recorded on the file records and in
// Output.Failures; only a missing root or a cancelled context is returned
// as an error.
func (l *Linker) Link(ctx context.Context, root string) (*Output, error) {
	if root == "" {
		root = l.opts.DefaultRoot
	}
	root = files.Normalize(root)

	ctx, span := observability.Tracer.Start(ctx, "linker.Link", trace.WithAttributes(
		attribute.String("root", root),
	))
	defer span.End()
	start := time.Now()

	rootFile, ok := l.store.Lookup(root)
	if !ok {
		err := errors.AddContext(errors.MissingFile(root), errors.CtxOperation, "link")
		span.RecordError(err)
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	run := &linkRun{
		linker:  l,
		group:   g,
		sem:     semaphore.NewWeighted(int64(l.opts.Workers)),
		visited: newVisitedSet(),
		results: make(map[string]*fileResult),
	}
	run.visited.mark(root)
	run.spawn(gctx, rootFile)
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := run.assemble(root)
	out.Duration = time.Since(start)

	observability.LinkDuration.Observe(out.Duration.Seconds())
	observability.ModulesEmitted.Set(float64(len(out.Modules)))
	for _, errs := range out.Failures {
		observability.LinkErrorsTotal.WithLabelValues(string(errors.CodeOf(errs[0]))).Inc()
	}
	span.SetAttributes(
		attribute.Int("modules", len(out.Modules)),
		attribute.Int("failures", len(out.Failures)),
	)
	slog.Debug("link finished", "root", root, "modules", len(out.Modules), "failures", len(out.Failures), "duration", out.Duration)
	return out, nil
}

// linkRun is the state shared by the transforms of one Link call.
type linkRun struct {
	linker  *Linker
	group   *errgroup.Group
	sem     *semaphore.Weighted
	visited *visitedSet

	mu      sync.Mutex
	results map[string]*fileResult
}

// spawn transforms file on the group. The caller must have marked it visited.
func (r *linkRun) spawn(ctx context.Context, file *files.File) {
	r.group.Go(func() error {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		res := r.linker.transformFile(ctx, file)
		r.sem.Release(1)
		r.record(res)

		for _, dep := range res.deps {
			if !r.visited.mark(dep) {
				continue
			}
			f, ok := r.linker.store.Lookup(dep)
			if !ok {
				// Removed from the store after the importer resolved it.
				r.record(&fileResult{filename: dep, errs: []error{errors.MissingFile(dep)}})
				continue
			}
			r.spawn(ctx, f)
		}
		return nil
	})
}

func (r *linkRun) record(res *fileResult) {
	r.mu.Lock()
	r.results[res.filename] = res
	r.mu.Unlock()
}

// assemble propagates failures to importers and orders the surviving texts
// so every module is evaluated after the modules it imports.
func (r *linkRun) assemble(root string) *Output {
	names := make([]string, 0, len(r.results))
	for name := range r.results {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := make(map[string]bool)
	for _, name := range names {
		if r.results[name].failed() {
			failed[name] = true
		}
	}
	for changed := true; changed; {
		changed = false
		for _, name := range names {
			if failed[name] {
				continue
			}
			res := r.results[name]
			for _, dep := range res.deps {
				if !failed[dep] {
					continue
				}
				err := errors.New(errors.CodeDependencyFailed, fmt.Sprintf("Dependency %q failed to link.", dep))
				err = errors.AddContext(err, errors.CtxFile, name)
				err = errors.AddContext(err, errors.CtxDependency, dep)
				if f, ok := r.linker.store.Lookup(name); ok {
					f.RecordErrors(err)
				}
				res.errs = append(res.errs, err)
				failed[name] = true
				changed = true
				break
			}
		}
	}

	out := &Output{
		ID:       uuid.New(),
		Root:     root,
		Modules:  []string{Preamble(r.linker.opts.Global)},
		Failures: make(map[string][]error),
		Edges:    make(map[string][]string, len(names)),
		Visited:  r.visited.len(),
	}
	for _, name := range names {
		out.Edges[name] = append([]string(nil), r.results[name].deps...)
		if failed[name] {
			out.Failures[name] = r.results[name].errs
			slog.Warn("module omitted from link", "file", name, "error", r.results[name].errs[0])
		}
	}

	done := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		res, ok := r.results[name]
		if !ok || done[name] {
			return
		}
		done[name] = true
		for _, dep := range res.deps {
			visit(dep)
		}
		if !failed[name] {
			out.Order = append(out.Order, name)
			out.Modules = append(out.Modules, res.text)
		}
	}
	visit(root)

	if r.linker.opts.Mount && !failed[root] {
		out.Modules = append(out.Modules, MountScript(r.linker.opts.Global, root))
	}
	return out
}
