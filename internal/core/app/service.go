package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sfclink/internal/core/config"
	"sfclink/internal/core/errors"
	"sfclink/internal/core/ports"
	"sfclink/internal/data/files"
	"sfclink/internal/data/history"
	"sfclink/internal/engine/linker"
	"sfclink/internal/shared/observability"
	"sfclink/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type buildService struct {
	app *App
}

var _ ports.BuildService = (*buildService)(nil)

func NewBuildService(app *App) ports.BuildService {
	return &buildService{app: app}
}

func (a *App) BuildService() ports.BuildService {
	return NewBuildService(a)
}

func (s *buildService) Build(ctx context.Context, req ports.BuildRequest) (ports.BuildResult, error) {
	if s.app == nil {
		return ports.BuildResult{}, fmt.Errorf("app is required")
	}
	res, err := s.app.Build(ctx, req.Root)
	if err != nil {
		return ports.BuildResult{}, err
	}
	return *res, nil
}

func (s *buildService) Watch(ctx context.Context, updates func(ports.WatchUpdate)) error {
	if s.app == nil {
		return fmt.Errorf("app is required")
	}
	return s.app.Watch(ctx, updates)
}

// Build links the graph reachable from root, writes the emitted scripts to
// the output directory and records the build in history. Per-file failures
// are part of the result; only a missing root, a cancelled context or an
// output write failure is returned as an error.
func (a *App) Build(ctx context.Context, root string) (*ports.BuildResult, error) {
	a.buildMu.Lock()
	defer a.buildMu.Unlock()

	cfg, paths, _ := a.config()
	if root == "" {
		root = cfg.Link.Root
	}

	ctx, span := observability.Tracer.Start(ctx, "app.Build", trace.WithAttributes(
		attribute.String("root", root),
		attribute.String("output_dir", paths.OutputDir),
	))
	defer span.End()

	store := a.sources()
	start := time.Now()
	out, err := a.newLinker(cfg, store).Link(ctx, root)
	if err != nil {
		span.RecordError(err)
		a.setLast(nil, err)
		if errors.IsCode(err, errors.CodeMissingFile) {
			name := files.Normalize(root)
			a.recordBuild(history.Build{
				Root:      name,
				Timestamp: start.UTC(),
				Duration:  time.Since(start),
				Errors:    []history.FileError{fileError(name, err)},
			})
		}
		return nil, err
	}

	g := linkGraph(out)
	cycles := g.DetectCycles()
	written, err := writeOutputs(paths.OutputDir, cfg, out, cycles, store.ImportMap())
	if err != nil {
		span.RecordError(err)
		a.setLast(nil, err)
		return nil, err
	}

	res := &ports.BuildResult{
		ID:       out.ID.String(),
		Root:     out.Root,
		Modules:  len(out.Order),
		Files:    out.Visited,
		Failures: out.Failures,
		Cycles:   cycles,
		Written:  written,
		Duration: time.Since(start),
	}
	span.SetAttributes(
		attribute.Int("modules", res.Modules),
		attribute.Int("failures", len(res.Failures)),
		attribute.Int("cycles", len(res.Cycles)),
	)
	a.recordBuild(toHistoryBuild(res, start))
	a.setLast(res, nil)
	a.setGraph(g)

	if res.Failed() {
		slog.Warn("build finished with failures", "root", res.Root, "modules", res.Modules, "failed", len(res.Failures))
	} else {
		slog.Info("build finished", "root", res.Root, "modules", res.Modules, "duration", res.Duration)
	}
	return res, nil
}

func (a *App) newLinker(cfg *config.Config, store *files.Store) *linker.Linker {
	return linker.New(store, a.Compiler, a.Parser, linker.Options{
		DefaultRoot: cfg.Link.Root,
		Workers:     cfg.Link.Workers,
		Global:      cfg.Link.Global,
		Mount:       cfg.Link.MountEnabled(),
	})
}

func toHistoryBuild(res *ports.BuildResult, start time.Time) history.Build {
	build := history.Build{
		ID:          res.ID,
		Root:        res.Root,
		Timestamp:   start.UTC(),
		Duration:    res.Duration,
		ModuleCount: res.Modules,
		FileCount:   res.Files,
	}
	for _, name := range util.SortedKeys(res.Failures) {
		for _, err := range res.Failures[name] {
			build.Errors = append(build.Errors, fileError(name, err))
		}
	}
	return build
}

func fileError(name string, err error) history.FileError {
	msg := err.Error()
	if de, ok := errors.AsDomain(err); ok {
		msg = de.Origin().Message
	}
	return history.FileError{File: name, Code: string(errors.CodeOf(err)), Message: msg}
}
