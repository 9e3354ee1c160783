package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"sfclink/internal/core/config"
	"sfclink/internal/core/ports"
	"sfclink/internal/data/files"
	"sfclink/internal/data/history"
	"sfclink/internal/data/queue"
	"sfclink/internal/engine/graph"
	"sfclink/internal/engine/parser"
	"sfclink/internal/engine/sfc"
)

// historyQueueCapacity bounds pending history records; older builds are
// dropped before a rebuild is ever blocked on the database.
const historyQueueCapacity = 64

type App struct {
	Config     *config.Config
	Paths      config.ResolvedPaths
	Parser     *parser.Parser
	Compiler   *sfc.Compiler
	Store      *files.Store
	ConfigPath string

	matcher *files.Matcher
	history ports.HistoryStore

	historyQueue *queue.Bounded[history.Build]
	workerCancel context.CancelFunc
	workerDone   chan struct{}

	// buildMu serializes links so two builds never write the output dir at once.
	buildMu sync.Mutex

	mu      sync.RWMutex
	last    *ports.BuildResult
	lastErr error
	graph   *graph.Graph
}

// New wires the parser, compiler and file store for cfg. A nil history store
// disables build history.
func New(cfg *config.Config, paths config.ResolvedPaths, hist ports.HistoryStore) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	matcher, err := newMatcher(cfg, paths)
	if err != nil {
		return nil, err
	}

	p := parser.NewParser(parser.NewGrammarLoader())
	a := &App{
		Config:   cfg,
		Paths:    paths,
		Parser:   p,
		Compiler: sfc.New(p),
		Store:    files.New(),
		matcher:  matcher,
		history:  hist,
	}
	if hist != nil {
		a.startHistoryWorker()
	}
	return a, nil
}

func newMatcher(cfg *config.Config, paths config.ResolvedPaths) (*files.Matcher, error) {
	exclude := append([]string(nil), cfg.Source.Exclude...)
	if rel, ok := paths.OutputExclude(); ok {
		exclude = append(exclude, rel, rel+"/**")
	}
	return files.NewMatcher(cfg.Source.Include, exclude)
}

// LoadSources replaces the file store with the files found under the source
// directory. An empty directory yields the default welcome project.
func (a *App) LoadSources() error {
	store, err := files.LoadDir(a.Paths.SourceDir, a.matcher)
	if err != nil {
		return err
	}
	if store.Len() == 0 {
		slog.Info("no source files found, using default project", "dir", a.Paths.SourceDir)
		store = files.NewDefault()
	}
	store.SetFallback(files.Normalize(a.Config.Link.Root))

	a.mu.Lock()
	a.Store = store
	a.mu.Unlock()
	return nil
}

func (a *App) sources() *files.Store {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.Store
}

// SetConfig swaps in a reloaded configuration and reloads the sources.
func (a *App) SetConfig(cfg *config.Config, paths config.ResolvedPaths) error {
	matcher, err := newMatcher(cfg, paths)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.Config = cfg
	a.Paths = paths
	a.matcher = matcher
	a.mu.Unlock()
	return a.LoadSources()
}

func (a *App) config() (*config.Config, config.ResolvedPaths, *files.Matcher) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.Config, a.Paths, a.matcher
}

// LastResult returns the most recent build result and error, if any build ran.
func (a *App) LastResult() (*ports.BuildResult, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return nil, a.lastErr
	}
	res := *a.last
	return &res, a.lastErr
}

func (a *App) setLast(res *ports.BuildResult, err error) {
	a.mu.Lock()
	a.last = res
	a.lastErr = err
	a.mu.Unlock()
}

// History returns the configured history store, or nil.
func (a *App) History() ports.HistoryStore {
	return a.history
}

// Close flushes pending history records.
func (a *App) Close(ctx context.Context) error {
	return a.stopHistoryWorker(ctx)
}
