package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	coreapp "sfclink/internal/core/app"
	"sfclink/internal/core/config"
	"sfclink/internal/core/ports"
	"sfclink/internal/data/history"
	"sfclink/internal/shared/observability"

	ucli "github.com/urfave/cli/v3"
)

// runtime is everything a command needs, built from flags and config.
type runtime struct {
	cfg     *config.Config
	cfgPath string
	paths   config.ResolvedPaths
	app     *coreapp.App
	service ports.BuildService
	health  *coreapp.HealthService
	history ports.HistoryStore

	historyStore    *history.Store
	shutdownTracing func(context.Context) error
	closeLogs       func()
}

func setupRuntime(ctx context.Context, cmd *ucli.Command, uiMode bool) (*runtime, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("detect working directory: %w", err)
	}

	cfgPath := cmd.String("config")
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := applyFlagOverrides(cfg, cmd); err != nil {
		return nil, err
	}

	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		return nil, fmt.Errorf("resolve runtime paths: %w", err)
	}

	rt := &runtime{
		cfg:             cfg,
		paths:           paths,
		shutdownTracing: func(context.Context) error { return nil },
	}
	rt.closeLogs = configureLogging(uiMode, cmd.Bool("verbose"), paths.LogFile)
	if _, err := os.Stat(cfgPath); err == nil {
		rt.cfgPath = cfgPath
	}

	shutdown, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint, cfg.Observability.ServiceName)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	} else {
		rt.shutdownTracing = shutdown
	}

	if cfg.DB.IsEnabled() {
		store, err := history.OpenWithTimeout(paths.DBPath, cfg.DB.BusyTimeout)
		if err != nil {
			// Linking never depends on history.
			slog.Warn("build history unavailable", "path", paths.DBPath, "error", err)
		} else {
			rt.historyStore = store
			rt.history = history.NewAdapter(store)
			pruneHistory(store, cfg.DB.Retention)
		}
	}

	a, err := coreapp.New(cfg, paths, rt.history)
	if err != nil {
		rt.Close()
		return nil, err
	}
	a.ConfigPath = rt.cfgPath
	if err := a.LoadSources(); err != nil {
		rt.app = a
		rt.Close()
		return nil, fmt.Errorf("load sources: %w", err)
	}
	rt.app = a
	rt.service = a.BuildService()
	rt.health = coreapp.NewHealthService(a)

	slog.Debug("runtime ready",
		"config", rt.cfgPath,
		"source_dir", paths.SourceDir,
		"output_dir", paths.OutputDir,
		"files", a.Store.Len(),
	)
	return rt, nil
}

// Close flushes history and traces and releases files. Safe to call on a
// partially built runtime.
func (r *runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if r.app != nil {
		if err := r.app.Close(ctx); err != nil {
			slog.Warn("failed to flush build history", "error", err)
		}
	}
	if r.historyStore != nil {
		_ = r.historyStore.Close()
	}
	if r.shutdownTracing != nil {
		if err := r.shutdownTracing(ctx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}
	if r.closeLogs != nil {
		r.closeLogs()
	}
}

// pruneHistory drops builds older than retention. A negative retention keeps
// everything.
func pruneHistory(store *history.Store, retention time.Duration) {
	if retention < 0 {
		return
	}
	n, err := store.Prune(time.Now().Add(-retention))
	if err != nil {
		slog.Warn("failed to prune build history", "error", err)
		return
	}
	if n > 0 {
		slog.Debug("pruned build history", "builds", n, "retention", retention)
	}
}

// loadConfig reads path, falling back to defaults when the default config
// file does not exist. An explicitly named missing file is an error.
func loadConfig(path string) (*config.Config, error) {
	if path == config.DefaultPath {
		return config.LoadOrDefault(path)
	}
	return config.Load(path)
}

func applyFlagOverrides(cfg *config.Config, cmd *ucli.Command) error {
	changed := false
	if dir := strings.TrimSpace(cmd.String("dir")); dir != "" {
		cfg.Source.Dir = dir
		changed = true
	}
	if out := strings.TrimSpace(cmd.String("out")); out != "" {
		cfg.Output.Dir = out
		changed = true
	}
	if root := strings.TrimSpace(cmd.Args().First()); root != "" && cmd.Name != "trace" {
		cfg.Link.Root = strings.TrimPrefix(root, "./")
		changed = true
	}
	if !changed {
		return nil
	}
	return config.Validate(cfg)
}

func configureLogging(uiMode, verbose bool, logPath string) func() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stdout
	closeFn := func() {}
	if uiMode {
		// In UI mode, avoid stdout logs corrupting the TUI.
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
			fmt.Fprintf(os.Stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
		} else {
			f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
			if err == nil {
				output = f
				closeFn = func() { _ = f.Close() }
			} else {
				fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return closeFn
}
