package app

import (
	"context"
	"log/slog"
	"os"

	"sfclink/internal/core/config"
	"sfclink/internal/core/ports"
	"sfclink/internal/core/watcher"
	"sfclink/internal/shared/observability"
	"sfclink/internal/shared/util"
)

// Watch builds once, then rebuilds whenever sources under the source
// directory change, calling updates after every build. Rebuilds are
// throttled by the watch rate limit; changes that arrive while waiting are
// merged into the next rebuild. A change to the config file reloads it and
// restarts the source watcher. Watch returns when ctx is done.
func (a *App) Watch(ctx context.Context, updates func(ports.WatchUpdate)) error {
	if updates == nil {
		updates = func(ports.WatchUpdate) {}
	}
	changes := make(chan []string, 16)
	onChange := func(paths []string) {
		select {
		case changes <- paths:
		case <-ctx.Done():
		}
	}

	w, err := a.startSourceWatcher(onChange)
	if err != nil {
		return err
	}
	defer func() {
		if w != nil {
			_ = w.Close()
		}
	}()

	var reloads <-chan *config.Config
	if a.ConfigPath != "" {
		cw, err := config.WatchFile(ctx, a.ConfigPath)
		if err != nil {
			slog.Warn("config watcher disabled", "path", a.ConfigPath, "error", err)
		} else {
			defer cw.Close()
			reloads = cw.C()
		}
	}

	cfg, _, _ := a.config()
	limiter := util.NewIntervalLimiter(cfg.Watch.RebuildRate, cfg.Watch.Burst)

	a.rebuild(ctx, nil, updates)
	for {
		select {
		case <-ctx.Done():
			return nil

		case paths := <-changes:
			paths = drainChanges(paths, changes)
			if err := limiter.Wait(ctx, 1); err != nil {
				return nil
			}
			// More changes may have landed while throttled.
			paths = drainChanges(paths, changes)
			_, resolved, matcher := a.config()
			changed, err := a.sources().Sync(resolved.SourceDir, matcher, paths)
			if err != nil {
				slog.Warn("failed to reload changed sources", "error", err)
			}
			if len(changed) == 0 && err == nil {
				continue
			}
			a.rebuild(ctx, changed, updates)

		case next := <-reloads:
			cwd, err := os.Getwd()
			if err != nil {
				slog.Warn("config reload skipped", "error", err)
				continue
			}
			paths, err := config.ResolvePaths(next, cwd)
			if err != nil {
				slog.Warn("config reload skipped", "error", err)
				continue
			}
			if err := a.SetConfig(next, paths); err != nil {
				slog.Warn("config reload failed", "error", err)
				continue
			}
			_ = w.Close()
			if w, err = a.startSourceWatcher(onChange); err != nil {
				return err
			}
			limiter = util.NewIntervalLimiter(next.Watch.RebuildRate, next.Watch.Burst)
			slog.Info("sources reloaded for new config", "dir", paths.SourceDir)
			a.rebuild(ctx, []string{a.ConfigPath}, updates)
		}
	}
}

func (a *App) startSourceWatcher(onChange func([]string)) (*watcher.Watcher, error) {
	cfg, paths, matcher := a.config()
	w, err := watcher.NewWatcher(paths.SourceDir, cfg.Watch.Debounce, matcher, onChange)
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		_ = w.Close()
		return nil, err
	}
	slog.Info("watching sources", "dir", paths.SourceDir, "debounce", cfg.Watch.Debounce)
	return w, nil
}

func (a *App) rebuild(ctx context.Context, changed []string, updates func(ports.WatchUpdate)) {
	if changed != nil {
		observability.RebuildsTotal.Inc()
	}
	update := ports.WatchUpdate{Changed: changed}
	if len(changed) > 0 {
		update.Affected = a.affected(changed)
	}
	res, err := a.Build(ctx, "")
	if err != nil {
		update.Err = err
		slog.Error("rebuild failed", "error", err)
	} else {
		update.Result = *res
	}
	updates(update)
}

// drainChanges merges queued change batches without blocking.
func drainChanges(paths []string, changes <-chan []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	add := func(ps []string) {
		for _, p := range ps {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	add(paths)
	for {
		select {
		case more := <-changes:
			add(more)
		default:
			return out
		}
	}
}
