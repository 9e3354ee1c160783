package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadSettle = 100 * time.Millisecond

// Reloads delivers a freshly loaded Config each time the file at path is
// saved. Only the newest unread config is kept; a file that fails to load
// leaves the previous one in effect.
type Reloads struct {
	path    string
	configs chan *Config
	fsw     *fsnotify.Watcher
	done    chan struct{}
	closing sync.Once
	exited  chan struct{}
}

// WatchFile starts watching path until ctx ends or Close is called.
func WatchFile(ctx context.Context, path string) (*Reloads, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors save by rename, which drops a watch placed on the file itself.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	r := &Reloads{
		path:    filepath.Clean(path),
		configs: make(chan *Config, 1),
		fsw:     fsw,
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go r.loop(ctx)
	return r, nil
}

func (r *Reloads) C() <-chan *Config {
	return r.configs
}

func (r *Reloads) Close() {
	r.closing.Do(func() { close(r.done) })
	<-r.exited
}

func (r *Reloads) loop(ctx context.Context) {
	defer close(r.exited)
	defer r.fsw.Close()

	settle := time.NewTimer(time.Hour)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case ev, ok := <-r.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == r.path && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				settle.Reset(reloadSettle)
			}
		case err, ok := <-r.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watch error", "path", r.path, "error", err)
		case <-settle.C:
			r.load()
		case <-r.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reloads) load() {
	cfg, err := Load(r.path)
	if err != nil {
		slog.Error("config reload rejected", "path", r.path, "error", err)
		return
	}
	slog.Info("config reloaded", "path", r.path)
	for {
		select {
		case r.configs <- cfg:
			return
		default:
		}
		select {
		case <-r.configs:
		default:
		}
	}
}
