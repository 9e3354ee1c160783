package history

import (
	"log/slog"
	"time"
)

// Adapter bridges Store to the core HistoryStore port. A nil store turns the
// adapter into a sink: saves are dropped and loads return nothing.
type Adapter struct {
	store *Store
}

func NewAdapter(store *Store) *Adapter {
	return &Adapter{store: store}
}

func (a *Adapter) Enabled() bool {
	return a != nil && a.store != nil
}

func (a *Adapter) SaveBuild(build Build) error {
	if !a.Enabled() {
		slog.Debug("build history disabled, dropping record", "root", build.Root)
		return nil
	}
	return a.store.SaveBuild(build)
}

func (a *Adapter) LoadBuilds(root string, since time.Time, limit int) ([]Build, error) {
	if !a.Enabled() {
		return nil, nil
	}
	return a.store.LoadBuilds(root, since, limit)
}
