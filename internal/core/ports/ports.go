package ports

import (
	"context"
	"time"

	"sfclink/internal/data/files"
	"sfclink/internal/data/history"
)

// FileStore resolves normalized filenames to file records.
type FileStore interface {
	Lookup(filename string) (*files.File, bool)
}

// SourceCompiler compiles one file in place. It never returns an error:
// failures are recorded on the file's compiled error list.
type SourceCompiler interface {
	CompileFile(ctx context.Context, file *files.File)
}

// HistoryStore abstracts build persistence for the history command and watch mode.
type HistoryStore interface {
	SaveBuild(build history.Build) error
	LoadBuilds(root string, since time.Time, limit int) ([]history.Build, error)
}

// BuildRequest defines a link-and-write operation for driving adapters.
type BuildRequest struct {
	Root string
}

// BuildResult summarizes a completed build.
type BuildResult struct {
	ID       string
	Root     string
	Modules  int
	Files    int
	Failures map[string][]error
	// Cycles lists the import cycles in the linked graph. Cycles are legal;
	// they are reported because evaluation order inside one is arbitrary.
	Cycles   [][]string
	Written  []string
	Duration time.Duration
}

// Failed reports whether any file in the graph failed to link.
func (r BuildResult) Failed() bool {
	return len(r.Failures) > 0
}

// WatchUpdate is emitted to driving adapters after every rebuild.
type WatchUpdate struct {
	Changed []string
	// Affected lists the changed files and everything that imported them in
	// the previous build.
	Affected []string
	Result   BuildResult
	Err      error
}

// BuildService is the driving port used by the CLI.
type BuildService interface {
	Build(ctx context.Context, req BuildRequest) (BuildResult, error)
	Watch(ctx context.Context, updates func(WatchUpdate)) error
}
