package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Files whose presence marks the project root.
var rootMarkers = []string{"sfclink.toml", "package.json", ".git"}

// ResolvedPaths holds the absolute locations a run reads and writes.
type ResolvedPaths struct {
	ProjectRoot string
	StateDir    string
	SourceDir   string
	OutputDir   string
	DBPath      string
	LogFile     string
}

// ResolvePaths anchors every configured path. Relative entries are taken
// from the project root: paths.project_root when set, otherwise the first
// directory at or above cwd holding one of rootMarkers, otherwise cwd.
func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	cwd = strings.TrimSpace(cwd)
	if cwd == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	root := findProjectRoot(cwd)
	if cfg.Paths.ProjectRoot != "" {
		root = anchor(cwd, cfg.Paths.ProjectRoot)
	}
	state := anchor(root, cfg.Paths.StateDir)

	return ResolvedPaths{
		ProjectRoot: root,
		StateDir:    state,
		SourceDir:   anchor(root, cfg.Source.Dir),
		OutputDir:   anchor(root, cfg.Output.Dir),
		DBPath:      anchor(state, cfg.DB.Path),
		LogFile:     filepath.Join(state, "sfclink.log"),
	}, nil
}

// OutputExclude returns the output directory as a source-relative pattern
// root when it is nested inside the source directory, so generated scripts
// are never loaded back as sources.
func (p ResolvedPaths) OutputExclude() (string, bool) {
	rel, err := filepath.Rel(p.SourceDir, p.OutputDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// anchor joins a relative value onto base; absolute values stand alone and
// a blank value means base itself.
func anchor(base, value string) string {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return filepath.Clean(base)
	case filepath.IsAbs(value):
		return filepath.Clean(value)
	}
	return filepath.Join(base, value)
}

func findProjectRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return filepath.Clean(start)
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	for d := dir; ; {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(d, marker)); err == nil {
				return d
			}
		}
		parent := filepath.Dir(d)
		if parent == d {
			return dir
		}
		d = parent
	}
}
