// # internal/data/files/load.go
package files

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher decides which paths under a source directory belong to the store.
// Patterns match the slash-separated path relative to the directory.
type Matcher struct {
	include []glob.Glob
	exclude []glob.Glob
}

func NewMatcher(include, exclude []string) (*Matcher, error) {
	inc, err := compileGlobs(include, "include")
	if err != nil {
		return nil, err
	}
	exc, err := compileGlobs(exclude, "exclude")
	if err != nil {
		return nil, err
	}
	return &Matcher{include: inc, exclude: exc}, nil
}

func compileGlobs(patterns []string, label string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", label, p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Match reports whether rel (slash separated) is a supported, included and not excluded file.
func (m *Matcher) Match(rel string) bool {
	if !IsSupported(rel) {
		return false
	}
	for _, g := range m.exclude {
		if g.Match(rel) {
			return false
		}
	}
	if len(m.include) == 0 {
		return true
	}
	for _, g := range m.include {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// ExcludesDir reports whether a directory (relative, slash separated) is pruned from the walk.
func (m *Matcher) ExcludesDir(rel string) bool {
	if rel == "" || rel == "." {
		return false
	}
	if strings.HasPrefix(filepath.Base(rel), ".") || filepath.Base(rel) == "node_modules" {
		return true
	}
	for _, g := range m.exclude {
		if g.Match(rel) || g.Match(rel+"/") {
			return true
		}
	}
	return false
}

// LoadDir builds a store from every matching file under dir.
func LoadDir(dir string, m *Matcher) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat source dir %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %q is not a directory", dir)
	}

	s := New()
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := relSlash(dir, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if m.ExcludesDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !m.Match(rel) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %q: %w", p, err)
		}
		s.files[rel] = NewFile(rel, string(data))
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("loaded source files", "dir", dir, "files", len(s.files))
	return s, nil
}

// Sync reloads the given absolute or dir-relative paths from disk: existing
// files are replaced, vanished files are deleted. It returns the store
// filenames that changed.
func (s *Store) Sync(dir string, m *Matcher, paths []string) ([]string, error) {
	changed := make([]string, 0, len(paths))
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		rel, err := relSlash(dir, p)
		if err != nil || strings.HasPrefix(rel, "../") {
			continue
		}
		if !m.Match(rel) {
			if _, err := os.Stat(p); os.IsNotExist(err) {
				changed = append(changed, s.dropDir(rel)...)
			}
			continue
		}
		data, err := os.ReadFile(p)
		switch {
		case err == nil:
			s.mu.Lock()
			if f, ok := s.files[rel]; ok {
				f.setCode(string(data))
			} else {
				s.files[rel] = NewFile(rel, string(data))
			}
			s.mu.Unlock()
			changed = append(changed, rel)
		case os.IsNotExist(err):
			s.mu.Lock()
			if _, ok := s.files[rel]; ok {
				delete(s.files, rel)
				changed = append(changed, rel)
			}
			s.mu.Unlock()
		default:
			return changed, fmt.Errorf("read %q: %w", p, err)
		}
	}
	return changed, nil
}

// dropDir deletes every file below a removed directory.
func (s *Store) dropDir(rel string) []string {
	prefix := strings.TrimSuffix(rel, "/") + "/"
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for name := range s.files {
		if strings.HasPrefix(name, prefix) {
			delete(s.files, name)
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	return removed
}

func relSlash(dir, p string) (string, error) {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
