package linker

import "sync"

// visitedSet is the per-link memo of files already claimed by a transform.
type visitedSet struct {
	mu    sync.Mutex
	files map[string]struct{}
}

func newVisitedSet() *visitedSet {
	return &visitedSet{files: make(map[string]struct{})}
}

// mark claims filename and reports whether the caller was first.
func (v *visitedSet) mark(filename string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.files[filename]; ok {
		return false
	}
	v.files[filename] = struct{}{}
	return true
}

func (v *visitedSet) len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.files)
}
