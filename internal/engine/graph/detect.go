// # internal/engine/graph/detect.go
package graph

import "sfclink/internal/shared/util"

type visitState uint8

const (
	unvisited visitState = iota
	active
	finished
)

// cycleWalker is a depth-first walk that records a cycle each time an edge
// points back into the active path.
type cycleWalker struct {
	imports map[string][]string
	state   map[string]visitState
	path    []string
	pos     map[string]int
	cycles  [][]string
}

func (w *cycleWalker) visit(name string) {
	w.state[name] = active
	w.pos[name] = len(w.path)
	w.path = append(w.path, name)

	for _, next := range sortedTargets(w.imports[name]) {
		switch w.state[next] {
		case active:
			w.cycles = append(w.cycles, append([]string(nil), w.path[w.pos[next]:]...))
		case unvisited:
			w.visit(next)
		}
	}

	w.path = w.path[:len(w.path)-1]
	delete(w.pos, name)
	w.state[name] = finished
}

// DetectCycles walks the nodes in sorted order and returns each import cycle
// it closes, listed from the member the walk entered first.
func (g *Graph) DetectCycles() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	w := &cycleWalker{
		imports: g.imports,
		state:   make(map[string]visitState, len(g.imports)),
		pos:     make(map[string]int),
	}
	for _, name := range util.SortedKeys(g.imports) {
		if w.state[name] == unvisited {
			w.visit(name)
		}
	}
	return w.cycles
}

// breadthFirst visits everything reachable from start through next, in
// order of distance. It stops early when visit returns false. parent maps
// each reached node to the node it was reached from.
func breadthFirst(start string, next func(string) []string, visit func(name string) bool) (parent map[string]string) {
	parent = map[string]string{start: ""}
	frontier := []string{start}
	for len(frontier) > 0 {
		var upcoming []string
		for _, curr := range frontier {
			for _, n := range next(curr) {
				if _, seen := parent[n]; seen {
					continue
				}
				parent[n] = curr
				if !visit(n) {
					return parent
				}
				upcoming = append(upcoming, n)
			}
		}
		frontier = upcoming
	}
	return parent
}

// FindImportChain returns the shortest chain of imports leading from one
// file to another, both ends included.
func (g *Graph) FindImportChain(from, to string) ([]string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, hasFrom := g.imports[from]
	_, hasTo := g.imports[to]
	if !hasFrom || !hasTo {
		return nil, false
	}
	if from == to {
		return []string{from}, true
	}

	found := false
	parent := breadthFirst(from,
		func(name string) []string { return sortedTargets(g.imports[name]) },
		func(name string) bool {
			found = name == to
			return !found
		})
	if !found {
		return nil, false
	}

	var chain []string
	for name := to; name != from; name = parent[name] {
		chain = append(chain, name)
	}
	chain = append(chain, from)
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, true
}

// Dependents returns changed followed by every file that imports it directly
// or transitively, nearest importers first.
func (g *Graph) Dependents(changed string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.imports[changed]; !ok {
		return nil
	}
	out := []string{changed}
	breadthFirst(changed,
		func(name string) []string { return util.SortedKeys(g.importedBy[name]) },
		func(name string) bool {
			out = append(out, name)
			return true
		})
	return out
}
