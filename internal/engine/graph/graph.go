// # internal/engine/graph/graph.go
package graph

import (
	"sort"
	"sync"

	"sfclink/internal/shared/util"
)

// Graph is the relative import graph of one link, keyed by normalized
// filename. Edges keep the order the linker first encountered them.
type Graph struct {
	mu sync.RWMutex

	root       string
	imports    map[string][]string        // from -> to, in source order
	importedBy map[string]map[string]bool // to -> from
	failed     map[string]bool
}

// New builds a graph from the linker's edge list. Targets that were reached
// but never linked (missing files) still become nodes.
func New(root string, edges map[string][]string, failed []string) *Graph {
	g := &Graph{
		root:       root,
		imports:    make(map[string][]string, len(edges)),
		importedBy: make(map[string]map[string]bool),
		failed:     make(map[string]bool, len(failed)),
	}
	for from, targets := range edges {
		g.addNode(from)
		for _, to := range targets {
			g.addEdge(from, to)
		}
	}
	for _, name := range failed {
		g.addNode(name)
		g.failed[name] = true
	}
	if root != "" {
		g.addNode(root)
	}
	return g
}

func (g *Graph) addNode(name string) {
	if _, ok := g.imports[name]; !ok {
		g.imports[name] = nil
	}
}

func (g *Graph) addEdge(from, to string) {
	g.addNode(to)
	for _, existing := range g.imports[from] {
		if existing == to {
			return
		}
	}
	g.imports[from] = append(g.imports[from], to)
	if g.importedBy[to] == nil {
		g.importedBy[to] = make(map[string]bool)
	}
	g.importedBy[to][from] = true
}

func (g *Graph) Root() string {
	return g.root
}

// Nodes returns every filename in the graph, sorted.
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return util.SortedKeys(g.imports)
}

func (g *Graph) HasNode(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.imports[name]
	return ok
}

// Imports returns the direct dependencies of name in source order.
func (g *Graph) Imports(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.imports[name]...)
}

// ImportedBy returns the direct importers of name, sorted.
func (g *Graph) ImportedBy(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return util.SortedKeys(g.importedBy[name])
}

func (g *Graph) Failed(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.failed[name]
}

func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, targets := range g.imports {
		n += len(targets)
	}
	return n
}

// sortedTargets is used where traversal order must not depend on source order.
func sortedTargets(targets []string) []string {
	out := append([]string(nil), targets...)
	sort.Strings(out)
	return out
}
