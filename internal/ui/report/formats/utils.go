package formats

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"sfclink/internal/engine/graph"
)

type edgeKind int

const (
	edgeLinked edgeKind = iota
	edgeCycle
	edgeToFailed
)

// view is the link graph with everything both renderers derive from it
// computed once.
type view struct {
	g        *graph.Graph
	nodes    []string
	ids      map[string]string
	inCycle  map[string]bool
	cycleArc map[[2]string]bool
}

func newView(g *graph.Graph, cycles [][]string) *view {
	v := &view{
		g:        g,
		nodes:    g.Nodes(),
		inCycle:  make(map[string]bool),
		cycleArc: make(map[[2]string]bool),
	}
	v.ids = uniqueIDs(v.nodes)
	for _, cycle := range cycles {
		for i, name := range cycle {
			v.inCycle[name] = true
			v.cycleArc[[2]string{name, cycle[(i+1)%len(cycle)]}] = true
		}
	}
	return v
}

// label is the filename with its fan-in and fan-out.
func (v *view) label(name string) string {
	s := fmt.Sprintf("%s\\n(in=%d out=%d)", name, len(v.g.ImportedBy(name)), len(v.g.Imports(name)))
	if name == v.g.Root() {
		s += "\\nroot"
	}
	return quoteSafe(s)
}

func (v *view) edge(from, to string) edgeKind {
	switch {
	case v.cycleArc[[2]string{from, to}]:
		return edgeCycle
	case v.g.Failed(to):
		return edgeToFailed
	}
	return edgeLinked
}

// where returns the ids of nodes matching keep, in node order.
func (v *view) where(keep func(string) bool) []string {
	var out []string
	for _, name := range v.nodes {
		if keep(name) {
			out = append(out, v.ids[name])
		}
	}
	return out
}

func nodeID(name string) string {
	id := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, name)
	if id == "" {
		return "m"
	}
	if unicode.IsDigit(rune(id[0])) {
		return "m_" + id
	}
	return id
}

// uniqueIDs numbers colliding ids: "a.js" and "a_js" both map to a_js.
func uniqueIDs(names []string) map[string]string {
	ids := make(map[string]string, len(names))
	seen := make(map[string]int, len(names))
	for _, name := range names {
		id := nodeID(name)
		seen[id]++
		if n := seen[id]; n > 1 {
			id += "_" + strconv.Itoa(n)
		}
		ids[name] = id
	}
	return ids
}

func quoteSafe(s string) string {
	return strings.ReplaceAll(s, `"`, "'")
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
