package app

import (
	"context"

	"sfclink/internal/engine/graph"
	"sfclink/internal/engine/linker"
	"sfclink/internal/shared/util"
)

func linkGraph(out *linker.Output) *graph.Graph {
	return graph.New(out.Root, out.Edges, util.SortedKeys(out.Failures))
}

// Graph links the graph reachable from root without writing any output and
// returns it. Files that failed to link are marked on the graph.
func (a *App) Graph(ctx context.Context, root string) (*graph.Graph, error) {
	cfg, _, _ := a.config()
	out, err := a.newLinker(cfg, a.sources()).Link(ctx, root)
	if err != nil {
		return nil, err
	}
	return linkGraph(out), nil
}

func (a *App) setGraph(g *graph.Graph) {
	a.mu.Lock()
	a.graph = g
	a.mu.Unlock()
}

// affected returns the changed files plus everything that imported them in
// the last successful build. Files the last build never reached are kept
// as they are.
func (a *App) affected(changed []string) []string {
	a.mu.RLock()
	g := a.graph
	a.mu.RUnlock()

	seen := make(map[string]bool, len(changed))
	out := make([]string, 0, len(changed))
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, name := range changed {
		if g == nil || !g.HasNode(name) {
			add(name)
			continue
		}
		for _, dep := range g.Dependents(name) {
			add(dep)
		}
	}
	return out
}
