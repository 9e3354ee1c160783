// # internal/ui/report/formats/dot.go
package formats

import (
	"fmt"
	"strings"

	"sfclink/internal/engine/graph"
)

type DOTGenerator struct {
	graph *graph.Graph
}

func NewDOTGenerator(g *graph.Graph) *DOTGenerator {
	return &DOTGenerator{graph: g}
}

var dotEdgeAttrs = map[edgeKind]string{
	edgeLinked:   `color="forestgreen", penwidth=1.8`,
	edgeCycle:    `color="red", penwidth=3.0, label="CYCLE"`,
	edgeToFailed: `color="darkorange", style=dashed`,
}

// Generate renders the link graph as Graphviz DOT. Cycle members and edges
// are drawn red, files that failed to link are drawn with a dashed outline.
func (d *DOTGenerator) Generate(cycles [][]string) (string, error) {
	v := newView(d.graph, cycles)
	var buf strings.Builder

	buf.WriteString(`digraph modules {
  rankdir=LR;
  node [shape=box, style=rounded, fontname="Helvetica", fontsize=10];
  edge [fontname="Helvetica", fontsize=8, penwidth=1.2];
  ranksep=1.2;
  nodesep=0.5;

`)

	for _, name := range v.nodes {
		attrs := []string{fmt.Sprintf(`label="%s"`, v.label(name))}
		switch {
		case d.graph.Failed(name):
			attrs = append(attrs, `fillcolor="lightyellow"`, `color="darkorange"`, `style="rounded,filled,dashed"`)
		case v.inCycle[name]:
			attrs = append(attrs, `fillcolor="mistyrose"`, `color="red"`, `style="rounded,filled"`, "penwidth=2.0")
		default:
			attrs = append(attrs, `color="darkslategrey"`)
		}
		if name == d.graph.Root() {
			attrs = append(attrs, `fontname="Helvetica-Bold"`)
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", quoteSafe(name), strings.Join(attrs, ", "))
	}
	buf.WriteString("\n")

	for _, from := range v.nodes {
		for _, to := range d.graph.Imports(from) {
			fmt.Fprintf(&buf, "  %q -> %q [%s];\n", quoteSafe(from), quoteSafe(to), dotEdgeAttrs[v.edge(from, to)])
		}
	}

	buf.WriteString(`
  subgraph cluster_legend {
    label="Legend";
    style=dashed;
    legend_linked [label="Linked", color="darkslategrey"];
    legend_failed [label="Failed to link", fillcolor="lightyellow", color="darkorange", style="rounded,filled,dashed"];
    legend_cycle [label="Import cycle", fillcolor="mistyrose", color="red", style="rounded,filled"];
  }
}
`)
	return buf.String(), nil
}
