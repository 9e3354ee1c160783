// # internal/ui/report/formats/mermaid.go
package formats

import (
	"fmt"
	"strings"

	"sfclink/internal/engine/graph"
)

const mermaidInit = "%%{init: {'theme': 'base', 'themeVariables': {'textColor': '#000000', 'primaryTextColor': '#000000', 'lineColor': '#333333'}, 'flowchart': {'nodeSpacing': 60, 'rankSpacing': 90, 'curve': 'basis'}}}%%\n"

type MermaidGenerator struct {
	graph *graph.Graph
}

func NewMermaidGenerator(g *graph.Graph) *MermaidGenerator {
	return &MermaidGenerator{graph: g}
}

// mermaidClasses are applied in order, so later classes win for nodes that
// are in more than one.
var mermaidClasses = []struct {
	name  string
	style string
	pick  func(v *view, name string) bool
}{
	{"linkedNode", "fill:#f7fbff,stroke:#4d6480,stroke-width:1px,color:#000000", func(*view, string) bool { return true }},
	{"cycleNode", "fill:#ffecec,stroke:#cc0000,stroke-width:2px,color:#000000", func(v *view, name string) bool { return v.inCycle[name] }},
	{"failedNode", "fill:#fffbe6,stroke:#d97706,stroke-dasharray:4 3,color:#000000", func(v *view, name string) bool { return v.g.Failed(name) }},
}

func (m *MermaidGenerator) Generate(cycles [][]string) (string, error) {
	v := newView(m.graph, cycles)
	var b strings.Builder
	b.WriteString(mermaidInit)
	b.WriteString("flowchart LR\n")

	for _, name := range v.nodes {
		fmt.Fprintf(&b, "  %s[\"%s\"]\n", v.ids[name], v.label(name))
	}

	b.WriteString("\n")
	for _, class := range mermaidClasses {
		ids := v.where(func(name string) bool { return class.pick(v, name) })
		if len(ids) == 0 {
			continue
		}
		fmt.Fprintf(&b, "  classDef %s %s;\n", class.name, class.style)
		fmt.Fprintf(&b, "  class %s %s;\n", strings.Join(ids, ","), class.name)
	}

	b.WriteString("\n")
	styled := map[edgeKind][]int{}
	n := 0
	for _, from := range v.nodes {
		for _, to := range m.graph.Imports(from) {
			kind := v.edge(from, to)
			arrow := "-->"
			if kind == edgeCycle {
				arrow = "-->|CYCLE|"
			}
			if kind != edgeLinked {
				styled[kind] = append(styled[kind], n)
			}
			fmt.Fprintf(&b, "  %s %s %s\n", v.ids[from], arrow, v.ids[to])
			n++
		}
	}

	if len(styled) > 0 {
		b.WriteString("\n")
	}
	if idx := styled[edgeCycle]; len(idx) > 0 {
		fmt.Fprintf(&b, "  linkStyle %s stroke:#cc0000,stroke-width:3px;\n", joinInts(idx))
	}
	if idx := styled[edgeToFailed]; len(idx) > 0 {
		fmt.Fprintf(&b, "  linkStyle %s stroke:#d97706,stroke-dasharray:4 3;\n", joinInts(idx))
	}
	return b.String(), nil
}
