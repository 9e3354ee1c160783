package formats

import (
	"strings"
	"testing"

	"sfclink/internal/engine/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGraph() *graph.Graph {
	return graph.New("main.js", map[string][]string{
		"main.js":   {"App.vue", "broken.js"},
		"App.vue":   {"lib/a.js"},
		"lib/a.js":  {"lib/b.js"},
		"lib/b.js":  {"lib/a.js"},
		"broken.js": nil,
	}, []string{"broken.js", "main.js"})
}

func TestDOTGenerator(t *testing.T) {
	g := testGraph()
	out, err := NewDOTGenerator(g).Generate(g.DetectCycles())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "digraph modules {\n"))
	assert.True(t, strings.HasSuffix(out, "}\n"))
	assert.Contains(t, out, `"lib/a.js" -> "lib/b.js" [color="red", penwidth=3.0, label="CYCLE"];`)
	assert.Contains(t, out, `"lib/b.js" -> "lib/a.js" [color="red", penwidth=3.0, label="CYCLE"];`)
	assert.Contains(t, out, `"App.vue" -> "lib/a.js" [color="forestgreen", penwidth=1.8];`)
	assert.Contains(t, out, `"main.js" -> "broken.js" [color="darkorange", style=dashed];`)
	assert.Contains(t, out, `"lib/a.js" [label="lib/a.js\n(in=2 out=1)", fillcolor="mistyrose"`)
	assert.Contains(t, out, `"main.js" [label="main.js\n(in=0 out=2)\nroot", fillcolor="lightyellow"`)
	assert.Contains(t, out, `fontname="Helvetica-Bold"`)
}

func TestMermaidGenerator(t *testing.T) {
	g := testGraph()
	out, err := NewMermaidGenerator(g).Generate(g.DetectCycles())
	require.NoError(t, err)

	assert.Contains(t, out, "flowchart LR\n")
	assert.Contains(t, out, `  lib_a_js["lib/a.js\n(in=2 out=1)"]`)
	assert.Contains(t, out, "  class lib_a_js,lib_b_js cycleNode;\n")
	assert.Contains(t, out, "  class broken_js,main_js failedNode;\n")
	assert.Contains(t, out, "  lib_a_js -->|CYCLE| lib_b_js\n")
	assert.Contains(t, out, "  main_js --> App_vue\n")

	// Edges are numbered in sorted source order: App.vue, broken.js, lib/a.js, lib/b.js, main.js.
	assert.Contains(t, out, "  linkStyle 1,2 stroke:#cc0000,stroke-width:3px;\n")
	assert.Contains(t, out, "  linkStyle 4 stroke:#d97706,stroke-dasharray:4 3;\n")
}

func TestUniqueIDs(t *testing.T) {
	ids := uniqueIDs([]string{"a.js", "a_js", "1.js", ""})
	assert.Equal(t, "a_js", ids["a.js"])
	assert.Equal(t, "a_js_2", ids["a_js"])
	assert.Equal(t, "m_1_js", ids["1.js"])
	assert.Equal(t, "m", ids[""])
}
