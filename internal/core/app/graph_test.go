package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"sfclink/internal/core/errors"
	"sfclink/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_DoesNotWriteOutput(t *testing.T) {
	a := newTestApp(t, map[string]string{
		"main.js":    "import './a.js'\nimport('./lazy.js')\n",
		"a.js":       "import './missing.js'\n",
		"lazy.js":    "export default 1\n",
		"ignored.js": "export default 2\n",
	}, nil, nil)

	g, err := a.Graph(context.Background(), "main.js")
	require.NoError(t, err)
	assert.Equal(t, "main.js", g.Root())
	assert.Equal(t, []string{"a.js", "lazy.js"}, g.Imports("main.js"))
	assert.True(t, g.Failed("a.js"))
	assert.True(t, g.Failed("main.js"))
	assert.False(t, g.HasNode("ignored.js"))
	assert.NoDirExists(t, a.Paths.OutputDir)
}

func TestGraph_MissingRoot(t *testing.T) {
	a := newTestApp(t, map[string]string{"main.js": "console.log(1)\n"}, nil, nil)

	_, err := a.Graph(context.Background(), "nope.js")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMissingFile))
}

func TestBuild_ReportsCycles(t *testing.T) {
	a := newTestApp(t, map[string]string{
		"main.js": "import { a } from './a.js'\nconsole.log(a())\n",
		"a.js":    "import { b } from './b.js'\nexport const a = () => b\n",
		"b.js":    "import { a } from './a.js'\nexport const b = () => a\n",
	}, nil, nil)

	res, err := a.BuildService().Build(context.Background(), ports.BuildRequest{Root: "main.js"})
	require.NoError(t, err)
	assert.False(t, res.Failed())
	require.Len(t, res.Cycles, 1)
	assert.Equal(t, []string{"a.js", "b.js"}, res.Cycles[0])

	var manifest Manifest
	data, err := os.ReadFile(filepath.Join(a.Paths.OutputDir, ManifestFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, res.Cycles, manifest.Cycles)
}

func TestAffected(t *testing.T) {
	a := newTestApp(t, map[string]string{
		"main.js": "import './a.js'\n",
		"a.js":    "import './b.js'\n",
		"b.js":    "export default 1\n",
	}, nil, nil)

	assert.Equal(t, []string{"b.js"}, a.affected([]string{"b.js"}), "no graph before the first build")

	_, err := a.Build(context.Background(), "main.js")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.js", "a.js", "main.js"}, a.affected([]string{"b.js"}))
	assert.Equal(t, []string{"a.js", "main.js", "new.js"}, a.affected([]string{"a.js", "main.js", "new.js"}))
}
