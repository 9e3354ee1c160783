package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"sfclink/internal/core/config"
	"sfclink/internal/core/errors"
	"sfclink/internal/core/ports"
	"sfclink/internal/data/history"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	mu     sync.Mutex
	builds []history.Build
}

func (h *fakeHistory) SaveBuild(b history.Build) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.builds = append(h.builds, b)
	return nil
}

func (h *fakeHistory) LoadBuilds(string, time.Time, int) ([]history.Build, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]history.Build(nil), h.builds...), nil
}

func writeSources(t *testing.T, dir string, sources map[string]string) {
	t.Helper()
	for name, code := range sources {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(code), 0o644))
	}
}

// newTestApp loads sources from a temp project with output under dist/.
func newTestApp(t *testing.T, sources map[string]string, hist *fakeHistory, mutate func(*config.Config)) *App {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	writeSources(t, src, sources)

	cfg := config.DefaultConfig()
	mount := false
	cfg.Link.Mount = &mount
	cfg.Link.Workers = 2
	if mutate != nil {
		mutate(cfg)
	}
	paths := config.ResolvedPaths{
		ProjectRoot: root,
		StateDir:    filepath.Join(root, ".sfclink"),
		SourceDir:   src,
		OutputDir:   filepath.Join(root, "dist"),
	}

	var a *App
	var err error
	if hist != nil {
		a, err = New(cfg, paths, hist)
	} else {
		a, err = New(cfg, paths, nil)
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	require.NoError(t, a.LoadSources())
	return a
}

func TestBuild_WritesScriptsInOrder(t *testing.T) {
	hist := &fakeHistory{}
	a := newTestApp(t, map[string]string{
		"main.js":      "import { msg } from './lib/util.js'\nconsole.log(msg)\n",
		"lib/util.js":  "export const msg = 'hi'\n",
		"unrelated.js": "export default 1\n",
	}, hist, nil)

	res, err := a.BuildService().Build(context.Background(), ports.BuildRequest{Root: "main.js"})
	require.NoError(t, err)
	assert.False(t, res.Failed())
	assert.Equal(t, "main.js", res.Root)
	assert.Equal(t, 2, res.Modules)
	assert.Equal(t, 2, res.Files)

	dist := a.Paths.OutputDir
	for _, name := range []string{"000-preamble.js", "001-lib__util.js", "002-main.js", ManifestFile, HTMLFile} {
		assert.FileExists(t, filepath.Join(dist, name))
	}
	assert.NoFileExists(t, filepath.Join(dist, "003-mount.js"))

	main, err := os.ReadFile(filepath.Join(dist, "002-main.js"))
	require.NoError(t, err)
	assert.Contains(t, string(main), "console.log")
	assert.NotContains(t, string(main), "import {")

	var manifest Manifest
	data, err := os.ReadFile(filepath.Join(dist, ManifestFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, res.ID, manifest.ID)
	assert.Equal(t, []string{"lib/util.js", "main.js"}, manifest.Order)
	assert.Empty(t, manifest.Failures)

	require.NoError(t, a.Close(context.Background()))
	builds, _ := hist.LoadBuilds("", time.Time{}, 0)
	require.Len(t, builds, 1)
	assert.Equal(t, res.ID, builds[0].ID)
	assert.Equal(t, 2, builds[0].ModuleCount)
	assert.False(t, builds[0].Failed())

	last, lastErr := a.LastResult()
	require.NoError(t, lastErr)
	assert.Equal(t, res.ID, last.ID)
}

func TestBuild_RecordsFailures(t *testing.T) {
	hist := &fakeHistory{}
	a := newTestApp(t, map[string]string{
		"main.js": "import { a } from './a.js'\nconsole.log(a)\n",
		"a.js":    "import { b } from './missing.js'\nexport const a = b\n",
	}, hist, nil)

	res, err := a.Build(context.Background(), "main.js")
	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.Equal(t, 0, res.Modules)
	require.Contains(t, res.Failures, "a.js")
	require.Contains(t, res.Failures, "main.js")
	assert.True(t, errors.IsCode(res.Failures["a.js"][0], errors.CodeMissingFile))
	assert.True(t, errors.IsCode(res.Failures["main.js"][0], errors.CodeDependencyFailed))

	var manifest Manifest
	data, err := os.ReadFile(filepath.Join(a.Paths.OutputDir, ManifestFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, []string{`[MISSING_FILE] File "missing.js" does not exist.`}, manifest.Failures["a.js"])

	require.NoError(t, a.Close(context.Background()))
	builds, _ := hist.LoadBuilds("", time.Time{}, 0)
	require.Len(t, builds, 1)
	assert.Equal(t, []string{"a.js", "main.js"}, builds[0].FailedFiles())
	assert.Equal(t, "MISSING_FILE", builds[0].Errors[0].Code)
}

func TestBuild_MissingRoot(t *testing.T) {
	hist := &fakeHistory{}
	a := newTestApp(t, map[string]string{"main.js": "console.log(1)\n"}, hist, nil)

	_, err := a.Build(context.Background(), "./nope.js")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMissingFile))
	assert.NoDirExists(t, a.Paths.OutputDir)

	_, lastErr := a.LastResult()
	assert.Error(t, lastErr)

	require.NoError(t, a.Close(context.Background()))
	builds, _ := hist.LoadBuilds("", time.Time{}, 0)
	require.Len(t, builds, 1)
	assert.Equal(t, "nope.js", builds[0].Root)
	assert.True(t, builds[0].Failed())
}

func TestBuild_RemovesStaleScripts(t *testing.T) {
	a := newTestApp(t, map[string]string{"main.js": "console.log(1)\n"}, nil, nil)
	dist := a.Paths.OutputDir
	writeSources(t, dist, map[string]string{
		"009-old.js": "stale",
		"notes.txt":  "keep",
	})

	_, err := a.Build(context.Background(), "main.js")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dist, "009-old.js"))
	assert.FileExists(t, filepath.Join(dist, "notes.txt"))
	assert.FileExists(t, filepath.Join(dist, "001-main.js"))
}

func TestBuild_MountScript(t *testing.T) {
	a := newTestApp(t, map[string]string{
		"App.vue": "<template><p>hi</p></template>\n",
	}, nil, func(cfg *config.Config) {
		mount := true
		cfg.Link.Mount = &mount
	})

	res, err := a.Build(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "App.vue", res.Root)
	require.False(t, res.Failed(), "%v", res.Failures)

	data, err := os.ReadFile(filepath.Join(a.Paths.OutputDir, "002-mount.js"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "_createApp")
}

func TestBuild_HostPage(t *testing.T) {
	a := newTestApp(t, map[string]string{
		"main.js":         "console.log(1)\n",
		"import-map.json": `{"imports": {"vue": "https://unpkg.com/vue@3/dist/vue.esm-browser.js"}}`,
	}, nil, func(cfg *config.Config) {
		cfg.Output.Title = "Demo & Co"
	})

	_, err := a.Build(context.Background(), "main.js")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(a.Paths.OutputDir, HTMLFile))
	require.NoError(t, err)
	page := string(data)
	assert.Contains(t, page, "<title>Demo &amp; Co</title>")
	assert.Contains(t, page, `<script type="importmap">`)
	assert.Contains(t, page, "vue.esm-browser.js")
	assert.Contains(t, page, `<style id="__sfc-styles"></style>`)
	assert.Contains(t, page, `<div id="app"></div>`)
	first := strings.Index(page, "000-preamble.js")
	second := strings.Index(page, "001-main.js")
	assert.True(t, first >= 0 && second > first, "scripts load in order")
}

func TestBuild_HTMLDisabled(t *testing.T) {
	a := newTestApp(t, map[string]string{"main.js": "console.log(1)\n"}, nil, func(cfg *config.Config) {
		html := false
		cfg.Output.HTML = &html
	})

	res, err := a.Build(context.Background(), "main.js")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(a.Paths.OutputDir, HTMLFile))
	assert.Len(t, res.Written, 3)
}

func TestLoadSources_DefaultProject(t *testing.T) {
	a := newTestApp(t, nil, nil, nil)
	store := a.sources()
	assert.True(t, store.Has("App.vue"))
	assert.True(t, store.Has("main.js"))
}

func TestLoadSources_SkipsOutputInsideSource(t *testing.T) {
	root := t.TempDir()
	writeSources(t, root, map[string]string{
		"main.js":         "console.log(1)\n",
		"dist/001-old.js": "stale",
	})
	cfg := config.DefaultConfig()
	a, err := New(cfg, config.ResolvedPaths{
		ProjectRoot: root,
		SourceDir:   root,
		OutputDir:   filepath.Join(root, "dist"),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, a.LoadSources())

	assert.Equal(t, []string{"main.js"}, a.sources().Filenames())
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil, config.ResolvedPaths{}, nil)
	assert.Error(t, err)
}

func TestHealthService_Check(t *testing.T) {
	a := newTestApp(t, map[string]string{
		"main.js": "import './gone.js'\n",
	}, nil, func(cfg *config.Config) {
		enabled := false
		cfg.DB.Enabled = &enabled
	})
	health := NewHealthService(a)

	status := health.Check(context.Background())
	assert.Equal(t, "up", status.Status)
	assert.Equal(t, "pending", status.Components["last_build"])
	assert.Equal(t, "ok (1 files)", status.Components["store"])
	assert.Equal(t, "disabled", status.Components["history"])
	assert.NotEmpty(t, status.Components["heap_mb"])
	assert.NotEmpty(t, status.Components["goroutines"])

	_, err := a.Build(context.Background(), "main.js")
	require.NoError(t, err)
	status = health.Check(context.Background())
	assert.Equal(t, "degraded", status.Status)
	assert.Contains(t, status.Components["last_build"], "failed")
}
