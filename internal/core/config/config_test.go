// # internal/core/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sfclink.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
version = 1

[source]
dir = "./src"
include = ["**.vue", "**.js"]
exclude = ["./legacy/**"]

[link]
root = "./Main.vue"
workers = 3
mount = false
global = "globalThis"

[output]
dir = "public/build"
html = false
title = "Playground"

[watch]
debounce = "1s"
rebuild_rate = "2s"
burst = 2

[db]
enabled = false

[observability]
metrics_addr = "127.0.0.1:9090"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "./src", cfg.Source.Dir)
	assert.Equal(t, []string{"**.vue", "**.js"}, cfg.Source.Include)
	assert.Equal(t, []string{"legacy/**"}, cfg.Source.Exclude)
	assert.Equal(t, "Main.vue", cfg.Link.Root)
	assert.Equal(t, 3, cfg.Link.Workers)
	assert.False(t, cfg.Link.MountEnabled())
	assert.Equal(t, "globalThis", cfg.Link.Global)
	assert.Equal(t, "public/build", cfg.Output.Dir)
	assert.False(t, cfg.Output.HTMLEnabled())
	assert.Equal(t, "Playground", cfg.Output.Title)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, 2*time.Second, cfg.Watch.RebuildRate)
	assert.Equal(t, 2, cfg.Watch.Burst)
	assert.False(t, cfg.DB.IsEnabled())
	assert.Equal(t, "127.0.0.1:9090", cfg.Observability.MetricsAddr)
	assert.Equal(t, "sfclink", cfg.Observability.ServiceName)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, ".", cfg.Source.Dir)
	assert.Equal(t, "App.vue", cfg.Link.Root)
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.Link.Workers)
	assert.True(t, cfg.Link.MountEnabled())
	assert.Equal(t, "window", cfg.Link.Global)
	assert.Equal(t, "dist", cfg.Output.Dir)
	assert.True(t, cfg.Output.HTMLEnabled())
	assert.True(t, cfg.DB.IsEnabled())
	assert.Equal(t, "history.db", cfg.DB.Path)
	assert.Equal(t, 30*24*time.Hour, cfg.DB.Retention)
	assert.Equal(t, 200*time.Millisecond, cfg.Watch.Debounce)
	assert.NoError(t, Validate(cfg))
}

func TestLoadOrDefault(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
		require.NoError(t, err)
		assert.Equal(t, "App.vue", cfg.Link.Root)
	})

	t.Run("DecodeError", func(t *testing.T) {
		_, err := LoadOrDefault(writeConfig(t, "[link\nroot ="))
		assert.Error(t, err)
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SFCLINK_ROOT", "Other.vue")
	t.Setenv("SFCLINK_OUTPUT_DIR", "out")
	t.Setenv("SFCLINK_DB_PATH", "/tmp/builds.db")
	t.Setenv("SFCLINK_LINK_MOUNT", "false")
	t.Setenv("SFCLINK_LINK_WORKERS", "not-a-number")
	t.Setenv("SFCLINK_DB_RETENTION", "-1s")

	cfg, err := Load(writeConfig(t, "[link]\nroot = \"App.vue\"\nworkers = 4\n"))
	require.NoError(t, err)

	assert.Equal(t, "Other.vue", cfg.Link.Root)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.Equal(t, "/tmp/builds.db", cfg.DB.Path)
	assert.Equal(t, -time.Second, cfg.DB.Retention)
	assert.False(t, cfg.Link.MountEnabled())
	assert.Equal(t, 4, cfg.Link.Workers, "unparsable overrides are ignored")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"Version", func(c *Config) { c.Version = 2 }, "unsupported config version"},
		{"RootExtension", func(c *Config) { c.Link.Root = "App.tsx" }, "link.root"},
		{"RootImportMap", func(c *Config) { c.Link.Root = "import-map.json" }, "link.root"},
		{"RootEscapes", func(c *Config) { c.Link.Root = "../App.vue" }, "must not leave"},
		{"Workers", func(c *Config) { c.Link.Workers = 1000 }, "link.workers"},
		{"Global", func(c *Config) { c.Link.Global = "window.x" }, "link.global"},
		{"Pattern", func(c *Config) { c.Source.Exclude = []string{"[a"} }, "source patterns"},
		{"OutputDir", func(c *Config) { c.Output.Dir = "" }, "output.dir"},
		{"Debounce", func(c *Config) { c.Watch.Debounce = time.Minute }, "watch.debounce"},
		{"Burst", func(c *Config) { c.Watch.Burst = 0 }, "watch.burst"},
		{"DBPath", func(c *Config) { c.DB.Path = " " }, "db.path"},
		{"MetricsAddr", func(c *Config) { c.Observability.MetricsAddr = "9090" }, "metrics_addr"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source.Exclude = []string{"a/**"}

	clone := cfg.Clone()
	clone.Source.Exclude[0] = "b/**"
	*clone.Link.Mount = false

	assert.Equal(t, "a/**", cfg.Source.Exclude[0])
	assert.True(t, cfg.Link.MountEnabled())
}

func TestResolvePaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "sfclink.toml"), nil, 0o644))
	nested := filepath.Join(root, "src", "components")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	t.Run("DetectedRoot", func(t *testing.T) {
		cfg := DefaultConfig()
		got, err := ResolvePaths(cfg, nested)
		require.NoError(t, err)

		assert.Equal(t, filepath.Clean(root), got.ProjectRoot)
		assert.Equal(t, filepath.Join(root, ".sfclink"), got.StateDir)
		assert.Equal(t, filepath.Join(root, ".sfclink", "history.db"), got.DBPath)
		assert.Equal(t, filepath.Join(root, "dist"), got.OutputDir)

		rel, ok := got.OutputExclude()
		assert.True(t, ok)
		assert.Equal(t, "dist", rel)
	})

	t.Run("AbsoluteOverrides", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Paths.ProjectRoot = root
		cfg.Source.Dir = "src"
		cfg.Output.Dir = filepath.Join(root, "public")
		cfg.DB.Path = filepath.Join(root, "custom", "h.db")

		got, err := ResolvePaths(cfg, "/")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "src"), got.SourceDir)
		assert.Equal(t, filepath.Join(root, "custom", "h.db"), got.DBPath)

		_, ok := got.OutputExclude()
		assert.False(t, ok, "output outside source")
	})

	t.Run("EmptyCwd", func(t *testing.T) {
		_, err := ResolvePaths(DefaultConfig(), " ")
		assert.Error(t, err)
	})
}
