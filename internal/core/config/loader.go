package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return finish(&cfg)
}

// LoadOrDefault falls back to DefaultConfig when path does not exist.
// Environment overrides apply either way.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return finish(&Config{})
	}
	return cfg, err
}

func finish(cfg *Config) (*Config, error) {
	ApplyEnvOverrides(cfg)
	applyDefaults(cfg)
	normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Paths.StateDir) == "" {
		cfg.Paths.StateDir = ".sfclink"
	}

	if strings.TrimSpace(cfg.Source.Dir) == "" {
		cfg.Source.Dir = "."
	}

	if strings.TrimSpace(cfg.Link.Root) == "" {
		cfg.Link.Root = "App.vue"
	}
	if cfg.Link.Workers <= 0 {
		cfg.Link.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Link.Mount == nil {
		cfg.Link.Mount = boolPtr(true)
	}
	if strings.TrimSpace(cfg.Link.Global) == "" {
		cfg.Link.Global = "window"
	}

	if strings.TrimSpace(cfg.Output.Dir) == "" {
		cfg.Output.Dir = "dist"
	}
	if cfg.Output.HTML == nil {
		cfg.Output.HTML = boolPtr(true)
	}
	if strings.TrimSpace(cfg.Output.Title) == "" {
		cfg.Output.Title = "sfclink"
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 200 * time.Millisecond
	}
	if cfg.Watch.RebuildRate == 0 {
		cfg.Watch.RebuildRate = 500 * time.Millisecond
	}
	if cfg.Watch.Burst <= 0 {
		cfg.Watch.Burst = 1
	}

	if cfg.DB.Enabled == nil {
		cfg.DB.Enabled = boolPtr(true)
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "history.db"
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 5 * time.Second
	}
	if cfg.DB.Retention == 0 {
		cfg.DB.Retention = 30 * 24 * time.Hour
	}

	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "sfclink"
	}
}

func normalize(cfg *Config) {
	cfg.Paths.ProjectRoot = strings.TrimSpace(cfg.Paths.ProjectRoot)
	cfg.Source.Dir = strings.TrimSpace(cfg.Source.Dir)
	cfg.Source.Include = normalizePatterns(cfg.Source.Include)
	cfg.Source.Exclude = normalizePatterns(cfg.Source.Exclude)
	cfg.Link.Root = strings.TrimPrefix(strings.TrimSpace(cfg.Link.Root), "./")
	cfg.Link.Global = strings.TrimSpace(cfg.Link.Global)
	cfg.Output.Dir = strings.TrimSpace(cfg.Output.Dir)
	cfg.Observability.MetricsAddr = strings.TrimSpace(cfg.Observability.MetricsAddr)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)
}

func normalizePatterns(patterns []string) []string {
	if len(patterns) == 0 {
		return nil
	}
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimPrefix(strings.TrimSpace(p), "./")
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
