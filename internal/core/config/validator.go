package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"sfclink/internal/data/files"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Validate checks a configuration after defaults have been applied.
func Validate(cfg *Config) error {
	for _, check := range []func(*Config) error{
		validateVersion,
		validateSource,
		validateLink,
		validateOutput,
		validateWatch,
		validateDatabase,
		validateObservability,
	} {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateSource(cfg *Config) error {
	if cfg.Source.Dir == "" {
		return fmt.Errorf("source.dir must not be empty")
	}
	if _, err := files.NewMatcher(cfg.Source.Include, cfg.Source.Exclude); err != nil {
		return fmt.Errorf("source patterns: %w", err)
	}
	return nil
}

func validateLink(cfg *Config) error {
	root := cfg.Link.Root
	if !files.IsSupported(root) || root == files.ImportMapFile {
		return fmt.Errorf("link.root must name a .vue or .js file, got %q", root)
	}
	if strings.Contains(root, "..") {
		return fmt.Errorf("link.root must not leave the source directory, got %q", root)
	}
	if cfg.Link.Workers < 1 || cfg.Link.Workers > 256 {
		return fmt.Errorf("link.workers must be between 1 and 256")
	}
	if !identifierPattern.MatchString(cfg.Link.Global) {
		return fmt.Errorf("link.global must be a JavaScript identifier, got %q", cfg.Link.Global)
	}
	return nil
}

func validateOutput(cfg *Config) error {
	if cfg.Output.Dir == "" {
		return fmt.Errorf("output.dir must not be empty")
	}
	if strings.ContainsAny(cfg.Output.Title, "<>") {
		return fmt.Errorf("output.title must not contain markup")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 || cfg.Watch.Debounce > 10*time.Second {
		return fmt.Errorf("watch.debounce must be between 0s and 10s")
	}
	if cfg.Watch.RebuildRate < 0 {
		return fmt.Errorf("watch.rebuild_rate must not be negative")
	}
	if cfg.Watch.Burst < 1 {
		return fmt.Errorf("watch.burst must be >= 1")
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if cfg.DB.IsEnabled() && strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty when db.enabled=true")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if addr := cfg.Observability.MetricsAddr; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("observability.metrics_addr %q: %w", addr, err)
		}
	}
	return nil
}
