package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: SFCLINK_[SECTION]_[KEY] (e.g., SFCLINK_LINK_WORKERS). The most common
// keys also have short forms (SFCLINK_ROOT, SFCLINK_OUTPUT_DIR, SFCLINK_DB_PATH).
func ApplyEnvOverrides(cfg *Config) {
	// Source
	setEnvString(&cfg.Source.Dir, "SFCLINK_SOURCE_DIR")

	// Link
	setEnvString(&cfg.Link.Root, "SFCLINK_ROOT")
	setEnvInt(&cfg.Link.Workers, "SFCLINK_LINK_WORKERS")
	setEnvBoolPtr(&cfg.Link.Mount, "SFCLINK_LINK_MOUNT")
	setEnvString(&cfg.Link.Global, "SFCLINK_LINK_GLOBAL")

	// Output
	setEnvString(&cfg.Output.Dir, "SFCLINK_OUTPUT_DIR")
	setEnvBoolPtr(&cfg.Output.HTML, "SFCLINK_OUTPUT_HTML")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "SFCLINK_WATCH_DEBOUNCE")
	setEnvDuration(&cfg.Watch.RebuildRate, "SFCLINK_WATCH_REBUILD_RATE")

	// Database
	setEnvBoolPtr(&cfg.DB.Enabled, "SFCLINK_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "SFCLINK_DB_PATH")
	setEnvDuration(&cfg.DB.Retention, "SFCLINK_DB_RETENTION")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddr, "SFCLINK_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "SFCLINK_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBoolPtr(target **bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = &b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
