package config

import "time"

const DefaultPath = "./sfclink.toml"

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	Source        Source        `toml:"source"`
	Link          Link          `toml:"link"`
	Output        Output        `toml:"output"`
	Watch         Watch         `toml:"watch"`
	DB            Database      `toml:"db"`
	Observability Observability `toml:"observability"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	StateDir    string `toml:"state_dir"`
}

// Source selects the files loaded into the file store.
type Source struct {
	Dir     string   `toml:"dir"`
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

type Link struct {
	Root    string `toml:"root"`
	Workers int    `toml:"workers"`
	Mount   *bool  `toml:"mount"`
	Global  string `toml:"global"`
}

type Output struct {
	Dir   string `toml:"dir"`
	HTML  *bool  `toml:"html"`
	Title string `toml:"title"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// RebuildRate is the minimum interval between two rebuilds.
	RebuildRate time.Duration `toml:"rebuild_rate"`
	Burst       int           `toml:"burst"`
}

type Database struct {
	Enabled     *bool         `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
	// Retention is how long builds are kept; negative keeps them forever.
	Retention time.Duration `toml:"retention"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

func (l Link) MountEnabled() bool  { return boolValue(l.Mount) }
func (o Output) HTMLEnabled() bool { return boolValue(o.HTML) }
func (d Database) IsEnabled() bool { return boolValue(d.Enabled) }

func boolValue(b *bool) bool { return b != nil && *b }

func boolPtr(b bool) *bool { return &b }

// Clone returns a copy that can be modified without touching c.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Source.Include = append([]string(nil), c.Source.Include...)
	clone.Source.Exclude = append([]string(nil), c.Source.Exclude...)
	clone.Link.Mount = boolPtr(c.Link.MountEnabled())
	clone.Output.HTML = boolPtr(c.Output.HTMLEnabled())
	clone.DB.Enabled = boolPtr(c.DB.IsEnabled())
	return &clone
}

// DefaultConfig is the configuration used when no config file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
