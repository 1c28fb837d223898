// Package config loads and validates the site configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuilder/internal/errors"
)

// Config is the top-level site configuration.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Source  SourceConfig  `yaml:"source"`
	Output  OutputConfig  `yaml:"output"`
	Notify  NotifyConfig  `yaml:"notify"`
	Journal JournalConfig `yaml:"journal"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// SiteConfig holds the rendered site's record fields. Each field is bridged
// to its own observable, so changing the title never rebuilds pages that
// only read the base URL.
type SiteConfig struct {
	Title   string `yaml:"title"`
	BaseURL string `yaml:"base_url"`
}

// SourceConfig describes where content comes from and how bursty change
// events are coalesced.
type SourceConfig struct {
	ContentDir string   `yaml:"content_dir"`
	Extensions []string `yaml:"extensions"`
	Debounce   Duration `yaml:"debounce"`
}

// Duration wraps time.Duration so config files can spell values like
// "300ms" or "2s".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err == nil {
		parsed, parseErr := time.ParseDuration(raw)
		if parseErr != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, parseErr)
		}
		*d = Duration(parsed)
		return nil
	}
	var ns int64
	if err := node.Decode(&ns); err != nil {
		return fmt.Errorf("invalid duration at line %d", node.Line)
	}
	*d = Duration(ns)
	return nil
}

// OutputConfig describes where artifacts go.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// NotifyConfig configures rebuild notifications for external listeners.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// JournalConfig configures the build event journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns a configuration with sensible defaults applied.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			Title:   "Documentation",
			BaseURL: "/",
		},
		Source: SourceConfig{
			ContentDir: "./docs",
			Extensions: []string{".md", ".markdown"},
			Debounce:   Duration(300 * time.Millisecond),
		},
		Output: OutputConfig{
			Dir: "./site",
		},
		Notify: NotifyConfig{
			Subject: "sitebuilder.rebuild",
		},
		Journal: JournalConfig{
			Path: "./sitebuilder-journal.db",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Load reads a YAML configuration file, applying defaults for omitted
// fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "read configuration")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "parse configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.Source.ContentDir == "" {
		return errors.ValidationFailed("source.content_dir", "must not be empty")
	}
	if c.Output.Dir == "" {
		return errors.ValidationFailed("output.dir", "must not be empty")
	}
	if c.Source.Debounce < 0 {
		return errors.ValidationFailed("source.debounce", "must not be negative")
	}
	if c.Notify.Enabled && c.Notify.NATSURL == "" {
		return errors.ValidationFailed("notify.nats_url", "required when notify is enabled")
	}
	if c.Site.BaseURL == "" {
		return errors.ValidationFailed("site.base_url", fmt.Sprintf("must not be empty (use %q for root)", "/"))
	}
	return nil
}

// SiteRecord returns the site fields as a flat record for the property
// store bridge.
func (c *Config) SiteRecord() map[string]any {
	return map[string]any{
		"title":   c.Site.Title,
		"baseUrl": c.Site.BaseURL,
	}
}
