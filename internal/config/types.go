// Package config loads Query++ settings shared by the CLI and the LSP.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/queryplus/queryplus/pkg/joins"
	"github.com/queryplus/queryplus/pkg/lint"
)

// LintConfig holds lint rule configuration.
type LintConfig struct {
	// Disabled contains rule IDs to disable
	Disabled []string `koanf:"disabled"`

	// Severity maps rule ID to severity override (error, warning, prereq)
	Severity map[string]string `koanf:"severity"`
}

// Config holds all configuration options.
type Config struct {
	Debounce     time.Duration `koanf:"debounce"`
	Workers      int           `koanf:"workers"`
	LogLevel     string        `koanf:"log_level"`
	StorePath    string        `koanf:"store_path"`
	MetadataFile string        `koanf:"metadata_file"`
	Watch        bool          `koanf:"watch"`
	OutputFormat string        `koanf:"output"`
	Lint         LintConfig    `koanf:"lint"`

	// Joins maps a table pair key ("left|right") or a single table name to
	// predicate templates. {left} and {right} expand to the table qualifiers.
	Joins map[string][]string `koanf:"joins"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
	// ConfigFile is the config file that was loaded, if any.
	ConfigFile string `koanf:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Debounce:     DefaultDebounce,
		Workers:      DefaultWorkers,
		LogLevel:     DefaultLogLevel,
		StorePath:    DefaultStorePath,
		OutputFormat: DefaultOutput,
	}
}

// Validate checks the configuration for values the tools cannot use.
func (c *Config) Validate() error {
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative, got %s", c.Debounce)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.OutputFormat {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("invalid output format %q: expected auto, text or json", c.OutputFormat)
	}
	if _, err := c.LintSettings(); err != nil {
		return err
	}
	return nil
}

// LintSettings builds the lint configuration.
func (c *Config) LintSettings() (*lint.Config, error) {
	cfg, err := lint.ConfigFromSettings(c.Lint.Disabled, c.Lint.Severity)
	if err != nil {
		return nil, fmt.Errorf("invalid lint configuration: %w", err)
	}
	return cfg, nil
}

// JoinOverrides turns the configured predicate templates into resolver
// overrides.
func (c *Config) JoinOverrides() map[string]joins.Override {
	if len(c.Joins) == 0 {
		return nil
	}
	out := make(map[string]joins.Override, len(c.Joins))
	for key, templates := range c.Joins {
		out[key] = func(args joins.Args) []joins.Suggestion {
			r := strings.NewReplacer("{left}", args.Left.Ident(), "{right}", args.Right.Ident())
			suggestions := make([]joins.Suggestion, 0, len(templates))
			for _, tmpl := range templates {
				suggestions = append(suggestions, joins.Suggestion{Text: r.Replace(tmpl)})
			}
			return suggestions
		}
	}
	return out
}
