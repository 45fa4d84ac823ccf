// Package config provides configuration management for sitegen using
// Viper for flexible loading from files, environment variables, and
// command-line flags.
//
// Configuration is read from .sitegen.yml, overridden by SITEGEN_
// prefixed environment variables, and finally by CLI flags. It covers
// the input/output directories, template classification, the dev
// server, and watcher debouncing.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved configuration for one sitegen invocation.
type Config struct {
	Input     string          `yaml:"input" mapstructure:"input"`
	Output    string          `yaml:"output" mapstructure:"output"`
	Templates TemplatesConfig `yaml:"templates" mapstructure:"templates"`
	Ignore    []string        `yaml:"ignore" mapstructure:"ignore"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Watch     WatchConfig     `yaml:"watch" mapstructure:"watch"`
}

// TemplatesConfig controls template classification and output mapping.
type TemplatesConfig struct {
	// Dir is the name of the shared-templates directory under the
	// input root. Its contents are resolvable as includes but produce
	// no output of their own.
	Dir string `yaml:"dir" mapstructure:"dir"`
	// Extensions lists the source extensions rendered through the
	// template engine. Everything else is copied as an asset.
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`
	// OutputExt replaces the template extension on rendered output.
	OutputExt string `yaml:"output_ext" mapstructure:"output_ext"`
}

// ServerConfig holds dev server settings.
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
	Open bool   `yaml:"open" mapstructure:"open"`
}

// WatchConfig holds watcher settings.
type WatchConfig struct {
	// Debounce is the quiescence window after the last raw filesystem
	// notification before a change event is emitted.
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// Load builds a Config from viper's current state and applies defaults
// for everything left unset.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Input == "" {
		cfg.Input = "."
	}
	if cfg.Output == "" {
		cfg.Output = "out"
	}
	if cfg.Templates.Dir == "" {
		cfg.Templates.Dir = "templates"
	}
	if len(cfg.Templates.Extensions) == 0 {
		cfg.Templates.Extensions = []string{".html", ".htm"}
	}
	if cfg.Templates.OutputExt == "" {
		cfg.Templates.OutputExt = ".html"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if !viper.IsSet("server.open") {
		cfg.Server.Open = true
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 1-65535", c.Server.Port)
	}

	inAbs, err := filepath.Abs(c.Input)
	if err != nil {
		return fmt.Errorf("resolving input dir: %w", err)
	}
	outAbs, err := filepath.Abs(c.Output)
	if err != nil {
		return fmt.Errorf("resolving output dir: %w", err)
	}
	if inAbs == outAbs {
		return fmt.Errorf("input and output directories are the same: %s", inAbs)
	}

	for _, ext := range c.Templates.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("template extension %q must start with a dot", ext)
		}
	}
	if !strings.HasPrefix(c.Templates.OutputExt, ".") {
		return fmt.Errorf("output extension %q must start with a dot", c.Templates.OutputExt)
	}

	if strings.ContainsRune(c.Templates.Dir, filepath.Separator) {
		return fmt.Errorf("templates dir %q must be a plain directory name, not a path", c.Templates.Dir)
	}

	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch debounce must not be negative")
	}

	return nil
}

// SharedDir returns the path of the shared-templates directory.
func (c *Config) SharedDir() string {
	return filepath.Join(c.Input, c.Templates.Dir)
}

// Addr returns the dev server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsTemplateExt reports whether ext (including the dot) is one of the
// configured template extensions. Comparison is case-insensitive.
func (c *Config) IsTemplateExt(ext string) bool {
	for _, e := range c.Templates.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
