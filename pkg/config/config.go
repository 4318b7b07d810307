// Package config loads afcplot settings from a TOML file.
//
// A missing file is not an error: every setting has a default, and command
// line flags override whatever the file sets.
//
//	backend = "static"
//	formats = ["png", "svg"]
//	output_dir = "figs"
//
//	[cache]
//	ttl = "24h"
//	redis = "redis://localhost:6379/0"
//
//	[names]
//	M1 = "Mouse 1"
package config

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/afcplot/pkg/analysis"
	"github.com/matzehuels/afcplot/pkg/errors"
	"github.com/matzehuels/afcplot/pkg/plot"
)

// FileName is the config file looked up in the working directory.
const FileName = "afcplot.toml"

// Config holds every setting the CLI and the server read.
type Config struct {
	Backend   string   `toml:"backend"`
	Width     int      `toml:"width"`
	Height    int      `toml:"height"`
	Formats   []string `toml:"formats"`
	OutputDir string   `toml:"output_dir"`
	Square    bool     `toml:"square"`
	// AxisPolicy is "strict" or "relaxed"; see plot.LimitPolicy.
	AxisPolicy string `toml:"axis_policy"`
	// ExpType is "rdk" or "light".
	ExpType string            `toml:"exp_type"`
	Names   map[string]string `toml:"names"`

	Cache  CacheConfig  `toml:"cache"`
	Server ServerConfig `toml:"server"`
}

// CacheConfig selects and tunes the figure cache.
type CacheConfig struct {
	Disabled bool `toml:"disabled"`
	// Dir overrides the XDG cache directory.
	Dir string   `toml:"dir"`
	TTL Duration `toml:"ttl"`
	// Redis, when set, replaces the file cache.
	Redis string `toml:"redis"`
}

// ServerConfig configures afcplot serve.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// Duration decodes TOML strings such as "90s" or "24h".
type Duration struct{ time.Duration }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Backend:    plot.ModeStatic.String(),
		OutputDir:  "figs",
		AxisPolicy: "strict",
		ExpType:    "rdk",
		Cache: CacheConfig{
			TTL: Duration{7 * 24 * time.Hour},
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8050",
			ShutdownTimeout: Duration{10 * time.Second},
		},
	}
}

// Load reads path over the defaults. An empty path reads FileName from the
// working directory if it exists.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = FileName
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !explicit {
		return cfg, nil
	}
	if os.IsNotExist(err) {
		return cfg, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s", path)
	}
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidPath, err, "read config %s", path)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s", filepath.Base(path))
	}
	return cfg, nil
}

// Parse decodes data into cfg, keeping the values data does not set, and
// validates the result.
func Parse(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode config")
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown config key %q", undec[0].String())
	}
	return cfg.Validate()
}

// Validate checks every enumerated setting.
func (c *Config) Validate() error {
	mode, err := plot.ParseMode(c.Backend)
	if err != nil {
		return err
	}
	if len(c.Formats) > 0 {
		allowed := []string{"png", "svg"}
		if mode == plot.ModeInteractive {
			allowed = []string{"html", "json"}
		}
		if err := errors.ValidateFormats(c.Formats, allowed); err != nil {
			return err
		}
	}
	if _, err := plot.ParseLimitPolicy(c.AxisPolicy); err != nil {
		return err
	}
	if !slices.Contains([]string{"rdk", "light"}, c.ExpType) {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid exp_type: %q (must be rdk or light)", c.ExpType)
	}
	if c.Width < 0 || c.Height < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "figure size must not be negative")
	}
	if c.Cache.TTL.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cache ttl must not be negative")
	}
	return nil
}

// Mode returns the parsed backend. Validate must have succeeded.
func (c *Config) Mode() plot.Mode {
	m, _ := plot.ParseMode(c.Backend)
	return m
}

// Policy returns the parsed axis-limit policy.
func (c *Config) Policy() plot.LimitPolicy {
	p, _ := plot.ParseLimitPolicy(c.AxisPolicy)
	return p
}

// Experiment returns the experiment type the analyses label axes for.
func (c *Config) Experiment() analysis.ExpType {
	if c.ExpType == "light" {
		return analysis.LightIntensity
	}
	return analysis.RDK
}
