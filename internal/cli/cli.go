// Package cli implements the afcplot command-line interface.
package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/afcplot/pkg/buildinfo"
	"github.com/matzehuels/afcplot/pkg/cache"
	"github.com/matzehuels/afcplot/pkg/config"
	"github.com/matzehuels/afcplot/pkg/pipeline"
	"github.com/matzehuels/afcplot/pkg/plot"

	// backends register themselves with pkg/plot
	_ "github.com/matzehuels/afcplot/pkg/plot/interactive"
	_ "github.com/matzehuels/afcplot/pkg/plot/static"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "afcplot"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config config.Config

	configPath string
	backend    string
	out        io.Writer
	// errOut receives progress animations; it is the log writer.
	errOut io.Writer
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
		out:    os.Stdout,
		errOut: w,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// SetOutput redirects status output, which goes to stdout by default.
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "afcplot draws behavioral figures of 2AFC experiments",
		Long: `afcplot turns trial tables of two-alternative-forced-choice experiments into
psychometric, chronometric, learning-curve and trial-rate figures, rendered
either as static images (PNG, SVG) or as interactive Plotly pages.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		PersistentPreRunE: c.loadConfig,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ./"+config.FileName+" if present)")
	root.PersistentFlags().StringVarP(&c.backend, "backend", "b", "", "rendering backend: static or interactive")

	root.AddCommand(c.analyzeCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the config file, applies the global flags and selects
// the process-wide plot mode.
func (c *CLI) loadConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.backend != "" {
		cfg.Backend = strings.ToLower(c.backend)
		// formats from the file may belong to the other backend
		cfg.Formats = nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.Config = cfg
	plot.SetMode(cfg.Mode())
	c.Logger.Debug("configuration loaded", "backend", cfg.Backend, "policy", cfg.AxisPolicy)
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(noCache bool) (*pipeline.Runner, error) {
	store, err := c.newCache(noCache)
	if err != nil {
		return nil, err
	}
	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), buildinfo.Version+":")
	r := pipeline.NewRunner(store, keyer, c.Logger)
	r.Analyzer.ExpType = c.Config.Experiment()
	r.Analyzer.Names = c.Config.Names
	if ttl := c.Config.Cache.TTL.Duration; ttl > 0 {
		r.TTL = ttl
	}
	return r, nil
}

func (c *CLI) newCache(noCache bool) (cache.Cache, error) {
	cc := c.Config.Cache
	if noCache || cc.Disabled {
		return cache.NewNullCache(), nil
	}
	if cc.Redis != "" {
		rc, err := cache.NewRedisCache(cc.Redis)
		if err != nil {
			return nil, err
		}
		return cache.Observed(rc), nil
	}
	dir, err := c.cacheDir()
	if err != nil {
		c.Logger.Warn("no cache directory, caching disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, err
	}
	return cache.Observed(fc), nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the configured cache directory, or the XDG default
// (~/.cache/afcplot/).
func (c *CLI) cacheDir() (string, error) {
	if c.Config.Cache.Dir != "" {
		return c.Config.Cache.Dir, nil
	}
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Options Helpers
// =============================================================================

// parseFormats parses a comma-separated format string; empty falls back to
// the configured formats.
func (c *CLI) parseFormats(s string) []string {
	if s == "" {
		return c.Config.Formats
	}
	return strings.Split(s, ",")
}
