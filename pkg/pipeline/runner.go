package pipeline

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/afcplot/pkg/analysis"
	"github.com/matzehuels/afcplot/pkg/cache"
	"github.com/matzehuels/afcplot/pkg/errors"
	afcio "github.com/matzehuels/afcplot/pkg/io"
	"github.com/matzehuels/afcplot/pkg/plot"
)

// Runner executes the pipeline with caching.
//
// The Runner holds no per-figure state, so one Runner serves concurrent
// requests as long as each Execute gets its own options.
type Runner struct {
	Cache    cache.Cache
	Keyer    cache.Keyer
	Logger   *log.Logger
	Analyzer *analysis.Analyzer
	// TTL is how long exported figures stay cached.
	TTL time.Duration
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:    c,
		Keyer:    keyer,
		Logger:   logger,
		Analyzer: analysis.New(logger),
		TTL:      cache.TTLFigure,
	}
}

// Execute draws and exports one figure of trials in the process-wide mode.
func (r *Runner) Execute(ctx context.Context, trials []analysis.Trial, opts Options) (*Result, error) {
	mode := plot.CurrentMode()
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(mode); err != nil {
		return nil, err
	}

	if opts.Animal != "" {
		trials = analysis.FilterAnimal(trials, opts.Animal)
		if len(trials) == 0 {
			return nil, errors.New(errors.ErrCodeNotFound, "no trials for animal %q", opts.Animal)
		}
	}
	if len(trials) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "trial table is empty")
	}

	dataHash, err := hashTrials(trials)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Title:     opts.Title(),
		DataHash:  dataHash,
		Artifacts: make(map[string][]byte),
		Stats: Stats{
			Trials:   len(trials),
			Sessions: len(analysis.Sessions(trials)),
		},
	}

	if !opts.Refresh && r.lookup(ctx, result, mode, opts) {
		result.CacheInfo.RenderHit = true
		r.Logger.Debug("figure from cache", "kind", opts.Kind, "formats", opts.Formats)
		return result, nil
	}

	analyzeStart := time.Now()
	p, err := plot.New(opts.plotOptions()...)
	if err != nil {
		return nil, err
	}
	if err := r.Draw(p, trials, opts); err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Kind, err)
	}
	result.Stats.AnalyzeTime = time.Since(analyzeStart)
	r.Logger.Info("analyzed trials",
		"kind", opts.Kind,
		"trials", result.Stats.Trials,
		"sessions", result.Stats.Sessions,
		"duration", result.Stats.AnalyzeTime)

	renderStart := time.Now()
	for _, format := range opts.Formats {
		out, err := afcio.Render(ctx, p.Backend(), format)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		result.Artifacts[format] = out
		key := r.Keyer.FigureKey(result.DataHash, opts.FigureKeyOpts(mode, format))
		if err := r.Cache.Set(ctx, key, out, r.TTL); err != nil {
			r.Logger.Warn("cache write failed", "format", format, "err", err)
		}
	}
	result.Stats.RenderTime = time.Since(renderStart)
	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// hashTrials hashes the gob encoding of trials; unlike JSON it accepts the
// NaN cells of unrecorded timings.
func hashTrials(trials []analysis.Trial) (string, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(trials); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "hash trial table")
	}
	return cache.Hash(buf.Bytes()), nil
}

// lookup fills result from the cache and reports whether every format hit.
func (r *Runner) lookup(ctx context.Context, result *Result, mode plot.Mode, opts Options) bool {
	for _, format := range opts.Formats {
		key := r.Keyer.FigureKey(result.DataHash, opts.FigureKeyOpts(mode, format))
		data, hit, err := r.Cache.Get(ctx, key)
		if err != nil {
			r.Logger.Warn("cache read failed", "format", format, "err", err)
			return false
		}
		if !hit {
			return false
		}
		result.Artifacts[format] = data
	}
	return true
}

// Draw lets the analyzer draw the figure named by opts.Kind onto p and
// finishes it with a legend. opts must have been validated.
func (r *Runner) Draw(p *plot.Plotter, trials []analysis.Trial, opts Options) error {
	a := r.Analyzer
	switch opts.Kind {
	case KindPsych:
		if err := a.PsychAxes(p, opts.Animal); err != nil {
			return err
		}
		if _, _, err := a.Psych(p, trials, analysis.PsychOptions{
			Label:  "All",
			Points: true,
			SEM:    true,
		}); err != nil {
			return err
		}
		if err := p.Draw(); err != nil {
			return err
		}
		return p.Legend(plot.Options{
			plot.KeyLoc:  "upper left",
			plot.KeyProp: map[string]any{"size": "x-small"},
		})
	case KindChronometry:
		return a.Chronometry(p, trials)
	case KindPerformance:
		return a.PerformanceOverTime(p, trials, opts.perfOptions())
	case KindTrialRate:
		return a.TrialRate(p, trials)
	case KindVevaiometric:
		return drawn(p, a.Vevaiometric(p, trials, opts.wtOptions()))
	case KindCatchWT:
		return drawn(p, a.CatchWTDistrib(p, trials, analysis.CatchWTOptions{WTOptions: opts.wtOptions()}))
	case KindAccuracyWT:
		return drawn(p, a.AccuracyWT(p, trials, analysis.AccuracyWTOptions{
			WTOptions: opts.wtOptions(),
			Method:    analysis.AccWTMergeSparse,
		}))
	case KindShortLongWT:
		return drawn(p, a.ShortLongWT(p, trials, analysis.ShortLongOptions{WTOptions: opts.wtOptions()}))
	case KindSamplingDiff:
		return drawn(p, a.SamplingVsDifficulty(p, trials, true))
	}
	return ValidateKind(opts.Kind)
}

// drawn turns a figure the analyzer skipped for lack of trials into a
// not-found error, so no blank chart is exported.
func drawn(p *plot.Plotter, err error) error {
	if err != nil {
		return err
	}
	if !p.Drawn() {
		return errors.New(errors.ErrCodeNotFound, "no trials qualify for this figure")
	}
	return nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
