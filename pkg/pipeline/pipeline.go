// Package pipeline turns a trial table into exported behavioral figures.
//
// The pipeline has two stages:
//
//  1. Analyze: filter the trials, build a [plot.Plotter] for the
//     process-wide mode and let pkg/analysis draw the requested figure.
//  2. Export: render the chart once per format.
//
// Exported figures are cached by trial-table hash and render settings, so
// the CLI and the HTTP server share one code path and one cache.
//
// # Usage
//
//	plot.SetMode(plot.ModeInteractive)
//	runner := pipeline.NewRunner(c, nil, logger)
//	result, err := runner.Execute(ctx, trials, pipeline.Options{
//	    Kind:    pipeline.KindPsych,
//	    Animal:  "M1",
//	    Formats: []string{"html"},
//	})
//	page := result.Artifacts["html"]
//
// Declarative charts described in TOML skip the analysis stage; see
// [ReadChartSpec] and [Runner.RenderChart].
package pipeline

import (
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/afcplot/pkg/analysis"
	"github.com/matzehuels/afcplot/pkg/cache"
	"github.com/matzehuels/afcplot/pkg/errors"
	"github.com/matzehuels/afcplot/pkg/plot"
)

// Figure kinds.
const (
	KindPsych       = "psych"
	KindChronometry = "chronometry"
	KindPerformance = "performance"
	KindTrialRate   = "trialrate"

	KindVevaiometric = "vevaiometric"
	KindCatchWT      = "catchwt"
	KindAccuracyWT   = "accuracywt"
	KindShortLongWT  = "shortlongwt"
	KindSamplingDiff = "samplingdiff"
)

// Kinds lists every figure kind in display order.
var Kinds = []string{
	KindPsych, KindChronometry, KindPerformance, KindTrialRate,
	KindVevaiometric, KindCatchWT, KindAccuracyWT, KindShortLongWT, KindSamplingDiff,
}

var titles = map[string]string{
	KindPsych:       "Psych",
	KindChronometry: "Chronometry",
	KindPerformance: "PerformanceOverTime",
	KindTrialRate:   "TrialRate",

	KindVevaiometric: "Vevaiometric",
	KindCatchWT:      "CatchWTDistrib",
	KindAccuracyWT:   "AccuracyWT",
	KindShortLongWT:  "ShortLongWT",
	KindSamplingDiff: "SamplingVsDifficulty",
}

// modeFormats are the export formats of each backend, first one default.
var modeFormats = map[plot.Mode][]string{
	plot.ModeStatic:      {"png", "svg"},
	plot.ModeInteractive: {"html", "json"},
}

// FormatsFor returns the formats the backend of mode can export.
func FormatsFor(m plot.Mode) []string {
	return slices.Clone(modeFormats[m])
}

// ValidateKind checks that kind names a figure.
func ValidateKind(kind string) error {
	if _, ok := titles[kind]; !ok {
		return errors.New(errors.ErrCodeInvalidInput, "invalid kind: %q (must be one of: %s)", kind, strings.Join(Kinds, ", "))
	}
	return nil
}

// Options configures one figure.
type Options struct {
	Kind    string   `json:"kind"`
	Animal  string   `json:"animal,omitempty"`
	Formats []string `json:"formats,omitempty"`
	Width   int      `json:"width,omitempty"`
	Height  int      `json:"height,omitempty"`
	// Policy is the axis-limit policy, "strict" or "relaxed".
	Policy string `json:"policy,omitempty"`

	// Performance figure options.
	Curves        []string `json:"curves,omitempty"`
	SingleSession bool     `json:"single_session,omitempty"`
	HeadFixation  string   `json:"head_fixation,omitempty"`

	// WTFilter names the waiting-time outlier filter of the waiting-time
	// figures, "none" or "iqr".
	WTFilter string `json:"wt_filter,omitempty"`

	// Refresh bypasses the cache lookup.
	Refresh bool `json:"refresh,omitempty"`

	Logger *log.Logger `json:"-"`

	validated bool
}

// Result is one analyzed and exported figure.
type Result struct {
	// Title names the figure; pkg/io derives file names from it.
	Title string
	// DataHash identifies the trial table the figure was drawn from.
	DataHash  string
	Artifacts map[string][]byte
	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains timing and size information.
type Stats struct {
	Trials      int
	Sessions    int
	AnalyzeTime time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks whether the artifacts came from the cache.
type CacheInfo struct {
	RenderHit bool
}

// ValidateAndSetDefaults checks the options against mode and fills in
// defaults. It is idempotent.
func (o *Options) ValidateAndSetDefaults(mode plot.Mode) error {
	if o.validated {
		return nil
	}
	if mode == plot.ModeUnset {
		return errors.New(errors.ErrCodeInvalidConfig, "plot mode not set")
	}
	if err := ValidateKind(o.Kind); err != nil {
		return err
	}
	if o.Animal != "" {
		if err := errors.ValidateAnimalName(o.Animal); err != nil {
			return err
		}
	}
	if len(o.Formats) == 0 {
		o.Formats = modeFormats[mode][:1]
	}
	if err := errors.ValidateFormats(o.Formats, modeFormats[mode]); err != nil {
		return err
	}
	if _, err := plot.ParseLimitPolicy(o.Policy); err != nil {
		return err
	}
	if _, err := analysis.ParsePerfPlots(o.Curves); err != nil {
		return err
	}
	if _, err := o.headFixation(); err != nil {
		return err
	}
	if _, err := analysis.ParseWTFilter(o.WTFilter); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// Title returns the figure title used for file names.
func (o *Options) Title() string { return titles[o.Kind] }

func (o *Options) headFixation() (*time.Time, error) {
	if o.HeadFixation == "" {
		return nil, nil
	}
	d, err := analysis.ParseDay(o.HeadFixation)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "head fixation date %q", o.HeadFixation)
	}
	return &d.Time, nil
}

func (o *Options) perfOptions() analysis.PerfOptions {
	plots, _ := analysis.ParsePerfPlots(o.Curves)
	hf, _ := o.headFixation()
	return analysis.PerfOptions{
		SingleSession: o.SingleSession,
		HeadFixation:  hf,
		Plots:         plots,
	}
}

func (o *Options) wtOptions() analysis.WTOptions {
	filter, _ := analysis.ParseWTFilter(o.WTFilter)
	return analysis.WTOptions{Filter: filter}
}

func (o *Options) plotOptions() []plot.Option {
	policy, _ := plot.ParseLimitPolicy(o.Policy)
	return []plot.Option{
		plot.WithLogger(o.Logger),
		plot.WithSize(o.Width, o.Height),
		plot.WithAxisLimitPolicy(policy),
	}
}

// FigureKeyOpts returns the cache key options for one format.
func (o *Options) FigureKeyOpts(mode plot.Mode, format string) cache.FigureKeyOpts {
	extra := append(slices.Clone(o.Curves), o.HeadFixation)
	if o.WTFilter != "" {
		extra = append(extra, "wt:"+o.WTFilter)
	}
	return cache.FigureKeyOpts{
		Kind:    o.Kind,
		Animal:  o.Animal,
		Mode:    mode.String(),
		Format:  format,
		Width:   o.Width,
		Height:  o.Height,
		Policy:  o.Policy,
		Extra:   extra,
		Session: o.SingleSession,
	}
}
