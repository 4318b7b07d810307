package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/afcplot/pkg/errors"
	afcio "github.com/matzehuels/afcplot/pkg/io"
	"github.com/matzehuels/afcplot/pkg/plot"
)

// ChartSpec is a declarative chart read from TOML:
//
//	title = "Demo"
//	xlim = [0, "auto"]
//
//	[[trace]]
//	kind = "line"
//	x = [0, 1, 2]
//	y = [1, 4, 9]
//	options = { color = "r", label = "squares" }
//
//	[[hline]]
//	value = 5
//	options = { linestyle = "--", label = "threshold" }
//
//	[legend]
//	loc = "upper left"
type ChartSpec struct {
	Title  string `toml:"title"`
	XLabel string `toml:"xlabel"`
	YLabel string `toml:"ylabel"`
	XLim   []any  `toml:"xlim"`
	YLim   []any  `toml:"ylim"`

	XTicks      []float64 `toml:"xticks"`
	XTickLabels []string  `toml:"xtick_labels"`
	YTickSuffix string    `toml:"ytick_suffix"`

	Secondary *AxisSpec `toml:"secondary"`

	Traces      []TraceSpec    `toml:"trace"`
	VLines      []RefSpec      `toml:"vline"`
	HLines      []RefSpec      `toml:"hline"`
	LegendItems []plot.Options `toml:"legend_item"`
	Legend      plot.Options   `toml:"legend"`
}

// AxisSpec configures the secondary y-axis.
type AxisSpec struct {
	YLabel      string `toml:"ylabel"`
	YLim        []any  `toml:"ylim"`
	YTickSuffix string `toml:"ytick_suffix"`
	YTickColor  any    `toml:"ytick_color"`
}

// TraceSpec is one data trace. Kind is line, scatter, bar, step or fill;
// fill draws between Y and Y2 and reads color, alpha and zorder from
// Options.
type TraceSpec struct {
	Kind    string       `toml:"kind"`
	Axis    string       `toml:"axis"`
	X       []float64    `toml:"x"`
	Y       []float64    `toml:"y"`
	Y2      []float64    `toml:"y2"`
	Options plot.Options `toml:"options"`
}

// RefSpec is a vertical or horizontal reference line.
type RefSpec struct {
	Value   float64      `toml:"value"`
	Axis    string       `toml:"axis"`
	Options plot.Options `toml:"options"`
}

// ReadChartSpec decodes a chart spec and rejects unknown keys.
func ReadChartSpec(r io.Reader) (*ChartSpec, error) {
	var spec ChartSpec
	md, err := toml.NewDecoder(r).Decode(&spec)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode chart spec")
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown chart spec keys: %s", strings.Join(keys, ", "))
	}
	return &spec, nil
}

// LoadChartSpec reads a chart spec file.
func LoadChartSpec(path string) (*ChartSpec, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "chart spec %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "open %s", path)
	}
	defer f.Close()
	return ReadChartSpec(f)
}

// ParseBound converts a TOML limit value: "auto" or a number.
func ParseBound(v any) (plot.Bound, error) {
	if s, ok := v.(string); ok && strings.EqualFold(s, "auto") {
		return plot.Auto, nil
	}
	if f, ok := plot.ToFloat(v); ok {
		return plot.At(f), nil
	}
	return plot.Auto, errors.New(errors.ErrCodeInvalidConfig, "invalid axis limit %v (want a number or \"auto\")", v)
}

func parseLimits(lim []any) (lo, hi plot.Bound, err error) {
	if len(lim) != 2 {
		return plot.Auto, plot.Auto, errors.New(errors.ErrCodeInvalidConfig, "axis limits need two values, got %d", len(lim))
	}
	if lo, err = ParseBound(lim[0]); err != nil {
		return
	}
	hi, err = ParseBound(lim[1])
	return
}

// Build draws the chart onto p, including the legend when one is configured.
func (s *ChartSpec) Build(p *plot.Plotter) error {
	axes := map[string]*plot.Plotter{"": p, string(plot.AxisPrimary): p}
	if s.Secondary != nil || s.usesSecondary() {
		y2, err := p.AddYAxis()
		if err != nil {
			return err
		}
		axes[string(plot.AxisSecondary)] = y2
		if a := s.Secondary; a != nil {
			if a.YLabel != "" {
				y2.SetYLabel(a.YLabel)
			}
			if a.YTickSuffix != "" {
				y2.SetYTickSuffix(a.YTickSuffix)
			}
			if a.YTickColor != nil {
				if err := y2.SetYTickLabelColor(a.YTickColor); err != nil {
					return err
				}
			}
			if a.YLim != nil {
				lo, hi, err := parseLimits(a.YLim)
				if err != nil {
					return err
				}
				if err := y2.SetYLim(lo, hi); err != nil {
					return err
				}
			}
		}
	}
	on := func(axis string) (*plot.Plotter, error) {
		if a, ok := axes[axis]; ok {
			return a, nil
		}
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown axis %q (want y1 or y2)", axis)
	}

	for i, t := range s.Traces {
		a, err := on(t.Axis)
		if err != nil {
			return err
		}
		if err := addTrace(a, t); err != nil {
			return fmt.Errorf("trace %d: %w", i, err)
		}
	}
	for _, l := range s.VLines {
		a, err := on(l.Axis)
		if err != nil {
			return err
		}
		if err := a.CreateVLine(l.Value, l.Options); err != nil {
			return err
		}
	}
	for _, l := range s.HLines {
		a, err := on(l.Axis)
		if err != nil {
			return err
		}
		if err := a.CreateHLine(l.Value, l.Options); err != nil {
			return err
		}
	}
	for _, item := range s.LegendItems {
		if err := p.AddLegendItem(item); err != nil {
			return err
		}
	}

	if s.Title != "" {
		p.SetGraphTitle(s.Title)
	}
	if s.XLabel != "" {
		p.SetXLabel(s.XLabel)
	}
	if s.YLabel != "" {
		p.SetYLabel(s.YLabel)
	}
	if s.XTicks != nil {
		p.SetXTickValues(s.XTicks)
	}
	if s.XTickLabels != nil {
		p.SetXTickLabels(s.XTickLabels)
	}
	if s.YTickSuffix != "" {
		p.SetYTickSuffix(s.YTickSuffix)
	}
	if s.XLim != nil {
		lo, hi, err := parseLimits(s.XLim)
		if err != nil {
			return err
		}
		if err := p.SetXLim(lo, hi); err != nil {
			return err
		}
	}
	if s.YLim != nil {
		lo, hi, err := parseLimits(s.YLim)
		if err != nil {
			return err
		}
		if err := p.SetYLim(lo, hi); err != nil {
			return err
		}
	}

	if err := p.Draw(); err != nil {
		return err
	}
	if s.Legend != nil {
		return p.Legend(s.Legend)
	}
	return nil
}

func (s *ChartSpec) usesSecondary() bool {
	y2 := string(plot.AxisSecondary)
	for _, t := range s.Traces {
		if t.Axis == y2 {
			return true
		}
	}
	for _, l := range slices.Concat(s.VLines, s.HLines) {
		if l.Axis == y2 {
			return true
		}
	}
	return false
}

func addTrace(p *plot.Plotter, t TraceSpec) error {
	switch t.Kind {
	case "line", "":
		return p.AddLine(t.X, t.Y, t.Options)
	case "scatter":
		return p.AddScatter(t.X, t.Y, t.Options)
	case "bar":
		return p.AddBar(t.X, t.Y, t.Options)
	case "step":
		return p.AddStep(t.X, t.Y, t.Options)
	case "fill":
		alpha, ok := t.Options.Float(plot.KeyAlpha)
		if !ok {
			alpha = 1
		}
		z, ok := t.Options.Float(plot.KeyZOrder)
		if !ok {
			z = plot.DefaultZOrder
		}
		color, ok := t.Options[plot.KeyColor]
		if !ok {
			color = "gray"
		}
		return p.FillBetween(t.X, t.Y, t.Y2, color, alpha, z)
	}
	return errors.New(errors.ErrCodeInvalidConfig, "unknown trace kind %q", t.Kind)
}

// RenderChart builds spec in the process-wide mode and exports it once per
// format. Charts are cheap to draw and are not cached.
func (r *Runner) RenderChart(ctx context.Context, spec *ChartSpec, opts Options) (*Result, error) {
	mode := plot.CurrentMode()
	if mode == plot.ModeUnset {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "plot mode not set")
	}
	r.applyLogger(&opts)
	if len(opts.Formats) == 0 {
		opts.Formats = modeFormats[mode][:1]
	}
	if err := errors.ValidateFormats(opts.Formats, modeFormats[mode]); err != nil {
		return nil, err
	}
	if _, err := plot.ParseLimitPolicy(opts.Policy); err != nil {
		return nil, err
	}

	start := time.Now()
	p, err := plot.New(opts.plotOptions()...)
	if err != nil {
		return nil, err
	}
	if err := spec.Build(p); err != nil {
		return nil, err
	}
	title := spec.Title
	if title == "" {
		title = "chart"
	}
	result := &Result{Title: title, Artifacts: make(map[string][]byte)}
	result.Stats.AnalyzeTime = time.Since(start)

	start = time.Now()
	for _, format := range opts.Formats {
		out, err := afcio.Render(ctx, p.Backend(), format)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		result.Artifacts[format] = out
	}
	result.Stats.RenderTime = time.Since(start)
	r.Logger.Info("rendered chart", "title", title, "formats", opts.Formats, "duration", result.Stats.RenderTime)
	return result, nil
}
