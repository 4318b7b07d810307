// Package static renders charts as PNG or SVG images on go-chart.
//
// A [Canvas] collects the flushed trace records as chart series in flush
// order, which gives true z-order layering. Axis ranges, ticks and the legend
// are resolved when the chart is built for export.
//
// The left y-axis belongs to the primary Plotter and the right one to its
// secondary axis.
package static

import (
	"io"
	"math"
	"strconv"

	"github.com/charmbracelet/log"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/matzehuels/afcplot/pkg/errors"
	"github.com/matzehuels/afcplot/pkg/plot"
	"github.com/matzehuels/afcplot/pkg/plot/colors"
)

func init() {
	plot.Register(plot.ModeStatic, func(cfg plot.BackendConfig) plot.Backend {
		return NewCanvas(cfg)
	})
}

// Default canvas size in pixels.
const (
	DefaultWidth  = 800
	DefaultHeight = 500
)

// refLineColor is the color of reference lines without one.
var refLineColor = colors.MustParse("k")

type limitKey struct {
	dim  plot.Dim
	axis plot.AxisID
}

// refLine is the geometry of a reference line record.
type refLine struct {
	value    float64
	vertical bool
}

// Canvas is the static implementation of plot.Backend.
type Canvas struct {
	logger *log.Logger
	width  int
	height int

	title      string
	labels     map[limitKey]string
	limits     map[limitKey][2]float64
	secondary  bool
	xTicks     []float64
	xTickText  []string
	ySuffix    map[plot.AxisID]string
	yTickColor map[plot.AxisID]drawing.Color

	styles  map[*plot.Trace]style
	refs    map[*plot.Trace]refLine
	cycle   map[plot.AxisID]int
	flushed []*plot.Trace
	series  []chart.Series
	legend  *legendBox
}

// NewCanvas creates an empty canvas.
func NewCanvas(cfg plot.BackendConfig) *Canvas {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	c := &Canvas{
		logger:     logger,
		width:      cfg.Width,
		height:     cfg.Height,
		labels:     map[limitKey]string{},
		limits:     map[limitKey][2]float64{},
		ySuffix:    map[plot.AxisID]string{},
		yTickColor: map[plot.AxisID]drawing.Color{},
		styles:     map[*plot.Trace]style{},
		refs:       map[*plot.Trace]refLine{},
		cycle:      map[plot.AxisID]int{},
	}
	if c.width <= 0 {
		c.width = DefaultWidth
	}
	if c.height <= 0 {
		c.height = DefaultHeight
	}
	return c
}

var _ plot.Backend = (*Canvas)(nil)

func (c *Canvas) Mode() plot.Mode { return plot.ModeStatic }

func (c *Canvas) EnableSecondaryAxis() { c.secondary = true }

// nextColor hands out the default color cycle per axis.
func (c *Canvas) nextColor(axis plot.AxisID) string {
	n := c.cycle[axis]
	c.cycle[axis] = n + 1
	return colors.Cycle[n%len(colors.Cycle)]
}

func (c *Canvas) DeferTrace(s plot.TraceSpec) plot.Deferral {
	checkOptions(s.Kind, s.Opts, c.logger)
	opts := s.Opts.Clone()
	if s.Kind != plot.KindFill && !opts.Has(plot.KeyColor) && !opts.Has(plot.KeyC) {
		opts[plot.KeyColor] = c.nextColor(s.Axis)
	}
	t := &plot.Trace{
		Kind:   s.Kind,
		X:      s.X,
		Y:      s.Y,
		Y2:     s.Y2,
		ZOrder: s.ZOrder,
		Label:  s.Label,
		Group:  s.Group,
		Style:  opts,
	}
	c.styles[t] = parseStyle(s.Kind, opts, colors.MustParse(colors.Cycle[0]), c.logger)
	return plot.Deferral{Traces: []*plot.Trace{t}}
}

// DeferRefLine defers the line itself; a label becomes an extra legend entry.
// Solid vertical lines are shown in the legend by a vertical tick marker.
func (c *Canvas) DeferRefLine(s plot.RefLineSpec) plot.Deferral {
	checkOptions(plot.KindRefLine, s.Opts, c.logger)
	t := &plot.Trace{Kind: plot.KindRefLine, ZOrder: s.ZOrder, Style: s.Opts}
	c.styles[t] = parseStyle(plot.KindRefLine, s.Opts, refLineColor, c.logger)
	c.refs[t] = refLine{value: s.Value, vertical: s.Vertical}

	d := plot.Deferral{Traces: []*plot.Trace{t}}
	if s.Label == "" {
		return d
	}
	entry := plot.LegendEntry{Label: s.Label, Kind: plot.KindRefLine, Style: s.Opts.Clone()}
	if !entry.Style.Has(plot.KeyColor) {
		entry.Style[plot.KeyColor] = "k"
	}
	if s.Vertical && c.styles[t].dash == nil {
		entry.Kind = plot.KindProxy
		entry.Style = plot.Options{
			plot.KeyColor:      entry.Style[plot.KeyColor],
			plot.KeyMarker:     "|",
			plot.KeyLineStyle:  "None",
			plot.KeyMarkerSize: 10.0,
		}
	}
	d.Extra = []plot.LegendEntry{entry}
	return d
}

func (c *Canvas) DeferLegendItem(_ plot.AxisID, label string, opts plot.Options) plot.Deferral {
	checkOptions(plot.KindProxy, opts, c.logger)
	return plot.Deferral{Extra: []plot.LegendEntry{{Label: label, Kind: plot.KindProxy, Style: opts.Clone()}}}
}

// Flush turns each record into a chart series, keeping the order.
func (c *Canvas) Flush(traces []*plot.Trace) error {
	for _, t := range traces {
		st, ok := c.styles[t]
		if !ok {
			return errors.New(errors.ErrCodeInternal, "record %d (%s) was not deferred on this canvas", t.Seq, t.Kind)
		}
		ref := c.refs[t]
		c.series = append(c.series, traceSeries{trace: t, style: st, refValue: ref.value, refVertical: ref.vertical})
		c.flushed = append(c.flushed, t)
	}
	return nil
}

// Series returns the flushed series in drawing order.
func (c *Canvas) Series() []chart.Series { return c.series }

func (c *Canvas) Legend(entries []plot.LegendEntry, opts plot.Options) error {
	box, err := newLegendBox(entries, opts, c.logger)
	if err != nil {
		return err
	}
	c.legend = box
	return nil
}

func (c *Canvas) RenameTrace(axis plot.AxisID, oldLabel, newLabel string) {
	// Series read the label from the record at render time.
	for _, t := range c.flushed {
		if t.Axis == axis && t.Label == oldLabel {
			t.Label = newLabel
			return
		}
	}
}

func (c *Canvas) SetTitle(title string) { c.title = title }

func (c *Canvas) SetLabel(dim plot.Dim, axis plot.AxisID, label string) {
	c.labels[key(dim, axis)] = label
}

func key(dim plot.Dim, axis plot.AxisID) limitKey {
	if dim == plot.DimX {
		axis = plot.AxisPrimary
	}
	return limitKey{dim: dim, axis: axis}
}

// SetLimits fixes a range. Auto ends are resolved against the data flushed
// so far, which is [0, 1] before Draw.
func (c *Canvas) SetLimits(dim plot.Dim, axis plot.AxisID, lo, hi plot.Bound) {
	k := key(dim, axis)
	if lo.IsAuto() && hi.IsAuto() {
		delete(c.limits, k)
		return
	}
	dmin, dmax, ok := c.extent(k)
	l, h := plot.ResolveBounds(lo, hi, dmin, dmax, ok)
	c.limits[k] = [2]float64{l, h}
}

func (c *Canvas) SetXTickValues(values []float64) { c.xTicks = values }

func (c *Canvas) SetXTickLabels(labels []string) { c.xTickText = labels }

func (c *Canvas) SetYTickSuffix(axis plot.AxisID, suffix string) { c.ySuffix[axis] = suffix }

func (c *Canvas) SetYTickLabelColor(axis plot.AxisID, color any) error {
	col, err := colors.Parse(color)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "y tick label color")
	}
	c.yTickColor[axis] = toDrawing(col, 1)
	return nil
}

// extent returns the data range of one axis over the flushed records.
func (c *Canvas) extent(k limitKey) (float64, float64, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	add := func(vs ...float64) {
		for _, v := range vs {
			if finite(v) {
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			}
		}
	}
	for _, t := range c.flushed {
		st := c.styles[t]
		if t.Kind == plot.KindRefLine {
			ref := c.refs[t]
			if ref.vertical == (k.dim == plot.DimX) && (k.dim == plot.DimX || t.Axis == k.axis) {
				add(ref.value)
			}
			continue
		}
		if k.dim == plot.DimX {
			for _, x := range t.X {
				if t.Kind == plot.KindBar {
					add(barSpan(x, st))
				} else {
					add(x)
				}
			}
			continue
		}
		if t.Axis != k.axis {
			continue
		}
		add(t.Y...)
		add(t.Y2...)
		if t.Kind == plot.KindBar && len(t.Y) > 0 {
			add(0)
		}
	}
	return lo, hi, lo <= hi
}

// axisRange returns the fixed range of an axis or an auto range with a 5%
// margin around the data.
func (c *Canvas) axisRange(k limitKey) *chart.ContinuousRange {
	if lim, ok := c.limits[k]; ok {
		lo, hi := lim[0], lim[1]
		if lo == hi {
			lo, hi = lo-0.5, hi+0.5
		}
		if lo > hi {
			return &chart.ContinuousRange{Min: hi, Max: lo, Descending: true}
		}
		return &chart.ContinuousRange{Min: lo, Max: hi}
	}
	lo, hi, ok := c.extent(k)
	if !ok {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}
	if lo == hi {
		pad := math.Max(math.Abs(lo)*0.05, 0.5)
		return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
	}
	m := (hi - lo) * 0.05
	return &chart.ContinuousRange{Min: lo - m, Max: hi + m}
}

// formatTick prints tick values without float noise.
func formatTick(f float64, suffix string) string {
	f = math.Round(f*1e6) / 1e6
	return strconv.FormatFloat(f, 'f', -1, 64) + suffix
}

func valueFormatter(suffix string) chart.ValueFormatter {
	return func(v interface{}) string {
		f, ok := v.(float64)
		if !ok {
			return ""
		}
		if suffix != "" {
			// Suffixed ticks are whole numbers, e.g. "75%".
			return strconv.Itoa(int(f)) + suffix
		}
		return formatTick(f, "")
	}
}

func (c *Canvas) yAxis(axis plot.AxisID) chart.YAxis {
	ya := chart.YAxis{
		Name:           c.labels[key(plot.DimY, axis)],
		Range:          c.axisRange(key(plot.DimY, axis)),
		ValueFormatter: valueFormatter(c.ySuffix[axis]),
	}
	if col, ok := c.yTickColor[axis]; ok {
		ya.Style.FontColor = col
	}
	return ya
}

// Chart builds the go-chart model of the canvas. go-chart draws its primary
// y-axis on the right, so the primary Plotter maps onto YAxisSecondary.
func (c *Canvas) Chart() chart.Chart {
	ch := chart.Chart{
		Title:      c.title,
		Width:      c.width,
		Height:     c.height,
		Background: chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           c.labels[key(plot.DimX, plot.AxisPrimary)],
			Range:          c.axisRange(key(plot.DimX, plot.AxisPrimary)),
			ValueFormatter: valueFormatter(""),
			Ticks:          c.ticks(),
		},
		YAxisSecondary: c.yAxis(plot.AxisPrimary),
		YAxis:          c.yAxis(plot.AxisSecondary),
		Series:         c.series,
	}
	if !c.secondary {
		ch.YAxis.Style.Hidden = true
	}
	if len(ch.Series) == 0 {
		// go-chart refuses to render a chart without series.
		ch.Series = []chart.Series{traceSeries{trace: &plot.Trace{}}}
	}
	if c.legend != nil {
		ch.Elements = []chart.Renderable{c.legend.render}
	}
	return ch
}

func (c *Canvas) ticks() []chart.Tick {
	if len(c.xTicks) == 0 {
		return nil
	}
	ticks := make([]chart.Tick, len(c.xTicks))
	for i, v := range c.xTicks {
		label := formatTick(v, "")
		if i < len(c.xTickText) {
			label = c.xTickText[i]
		}
		ticks[i] = chart.Tick{Value: v, Label: label}
	}
	return ticks
}

func (c *Canvas) Formats() []string { return []string{"png", "svg"} }

func (c *Canvas) Export(w io.Writer, format string) error {
	var provider chart.RendererProvider
	switch format {
	case "png":
		provider = chart.PNG
	case "svg":
		provider = chart.SVG
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "static charts export png or svg, not %q", format)
	}
	ch := c.Chart()
	if err := ch.Render(provider, w); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "render %s", format)
	}
	return nil
}
