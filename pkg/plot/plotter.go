package plot

import (
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/afcplot/pkg/errors"
	"github.com/matzehuels/afcplot/pkg/observability"
)

// Option configures a Plotter.
type Option func(*settings)

type settings struct {
	logger *log.Logger
	policy LimitPolicy
	width  int
	height int
}

// WithLogger sets the logger used for debug output and translation warnings.
func WithLogger(l *log.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAxisLimitPolicy selects which one-sided axis limits are accepted.
func WithAxisLimitPolicy(p LimitPolicy) Option {
	return func(s *settings) { s.policy = p }
}

// WithSize sets the canvas size in pixels. Zero keeps the backend default.
func WithSize(width, height int) Option {
	return func(s *settings) {
		s.width = width
		s.height = height
	}
}

// chart is the state shared by a primary Plotter and its secondary child.
type chart struct {
	backend Backend
	logger  *log.Logger
	policy  LimitPolicy
	seq     int
	drawn   bool
	entries []LegendEntry
}

// Plotter is the plot context of one y-axis. It is not safe for concurrent
// use.
type Plotter struct {
	chart  *chart
	axis   AxisID
	parent *Plotter
	child  *Plotter
	traces []*Trace
	extra  []LegendEntry
}

// New creates a Plotter for the process-wide mode.
func New(opts ...Option) (*Plotter, error) {
	mode := CurrentMode()
	if mode == ModeUnset {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "plot mode not set; call plot.SetMode first")
	}
	f, ok := lookupFactory(mode)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidBackend, "no backend registered for mode %s", mode)
	}
	s := applyOptions(opts)
	b := f(BackendConfig{Logger: s.logger, Width: s.width, Height: s.height})
	return newPlotter(b, s), nil
}

// NewWithBackend creates a Plotter drawing on b regardless of the
// process-wide mode.
func NewWithBackend(b Backend, opts ...Option) *Plotter {
	return newPlotter(b, applyOptions(opts))
}

func applyOptions(opts []Option) settings {
	s := settings{logger: log.Default()}
	for _, o := range opts {
		o(&s)
	}
	return s
}

func newPlotter(b Backend, s settings) *Plotter {
	return &Plotter{
		chart: &chart{backend: b, logger: s.logger, policy: s.policy},
		axis:  AxisPrimary,
	}
}

// Backend returns the chart canvas, for export or backend-specific tweaks.
func (p *Plotter) Backend() Backend { return p.chart.backend }

// Axis returns the y-axis this Plotter owns.
func (p *Plotter) Axis() AxisID { return p.axis }

// Drawn reports whether the chart has been flushed.
func (p *Plotter) Drawn() bool { return p.chart.drawn }

// Pending returns the records not yet flushed, in insertion order.
func (p *Plotter) Pending() []*Trace {
	if p.chart.drawn {
		return nil
	}
	return p.traces
}

func (p *Plotter) requireUndrawn(op string) error {
	if p.chart.drawn {
		return errors.New(errors.ErrCodeUsageOrder, "%s called after Draw; add all traces before drawing", op)
	}
	return nil
}

func (p *Plotter) requireDrawn(op string) error {
	if !p.chart.drawn {
		return errors.New(errors.ErrCodeUsageOrder, "%s called before Draw", op)
	}
	return nil
}

// appendDeferral stamps records with this axis and the next sequence numbers.
func (p *Plotter) appendDeferral(d Deferral) {
	for _, t := range d.Traces {
		t.Seq = p.chart.seq
		p.chart.seq++
		t.Axis = p.axis
		p.traces = append(p.traces, t)
	}
	for _, e := range d.Extra {
		e.Axis = p.axis
		e.Extra = true
		p.extra = append(p.extra, e)
	}
}

// splitOptions pulls the keys the layer itself interprets out of a copy of opts.
func splitOptions(opts Options, defaultZ float64) (rest Options, z float64, label, group string) {
	rest = opts.Clone()
	z = defaultZ
	if v, ok := rest.take(KeyZOrder); ok {
		if f, ok := ToFloat(v); ok {
			z = f
		}
	}
	if v, ok := rest.take(KeyLabel); ok {
		label, _ = v.(string)
	}
	if v, ok := rest.take(KeyLegendGroup); ok {
		group, _ = v.(string)
	}
	return rest, z, label, group
}

func (p *Plotter) addTrace(op string, kind Kind, x, y, y2 []float64, opts Options) error {
	if err := p.requireUndrawn(op); err != nil {
		return err
	}
	if len(x) != len(y) || (y2 != nil && len(y2) != len(x)) {
		return errors.New(errors.ErrCodeInvalidInput, "%s: x and y lengths differ (%d, %d)", op, len(x), len(y))
	}
	rest, z, label, group := splitOptions(opts, DefaultZOrder)
	p.appendDeferral(p.chart.backend.DeferTrace(TraceSpec{
		Kind:   kind,
		Axis:   p.axis,
		X:      x,
		Y:      y,
		Y2:     y2,
		ZOrder: z,
		Label:  label,
		Group:  group,
		Opts:   rest,
	}))
	return nil
}

// AddLine defers a line plot.
func (p *Plotter) AddLine(x, y []float64, opts Options) error {
	return p.addTrace("AddLine", KindLine, x, y, nil, opts)
}

// AddScatter defers a scatter plot.
func (p *Plotter) AddScatter(x, y []float64, opts Options) error {
	return p.addTrace("AddScatter", KindScatter, x, y, nil, opts)
}

// AddBar defers a bar plot.
func (p *Plotter) AddBar(x, y []float64, opts Options) error {
	return p.addTrace("AddBar", KindBar, x, y, nil, opts)
}

// AddStep defers a step plot.
func (p *Plotter) AddStep(x, y []float64, opts Options) error {
	return p.addTrace("AddStep", KindStep, x, y, nil, opts)
}

// FillBetween defers a filled band between yLower and yUpper.
func (p *Plotter) FillBetween(x, yLower, yUpper []float64, color any, alpha, zorder float64) error {
	return p.addTrace("FillBetween", KindFill, x, yLower, yUpper, Options{
		KeyColor:  color,
		KeyAlpha:  alpha,
		KeyZOrder: zorder,
	})
}

// CreateVLine adds a vertical reference line at x.
func (p *Plotter) CreateVLine(x float64, opts Options) error {
	return p.refLine("CreateVLine", true, x, opts)
}

// CreateHLine adds a horizontal reference line at y.
func (p *Plotter) CreateHLine(y float64, opts Options) error {
	return p.refLine("CreateHLine", false, y, opts)
}

func (p *Plotter) refLine(op string, vertical bool, v float64, opts Options) error {
	if err := p.requireUndrawn(op); err != nil {
		return err
	}
	rest, z, label, _ := splitOptions(opts, DefaultRefLineZOrder)
	p.appendDeferral(p.chart.backend.DeferRefLine(RefLineSpec{
		Vertical: vertical,
		Value:    v,
		Axis:     p.axis,
		ZOrder:   z,
		Label:    label,
		Opts:     rest,
	}))
	return nil
}

// AddLegendItem adds a legend entry that is not attached to data.
func (p *Plotter) AddLegendItem(opts Options) error {
	if err := p.requireUndrawn("AddLegendItem"); err != nil {
		return err
	}
	rest, _, label, _ := splitOptions(opts, DefaultZOrder)
	p.appendDeferral(p.chart.backend.DeferLegendItem(p.axis, label, rest))
	return nil
}

// AddYAxis creates the secondary y-axis and returns its Plotter. Both share
// the x-axis and the canvas.
func (p *Plotter) AddYAxis() (*Plotter, error) {
	if p.parent != nil {
		return nil, errors.New(errors.ErrCodeSecondaryAxis, "cannot add a y-axis to a secondary axis")
	}
	if p.child != nil {
		return nil, errors.New(errors.ErrCodeSecondaryAxis, "secondary y-axis already exists")
	}
	if err := p.requireUndrawn("AddYAxis"); err != nil {
		return nil, err
	}
	p.chart.backend.EnableSecondaryAxis()
	p.child = &Plotter{chart: p.chart, axis: AxisSecondary, parent: p}
	return p.child, nil
}

// Draw flushes every pending record of the chart in (z-order, sequence)
// order and assembles the legend entries. Calling it again does nothing.
func (p *Plotter) Draw() error {
	if p.parent != nil {
		return p.parent.Draw()
	}
	c := p.chart
	if c.drawn {
		return nil
	}
	start := time.Now()

	all := make([]*Trace, 0, len(p.traces))
	all = append(all, p.traces...)
	if p.child != nil {
		all = append(all, p.child.traces...)
	}
	sortTraces(all)

	if err := c.backend.Flush(all); err != nil {
		return err
	}
	c.drawn = true

	c.entries = c.entries[:0]
	c.entries = append(c.entries, autoEntries(all, AxisPrimary)...)
	c.entries = append(c.entries, autoEntries(all, AxisSecondary)...)
	c.entries = append(c.entries, p.extraEntries(all)...)
	if p.child != nil {
		c.entries = append(c.entries, p.child.extraEntries(all)...)
	}

	d := time.Since(start)
	observability.Render().OnDraw(c.backend.Mode().String(), len(all), d)
	c.logger.Debug("chart drawn", "backend", c.backend.Mode(), "traces", len(all), "legend", len(c.entries), "took", d)
	return nil
}

func autoEntries(sorted []*Trace, axis AxisID) []LegendEntry {
	var out []LegendEntry
	for _, t := range sorted {
		if t.Axis == axis && t.Label != "" && !t.Extra {
			out = append(out, entryFor(t))
		}
	}
	return out
}

func (p *Plotter) extraEntries(sorted []*Trace) []LegendEntry {
	var out []LegendEntry
	for _, t := range sorted {
		if t.Axis == p.axis && t.Label != "" && t.Extra {
			out = append(out, entryFor(t))
		}
	}
	return append(out, p.extra...)
}

func entryFor(t *Trace) LegendEntry {
	return LegendEntry{Label: t.Label, Axis: t.Axis, Kind: t.Kind, Extra: t.Extra, Style: t.Style}
}

// LegendEntries returns the assembled legend entries of the chart. It is
// empty before Draw.
func (p *Plotter) LegendEntries() []LegendEntry {
	return p.chart.entries
}

// Legend shows the legend. Only valid after Draw.
func (p *Plotter) Legend(opts Options) error {
	if err := p.requireDrawn("Legend"); err != nil {
		return err
	}
	return p.chart.backend.Legend(p.chart.entries, opts.Clone())
}

// UpdateLegendText replaces the legend label item with text, or appends text
// to it when appendText is set. Before Draw it rewrites the pending record;
// afterwards it rewrites the rendered entry owned by this axis.
func (p *Plotter) UpdateLegendText(item, text string, appendText bool) error {
	label := text
	if appendText {
		label = item + text
	}
	if !p.chart.drawn {
		for _, t := range p.traces {
			if t.Label == item {
				t.Label = label
				return nil
			}
		}
		for i := range p.extra {
			if p.extra[i].Label == item {
				p.extra[i].Label = label
				return nil
			}
		}
		return legendNotFound(item)
	}
	for i := range p.chart.entries {
		e := &p.chart.entries[i]
		if e.Axis == p.axis && e.Label == item {
			e.Label = label
			p.chart.backend.RenameTrace(p.axis, item, label)
			return nil
		}
	}
	return legendNotFound(item)
}

func legendNotFound(item string) error {
	return errors.New(errors.ErrCodeLegendNotFound,
		"legend entry %q does not exist; check for typos and make sure you used the plotter that owns its axis", item)
}

// SetXLim sets the shared x-axis range.
func (p *Plotter) SetXLim(lo, hi Bound) error {
	return p.setLim(DimX, lo, hi)
}

// SetYLim sets the range of this Plotter's y-axis.
func (p *Plotter) SetYLim(lo, hi Bound) error {
	return p.setLim(DimY, lo, hi)
}

func (p *Plotter) setLim(dim Dim, lo, hi Bound) error {
	if err := checkLimits(dim, lo, hi, p.chart.policy); err != nil {
		return err
	}
	for _, b := range []Bound{lo, hi} {
		if v, ok := b.Value(); ok && (math.IsNaN(v) || math.IsInf(v, 0)) {
			return errors.New(errors.ErrCodeInvalidConfig, "%s-limit must be finite, got %v", dim, v)
		}
	}
	if (lo.IsAuto() || hi.IsAuto()) && !p.chart.drawn {
		p.chart.logger.Debug("auto axis limit set before Draw; extent defaults to [0, 1]", "dim", dim, "axis", p.axis)
	}
	p.chart.backend.SetLimits(dim, p.axis, lo, hi)
	return nil
}

// SetXLabel sets the x-axis title.
func (p *Plotter) SetXLabel(label string) {
	p.chart.backend.SetLabel(DimX, p.axis, label)
}

// SetYLabel sets the title of this Plotter's y-axis.
func (p *Plotter) SetYLabel(label string) {
	p.chart.backend.SetLabel(DimY, p.axis, label)
}

// SetGraphTitle sets the chart title.
func (p *Plotter) SetGraphTitle(title string) {
	p.chart.backend.SetTitle(title)
}

// SetXTickValues places the x-axis ticks.
func (p *Plotter) SetXTickValues(values []float64) {
	p.chart.backend.SetXTickValues(values)
}

// SetXTickLabels names the x-axis ticks set with SetXTickValues.
func (p *Plotter) SetXTickLabels(labels []string) {
	p.chart.backend.SetXTickLabels(labels)
}

// SetYTickSuffix appends suffix to every y tick label, e.g. "%".
func (p *Plotter) SetYTickSuffix(suffix string) {
	p.chart.backend.SetYTickSuffix(p.axis, suffix)
}

// SetYTickLabelColor colors this axis' y tick labels.
func (p *Plotter) SetYTickLabelColor(color any) error {
	return p.chart.backend.SetYTickLabelColor(p.axis, color)
}
