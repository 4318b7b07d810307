package interactive

import (
	"io"
	"maps"
	"math"
	"slices"

	"github.com/matzehuels/afcplot/pkg/errors"
	"github.com/matzehuels/afcplot/pkg/plot"
	"github.com/matzehuels/afcplot/pkg/plot/colors"
)

var _ plot.Backend = (*Figure)(nil)

// transparent is the line color of the invisible lower boundary of a fill.
const transparent = "rgba(0, 0, 0, 0)"

func (f *Figure) Mode() plot.Mode { return plot.ModeInteractive }

func (f *Figure) EnableSecondaryAxis() {
	f.Layout["yaxis2"] = Object{
		"overlaying": "y",
		"side":       "right",
		"ticks":      "outside",
	}
}

func (f *Figure) DeferTrace(s plot.TraceSpec) plot.Deferral {
	if s.Kind == plot.KindFill {
		return f.deferFill(s)
	}
	t := translate(s.Kind, s.Opts, f.logger)
	x := s.X
	switch s.Kind {
	case plot.KindLine:
		t.out["type"] = "scatter"
		t.out["mode"] = t.mode()
		// Markers take the line color unless given their own.
		if c, ok := t.out.Get("line.color"); ok && t.markers {
			if _, set := t.out.Get("marker.color"); !set {
				t.out.Set("marker.color", c)
			}
		}
	case plot.KindScatter:
		t.out["type"] = "scatter"
		t.out["mode"] = "markers"
	case plot.KindBar:
		t.out["type"] = "bar"
		if a, _ := s.Opts.String(plot.KeyAlign); a == "edge" {
			x = shiftHalfBin(x)
		}
	case plot.KindStep:
		t.out["type"] = "scatter"
		t.out["mode"] = "lines"
		t.out.Set("line.shape", "hv")
	}
	return plot.Deferral{Traces: []*plot.Trace{f.record(s, t.out, x, s.Y)}}
}

// record builds the pending record of a data trace.
func (f *Figure) record(s plot.TraceSpec, style Object, x, y []float64) *plot.Trace {
	group := s.Group
	if group == "" {
		group = string(s.Axis)
	}
	return &plot.Trace{
		Kind:   s.Kind,
		X:      x,
		Y:      y,
		ZOrder: s.ZOrder,
		Label:  s.Label,
		Group:  group,
		Style:  plot.Options(style),
	}
}

// shiftHalfBin moves bar centers to the right by half the last bin width,
// rounded to one decimal, so bars start at their x value.
func shiftHalfBin(x []float64) []float64 {
	n := len(x)
	if n < 2 {
		return x
	}
	half := math.Round((x[n-1]-x[n-2])*0.5*10) / 10
	out := make([]float64, n)
	for i, v := range x {
		out[i] = v + half
	}
	return out
}

// deferFill emits an invisible boundary trace along the lower curve followed
// by a trace filling to it from the upper curve.
func (f *Figure) deferFill(s plot.TraceSpec) plot.Deferral {
	alpha, ok := s.Opts.Float(plot.KeyAlpha)
	if !ok {
		alpha = 1
	}
	fill := transparent
	if c, err := colors.Parse(s.Opts[plot.KeyColor]); err == nil {
		fill = c.WithAlpha(alpha).CSS()
	} else {
		dropOption(f.logger, plot.KindFill, plot.KeyColor, err.Error())
	}

	boundary := Object{"type": "scatter", "mode": "lines"}
	boundary.Set("line.color", transparent)
	band := Object{
		"type":      "scatter",
		"mode":      "none",
		"fill":      "tonexty",
		"fillcolor": fill,
	}
	lower := f.record(s, boundary, s.X, s.Y)
	upper := f.record(s, band, s.X, s.Y2)
	lower.Label, upper.Label = "", ""
	return plot.Deferral{Traces: []*plot.Trace{lower, upper}}
}

func (f *Figure) DeferRefLine(s plot.RefLineSpec) plot.Deferral {
	t := translate(plot.KindRefLine, s.Opts, f.logger)

	shape := Object{"type": "line", "layer": "below"}
	if s.ZOrder > 1 {
		shape["layer"] = "above"
	}
	if s.Vertical {
		shape["xref"], shape["x0"], shape["x1"] = "x", s.Value, s.Value
		shape["yref"], shape["y0"], shape["y1"] = "paper", 0, 1
	} else {
		shape["xref"], shape["x0"], shape["x1"] = "paper", 0, 1
		shape["yref"], shape["y0"], shape["y1"] = axisRef(s.Axis), s.Value, s.Value
	}
	if line, ok := t.out["line"]; ok {
		shape["line"] = line
	}
	if op, ok := t.out["opacity"]; ok {
		shape["opacity"] = op
	}
	f.addShape(shape)

	if s.Label == "" {
		return plot.Deferral{}
	}
	return plot.Deferral{Traces: []*plot.Trace{refLineProxy(s, t)}}
}

// refLineProxy builds the legend-only trace of a labeled reference line.
// Vertical lines and dashed horizontal lines show a line-shaped marker;
// solid horizontal lines show a line.
func refLineProxy(s plot.RefLineSpec, t *translation) *plot.Trace {
	style := Object{"type": "scatter"}
	color, hasColor := t.out.Get("line.color")
	switch {
	case s.Vertical || t.dashed():
		symbol := "line-ew-open"
		if s.Vertical {
			symbol = "line-ns-open"
		}
		style["mode"] = "markers"
		style.Set("marker.symbol", symbol)
		if hasColor {
			style.Set("marker.color", color)
		}
		if w, ok := t.out.Get("line.width"); ok {
			style.Set("marker.line.width", w)
		}
	default:
		style["mode"] = "lines"
		if line, ok := t.out["line"]; ok {
			style["line"] = line
		}
	}
	return proxy(s.Label, style)
}

// proxy creates an invisible legend-only trace in the extra group.
func proxy(label string, style Object) *plot.Trace {
	return &plot.Trace{
		Kind:   plot.KindProxy,
		X:      []float64{math.NaN()},
		Y:      []float64{math.NaN()},
		ZOrder: plot.ProxyZOrder,
		Label:  label,
		Group:  plot.GroupExtra,
		Extra:  true,
		Style:  plot.Options(style),
	}
}

func (f *Figure) DeferLegendItem(_ plot.AxisID, label string, opts plot.Options) plot.Deferral {
	t := translate(plot.KindProxy, opts, f.logger)
	t.out["type"] = "scatter"
	t.out["mode"] = t.mode()
	if c, ok := t.out.Get("line.color"); ok && t.markers {
		if _, set := t.out.Get("marker.color"); !set {
			t.out.Set("marker.color", c)
		}
	}
	return plot.Deferral{Traces: []*plot.Trace{proxy(label, t.out)}}
}

// Flush appends one Plotly trace per record, in the given order.
func (f *Figure) Flush(traces []*plot.Trace) error {
	for _, rec := range traces {
		tr := make(Object, len(rec.Style)+5)
		for k, v := range rec.Style {
			tr[k] = v
		}
		tr["x"] = Values(rec.X)
		tr["y"] = Values(rec.Y)
		tr["yaxis"] = axisRef(rec.Axis)
		if rec.Label != "" {
			tr["name"] = rec.Label
			tr["legendgroup"] = rec.Group
		} else {
			tr["showlegend"] = false
		}
		f.Data = append(f.Data, tr)
	}
	return nil
}

// Legend places a grouped horizontal legend centered under the plot. The
// entries are already encoded in the traces.
func (f *Figure) Legend(_ []plot.LegendEntry, opts plot.Options) error {
	for _, key := range slices.Sorted(maps.Keys(opts)) {
		if legendOptions[key] {
			f.logger.Debug("legend option ignored in interactive charts", "key", key)
			continue
		}
		dropOption(f.logger, plot.KindProxy, key, "not a legend option")
	}
	f.Layout["legend"] = Object{
		"traceorder":  "grouped",
		"x":           0.5,
		"y":           -0.3,
		"xanchor":     "center",
		"yanchor":     "top",
		"orientation": "h",
	}
	return nil
}

func (f *Figure) RenameTrace(axis plot.AxisID, oldLabel, newLabel string) {
	ref := axisRef(axis)
	for _, tr := range f.Data {
		if tr["name"] == oldLabel && tr["yaxis"] == ref {
			tr["name"] = newLabel
			return
		}
	}
}

func (f *Figure) SetTitle(title string) {
	f.Layout["title"] = Object{
		"text":    title,
		"xref":    "paper",
		"x":       0.5,
		"xanchor": "center",
	}
}

func (f *Figure) SetLabel(dim plot.Dim, axis plot.AxisID, label string) {
	f.axis(axisKey(dim, axis)).Set("title.text", label)
}

// SetLimits maps a range onto Plotly's range, rangemode and autorange
// attributes. A zero bound next to an auto bound uses rangemode so the
// browser keeps auto-scaling the other end.
func (f *Figure) SetLimits(dim plot.Dim, axis plot.AxisID, lo, hi plot.Bound) {
	a := f.axis(axisKey(dim, axis))
	delete(a, "range")
	delete(a, "rangemode")
	delete(a, "autorange")

	l, lset := lo.Value()
	h, hset := hi.Value()
	switch {
	case lset && hset:
		a["range"] = []any{l, h}
	case !lset && !hset:
		a["autorange"] = true
	case lset && l == 0:
		a["rangemode"] = "nonnegative"
	case hset && h == 0:
		a["rangemode"] = "tozero"
	case lset:
		a["range"] = []any{l, nil}
		a["autorange"] = "max"
	default:
		a["range"] = []any{nil, h}
		a["autorange"] = "min"
	}
}

func (f *Figure) SetXTickValues(values []float64) {
	x := f.axis("xaxis")
	x["tickmode"] = "array"
	x["tickvals"] = Values(values)
}

func (f *Figure) SetXTickLabels(labels []string) {
	f.axis("xaxis")["ticktext"] = labels
}

func (f *Figure) SetYTickSuffix(axis plot.AxisID, suffix string) {
	f.axis(axisKey(plot.DimY, axis))["ticksuffix"] = suffix
}

func (f *Figure) SetYTickLabelColor(axis plot.AxisID, color any) error {
	css, err := colors.ToCSS(color)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "y tick label color")
	}
	f.axis(axisKey(plot.DimY, axis)).Set("tickfont.color", css)
	return nil
}

func (f *Figure) Formats() []string { return []string{"json", "html"} }

func (f *Figure) Export(w io.Writer, format string) error {
	switch format {
	case "json":
		data, err := f.JSON()
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "encode figure")
		}
		_, err = w.Write(data)
		return err
	case "html":
		return f.WriteHTML(w)
	}
	return errors.New(errors.ErrCodeInvalidFormat, "interactive charts export json or html, not %q", format)
}
