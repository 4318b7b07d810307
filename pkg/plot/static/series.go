package static

import (
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/matzehuels/afcplot/pkg/plot"
)

// traceSeries draws one flushed record. The chart renders series in slice
// order, so flushing in (z-order, sequence) order layers them correctly.
type traceSeries struct {
	trace *plot.Trace
	style style
	// refValue is the position of a reference line.
	refValue    float64
	refVertical bool
}

var _ chart.Series = traceSeries{}

func (s traceSeries) GetName() string { return s.trace.Label }

// GetYAxis maps the primary Plotter onto go-chart's left axis.
func (s traceSeries) GetYAxis() chart.YAxisType {
	if s.trace.Axis == plot.AxisSecondary {
		return chart.YAxisPrimary
	}
	return chart.YAxisSecondary
}

func (s traceSeries) GetStyle() chart.Style { return chart.Style{} }

func (s traceSeries) Validate() error { return nil }

// Render draws the record in data coordinates mapped onto canvasBox.
func (s traceSeries) Render(r chart.Renderer, cb chart.Box, xr, yr chart.Range, _ chart.Style) {
	m := mapper{cb: cb, xr: xr, yr: yr}
	switch s.trace.Kind {
	case plot.KindLine:
		if !s.style.noLine {
			drawPolyline(r, m, s.trace.X, s.trace.Y, s.style)
		}
		drawMarkers(r, m, s.trace.X, s.trace.Y, s.style)
	case plot.KindScatter:
		drawMarkers(r, m, s.trace.X, s.trace.Y, s.style)
	case plot.KindStep:
		x, y := stepPath(s.trace.X, s.trace.Y, s.style.where)
		drawPolyline(r, m, x, y, s.style)
	case plot.KindBar:
		drawBars(r, m, s.trace.X, s.trace.Y, s.style)
	case plot.KindFill:
		drawFill(r, m, s.trace.X, s.trace.Y, s.trace.Y2, s.style)
	case plot.KindRefLine:
		drawRefLine(r, m, s.refValue, s.refVertical, s.style)
	}
}

// mapper converts data coordinates to canvas pixels.
type mapper struct {
	cb     chart.Box
	xr, yr chart.Range
}

func (m mapper) x(v float64) int { return m.cb.Left + m.xr.Translate(v) }
func (m mapper) y(v float64) int { return m.cb.Bottom - m.yr.Translate(v) }

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func applyStroke(r chart.Renderer, c drawing.Color, width float64, dash []float64) {
	r.SetStrokeColor(c)
	r.SetStrokeWidth(width)
	r.SetStrokeDashArray(dash)
}

// drawPolyline strokes the points, breaking the path at non-finite values.
func drawPolyline(r chart.Renderer, m mapper, xs, ys []float64, st style) {
	if st.lineWidth == 0 {
		return
	}
	applyStroke(r, st.stroke(), st.lineWidth, st.dash)
	open := false
	for i := range xs {
		if !finite(xs[i], ys[i]) {
			if open {
				r.Stroke()
				open = false
			}
			continue
		}
		px, py := m.x(xs[i]), m.y(ys[i])
		if !open {
			r.MoveTo(px, py)
			open = true
			continue
		}
		r.LineTo(px, py)
	}
	if open {
		r.Stroke()
	}
	r.SetStrokeDashArray(nil)
}

func drawMarkers(r chart.Renderer, m mapper, xs, ys []float64, st style) {
	if st.marker == "" {
		return
	}
	for i := range xs {
		if finite(xs[i], ys[i]) {
			drawMarker(r, m.x(xs[i]), m.y(ys[i]), st)
		}
	}
}

// drawMarker draws one marker glyph centered on (px, py).
func drawMarker(r chart.Renderer, px, py int, st style) {
	half := st.markerSize / 2
	h := int(math.Round(half))
	r.SetStrokeDashArray(nil)
	switch st.marker {
	case "+", "|", "_":
		applyStroke(r, st.markerStroke(), math.Max(st.lineWidth, 1), nil)
		if st.marker != "_" {
			r.MoveTo(px, py-h)
			r.LineTo(px, py+h)
			r.Stroke()
		}
		if st.marker != "|" {
			r.MoveTo(px-h, py)
			r.LineTo(px+h, py)
			r.Stroke()
		}
	case "s":
		r.SetFillColor(st.markerFill())
		applyStroke(r, st.markerStroke(), 1, nil)
		r.MoveTo(px-h, py-h)
		r.LineTo(px+h, py-h)
		r.LineTo(px+h, py+h)
		r.LineTo(px-h, py+h)
		r.Close()
		r.FillStroke()
	default:
		r.SetFillColor(st.markerFill())
		applyStroke(r, st.markerStroke(), 1, nil)
		r.Circle(half, px, py)
		r.FillStroke()
	}
}

// stepPath expands points into the corners of a step line.
func stepPath(xs, ys []float64, where string) ([]float64, []float64) {
	if len(xs) < 2 {
		return xs, ys
	}
	var px, py []float64
	for i := range xs {
		if i == 0 {
			px, py = append(px, xs[0]), append(py, ys[0])
			continue
		}
		switch where {
		case "post":
			px, py = append(px, xs[i], xs[i]), append(py, ys[i-1], ys[i])
		case "mid":
			mid := (xs[i-1] + xs[i]) / 2
			px, py = append(px, mid, mid, xs[i]), append(py, ys[i-1], ys[i], ys[i])
		default:
			px, py = append(px, xs[i-1], xs[i]), append(py, ys[i], ys[i])
		}
	}
	return px, py
}

// barSpan returns the x interval of the bar at x.
func barSpan(x float64, st style) (float64, float64) {
	if st.alignEdge {
		return x, x + st.width
	}
	return x - st.width/2, x + st.width/2
}

func drawBars(r chart.Renderer, m mapper, xs, ys []float64, st style) {
	fill := st.stroke()
	edge := fill
	edgeWidth := 0.0
	if st.edge != nil {
		edge = toDrawing(*st.edge, st.alpha)
		edgeWidth = st.lineWidth
	}
	for i := range xs {
		if !finite(xs[i], ys[i]) {
			continue
		}
		x0, x1 := barSpan(xs[i], st)
		left, right := m.x(x0), m.x(x1)
		base, top := m.y(0), m.y(ys[i])
		r.SetFillColor(fill)
		applyStroke(r, edge, edgeWidth, nil)
		r.MoveTo(left, base)
		r.LineTo(left, top)
		r.LineTo(right, top)
		r.LineTo(right, base)
		r.Close()
		if edgeWidth > 0 {
			r.FillStroke()
		} else {
			r.Fill()
		}
	}
}

// drawFill fills the polygon between the lower and upper curves.
func drawFill(r chart.Renderer, m mapper, xs, lower, upper []float64, st style) {
	type pt struct{ x, lo, hi float64 }
	var pts []pt
	for i := range xs {
		if finite(xs[i], lower[i], upper[i]) {
			pts = append(pts, pt{xs[i], lower[i], upper[i]})
		}
	}
	if len(pts) < 2 {
		return
	}
	r.SetFillColor(st.stroke())
	r.SetStrokeWidth(0)
	r.MoveTo(m.x(pts[0].x), m.y(pts[0].lo))
	for _, p := range pts[1:] {
		r.LineTo(m.x(p.x), m.y(p.lo))
	}
	for i := len(pts) - 1; i >= 0; i-- {
		r.LineTo(m.x(pts[i].x), m.y(pts[i].hi))
	}
	r.Close()
	r.Fill()
}

// drawRefLine spans the whole plot area.
func drawRefLine(r chart.Renderer, m mapper, v float64, vertical bool, st style) {
	if !finite(v) {
		return
	}
	applyStroke(r, st.stroke(), st.lineWidth, st.dash)
	if vertical {
		px := m.x(v)
		r.MoveTo(px, m.cb.Top)
		r.LineTo(px, m.cb.Bottom)
	} else {
		py := m.y(v)
		r.MoveTo(m.cb.Left, py)
		r.LineTo(m.cb.Right, py)
	}
	r.Stroke()
	r.SetStrokeDashArray(nil)
}
