package static

import (
	"maps"
	"math"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/matzehuels/afcplot/pkg/observability"
	"github.com/matzehuels/afcplot/pkg/plot"
	"github.com/matzehuels/afcplot/pkg/plot/colors"
)

// Default appearance, in pixels.
const (
	defaultLineWidth  = 1.5
	defaultMarkerSize = 6.0
	defaultBarWidth   = 0.8
	defaultScatterS   = 36.0
)

var dashPatterns = map[string][]float64{
	"-":       nil,
	"solid":   nil,
	"--":      {6, 4},
	"dashed":  {6, 4},
	":":       {1.5, 2.5},
	"dotted":  {1.5, 2.5},
	"-.":      {6, 3, 1.5, 3},
	"dashdot": {6, 3, 1.5, 3},
}

// traceOptions are the style keys the static backend draws.
var traceOptions = map[string]bool{
	plot.KeyColor:           true,
	plot.KeyC:               true,
	plot.KeyEdgeColor:       true,
	plot.KeyEdgeColors:      true,
	plot.KeyLineWidth:       true,
	plot.KeyLineStyle:       true,
	plot.KeyMarker:          true,
	plot.KeyMarkerSize:      true,
	plot.KeyMarkerFaceColor: true,
	plot.KeyMarkerEdgeColor: true,
	plot.KeyAlpha:           true,
	plot.KeyS:               true,
	plot.KeyWhere:           true,
	plot.KeyWidth:           true,
	plot.KeyAlign:           true,
}

// style is a parsed option bag.
type style struct {
	color      colors.Color
	edge       *colors.Color
	face       *colors.Color
	markerEdge *colors.Color
	alpha      float64
	lineWidth  float64
	dash       []float64
	noLine     bool
	marker     string
	markerSize float64
	where      string
	width      float64
	alignEdge  bool
}

// parseStyle reads opts. Invalid values fall back to defaults; when logger is
// set they are reported.
func parseStyle(kind plot.Kind, opts plot.Options, fallback colors.Color, logger *log.Logger) style {
	st := style{
		color:      fallback,
		alpha:      1,
		lineWidth:  defaultLineWidth,
		markerSize: defaultMarkerSize,
		where:      "pre",
		width:      defaultBarWidth,
	}
	if kind == plot.KindScatter {
		st.marker = "o"
		st.markerSize = math.Sqrt(defaultScatterS)
	}
	warn := func(key string, v any) {
		if logger != nil {
			logger.Warn("invalid style value ignored", "key", key, "value", v, "kind", kind)
		}
	}
	color := func(key string) *colors.Color {
		v, ok := opts[key]
		if !ok {
			return nil
		}
		c, err := colors.Parse(v)
		if err != nil {
			warn(key, v)
			return nil
		}
		return &c
	}
	number := func(key string) (float64, bool) {
		v, ok := opts[key]
		if !ok {
			return 0, false
		}
		f, ok := plot.ToFloat(v)
		if !ok || math.IsNaN(f) || f < 0 {
			warn(key, v)
			return 0, false
		}
		return f, true
	}

	if c := color(plot.KeyC); c != nil {
		st.color = *c
	}
	if c := color(plot.KeyColor); c != nil {
		st.color = *c
	}
	st.edge = color(plot.KeyEdgeColor)
	if c := color(plot.KeyEdgeColors); c != nil {
		st.edge = c
	}
	st.face = color(plot.KeyMarkerFaceColor)
	st.markerEdge = color(plot.KeyMarkerEdgeColor)

	if a, ok := number(plot.KeyAlpha); ok {
		st.alpha = math.Min(a, 1)
	}
	if w, ok := number(plot.KeyLineWidth); ok {
		st.lineWidth = w
	}
	if s, ok := number(plot.KeyMarkerSize); ok {
		st.markerSize = s
	}
	if s, ok := number(plot.KeyS); ok {
		st.markerSize = math.Sqrt(s)
	}
	if w, ok := number(plot.KeyWidth); ok {
		st.width = w
	}

	if v, ok := opts[plot.KeyLineStyle]; ok {
		if plot.IsNoneStyle(v) {
			st.noLine = true
		} else if s, _ := v.(string); s != "" {
			if d, known := dashPatterns[s]; known {
				st.dash = d
			} else {
				warn(plot.KeyLineStyle, v)
			}
		}
	}
	if v, ok := opts[plot.KeyMarker]; ok {
		if plot.IsNoneStyle(v) {
			st.marker = ""
		} else if s, isString := v.(string); isString {
			st.marker = s
		}
	}
	if s, ok := opts.String(plot.KeyWhere); ok {
		switch s {
		case "pre", "post", "mid":
			st.where = s
		default:
			warn(plot.KeyWhere, s)
		}
	}
	if s, ok := opts.String(plot.KeyAlign); ok {
		st.alignEdge = s == "edge"
	}
	return st
}

// checkOptions reports keys the static backend does not draw.
func checkOptions(kind plot.Kind, opts plot.Options, logger *log.Logger) {
	for _, key := range slices.Sorted(maps.Keys(opts)) {
		if !traceOptions[key] {
			logger.Warn("style option dropped", "key", key, "kind", kind, "reason", "no static equivalent")
			observability.Render().OnOptionDropped(plot.ModeStatic.String(), key)
		}
	}
}

// toDrawing converts a color, applying an extra opacity factor.
func toDrawing(c colors.Color, alpha float64) drawing.Color {
	r, g, b, _ := c.RGBA8()
	a := c.Alpha * alpha
	return drawing.Color{R: r, G: g, B: b, A: uint8(math.Round(clamp01(a) * 255))}
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}

// stroke returns the line color.
func (s style) stroke() drawing.Color { return toDrawing(s.color, s.alpha) }

// markerFill returns the marker face color.
func (s style) markerFill() drawing.Color {
	if s.face != nil {
		return toDrawing(*s.face, s.alpha)
	}
	return s.stroke()
}

// markerStroke returns the marker edge color.
func (s style) markerStroke() drawing.Color {
	switch {
	case s.markerEdge != nil:
		return toDrawing(*s.markerEdge, s.alpha)
	case s.edge != nil:
		return toDrawing(*s.edge, s.alpha)
	}
	return s.markerFill()
}
