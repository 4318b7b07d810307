package interactive

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/afcplot/pkg/observability"
	"github.com/matzehuels/afcplot/pkg/plot"
	"github.com/matzehuels/afcplot/pkg/plot/colors"
)

// translation accumulates the Plotly attributes of one trace or shape.
type translation struct {
	kind    plot.Kind
	out     Object
	lines   bool
	markers bool
	logger  *log.Logger
}

// converter maps one style option onto Plotly attributes.
type converter func(t *translation, v any) error

var lineStyles = map[string]string{
	"-":       "solid",
	"--":      "dash",
	"-.":      "dashdot",
	":":       "dot",
	"solid":   "solid",
	"dashed":  "dash",
	"dashdot": "dashdot",
	"dotted":  "dot",
}

var markerSymbols = map[string]string{
	"o": "circle",
	"+": "cross-thin",
}

// converters is the keyword translation table for traces and shapes.
var converters = map[string]converter{
	plot.KeyAlign:           ignore, // handled when the bar is deferred
	plot.KeyAlpha:           setNumber("opacity"),
	plot.KeyColor:           convertColor,
	plot.KeyC:               convertColor,
	plot.KeyEdgeColor:       setColor("marker.line.color"),
	plot.KeyEdgeColors:      convertEdgeColors,
	plot.KeyLineWidth:       convertLineWidth,
	plot.KeyLineStyle:       convertLineStyle,
	plot.KeyMarker:          convertMarker,
	plot.KeyMarkerSize:      setNumber("marker.size"),
	plot.KeyMarkerFaceColor: setColor("marker.color"),
	plot.KeyMarkerEdgeColor: convertEdgeColors,
	plot.KeyS:               setNumber("marker.size"),
	plot.KeyWhere:           convertWhere,
	plot.KeyWidth:           setNumber("width"),
}

// legendOptions have no Plotly equivalent; Legend uses a fixed layout.
var legendOptions = map[string]bool{
	plot.KeyLoc:          true,
	plot.KeyNCol:         true,
	plot.KeyFancyBox:     true,
	plot.KeyBBoxToAnchor: true,
	plot.KeyProp:         true,
	plot.KeyHandles:      true,
	plot.KeyLabels:       true,
}

func init() {
	for key, fn := range converters {
		if fn == nil {
			panic(fmt.Sprintf("interactive: nil converter for %q", key))
		}
		if legendOptions[key] {
			panic(fmt.Sprintf("interactive: %q is both a trace and a legend option", key))
		}
	}
}

// translate converts a style bag. Options without a converter and values a
// converter rejects are dropped with a warning.
func translate(kind plot.Kind, opts plot.Options, logger *log.Logger) *translation {
	t := &translation{kind: kind, out: Object{}, logger: logger}
	for _, key := range slices.Sorted(maps.Keys(opts)) {
		v := opts[key]
		fn, ok := converters[key]
		if !ok {
			dropOption(logger, kind, key, "no interactive equivalent")
			continue
		}
		if err := fn(t, v); err != nil {
			dropOption(logger, kind, key, err.Error())
			continue
		}
		switch key {
		case plot.KeyMarker:
			t.markers = t.markers || !plot.IsNoneStyle(v)
		case plot.KeyLineStyle, plot.KeyLineWidth:
			t.lines = t.lines || !plot.IsNoneStyle(v)
		}
	}
	return t
}

func dropOption(logger *log.Logger, kind plot.Kind, key, reason string) {
	logger.Warn("style option dropped", "key", key, "kind", kind, "reason", reason)
	observability.Render().OnOptionDropped(plot.ModeInteractive.String(), key)
}

// mode assembles the scatter mode of a line trace from the marker and line
// options seen. Without either, the trace is a plain line.
func (t *translation) mode() string {
	if !t.lines && !t.markers {
		return "lines"
	}
	var parts []string
	if t.lines {
		parts = append(parts, "lines")
	}
	if t.markers {
		parts = append(parts, "markers")
	}
	return strings.Join(parts, "+")
}

func ignore(*translation, any) error { return nil }

func setNumber(path string) converter {
	return func(t *translation, v any) error {
		f, ok := plot.ToFloat(v)
		if !ok {
			return fmt.Errorf("%v is not a number", v)
		}
		t.out.Set(path, f)
		return nil
	}
}

func setColor(path string) converter {
	return func(t *translation, v any) error {
		css, err := colors.ToCSS(v)
		if err != nil {
			return err
		}
		t.out.Set(path, css)
		return nil
	}
}

// usesLine reports whether color and width address the line of a kind.
func usesLine(k plot.Kind) bool {
	switch k {
	case plot.KindLine, plot.KindStep, plot.KindRefLine, plot.KindProxy:
		return true
	}
	return false
}

func convertColor(t *translation, v any) error {
	if usesLine(t.kind) {
		return setColor("line.color")(t, v)
	}
	return setColor("marker.color")(t, v)
}

func convertEdgeColors(t *translation, v any) error {
	if err := setColor("marker.line.color")(t, v); err != nil {
		return err
	}
	// Plotly draws no marker border unless its width is set.
	t.out.Set("marker.line.width", 2.0)
	return nil
}

func convertLineWidth(t *translation, v any) error {
	if t.kind == plot.KindBar || t.kind == plot.KindScatter {
		return setNumber("marker.line.width")(t, v)
	}
	return setNumber("line.width")(t, v)
}

func convertLineStyle(t *translation, v any) error {
	if plot.IsNoneStyle(v) {
		return nil
	}
	s, _ := v.(string)
	dash, ok := lineStyles[s]
	if !ok {
		return fmt.Errorf("unknown line style %v", v)
	}
	t.out.Set("line.dash", dash)
	return nil
}

func convertMarker(t *translation, v any) error {
	if plot.IsNoneStyle(v) {
		return nil
	}
	s, _ := v.(string)
	sym, ok := markerSymbols[s]
	if !ok {
		sym = "circle"
	}
	t.out.Set("marker.symbol", sym)
	return nil
}

func convertWhere(t *translation, v any) error {
	if s, _ := v.(string); s == "pre" || s == "post" {
		t.logger.Warn("step placement is fixed in interactive charts; steps are drawn horizontal then vertical", "where", s)
	}
	return nil
}

// dashed reports whether a translated line has a non-solid dash pattern.
func (t *translation) dashed() bool {
	d, ok := t.out.Get("line.dash")
	return ok && d != "solid"
}
