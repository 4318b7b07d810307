// Package interactive renders charts as Plotly figures.
//
// A [Figure] is both the chart canvas handed to the plot layer and the
// JSON document a browser feeds to Plotly.newPlot. Traces are appended in the
// order the plot layer flushes them, which is how z-order is emulated: Plotly
// paints traces strictly in call order.
//
// Reference lines become layout shapes. Shapes live either above or below all
// traces, so a labeled reference line also gets an invisible proxy trace that
// carries its legend entry.
package interactive

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/afcplot/pkg/plot"
)

func init() {
	plot.Register(plot.ModeInteractive, func(cfg plot.BackendConfig) plot.Backend {
		return NewFigure(cfg)
	})
}

// Object is a JSON object of a Plotly figure. Nested attributes are
// addressed with dot paths, e.g. "marker.line.color".
type Object map[string]any

// Set assigns v at path, creating intermediate objects.
func (o Object) Set(path string, v any) {
	parts := strings.Split(path, ".")
	m := o
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(Object)
		if !ok {
			next = Object{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}

// Get returns the value at path.
func (o Object) Get(path string) (any, bool) {
	parts := strings.Split(path, ".")
	m := o
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(Object)
		if !ok {
			return nil, false
		}
		m = next
	}
	v, ok := m[parts[len(parts)-1]]
	return v, ok
}

// Delete removes the value at path, if present.
func (o Object) Delete(path string) {
	parts := strings.Split(path, ".")
	m := o
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(Object)
		if !ok {
			return
		}
		m = next
	}
	delete(m, parts[len(parts)-1])
}

// Values is a numeric array whose NaN and infinite elements encode as null,
// which Plotly treats as a gap.
type Values []float64

// MarshalJSON implements json.Marshaler.
func (v Values) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, 2+len(v)*8)
	b = append(b, '[')
	for i, f := range v {
		if i > 0 {
			b = append(b, ',')
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			b = append(b, "null"...)
			continue
		}
		b = strconv.AppendFloat(b, f, 'g', -1, 64)
	}
	return append(b, ']'), nil
}

// Figure is a Plotly figure and the interactive implementation of
// plot.Backend.
type Figure struct {
	Data   []Object `json:"data"`
	Layout Object   `json:"layout"`

	logger *log.Logger
}

// NewFigure creates an empty figure styled like the static backend: white
// background, mirrored black axis lines, outside ticks.
func NewFigure(cfg plot.BackendConfig) *Figure {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	f := &Figure{Data: []Object{}, Layout: defaultLayout(), logger: logger}
	if cfg.Width > 0 {
		f.Layout["width"] = cfg.Width
	}
	if cfg.Height > 0 {
		f.Layout["height"] = cfg.Height
	}
	return f
}

func defaultLayout() Object {
	axis := func() Object {
		return Object{
			"showline":  true,
			"linewidth": 1,
			"linecolor": "black",
			"mirror":    true,
			"ticks":     "outside",
		}
	}
	y := axis()
	y["side"] = "left"
	return Object{
		"plot_bgcolor": "white",
		"xaxis":        axis(),
		"yaxis":        y,
	}
}

// JSON returns the figure document.
func (f *Figure) JSON() ([]byte, error) {
	return json.Marshal(f)
}

// Shapes returns the layout shapes added so far.
func (f *Figure) Shapes() []Object {
	s, _ := f.Layout["shapes"].([]Object)
	return s
}

func (f *Figure) addShape(s Object) {
	f.Layout["shapes"] = append(f.Shapes(), s)
}

// axisRef is the trace attribute value ("y", "y2") of an axis.
func axisRef(a plot.AxisID) string {
	if a == plot.AxisSecondary {
		return "y2"
	}
	return "y"
}

// axisKey is the layout key ("yaxis", "yaxis2") of an axis.
func axisKey(dim plot.Dim, a plot.AxisID) string {
	if dim == plot.DimX {
		return "xaxis"
	}
	if a == plot.AxisSecondary {
		return "yaxis2"
	}
	return "yaxis"
}

func (f *Figure) axis(key string) Object {
	a, ok := f.Layout[key].(Object)
	if !ok {
		a = Object{}
		f.Layout[key] = a
	}
	return a
}
