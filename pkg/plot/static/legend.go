package static

import (
	"math"

	"github.com/charmbracelet/log"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/matzehuels/afcplot/pkg/errors"
	"github.com/matzehuels/afcplot/pkg/observability"
	"github.com/matzehuels/afcplot/pkg/plot"
	"github.com/matzehuels/afcplot/pkg/plot/colors"
)

const (
	legendFontSize = 9.0
	legendPad      = 6
	legendMargin   = 8
	glyphWidth     = 24
	glyphGap       = 6
	columnGap      = 12
)

var legendLocations = map[string]bool{
	"best": true, "upper right": true, "upper left": true, "lower left": true,
	"lower right": true, "right": true, "center left": true, "center right": true,
	"lower center": true, "upper center": true, "center": true,
}

// legendBox is a legend drawn inside the plot area.
type legendBox struct {
	entries  []plot.LegendEntry
	loc      string
	ncol     int
	fontSize float64
	anchor   []float64 // axes fraction, overrides loc
}

func newLegendBox(entries []plot.LegendEntry, opts plot.Options, logger *log.Logger) (*legendBox, error) {
	b := &legendBox{
		entries:  append([]plot.LegendEntry(nil), entries...),
		loc:      "upper right",
		ncol:     1,
		fontSize: legendFontSize,
	}
	for key, v := range opts {
		switch key {
		case plot.KeyLoc:
			s, _ := v.(string)
			if !legendLocations[s] {
				return nil, errors.New(errors.ErrCodeInvalidInput, "unknown legend location %v", v)
			}
			if s != "best" {
				b.loc = s
			}
		case plot.KeyNCol:
			if n, ok := plot.ToFloat(v); ok && n >= 1 {
				b.ncol = int(n)
			}
		case plot.KeyBBoxToAnchor:
			if a := toFloats(v); len(a) >= 2 {
				b.anchor = a[:2]
			}
		case plot.KeyProp:
			if m, ok := v.(map[string]any); ok {
				if size, ok := fontSize(m["size"]); ok {
					b.fontSize = size
				}
			}
		case plot.KeyLabels:
			if labels := toStrings(v); len(labels) == len(b.entries) {
				for i := range b.entries {
					b.entries[i].Label = labels[i]
				}
			}
		case plot.KeyFancyBox, plot.KeyHandles:
			logger.Debug("legend option ignored", "key", key)
		default:
			logger.Warn("legend option dropped", "key", key)
			observability.Render().OnOptionDropped(plot.ModeStatic.String(), key)
		}
	}
	return b, nil
}

// fontScale maps named font sizes to multiples of the legend font size.
var fontScale = map[string]float64{
	"xx-small": 0.579, "x-small": 0.694, "small": 0.833, "medium": 1,
	"large": 1.2, "x-large": 1.44, "xx-large": 1.728,
}

func fontSize(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		scale, known := fontScale[s]
		return legendFontSize * scale, known
	}
	f, ok := plot.ToFloat(v)
	return f, ok && f > 0
}

func toFloats(v any) []float64 {
	switch a := v.(type) {
	case []float64:
		return a
	case []any:
		out := make([]float64, 0, len(a))
		for _, e := range a {
			f, ok := plot.ToFloat(e)
			if !ok {
				return nil
			}
			out = append(out, f)
		}
		return out
	}
	return nil
}

func toStrings(v any) []string {
	switch a := v.(type) {
	case []string:
		return a
	case []any:
		out := make([]string, 0, len(a))
		for _, e := range a {
			s, ok := e.(string)
			if !ok {
				return nil
			}
			out = append(out, s)
		}
		return out
	}
	return nil
}

// render implements chart.Renderable.
func (b *legendBox) render(r chart.Renderer, cb chart.Box, defaults chart.Style) {
	if len(b.entries) == 0 {
		return
	}
	r.SetFont(defaults.GetFont())
	r.SetFontSize(b.fontSize)
	r.SetFontColor(drawing.ColorBlack)

	ncol := min(b.ncol, len(b.entries))
	rows := (len(b.entries) + ncol - 1) / ncol
	textH := r.MeasureText("Ag").Height()
	lineH := int(math.Ceil(float64(textH) * 1.6))

	colWidths := make([]int, ncol)
	for i, e := range b.entries {
		col := i / rows
		colWidths[col] = max(colWidths[col], r.MeasureText(e.Label).Width())
	}
	width := 2*legendPad + columnGap*(ncol-1)
	for _, w := range colWidths {
		width += glyphWidth + glyphGap + w
	}
	height := 2*legendPad + rows*lineH

	left, top := b.position(cb, width, height)

	r.SetFillColor(drawing.Color{R: 255, G: 255, B: 255, A: 220})
	applyStroke(r, drawing.Color{R: 204, G: 204, B: 204, A: 255}, 1, nil)
	r.MoveTo(left, top)
	r.LineTo(left+width, top)
	r.LineTo(left+width, top+height)
	r.LineTo(left, top+height)
	r.Close()
	r.FillStroke()

	x := left + legendPad
	for col := 0; col < ncol; col++ {
		for row := 0; row < rows; row++ {
			i := col*rows + row
			if i >= len(b.entries) {
				break
			}
			cy := top + legendPad + row*lineH + lineH/2
			drawGlyph(r, b.entries[i], x, cy, textH)
			r.SetFontColor(drawing.ColorBlack)
			r.Text(b.entries[i].Label, x+glyphWidth+glyphGap, cy+textH/2)
		}
		x += glyphWidth + glyphGap + colWidths[col] + columnGap
	}
}

// position returns the top-left corner of the legend box.
func (b *legendBox) position(cb chart.Box, w, h int) (int, int) {
	if b.anchor != nil {
		ax := cb.Left + int(b.anchor[0]*float64(cb.Width()))
		ay := cb.Bottom - int(b.anchor[1]*float64(cb.Height()))
		return ax - w/2, ay
	}
	left := cb.Right - legendMargin - w
	top := cb.Top + legendMargin
	switch b.loc {
	case "upper left", "lower left", "center left":
		left = cb.Left + legendMargin
	case "upper center", "lower center", "center":
		left = cb.Left + (cb.Width()-w)/2
	}
	switch b.loc {
	case "lower left", "lower right", "lower center":
		top = cb.Bottom - legendMargin - h
	case "right", "center left", "center right", "center":
		top = cb.Top + (cb.Height()-h)/2
	}
	return left, top
}

// drawGlyph draws the legend handle of an entry.
func drawGlyph(r chart.Renderer, e plot.LegendEntry, x, cy, textH int) {
	st := parseStyle(e.Kind, e.Style, colors.MustParse(colors.Cycle[0]), nil)
	switch e.Kind {
	case plot.KindBar, plot.KindFill:
		h := textH
		r.SetFillColor(st.stroke())
		if st.edge != nil {
			applyStroke(r, toDrawing(*st.edge, st.alpha), st.lineWidth, nil)
		} else {
			applyStroke(r, st.stroke(), 0, nil)
		}
		r.MoveTo(x+4, cy-h/2)
		r.LineTo(x+glyphWidth-4, cy-h/2)
		r.LineTo(x+glyphWidth-4, cy+h/2)
		r.LineTo(x+4, cy+h/2)
		r.Close()
		r.FillStroke()
	case plot.KindScatter:
		drawMarker(r, x+glyphWidth/2, cy, st)
	default:
		if !st.noLine && st.lineWidth > 0 {
			applyStroke(r, st.stroke(), st.lineWidth, st.dash)
			r.MoveTo(x, cy)
			r.LineTo(x+glyphWidth, cy)
			r.Stroke()
			r.SetStrokeDashArray(nil)
		}
		if st.marker != "" {
			drawMarker(r, x+glyphWidth/2, cy, st)
		}
	}
}
