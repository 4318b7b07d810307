// Package colors parses the color values accepted in plot style options and
// formats them for each rendering backend.
//
// Accepted inputs:
//   - single-letter codes ("k", "r", "g", "b", "c", "m", "y", "w")
//   - cycle references ("C0" .. "C9") and "tab:" names
//   - named colors ("gray", "orange", ...)
//   - hex strings ("#1f77b4", "#1f77b480")
//   - CSS functional notation ("rgb(0, 128, 255)", "rgba(0, 128, 255, 0.5)")
//   - RGB or RGBA float tuples in [0, 1] ([]float64, [3]float64, [4]float64)
//   - any image/color.Color
package colors

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an RGB color with a separate alpha in [0, 1].
type Color struct {
	colorful.Color
	Alpha float64
}

// Cycle is the default color cycle, addressed as "C0".."C9".
var Cycle = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

var shorthand = map[string]string{
	"k": "#000000",
	"w": "#ffffff",
	"r": "#ff0000",
	"g": "#008000",
	"b": "#0000ff",
	"c": "#00bfbf",
	"m": "#bf00bf",
	"y": "#bfbf00",
}

var named = map[string]string{
	"black":     "#000000",
	"white":     "#ffffff",
	"red":       "#ff0000",
	"green":     "#008000",
	"blue":      "#0000ff",
	"cyan":      "#00ffff",
	"magenta":   "#ff00ff",
	"yellow":    "#ffff00",
	"gray":      "#808080",
	"grey":      "#808080",
	"lightgray": "#d3d3d3",
	"lightgrey": "#d3d3d3",
	"darkgray":  "#a9a9a9",
	"darkgrey":  "#a9a9a9",
	"orange":    "#ffa500",
	"purple":    "#800080",
	"brown":     "#a52a2a",
	"pink":      "#ffc0cb",
	"olive":     "#808000",
	"navy":      "#000080",
	"teal":      "#008080",
	"salmon":    "#fa8072",
	"gold":      "#ffd700",
}

var tableau = map[string]string{
	"tab:blue":   Cycle[0],
	"tab:orange": Cycle[1],
	"tab:green":  Cycle[2],
	"tab:red":    Cycle[3],
	"tab:purple": Cycle[4],
	"tab:brown":  Cycle[5],
	"tab:pink":   Cycle[6],
	"tab:gray":   Cycle[7],
	"tab:olive":  Cycle[8],
	"tab:cyan":   Cycle[9],
}

// Parse converts any accepted color value into a Color.
func Parse(v any) (Color, error) {
	switch c := v.(type) {
	case Color:
		return c, nil
	case string:
		return parseString(c)
	case []float64:
		return fromTuple(c)
	case [3]float64:
		return fromTuple(c[:])
	case [4]float64:
		return fromTuple(c[:])
	case []any:
		fs := make([]float64, 0, len(c))
		for _, e := range c {
			f, ok := toFloat(e)
			if !ok {
				return Color{}, fmt.Errorf("color tuple element %v is not a number", e)
			}
			fs = append(fs, f)
		}
		return fromTuple(fs)
	case color.Color:
		col, ok := colorful.MakeColor(c)
		_, _, _, a := c.RGBA()
		if !ok {
			// fully transparent colors cannot be un-premultiplied
			return Color{Alpha: 0}, nil
		}
		return Color{Color: col, Alpha: float64(a) / 0xffff}, nil
	}
	return Color{}, fmt.Errorf("unsupported color value %v (%T)", v, v)
}

// MustParse is like Parse but panics on error. Intended for package-level defaults.
func MustParse(v any) Color {
	c, err := Parse(v)
	if err != nil {
		panic(err)
	}
	return c
}

func parseString(s string) (Color, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if hex, ok := lookupName(key); ok {
		key = hex
	}
	switch {
	case strings.HasPrefix(key, "#"):
		return parseHex(key)
	case strings.HasPrefix(key, "rgba(") || strings.HasPrefix(key, "rgb("):
		return parseFunctional(key)
	}
	return Color{}, fmt.Errorf("unknown color %q", s)
}

func lookupName(key string) (string, bool) {
	if hex, ok := shorthand[key]; ok {
		return hex, true
	}
	if hex, ok := named[key]; ok {
		return hex, true
	}
	if hex, ok := tableau[key]; ok {
		return hex, true
	}
	if len(key) == 2 && key[0] == 'c' && key[1] >= '0' && key[1] <= '9' {
		return Cycle[key[1]-'0'], true
	}
	return "", false
}

func parseHex(s string) (Color, error) {
	alpha := 1.0
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("invalid hex alpha in %q", s)
		}
		alpha = float64(a) / 255
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, err
	}
	return Color{Color: c, Alpha: alpha}, nil
}

func parseFunctional(s string) (Color, error) {
	open, end := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return Color{}, fmt.Errorf("malformed color %q", s)
	}
	parts := strings.Split(s[open+1:end], ",")
	if len(parts) != 3 && len(parts) != 4 {
		return Color{}, fmt.Errorf("malformed color %q", s)
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Color{}, fmt.Errorf("malformed color %q: %w", s, err)
		}
		vals[i] = f
	}
	c := Color{Color: colorful.Color{R: vals[0] / 255, G: vals[1] / 255, B: vals[2] / 255}, Alpha: 1}
	if len(vals) == 4 {
		c.Alpha = vals[3]
	}
	return c, nil
}

func fromTuple(t []float64) (Color, error) {
	if len(t) != 3 && len(t) != 4 {
		return Color{}, fmt.Errorf("color tuple must have 3 or 4 elements, got %d", len(t))
	}
	c := Color{Color: colorful.Color{R: t[0], G: t[1], B: t[2]}, Alpha: 1}
	if len(t) == 4 {
		c.Alpha = t[3]
	}
	return c, nil
}

// IsTuple reports whether v is a numeric RGB(A) tuple rather than a string.
func IsTuple(v any) bool {
	switch c := v.(type) {
	case []float64:
		return len(c) == 3 || len(c) == 4
	case [3]float64, [4]float64:
		return true
	case []any:
		return len(c) == 3 || len(c) == 4
	}
	return false
}

// CSS formats c as "rgba(R, G, B, A)" with 0-255 integer channels.
func (c Color) CSS() string {
	r, g, b := c.Clamped().RGB255()
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", r, g, b, strconv.FormatFloat(c.Alpha, 'g', -1, 64))
}

// RGBA8 returns the 8-bit channels, alpha included.
func (c Color) RGBA8() (r, g, b, a uint8) {
	r, g, b = c.Clamped().RGB255()
	a = uint8(clamp01(c.Alpha)*255 + 0.5)
	return r, g, b, a
}

// WithAlpha returns a copy of c with its alpha replaced.
func (c Color) WithAlpha(alpha float64) Color {
	c.Alpha = alpha
	return c
}

// ToCSS converts a style value to the string color encoding of web backends.
// Tuples and single-letter or cycle codes are converted; other strings are
// passed through unchanged because browsers understand them natively.
func ToCSS(v any) (string, error) {
	if s, ok := v.(string); ok {
		key := strings.ToLower(strings.TrimSpace(s))
		if _, isCode := shorthand[key]; isCode || strings.HasPrefix(key, "tab:") || (len(key) == 2 && key[0] == 'c' && key[1] >= '0' && key[1] <= '9') {
			c, err := parseString(key)
			if err != nil {
				return "", err
			}
			return c.CSS(), nil
		}
		return s, nil
	}
	c, err := Parse(v)
	if err != nil {
		return "", err
	}
	return c.CSS(), nil
}

// Range returns n hex colors stepping from one color to another in HSL space,
// both ends included.
func Range(from, to any, n int) ([]string, error) {
	a, err := Parse(from)
	if err != nil {
		return nil, err
	}
	b, err := Parse(to)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	h1, s1, l1 := a.Hsl()
	h2, s2, l2 := b.Hsl()
	out := make([]string, n)
	for i := range out {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		c := colorful.Hsl(h1+t*(h2-h1), s1+t*(s2-s1), l1+t*(l2-l1))
		out[i] = c.Clamped().Hex()
	}
	return out, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
