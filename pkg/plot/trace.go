package plot

import (
	"cmp"
	"math"
	"slices"
)

// Kind identifies the drawing primitive of a [Trace].
type Kind int

const (
	KindLine Kind = iota + 1
	KindScatter
	KindBar
	KindStep
	KindFill
	KindRefLine
	KindProxy
)

var kindNames = map[Kind]string{
	KindLine:    "line",
	KindScatter: "scatter",
	KindBar:     "bar",
	KindStep:    "step",
	KindFill:    "fill",
	KindRefLine: "refline",
	KindProxy:   "proxy",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// AxisID identifies the y-axis a trace belongs to. The values double as
// default legend group names.
type AxisID string

const (
	AxisPrimary   AxisID = "y1"
	AxisSecondary AxisID = "y2"
)

// GroupExtra is the legend group of manual legend items and reference-line
// proxies. It sorts after the data groups.
const GroupExtra = "extra"

// Default z-orders.
const (
	DefaultZOrder        = 2.0
	DefaultRefLineZOrder = 1.0
)

// ProxyZOrder is assigned to legend-only proxy traces so they sort last.
var ProxyZOrder = math.Inf(1)

// Trace is a pending trace record: one deferred drawing primitive.
// Only Label is rewritten after creation.
type Trace struct {
	Kind   Kind
	Seq    int
	Axis   AxisID
	X      []float64
	Y      []float64
	Y2     []float64 // upper curve of a static fill
	ZOrder float64
	Label  string
	Group  string
	Extra  bool    // member of GroupExtra
	Style  Options // backend-specific style
}

// sortTraces orders traces by z-order, then by draw sequence. The sort is
// stable so records with equal keys keep their insertion order.
func sortTraces(ts []*Trace) {
	slices.SortStableFunc(ts, func(a, b *Trace) int {
		if c := cmp.Compare(a.ZOrder, b.ZOrder); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
}

// LegendEntry is one assembled legend item.
type LegendEntry struct {
	Label string
	Axis  AxisID
	Kind  Kind
	Extra bool
	Style Options
}
