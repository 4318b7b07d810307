package plot

import "io"

// Dim selects the x or y dimension of an axis setter.
type Dim int

const (
	DimX Dim = iota
	DimY
)

func (d Dim) String() string {
	if d == DimX {
		return "x"
	}
	return "y"
}

// TraceSpec describes a data trace requested by a Plotter. Label, Group and
// ZOrder are already extracted from the caller's options; Opts holds the
// remaining style keys untouched.
type TraceSpec struct {
	Kind   Kind
	Axis   AxisID
	X      []float64
	Y      []float64
	Y2     []float64
	ZOrder float64
	Label  string
	Group  string
	Opts   Options
}

// RefLineSpec describes a vertical or horizontal reference line.
type RefLineSpec struct {
	Vertical bool
	Value    float64
	Axis     AxisID
	ZOrder   float64
	Label    string
	Opts     Options
}

// Deferral is what a backend hands back for a deferred request: trace records
// for the pending list and legend entries that are not traces.
type Deferral struct {
	Traces []*Trace
	Extra  []LegendEntry
}

// Backend is the contract each rendering backend implements. A Backend is
// one chart canvas shared by a primary Plotter and its secondary child.
//
// The Defer methods must not draw. Flush receives every record of the chart
// exactly once, already sorted, and draws them in that order.
type Backend interface {
	Mode() Mode

	// EnableSecondaryAxis adds an independent y-axis on the right.
	EnableSecondaryAxis()

	// DeferTrace translates a data trace into one or more records.
	DeferTrace(spec TraceSpec) Deferral

	// DeferRefLine handles a reference line. Backends without z-order may
	// place the line immediately and return only a legend proxy.
	DeferRefLine(spec RefLineSpec) Deferral

	// DeferLegendItem creates a legend-only entry.
	DeferLegendItem(axis AxisID, label string, opts Options) Deferral

	// Flush draws the sorted records.
	Flush(traces []*Trace) error

	// Legend shows the legend for the assembled entries.
	Legend(entries []LegendEntry, opts Options) error

	// RenameTrace renames the first rendered legend entry of axis labeled
	// oldLabel, matching the entry UpdateLegendText rewrites.
	RenameTrace(axis AxisID, oldLabel, newLabel string)

	SetTitle(title string)
	SetLabel(dim Dim, axis AxisID, label string)
	SetLimits(dim Dim, axis AxisID, lo, hi Bound)
	SetXTickValues(values []float64)
	SetXTickLabels(labels []string)
	SetYTickSuffix(axis AxisID, suffix string)
	SetYTickLabelColor(axis AxisID, color any) error

	// Formats lists the export formats, the first being the default.
	Formats() []string

	// Export writes the figure in the given format.
	Export(w io.Writer, format string) error
}
