package plot

import (
	"io"
)

// fakeBackend records what the Plotter hands it. With proxies set it behaves
// like a backend without z-order: reference lines and legend items become
// proxy traces and fills take two records.
type fakeBackend struct {
	proxies   bool
	secondary bool
	flushes   [][]*Trace
	legends   [][]LegendEntry
	renames   [][3]string
	limits    []limitCall
	title     string
}

type limitCall struct {
	dim    Dim
	axis   AxisID
	lo, hi Bound
}

func (f *fakeBackend) Mode() Mode {
	if f.proxies {
		return ModeInteractive
	}
	return ModeStatic
}

func (f *fakeBackend) EnableSecondaryAxis() { f.secondary = true }

func (f *fakeBackend) DeferTrace(s TraceSpec) Deferral {
	t := &Trace{Kind: s.Kind, X: s.X, Y: s.Y, Y2: s.Y2, ZOrder: s.ZOrder, Label: s.Label, Group: s.Group, Style: s.Opts}
	if s.Kind == KindFill && f.proxies {
		boundary := &Trace{Kind: KindFill, X: s.X, Y: s.Y2, ZOrder: s.ZOrder}
		t.Y2 = nil
		return Deferral{Traces: []*Trace{boundary, t}}
	}
	return Deferral{Traces: []*Trace{t}}
}

func (f *fakeBackend) DeferRefLine(s RefLineSpec) Deferral {
	if f.proxies {
		if s.Label == "" {
			return Deferral{}
		}
		return Deferral{Traces: []*Trace{{Kind: KindProxy, ZOrder: ProxyZOrder, Label: s.Label, Group: GroupExtra, Extra: true}}}
	}
	d := Deferral{Traces: []*Trace{{Kind: KindRefLine, ZOrder: s.ZOrder, Style: s.Opts}}}
	if s.Label != "" {
		d.Extra = []LegendEntry{{Label: s.Label, Kind: KindRefLine}}
	}
	return d
}

func (f *fakeBackend) DeferLegendItem(_ AxisID, label string, opts Options) Deferral {
	if f.proxies {
		return Deferral{Traces: []*Trace{{Kind: KindProxy, ZOrder: ProxyZOrder, Label: label, Group: GroupExtra, Extra: true}}}
	}
	return Deferral{Extra: []LegendEntry{{Label: label, Kind: KindProxy, Style: opts}}}
}

func (f *fakeBackend) Flush(ts []*Trace) error {
	f.flushes = append(f.flushes, ts)
	return nil
}

func (f *fakeBackend) Legend(entries []LegendEntry, _ Options) error {
	f.legends = append(f.legends, entries)
	return nil
}

func (f *fakeBackend) RenameTrace(axis AxisID, oldLabel, newLabel string) {
	f.renames = append(f.renames, [3]string{string(axis), oldLabel, newLabel})
}

func (f *fakeBackend) SetTitle(title string)              { f.title = title }
func (f *fakeBackend) SetLabel(Dim, AxisID, string)       {}
func (f *fakeBackend) SetXTickValues([]float64)           {}
func (f *fakeBackend) SetXTickLabels([]string)            {}
func (f *fakeBackend) SetYTickSuffix(AxisID, string)      {}
func (f *fakeBackend) SetYTickLabelColor(AxisID, any) error { return nil }
func (f *fakeBackend) Formats() []string                  { return []string{"txt"} }
func (f *fakeBackend) Export(io.Writer, string) error     { return nil }

func (f *fakeBackend) SetLimits(dim Dim, axis AxisID, lo, hi Bound) {
	f.limits = append(f.limits, limitCall{dim, axis, lo, hi})
}

func (f *fakeBackend) flushedLabels() []string {
	if len(f.flushes) == 0 {
		return nil
	}
	var out []string
	for _, t := range f.flushes[0] {
		out = append(out, t.Label)
	}
	return out
}
