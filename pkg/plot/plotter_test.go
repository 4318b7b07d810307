package plot

import (
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/afcplot/pkg/errors"
)

var xs = []float64{0, 1, 2}

func newFake(proxies bool) (*Plotter, *fakeBackend) {
	b := &fakeBackend{proxies: proxies}
	return NewWithBackend(b), b
}

func TestDrawOrdersByZOrderThenSequence(t *testing.T) {
	p, b := newFake(false)
	p.AddLine(xs, xs, Options{"label": "A", "zorder": 3})
	p.AddLine(xs, xs, Options{"label": "B", "zorder": 1})
	p.AddLine(xs, xs, Options{"label": "C", "zorder": 3})

	if err := p.Draw(); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	got := b.flushedLabels()
	want := []string{"B", "A", "C"}
	if !slices.Equal(got, want) {
		t.Errorf("flush order = %v, want %v", got, want)
	}
}

func TestEqualZOrderKeepsCallOrder(t *testing.T) {
	p, b := newFake(false)
	labels := []string{"a", "b", "c", "d", "e"}
	for _, l := range labels {
		p.AddScatter(xs, xs, Options{"label": l})
	}
	p.Draw()
	if got := b.flushedLabels(); !slices.Equal(got, labels) {
		t.Errorf("flush order = %v, want %v", got, labels)
	}
}

func TestDefaultZOrders(t *testing.T) {
	p, _ := newFake(false)
	p.AddLine(xs, xs, nil)
	p.CreateVLine(1, nil)
	p.CreateHLine(1, Options{"zorder": 5})

	pending := p.Pending()
	if len(pending) != 3 {
		t.Fatalf("pending = %d, want 3", len(pending))
	}
	for i, want := range []float64{DefaultZOrder, DefaultRefLineZOrder, 5} {
		if pending[i].ZOrder != want {
			t.Errorf("record %d z-order = %v, want %v", i, pending[i].ZOrder, want)
		}
	}
}

func TestSequenceIsStrictlyIncreasing(t *testing.T) {
	p, _ := newFake(true)
	p.AddLine(xs, xs, nil)
	p.FillBetween(xs, xs, xs, "b", 0.2, 1)
	p.AddBar(xs, xs, nil)

	pending := p.Pending()
	for i := 1; i < len(pending); i++ {
		if pending[i].Seq <= pending[i-1].Seq {
			t.Fatalf("seq not increasing at %d: %d after %d", i, pending[i].Seq, pending[i-1].Seq)
		}
	}
}

func TestDrawIsIdempotent(t *testing.T) {
	p, b := newFake(false)
	p.AddLine(xs, xs, Options{"label": "A"})

	for range 3 {
		if err := p.Draw(); err != nil {
			t.Fatalf("Draw: %v", err)
		}
	}
	if len(b.flushes) != 1 {
		t.Errorf("flushed %d times, want 1", len(b.flushes))
	}
	if !p.Drawn() {
		t.Error("Drawn() = false after Draw")
	}
}

func TestUsageOrderAfterDraw(t *testing.T) {
	p, _ := newFake(false)
	p.Draw()

	calls := map[string]func() error{
		"AddLine":       func() error { return p.AddLine(xs, xs, nil) },
		"AddScatter":    func() error { return p.AddScatter(xs, xs, nil) },
		"AddBar":        func() error { return p.AddBar(xs, xs, nil) },
		"AddStep":       func() error { return p.AddStep(xs, xs, nil) },
		"FillBetween":   func() error { return p.FillBetween(xs, xs, xs, "b", 0.2, 1) },
		"CreateVLine":   func() error { return p.CreateVLine(1, nil) },
		"CreateHLine":   func() error { return p.CreateHLine(1, nil) },
		"AddLegendItem": func() error { return p.AddLegendItem(Options{"label": "x"}) },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			if !errors.Is(err, errors.ErrCodeUsageOrder) {
				t.Errorf("%s after Draw: got %v, want USAGE_ORDER", name, err)
			}
		})
	}
}

func TestLegendBeforeDraw(t *testing.T) {
	p, b := newFake(false)
	if err := p.Legend(nil); !errors.Is(err, errors.ErrCodeUsageOrder) {
		t.Errorf("Legend before Draw: got %v, want USAGE_ORDER", err)
	}
	p.Draw()
	if err := p.Legend(nil); err != nil {
		t.Errorf("Legend after Draw: %v", err)
	}
	if len(b.legends) != 1 {
		t.Errorf("backend legend calls = %d, want 1", len(b.legends))
	}
}

func TestAddYAxis(t *testing.T) {
	p, b := newFake(false)
	sec, err := p.AddYAxis()
	if err != nil {
		t.Fatalf("AddYAxis: %v", err)
	}
	if sec.Axis() != AxisSecondary || !b.secondary {
		t.Errorf("secondary axis = %s, backend enabled = %v", sec.Axis(), b.secondary)
	}
	if sec.Backend() != p.Backend() {
		t.Error("secondary axis must share the canvas")
	}

	if _, err := p.AddYAxis(); !errors.Is(err, errors.ErrCodeSecondaryAxis) {
		t.Errorf("second AddYAxis: got %v, want SECONDARY_AXIS", err)
	}
	if _, err := sec.AddYAxis(); !errors.Is(err, errors.ErrCodeSecondaryAxis) {
		t.Errorf("AddYAxis on secondary: got %v, want SECONDARY_AXIS", err)
	}
}

func TestDrawMergesSecondaryRecords(t *testing.T) {
	p, b := newFake(false)
	sec, _ := p.AddYAxis()
	p.AddLine(xs, xs, Options{"label": "primary"})
	sec.AddBar(xs, xs, Options{"label": "secondary", "zorder": 1})

	// Drawing through the secondary draws the whole chart.
	if err := sec.Draw(); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if got, want := b.flushedLabels(), []string{"secondary", "primary"}; !slices.Equal(got, want) {
		t.Errorf("flush order = %v, want %v", got, want)
	}
	if !p.Drawn() || !sec.Drawn() {
		t.Error("both axes must be drawn")
	}
	if err := sec.AddLine(xs, xs, nil); !errors.Is(err, errors.ErrCodeUsageOrder) {
		t.Errorf("secondary add after draw: got %v", err)
	}
}

func TestLegendAssemblyOrder(t *testing.T) {
	for _, proxies := range []bool{false, true} {
		name := "static"
		if proxies {
			name = "interactive"
		}
		t.Run(name, func(t *testing.T) {
			p, _ := newFake(proxies)
			sec, _ := p.AddYAxis()
			p.AddLegendItem(Options{"label": "P-extra"})
			sec.AddLine(xs, xs, Options{"label": "S-auto"})
			sec.CreateHLine(0, Options{"label": "S-extra"})
			p.AddLine(xs, xs, Options{"label": "P-auto"})
			p.AddBar(xs, xs, nil)

			p.Draw()

			var got []string
			for _, e := range p.LegendEntries() {
				got = append(got, e.Label)
			}
			want := []string{"P-auto", "S-auto", "P-extra", "S-extra"}
			if !slices.Equal(got, want) {
				t.Errorf("legend = %v, want %v", got, want)
			}
		})
	}
}

func TestProxiesSortLast(t *testing.T) {
	p, b := newFake(true)
	p.CreateVLine(1, Options{"label": "stim"})
	p.AddLine(xs, xs, Options{"label": "data", "zorder": 100})
	p.Draw()

	last := b.flushes[0][len(b.flushes[0])-1]
	if last.Kind != KindProxy || !math.IsInf(last.ZOrder, 1) {
		t.Errorf("last record = %s z=%v, want proxy at +Inf", last.Kind, last.ZOrder)
	}
}

func TestFillBetweenInteractiveUsesConsecutiveRecords(t *testing.T) {
	p, b := newFake(true)
	p.AddLine(xs, xs, Options{"zorder": 1})
	p.FillBetween(xs, []float64{0, 0, 0}, []float64{1, 1, 1}, "b", 0.3, 1)
	p.AddLine(xs, xs, Options{"zorder": 1})
	p.Draw()

	flushed := b.flushes[0]
	if len(flushed) != 4 {
		t.Fatalf("flushed %d records, want 4", len(flushed))
	}
	if flushed[1].Kind != KindFill || flushed[2].Kind != KindFill {
		t.Fatalf("fill records not adjacent: %s, %s", flushed[1].Kind, flushed[2].Kind)
	}
	if flushed[2].Seq != flushed[1].Seq+1 {
		t.Errorf("fill seqs = %d, %d, want consecutive", flushed[1].Seq, flushed[2].Seq)
	}
}

func TestFillBetweenStaticUsesOneRecord(t *testing.T) {
	p, _ := newFake(false)
	p.FillBetween(xs, xs, xs, "b", 0.3, 0)
	pending := p.Pending()
	if len(pending) != 1 || pending[0].Kind != KindFill || pending[0].ZOrder != 0 {
		t.Fatalf("pending = %+v, want one fill at z 0", pending)
	}
	if pending[0].Style[KeyAlpha] != 0.3 {
		t.Errorf("alpha = %v", pending[0].Style[KeyAlpha])
	}
}

func TestUpdateLegendTextBeforeDraw(t *testing.T) {
	p, b := newFake(false)
	p.AddLine(xs, xs, Options{"label": "Left"})
	p.CreateVLine(0, Options{"label": "Stim"})

	if err := p.UpdateLegendText("Left", " (n=10)", true); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := p.UpdateLegendText("Stim", "Stimulus", false); err != nil {
		t.Fatalf("replace extra entry: %v", err)
	}
	p.Draw()

	if got := b.flushedLabels()[1]; got != "Left (n=10)" {
		t.Errorf("flushed label = %q", got)
	}
	entries := p.LegendEntries()
	if len(entries) != 2 || entries[1].Label != "Stimulus" {
		t.Errorf("entries = %+v", entries)
	}
	if len(b.renames) != 0 {
		t.Errorf("pre-render update must not touch the backend, got %v", b.renames)
	}
}

func TestUpdateLegendTextAfterDraw(t *testing.T) {
	p, b := newFake(true)
	sec, _ := p.AddYAxis()
	p.AddLine(xs, xs, Options{"label": "Performance"})
	sec.AddBar(xs, xs, Options{"label": "Trials"})
	p.Draw()

	if err := sec.UpdateLegendText("Trials", " (40)", true); err != nil {
		t.Fatalf("UpdateLegendText: %v", err)
	}
	if got := p.LegendEntries()[1].Label; got != "Trials (40)" {
		t.Errorf("registry label = %q", got)
	}
	want := [3]string{"y2", "Trials", "Trials (40)"}
	if len(b.renames) != 1 || b.renames[0] != want {
		t.Errorf("renames = %v, want %v", b.renames, want)
	}
}

func TestUpdateLegendTextLookupFailure(t *testing.T) {
	p, _ := newFake(false)
	sec, _ := p.AddYAxis()
	p.AddLine(xs, xs, Options{"label": "Performance"})

	err := p.UpdateLegendText("Performence", "x", false)
	if !errors.Is(err, errors.ErrCodeLegendNotFound) {
		t.Fatalf("typo before draw: got %v", err)
	}
	if !strings.Contains(err.Error(), `"Performence"`) {
		t.Errorf("error should name the item: %v", err)
	}

	p.Draw()
	// The entry belongs to the primary axis.
	if err := sec.UpdateLegendText("Performance", "x", false); !errors.Is(err, errors.ErrCodeLegendNotFound) {
		t.Errorf("wrong axis after draw: got %v", err)
	}
}

func TestAxisLimitContract(t *testing.T) {
	tests := []struct {
		name    string
		lo, hi  Bound
		policy  LimitPolicy
		wantErr bool
	}{
		{"both fixed", At(-1), At(5), LimitsStrict, false},
		{"both auto", Auto, Auto, LimitsStrict, false},
		{"auto max from zero", At(0), Auto, LimitsStrict, false},
		{"auto min to zero", Auto, At(0), LimitsStrict, false},
		{"auto max from nonzero", At(10), Auto, LimitsStrict, true},
		{"auto min to nonzero", Auto, At(-3), LimitsStrict, true},
		{"relaxed auto max", At(10), Auto, LimitsRelaxed, false},
		{"relaxed auto min", Auto, At(-3), LimitsRelaxed, false},
		{"non-finite", At(math.NaN()), At(1), LimitsRelaxed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			p := NewWithBackend(b, WithAxisLimitPolicy(tt.policy))
			err := p.SetYLim(tt.lo, tt.hi)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetYLim err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, errors.ErrCodeInvalidConfig) {
					t.Errorf("code = %s, want INVALID_CONFIG", errors.GetCode(err))
				}
				if len(b.limits) != 0 {
					t.Error("rejected limits must not reach the backend")
				}
			} else if len(b.limits) != 1 || b.limits[0].dim != DimY {
				t.Errorf("backend limits = %+v", b.limits)
			}
		})
	}
}

func TestSecondaryLimitsTargetSecondaryAxis(t *testing.T) {
	p, b := newFake(false)
	sec, _ := p.AddYAxis()
	sec.SetYLim(At(0), At(100))
	if len(b.limits) != 1 || b.limits[0].axis != AxisSecondary {
		t.Errorf("limits = %+v", b.limits)
	}
}

func TestLengthMismatch(t *testing.T) {
	p, _ := newFake(false)
	err := p.AddLine([]float64{1, 2}, []float64{1}, nil)
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("got %v, want INVALID_INPUT", err)
	}
}

func TestOptionsAreNotMutated(t *testing.T) {
	p, _ := newFake(false)
	opts := Options{"label": "A", "zorder": 4, "color": "k"}
	p.AddLine(xs, xs, opts)
	if len(opts) != 3 {
		t.Errorf("caller options mutated: %v", opts)
	}
}

func TestNewUsesRegisteredBackend(t *testing.T) {
	defer SetMode(CurrentMode())

	SetMode(ModeUnset)
	if _, err := New(); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("New without mode: got %v", err)
	}

	var got BackendConfig
	Register(ModeStatic, func(cfg BackendConfig) Backend {
		got = cfg
		return &fakeBackend{}
	})
	SetMode(ModeStatic)
	p, err := New(WithSize(640, 480))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Backend().Mode() != ModeStatic || got.Width != 640 || got.Height != 480 {
		t.Errorf("backend mode %s, config %+v", p.Backend().Mode(), got)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"static": ModeStatic, "Interactive": ModeInteractive} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMode("svg"); err == nil {
		t.Error("ParseMode(svg) should fail")
	}
}
