package interactive

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/afcplot/pkg/plot"
)

var xs = []float64{0, 1, 2}

func newPlotter(t *testing.T, opts ...plot.Option) (*plot.Plotter, *Figure, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	fig := NewFigure(plot.BackendConfig{Logger: log.New(&buf)})
	opts = append(opts, plot.WithLogger(log.New(&buf)))
	return plot.NewWithBackend(fig, opts...), fig, &buf
}

func get(t *testing.T, o Object, path string) any {
	t.Helper()
	v, ok := o.Get(path)
	if !ok {
		t.Fatalf("%s not set in %v", path, o)
	}
	return v
}

func TestFillBetweenEmitsBoundaryAndBand(t *testing.T) {
	p, fig, _ := newPlotter(t)
	p.FillBetween(xs, []float64{0, 0, 0}, []float64{1, 2, 3}, "b", 0.3, 1)
	p.Draw()

	if len(fig.Data) != 2 {
		t.Fatalf("traces = %d, want 2", len(fig.Data))
	}
	lower, band := fig.Data[0], fig.Data[1]
	if c := get(t, lower, "line.color"); c != transparent {
		t.Errorf("boundary color = %v", c)
	}
	if band["fill"] != "tonexty" || band["mode"] != "none" {
		t.Errorf("band = %v", band)
	}
	if band["fillcolor"] != "rgba(0, 0, 255, 0.3)" {
		t.Errorf("fillcolor = %v", band["fillcolor"])
	}
	for _, tr := range fig.Data {
		if tr["showlegend"] != false {
			t.Errorf("fill traces must stay out of the legend: %v", tr)
		}
	}
}

func TestTracesFollowZOrder(t *testing.T) {
	p, fig, _ := newPlotter(t)
	p.AddLine(xs, xs, plot.Options{"label": "A", "zorder": 3})
	p.AddBar(xs, xs, plot.Options{"label": "B", "zorder": 1})
	p.AddScatter(xs, xs, plot.Options{"label": "C", "zorder": 3})
	p.Draw()

	var names []string
	for _, tr := range fig.Data {
		names = append(names, tr["name"].(string))
	}
	if strings.Join(names, ",") != "B,A,C" {
		t.Errorf("trace order = %v, want B,A,C", names)
	}
	if fig.Data[0]["type"] != "bar" || fig.Data[2]["mode"] != "markers" {
		t.Errorf("unexpected trace types: %v", fig.Data)
	}
}

func TestDashedVLineWithLabel(t *testing.T) {
	p, fig, _ := newPlotter(t)
	p.CreateVLine(5, plot.Options{"color": "k", "linestyle": "--", "label": "Stim"})
	p.Draw()

	shapes := fig.Shapes()
	if len(shapes) != 1 {
		t.Fatalf("shapes = %d, want 1", len(shapes))
	}
	s := shapes[0]
	if s["layer"] != "below" || s["yref"] != "paper" || s["x0"] != 5.0 {
		t.Errorf("shape = %v", s)
	}
	if d := get(t, s, "line.dash"); d != "dash" {
		t.Errorf("shape dash = %v", d)
	}

	if len(fig.Data) != 1 {
		t.Fatalf("proxies = %d, want 1", len(fig.Data))
	}
	pr := fig.Data[0]
	if pr["mode"] != "markers" || get(t, pr, "marker.symbol") != "line-ns-open" {
		t.Errorf("proxy glyph = %v", pr)
	}
	if pr["legendgroup"] != plot.GroupExtra || pr["name"] != "Stim" {
		t.Errorf("proxy legend = %v", pr)
	}
	if c := get(t, pr, "marker.color"); c != "rgba(0, 0, 0, 1)" {
		t.Errorf("proxy color = %v", c)
	}
}

func TestRefLineGlyphs(t *testing.T) {
	tests := []struct {
		name     string
		vertical bool
		style    string
		mode     string
		symbol   string
	}{
		{"solid vertical", true, "-", "markers", "line-ns-open"},
		{"dotted vertical", true, ":", "markers", "line-ns-open"},
		{"dashed horizontal", false, "dashed", "markers", "line-ew-open"},
		{"solid horizontal", false, "solid", "lines", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, fig, _ := newPlotter(t)
			opts := plot.Options{"linestyle": tt.style, "label": "ref", "zorder": 3}
			if tt.vertical {
				p.CreateVLine(1, opts)
			} else {
				p.CreateHLine(1, opts)
			}
			p.Draw()
			if fig.Shapes()[0]["layer"] != "above" {
				t.Errorf("layer = %v, want above", fig.Shapes()[0]["layer"])
			}
			pr := fig.Data[0]
			if pr["mode"] != tt.mode {
				t.Errorf("mode = %v, want %s", pr["mode"], tt.mode)
			}
			sym, _ := pr.Get("marker.symbol")
			if tt.symbol != "" && sym != tt.symbol {
				t.Errorf("symbol = %v, want %s", sym, tt.symbol)
			}
		})
	}
}

func TestHLineOnSecondaryAxis(t *testing.T) {
	p, fig, _ := newPlotter(t)
	sec, _ := p.AddYAxis()
	sec.CreateHLine(50, nil)
	if s := fig.Shapes()[0]; s["yref"] != "y2" || s["xref"] != "paper" {
		t.Errorf("shape = %v", s)
	}
	p.Draw()
	if len(fig.Data) != 0 {
		t.Errorf("unlabeled line must not create a proxy, got %v", fig.Data)
	}
}

func TestColorTupleBecomesRGBA(t *testing.T) {
	p, fig, _ := newPlotter(t)
	p.AddLine(xs, xs, plot.Options{"color": []float64{0, 0.5, 1, 0.5}})
	p.AddBar(xs, xs, plot.Options{"color": []float64{1, 0, 0}})
	p.Draw()

	if c := get(t, fig.Data[0], "line.color"); c != "rgba(0, 128, 255, 0.5)" {
		t.Errorf("line color = %v", c)
	}
	if c := get(t, fig.Data[1], "marker.color"); c != "rgba(255, 0, 0, 1)" {
		t.Errorf("bar color = %v", c)
	}
}

func TestLineStyleAndMarkerMapping(t *testing.T) {
	tests := []struct {
		opts   plot.Options
		dash   string
		symbol string
		mode   string
	}{
		{plot.Options{"linestyle": "--", "marker": "o"}, "dash", "circle", "lines+markers"},
		{plot.Options{"linestyle": "-."}, "dashdot", "", "lines"},
		{plot.Options{"linestyle": ":"}, "dot", "", "lines"},
		{plot.Options{"linestyle": "None", "marker": "+"}, "", "cross-thin", "markers"},
		{plot.Options{"marker": "^"}, "", "circle", "markers"},
		{plot.Options{}, "", "", "lines"},
	}
	for _, tt := range tests {
		p, fig, _ := newPlotter(t)
		p.AddLine(xs, xs, tt.opts)
		p.Draw()
		tr := fig.Data[0]
		if d, _ := tr.Get("line.dash"); tt.dash != "" && d != tt.dash {
			t.Errorf("%v: dash = %v, want %s", tt.opts, d, tt.dash)
		}
		if s, _ := tr.Get("marker.symbol"); tt.symbol != "" && s != tt.symbol {
			t.Errorf("%v: symbol = %v, want %s", tt.opts, s, tt.symbol)
		}
		if tr["mode"] != tt.mode {
			t.Errorf("%v: mode = %v, want %s", tt.opts, tr["mode"], tt.mode)
		}
	}
}

func TestUnknownOptionIsDroppedWithWarning(t *testing.T) {
	p, fig, logs := newPlotter(t)
	p.AddLine(xs, xs, plot.Options{"hatch": "//", "color": "r"})
	p.Draw()

	if _, ok := fig.Data[0]["hatch"]; ok {
		t.Error("unknown option leaked into the trace")
	}
	if !strings.Contains(logs.String(), "hatch") {
		t.Errorf("expected a warning naming the option, got %q", logs.String())
	}
	if c := get(t, fig.Data[0], "line.color"); c != "rgba(255, 0, 0, 1)" {
		t.Errorf("known options must still apply, color = %v", c)
	}
}

func TestLegendGroups(t *testing.T) {
	p, fig, _ := newPlotter(t)
	sec, _ := p.AddYAxis()
	p.AddLine(xs, xs, plot.Options{"label": "perf"})
	sec.AddBar(xs, xs, plot.Options{"label": "trials"})
	p.AddLine(xs, xs, plot.Options{"label": "custom", "legendgroup": "g"})
	p.AddLegendItem(plot.Options{"label": "marker", "marker": "o", "color": "k"})
	p.AddLine(xs, xs, nil)
	p.Draw()

	want := map[string]struct{ group, axis string }{
		"perf":   {"y1", "y"},
		"trials": {"y2", "y2"},
		"custom": {"g", "y"},
		"marker": {plot.GroupExtra, "y"},
	}
	for _, tr := range fig.Data {
		name, ok := tr["name"].(string)
		if !ok {
			if tr["showlegend"] != false {
				t.Errorf("unlabeled trace shows in legend: %v", tr)
			}
			continue
		}
		w := want[name]
		if tr["legendgroup"] != w.group || tr["yaxis"] != w.axis {
			t.Errorf("%s: group %v axis %v, want %s %s", name, tr["legendgroup"], tr["yaxis"], w.group, w.axis)
		}
	}
	if last := fig.Data[len(fig.Data)-1]; last["name"] != "marker" {
		t.Errorf("legend item should be flushed last, got %v", last["name"])
	}
}

func TestLegendItemIsOffCanvas(t *testing.T) {
	p, fig, _ := newPlotter(t)
	p.AddLegendItem(plot.Options{"label": "x", "color": "k", "linestyle": "solid"})
	p.Draw()

	data, err := fig.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !strings.Contains(string(data), `"x":[null]`) {
		t.Errorf("legend item x should encode as null: %s", data)
	}
}

func TestSetLimits(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi plot.Bound
		check  func(a Object) bool
	}{
		{"fixed", plot.At(1), plot.At(5), func(a Object) bool {
			r, _ := a["range"].([]any)
			return len(r) == 2 && r[0] == 1.0 && r[1] == 5.0
		}},
		{"nonnegative", plot.At(0), plot.Auto, func(a Object) bool { return a["rangemode"] == "nonnegative" }},
		{"tozero", plot.Auto, plot.At(0), func(a Object) bool { return a["rangemode"] == "tozero" }},
		{"auto", plot.Auto, plot.Auto, func(a Object) bool { return a["autorange"] == true }},
		{"relaxed min", plot.At(3), plot.Auto, func(a Object) bool {
			r, _ := a["range"].([]any)
			return a["autorange"] == "max" && len(r) == 2 && r[0] == 3.0 && r[1] == nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, fig, _ := newPlotter(t, plot.WithAxisLimitPolicy(plot.LimitsRelaxed))
			if err := p.SetYLim(tt.lo, tt.hi); err != nil {
				t.Fatalf("SetYLim: %v", err)
			}
			if a := fig.Layout["yaxis"].(Object); !tt.check(a) {
				t.Errorf("yaxis = %v", a)
			}
		})
	}
}

func TestSecondaryAxisLayout(t *testing.T) {
	p, fig, _ := newPlotter(t)
	sec, _ := p.AddYAxis()
	y2 := fig.Layout["yaxis2"].(Object)
	if y2["overlaying"] != "y" || y2["side"] != "right" {
		t.Errorf("yaxis2 = %v", y2)
	}
	sec.SetYLabel("Trials")
	sec.SetYTickSuffix("%")
	if err := sec.SetYTickLabelColor("C1"); err != nil {
		t.Fatal(err)
	}
	if get(t, y2, "title.text") != "Trials" || y2["ticksuffix"] != "%" {
		t.Errorf("yaxis2 = %v", y2)
	}
	if c := get(t, y2, "tickfont.color"); c != "rgba(255, 127, 14, 1)" {
		t.Errorf("tick color = %v", c)
	}
}

func TestUpdateLegendTextAfterDrawRenamesTrace(t *testing.T) {
	p, fig, _ := newPlotter(t)
	sec, _ := p.AddYAxis()
	p.AddLine(xs, xs, plot.Options{"label": "same"})
	sec.AddLine(xs, xs, plot.Options{"label": "same"})
	p.Draw()

	if err := sec.UpdateLegendText("same", " (right)", true); err != nil {
		t.Fatalf("UpdateLegendText: %v", err)
	}
	if fig.Data[0]["name"] != "same" || fig.Data[1]["name"] != "same (right)" {
		t.Errorf("names = %v, %v", fig.Data[0]["name"], fig.Data[1]["name"])
	}
}

func TestUpdateLegendTextRenamesFirstMatchOnly(t *testing.T) {
	p, fig, _ := newPlotter(t)
	p.AddLine(xs, xs, plot.Options{"label": "dup"})
	p.AddLine(xs, xs, plot.Options{"label": "dup"})
	p.Draw()

	if err := p.UpdateLegendText("dup", "first", false); err != nil {
		t.Fatalf("UpdateLegendText: %v", err)
	}
	if fig.Data[0]["name"] != "first" || fig.Data[1]["name"] != "dup" {
		t.Errorf("names = %v, %v", fig.Data[0]["name"], fig.Data[1]["name"])
	}
	entries := p.LegendEntries()
	if len(entries) != 2 || entries[0].Label != "first" || entries[1].Label != "dup" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestLegendLayout(t *testing.T) {
	p, fig, _ := newPlotter(t)
	p.Draw()
	if err := p.Legend(plot.Options{"loc": "upper left", "ncol": 2}); err != nil {
		t.Fatal(err)
	}
	l := fig.Layout["legend"].(Object)
	if l["traceorder"] != "grouped" || l["orientation"] != "h" || l["x"] != 0.5 {
		t.Errorf("legend = %v", l)
	}
}

func TestBarAlignEdgeShiftsHalfBin(t *testing.T) {
	p, fig, _ := newPlotter(t)
	p.AddBar([]float64{0, 1, 2}, xs, plot.Options{"align": "edge", "width": 1})
	p.Draw()

	data, _ := json.Marshal(fig.Data[0]["x"])
	if string(data) != "[0.5,1.5,2.5]" {
		t.Errorf("x = %s", data)
	}
	if fig.Data[0]["width"] != 1.0 {
		t.Errorf("width = %v", fig.Data[0]["width"])
	}
}

func TestTitleAndTicks(t *testing.T) {
	p, fig, _ := newPlotter(t)
	p.SetGraphTitle("M1 psychometric")
	p.SetXTickValues([]float64{-1, 0, 1})
	p.SetXTickLabels([]string{"100% L", "0", "100% R"})
	p.SetXLabel("Coherence")

	title := fig.Layout["title"].(Object)
	if title["text"] != "M1 psychometric" || title["xanchor"] != "center" {
		t.Errorf("title = %v", title)
	}
	x := fig.Layout["xaxis"].(Object)
	if x["tickmode"] != "array" || len(x["ticktext"].([]string)) != 3 {
		t.Errorf("xaxis = %v", x)
	}
}

func TestValuesEncodeNonFiniteAsNull(t *testing.T) {
	data, err := json.Marshal(Values{1, math.NaN(), math.Inf(1), -2.5})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[1,null,null,-2.5]" {
		t.Errorf("got %s", data)
	}
}

func TestExport(t *testing.T) {
	p, fig, _ := newPlotter(t)
	p.AddLine(xs, xs, plot.Options{"label": "a"})
	p.SetGraphTitle("Chart")
	p.Draw()

	var js bytes.Buffer
	if err := fig.Export(&js, "json"); err != nil {
		t.Fatalf("json: %v", err)
	}
	var doc struct {
		Data   []map[string]any `json:"data"`
		Layout map[string]any   `json:"layout"`
	}
	if err := json.Unmarshal(js.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc.Data) != 1 || doc.Layout["plot_bgcolor"] != "white" {
		t.Errorf("doc = %+v", doc)
	}

	var page bytes.Buffer
	if err := fig.Export(&page, "html"); err != nil {
		t.Fatalf("html: %v", err)
	}
	html := page.String()
	for _, want := range []string{"<title>Chart</title>", "Plotly.newPlot", PlotlyURL} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}

	if err := fig.Export(&page, "png"); err == nil {
		t.Error("png export should fail")
	}
}
