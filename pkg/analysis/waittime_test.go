package analysis

import (
	"io"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	aerrors "github.com/matzehuels/afcplot/pkg/errors"
	"github.com/matzehuels/afcplot/pkg/plot"
	"github.com/matzehuels/afcplot/pkg/plot/interactive"
	"github.com/matzehuels/afcplot/pkg/plot/static"
)

// wtTrials returns 10 trials per stimulus level in [-1, 1]: three plain
// errors, one error on a catch trial, four correct catch trials and two
// rewarded trials. Waiting times grow with |DV|, catch waits are longer.
// Two trials outside exponential-delay sessions are added.
func wtTrials(t *testing.T) []Trial {
	var trials []Trial
	for i := 0; i <= 10; i++ {
		dv := math.Round((-1+float64(i)/5)*10) / 10
		for k := range 10 {
			tr := Trial{
				Name:                   "M1",
				Date:                   day(t, "2019-04-01"),
				DV:                     dv,
				ChoiceLeft:             ptr(float64(k % 2)),
				FeedbackDelaySelection: feedbackDelayExponential,
				CatchError:             true,
			}
			switch {
			case k < 4:
				tr.ChoiceCorrect = ptr(0)
				tr.CatchTrial = Flag(k == 3)
				tr.FeedbackTime = 2 + math.Abs(dv) + 0.1*float64(k)
			case k < 8:
				tr.ChoiceCorrect = ptr(1)
				tr.CatchTrial = true
				tr.FeedbackTime = 4 + 2*math.Abs(dv) + 0.1*float64(k)
			default:
				tr.ChoiceCorrect = ptr(1)
				tr.FeedbackTime = 1
			}
			trials = append(trials, tr)
		}
	}
	trials = append(trials,
		Trial{Name: "M1", DV: 0.4, ChoiceCorrect: ptr(0), FeedbackTime: 3, FeedbackDelaySelection: 1, CatchError: true},
		Trial{Name: "M1", DV: 0.4, ChoiceCorrect: ptr(0), FeedbackTime: 0.3, FeedbackDelaySelection: feedbackDelayExponential, CatchError: true},
	)
	return trials
}

func hasPrefix(list []string, prefix string) bool {
	return slices.ContainsFunc(list, func(s string) bool { return strings.HasPrefix(s, prefix) })
}

func figureTitle(f *interactive.Figure) any {
	return f.Layout["title"].(interactive.Object)["text"]
}

func TestParseWTFilter(t *testing.T) {
	tests := []struct {
		name    string
		wantNil bool
		wantErr bool
	}{
		{"", true, false},
		{"none", true, false},
		{"iqr", false, false},
		{"zscore", true, true},
	}
	for _, tt := range tests {
		f, err := ParseWTFilter(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWTFilter(%q) err = %v", tt.name, err)
		}
		if tt.wantErr && !aerrors.Is(err, aerrors.ErrCodeInvalidInput) {
			t.Errorf("ParseWTFilter(%q) err = %v, want INVALID_INPUT", tt.name, err)
		}
		if (f == nil) != tt.wantNil {
			t.Errorf("ParseWTFilter(%q) nil = %v, want %v", tt.name, f == nil, tt.wantNil)
		}
	}
}

func waits(ft ...float64) []Trial {
	out := make([]Trial, len(ft))
	for i, v := range ft {
		out[i].FeedbackTime = v
	}
	return out
}

func TestWTFilters(t *testing.T) {
	got := feedbackTimes(FilterWTIQR(waits(1, 2, 3, 4, 100)))
	if !slices.Equal(got, []float64{1, 2, 3, 4}) {
		t.Errorf("IQR filter kept %v", got)
	}

	got = feedbackTimes(FilterWTQuantile(0.1, 0.9)(waits(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)))
	if slices.Contains(got, 1) || slices.Contains(got, 10) || !slices.Contains(got, 5) {
		t.Errorf("quantile filter kept %v", got)
	}
}

func TestWaitingTrials(t *testing.T) {
	trials := wtTrials(t)
	got := waitingTrials(trials, 0)
	if len(got) != 110 {
		t.Errorf("waiting trials = %d, want 110", len(got))
	}
	// rewarded trials wait 1s, only the first error at DV 0 waits 2s
	if n := len(waitingTrials(trials, 2.05)); n != 23 {
		t.Errorf("capped waiting trials = %d, want 23", n)
	}
	if n := len(selectTrials(got, caughtOrWrong)); n != 88 {
		t.Errorf("errors and catch trials = %d, want 88", n)
	}
}

func TestVevaiometric(t *testing.T) {
	p, f := newFigure(t)
	if err := New(nil).Vevaiometric(p, wtTrials(t), WTOptions{}); err != nil {
		t.Fatalf("Vevaiometric: %v", err)
	}
	got := names(f)
	for _, w := range []string{"Error Trials (44 pts)", "Catch Trials (44 pts)"} {
		if !contains(got, w) {
			t.Errorf("missing trace %q in %v", w, got)
		}
	}
	// per trial type and side: fit, band boundary, band, bin means
	if len(f.Data) != 16 {
		t.Errorf("traces = %d, want 16", len(f.Data))
	}
	bands := 0
	for _, tr := range f.Data {
		if tr["fill"] == "tonexty" {
			bands++
		}
	}
	if bands != 4 {
		t.Errorf("SEM bands = %d, want 4", bands)
	}
	if figureTitle(f) != "Vevaiometric - M1" {
		t.Errorf("title = %v", figureTitle(f))
	}
	r, _ := f.Layout["yaxis"].(interactive.Object)["range"].([]any)
	if len(r) != 2 {
		t.Fatalf("y range = %v", r)
	}
	// slowest bin: catch trials at |DV| 0.8 and 1, mean 6.35s
	if hi := r[1].(float64); math.Abs(hi-7.35) > 1e-9 {
		t.Errorf("y max = %v, want 7.35", hi)
	}
	if lo := r[0].(float64); lo <= 0 || lo >= 2 {
		t.Errorf("y min = %v", lo)
	}
}

func TestVevaiometricMaxWait(t *testing.T) {
	p, f := newFigure(t)
	if err := New(nil).Vevaiometric(p, wtTrials(t), WTOptions{MaxWaitTime: 4.95}); err != nil {
		t.Fatalf("Vevaiometric: %v", err)
	}
	// catch waits under 4.95s: all four at DV 0 and two at each of ±0.2
	if got := names(f); !contains(got, "Catch Trials (8 pts)") {
		t.Errorf("names = %v", got)
	}
}

func TestVevaiometricStatic(t *testing.T) {
	logger := log.New(io.Discard)
	c := static.NewCanvas(plot.BackendConfig{Logger: logger, Width: 400, Height: 300})
	p := plot.NewWithBackend(c, plot.WithLogger(logger))
	if err := New(nil).Vevaiometric(p, wtTrials(t), WTOptions{Filter: FilterWTIQR}); err != nil {
		t.Fatalf("Vevaiometric: %v", err)
	}
	if !p.Drawn() || len(c.Series()) == 0 {
		t.Error("static vevaiometric should draw series")
	}
}

func TestVevaiometricEmpty(t *testing.T) {
	p, _ := newFigure(t)
	trials := []Trial{{Name: "M1", ChoiceCorrect: ptr(0), FeedbackTime: 3}}
	if err := New(nil).Vevaiometric(p, trials, WTOptions{}); err != nil {
		t.Fatalf("Vevaiometric: %v", err)
	}
	if p.Drawn() {
		t.Error("no waiting-time trials should not draw")
	}
}

func TestCatchWTDistrib(t *testing.T) {
	tests := []struct {
		name   string
		opts   CatchWTOptions
		labels []string
		traces int
	}{
		{
			name:   "cumulative",
			labels: []string{"Norm. Catch Incorrect (44 points)", "Norm. Catch Correct (44 points)"},
			traces: 2,
		},
		{
			name:   "histogram",
			opts:   CatchWTOptions{Histogram: true, LabelPrefix: "Easy"},
			labels: []string{"Norm. Easy-Catch Incorrect (44 points)", "Norm. Easy-Catch Correct (44 points)"},
			traces: 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, f := newFigure(t)
			if err := New(nil).CatchWTDistrib(p, wtTrials(t), tt.opts); err != nil {
				t.Fatalf("CatchWTDistrib: %v", err)
			}
			got := names(f)
			for _, w := range tt.labels {
				if !contains(got, w) {
					t.Errorf("missing trace %q in %v", w, got)
				}
			}
			if len(f.Data) != tt.traces {
				t.Errorf("traces = %d, want %d", len(f.Data), tt.traces)
			}
			for _, tr := range f.Data {
				y := tr["y"].(interactive.Values)
				if m := slices.Max(y); math.Abs(m-1) > 1e-9 {
					t.Errorf("%v peaks at %v, want normalized to 1", tr["name"], m)
				}
			}
			if figureTitle(f) != "Accuracy vs WT - M1" {
				t.Errorf("title = %v", figureTitle(f))
			}
		})
	}
}

func TestCatchWTDistribNarrowGroup(t *testing.T) {
	var trials []Trial
	for _, tr := range wtTrials(t) {
		if !tr.Incorrect() {
			trials = append(trials, tr)
		}
	}
	p, f := newFigure(t)
	if err := New(nil).CatchWTDistrib(p, trials, CatchWTOptions{}); err != nil {
		t.Fatalf("CatchWTDistrib: %v", err)
	}
	if got := names(f); !contains(got, "Norm. Catch Incorrect (0 points)") {
		t.Errorf("empty group should keep its legend entry: %v", got)
	}
}

// accuracyTrials puts 1, 20, 1 and 10 catch trials in the 1-second bins
// starting at 1, 2, 3 and 4 seconds. Every fourth trial is an error.
func accuracyTrials() []Trial {
	var trials []Trial
	add := func(ft float64, n int) {
		for k := range n {
			correct := 1.0
			if k%4 == 0 {
				correct = 0
			}
			trials = append(trials, Trial{
				Name:                   "M1",
				ChoiceCorrect:          ptr(correct),
				CatchTrial:             true,
				CatchError:             true,
				FeedbackDelaySelection: feedbackDelayExponential,
				FeedbackTime:           ft,
			})
		}
	}
	add(1.5, 1)
	add(2.5, 20)
	add(3.5, 1)
	add(4.5, 10)
	return trials
}

func TestAccuracyWT(t *testing.T) {
	tests := []struct {
		name   string
		method AccWTMethod
		x      []float64
		title  string
	}{
		{"hist", AccWTHist, []float64{1.5, 2.5, 3.5, 4.5}, "Accuracy vs WT: M1"},
		{"every 100", AccWTEvery100, []float64{(1.5 + 50 + 3.5 + 45) / 32}, "Accuracy vs WT (grouped in 100 trials): M1"},
		{"merge sparse", AccWTMergeSparse, []float64{51.5 / 21, 48.5 / 11}, "Accuracy vs WT (0.15 bins added to nearest): M1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, f := newFigure(t)
			err := New(nil).AccuracyWT(p, accuracyTrials(), AccuracyWTOptions{Method: tt.method})
			if err != nil {
				t.Fatalf("AccuracyWT: %v", err)
			}
			if !p.Drawn() {
				t.Fatal("AccuracyWT should draw")
			}
			// histogram bars sit below the accuracy line
			bars := f.Data[0]
			if bars["name"] != "Waiting Time" || bars["yaxis"] != "y2" {
				t.Fatalf("first trace = %v", bars)
			}
			if y := bars["y"].(interactive.Values); !slices.Equal(y, interactive.Values{1, 20, 1, 10}) {
				t.Errorf("bar counts = %v", y)
			}
			x := f.Data[1]["x"].(interactive.Values)
			if len(x) != len(tt.x) {
				t.Fatalf("accuracy points = %v, want %v", x, tt.x)
			}
			for i := range x {
				if math.Abs(x[i]-tt.x[i]) > 1e-9 {
					t.Errorf("x[%d] = %v, want %v", i, x[i], tt.x[i])
				}
			}
			got, _ := figureTitle(f).(string)
			if !strings.HasPrefix(got, tt.title) || !strings.HasSuffix(got, "(22 correct / 10 incorrect pts)") {
				t.Errorf("title = %q", got)
			}
		})
	}
}

func TestShortLongWT(t *testing.T) {
	p, f := newFigure(t)
	if err := New(nil).ShortLongWT(p, wtTrials(t), ShortLongOptions{}); err != nil {
		t.Fatalf("ShortLongWT: %v", err)
	}
	got := names(f)
	if !hasPrefix(got, "Short-WT - ") || !hasPrefix(got, "Long-WT - ") {
		t.Errorf("names = %v", got)
	}
	if figureTitle(f) != "M1 (Short-WT < 0.5 quantile)" {
		t.Errorf("title = %v", figureTitle(f))
	}

	p, f = newFigure(t)
	if err := New(nil).ShortLongWT(p, wtTrials(t), ShortLongOptions{Quantile: 0.3, Mirror: true}); err != nil {
		t.Fatalf("ShortLongWT mirrored: %v", err)
	}
	if figureTitle(f) != "M1 (Short-WT < 0.3 quantile / Long-WT > 0.7)" {
		t.Errorf("mirrored title = %v", figureTitle(f))
	}
}

func TestShortLongWTErrors(t *testing.T) {
	p, _ := newFigure(t)
	err := New(nil).ShortLongWT(p, wtTrials(t), ShortLongOptions{Quantile: 1.5})
	if !aerrors.Is(err, aerrors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}

	p, _ = newFigure(t)
	if err := New(nil).ShortLongWT(p, wtTrials(t)[:10], ShortLongOptions{}); err != nil {
		t.Fatalf("ShortLongWT: %v", err)
	}
	if p.Drawn() {
		t.Error("too few catch trials should not draw")
	}
}

func TestSamplingVsDifficulty(t *testing.T) {
	var trials []Trial
	for _, dv := range []float64{-1, -0.5, 0.5, 1} {
		for k := range 4 {
			trials = append(trials, Trial{
				Name:          "M1",
				DV:            dv,
				ST:            0.3 + 0.1*math.Abs(dv) + 0.01*float64(k),
				ChoiceCorrect: ptr(1),
			})
		}
	}
	trials = append(trials, Trial{Name: "M1", DV: 0.5, ST: 9})

	tests := []struct {
		overlap bool
		x       interactive.Values
	}{
		{false, interactive.Values{-100, -50, 50, 100}},
		{true, interactive.Values{50, 100}},
	}
	for _, tt := range tests {
		p, f := newFigure(t)
		if err := New(nil).SamplingVsDifficulty(p, trials, tt.overlap); err != nil {
			t.Fatalf("SamplingVsDifficulty: %v", err)
		}
		if x := f.Data[0]["x"].(interactive.Values); !slices.Equal(x, tt.x) {
			t.Errorf("overlap=%v: x = %v, want %v", tt.overlap, x, tt.x)
		}
		if f.Data[0]["name"] != "Sampling Time (16 pts)" {
			t.Errorf("name = %v", f.Data[0]["name"])
		}
		if figureTitle(f) != "Sampling vs Difficulty - M1 (16 pts)" {
			t.Errorf("title = %v", figureTitle(f))
		}
	}
}
