package analysis

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/matzehuels/afcplot/pkg/errors"
	"github.com/matzehuels/afcplot/pkg/plot"
)

const (
	// feedbackDelayExponential is the GUI_FeedbackDelaySelection value of
	// sessions whose reward delay is drawn from an exponential distribution.
	feedbackDelayExponential = 3
	// minWaitTime drops trials the animal left before its wait could carry
	// any confidence signal.
	minWaitTime = 0.5

	vevaiometricBins   = 6
	wtHistStep         = 0.5
	wtKDEBandwidth     = 0.2
	wtKDEPoints        = 500
	wtAxisMax          = 15
	sparseBinFraction  = 0.15
	accWTGroupSize     = 100
	minShortLongTrials = 10
)

// WTFilter removes waiting-time outliers from a group of trials.
type WTFilter func([]Trial) []Trial

// Waiting-time filter names accepted by ParseWTFilter.
const (
	WTFilterNone = "none"
	WTFilterIQR  = "iqr"
)

// ParseWTFilter returns the filter named name. The empty name and "none"
// return a nil filter, which keeps every trial.
func ParseWTFilter(name string) (WTFilter, error) {
	switch name {
	case "", WTFilterNone:
		return nil, nil
	case WTFilterIQR:
		return FilterWTIQR, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidInput, "unknown waiting-time filter %q (want none or iqr)", name)
}

// FilterWTIQR keeps the trials whose waiting time lies strictly between
// Q1-1.5*IQR and Q3+1.5*IQR.
func FilterWTIQR(trials []Trial) []Trial {
	wt := feedbackTimes(trials)
	q1, q3 := quantile(0.25, wt), quantile(0.75, wt)
	iqr := q3 - q1
	return keepWaits(trials, q1-1.5*iqr, q3+1.5*iqr)
}

// FilterWTQuantile keeps the trials strictly between the low and high
// waiting-time quantiles.
func FilterWTQuantile(low, high float64) WTFilter {
	return func(trials []Trial) []Trial {
		wt := feedbackTimes(trials)
		return keepWaits(trials, quantile(low, wt), quantile(high, wt))
	}
}

func keepWaits(trials []Trial, lo, hi float64) []Trial {
	return selectTrials(trials, func(t *Trial) bool {
		return lo < t.FeedbackTime && t.FeedbackTime < hi
	})
}

// WTOptions controls the waiting-time figures.
type WTOptions struct {
	// Filter removes waiting-time outliers; nil keeps every trial.
	Filter WTFilter
	// MaxWaitTime drops trials that waited this long or longer; 0 keeps all.
	MaxWaitTime float64
}

func (o WTOptions) apply(trials []Trial) []Trial {
	if o.Filter == nil {
		return trials
	}
	return o.Filter(trials)
}

// waitingTrials returns the trials of exponential-delay sessions with catch
// errors enabled, the only sessions where the waiting time measures
// confidence.
func waitingTrials(trials []Trial, maxWait float64) []Trial {
	return selectTrials(trials, func(t *Trial) bool {
		if t.FeedbackDelaySelection != feedbackDelayExponential || !bool(t.CatchError) {
			return false
		}
		return t.FeedbackTime > minWaitTime && (maxWait <= 0 || t.FeedbackTime < maxWait)
	})
}

// caughtOrWrong keeps the trials whose waiting time was not cut short by a
// reward: errors and catch trials.
func caughtOrWrong(t *Trial) bool { return t.Incorrect() || bool(t.CatchTrial) }

func selectTrials(trials []Trial, keep func(*Trial) bool) []Trial {
	var out []Trial
	for i := range trials {
		if keep(&trials[i]) {
			out = append(out, trials[i])
		}
	}
	return out
}

func feedbackTimes(trials []Trial) []float64 {
	out := make([]float64, len(trials))
	for i := range trials {
		out[i] = trials[i].FeedbackTime
	}
	return out
}

// outcomes are the two trial types whose waiting times are compared.
var outcomes = []struct {
	name, color string
	keep        func(*Trial) bool
}{
	{"Error", "r", (*Trial).Incorrect},
	{"Catch", "g", (*Trial).CaughtCorrect},
}

// Vevaiometric plots the waiting time of error and correct catch trials
// against the stimulus. Each side of the stimulus axis gets a linear fit per
// trial type, the bin means and a SEM band around the fit.
func (a *Analyzer) Vevaiometric(p *plot.Plotter, trials []Trial, o WTOptions) error {
	pool := o.apply(selectTrials(waitingTrials(trials, o.MaxWaitTime), caughtOrWrong))
	if len(pool) == 0 {
		a.Logger.Info("no waiting-time trials, skipping vevaiometric")
		return nil
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, t := range pool {
		lo, hi = math.Min(lo, t.DV), math.Max(hi, t.DV)
	}
	edges := linspace(lo, hi, vevaiometricBins+1)

	wtLo, wtHi := math.Inf(1), math.Inf(-1)
	for _, kind := range outcomes {
		group := selectTrials(pool, kind.keep)
		var perBin [vevaiometricBins][]float64
		var sides [2]struct{ dv, wt []float64 }
		for _, t := range group {
			b := binIndex(edges, t.DV)
			perBin[b] = append(perBin[b], t.FeedbackTime)
			s := 0
			if t.DV >= 0 {
				s = 1
			}
			sides[s].dv = append(sides[s].dv, t.DV)
			sides[s].wt = append(sides[s].wt, t.FeedbackTime)
		}

		label := fmt.Sprintf("%s Trials (%s pts)", kind.name, commaInt(len(group)))
		for s, side := range sides {
			if len(side.dv) < 2 {
				continue
			}
			intercept, slope := stat.LinearRegression(side.dv, side.wt, nil, false)
			if math.IsNaN(slope) || math.IsInf(slope, 0) {
				a.Logger.Debug("no waiting-time trend", "trials", kind.name, "side", s)
				continue
			}
			fitX := linspace(-1, 0, 6)
			from, to := 0, vevaiometricBins/2
			if s == 1 {
				fitX = linspace(0, 1, 6)
				from, to = vevaiometricBins/2, vevaiometricBins
			}
			fitY := make([]float64, len(fitX))
			for i, x := range fitX {
				fitY[i] = intercept + slope*x
			}
			opts := plot.Options{plot.KeyColor: kind.color, plot.KeyLineWidth: 2}
			if label != "" {
				opts[plot.KeyLabel] = label
				label = ""
			}
			if err := p.AddLine(fitX, fitY, opts); err != nil {
				return err
			}

			var x, lower, upper, means []float64
			for b := from; b < to; b++ {
				if len(perBin[b]) == 0 {
					continue
				}
				// the outer edge of each bin, so both sides reach ±1
				edge := edges[b]
				if s == 1 {
					edge = edges[b+1]
				}
				dv := math.Max(-1, math.Min(1, edge))
				y := intercept + slope*dv
				e := sem(perBin[b])
				if math.IsNaN(e) {
					e = 0
				}
				m := mean(perBin[b])
				x = append(x, dv)
				lower = append(lower, y-e)
				upper = append(upper, y+e)
				means = append(means, m)
				wtLo = math.Min(wtLo, math.Max(0, m-1))
				wtHi = math.Max(wtHi, m+1)
			}
			if len(x) == 0 {
				continue
			}
			if err := p.FillBetween(x, lower, upper, kind.color, 0.3, plot.DefaultZOrder); err != nil {
				return err
			}
			if err := p.AddLine(x, means, plot.Options{
				plot.KeyColor:           kind.color,
				plot.KeyLineStyle:       "None",
				plot.KeyMarker:          "o",
				plot.KeyMarkerSize:      8,
				plot.KeyMarkerFaceColor: kind.color,
				plot.KeyMarkerEdgeColor: kind.color,
			}); err != nil {
				return err
			}
		}
	}

	ticks := linspace(-1, 1, 6)
	labels := make([]string, len(ticks))
	for i, t := range ticks {
		labels[i] = coherenceLabel(t)
	}
	p.SetGraphTitle("Vevaiometric - " + joinNames(pool))
	if err := p.SetXLim(plot.At(-1.05), plot.At(1.05)); err != nil {
		return err
	}
	if wtHi > wtLo {
		if err := p.SetYLim(plot.At(wtLo), plot.At(wtHi)); err != nil {
			return err
		}
	}
	p.SetXTickValues(ticks)
	p.SetXTickLabels(labels)
	p.SetXLabel(a.stimulusLabel())
	p.SetYLabel("Waiting Time (s)")
	if err := p.Draw(); err != nil {
		return err
	}
	return p.Legend(plot.Options{
		plot.KeyLoc:  "upper right",
		plot.KeyProp: map[string]any{"size": "small"},
	})
}

// CatchWTOptions controls CatchWTDistrib.
type CatchWTOptions struct {
	WTOptions
	// Histogram draws normalized half-second histograms with a kernel
	// density estimate instead of the normalized cumulative waiting time.
	Histogram bool
	// LabelPrefix names the trial subset in the legend, e.g. "Easy".
	LabelPrefix string
}

// CatchWTDistrib plots the normalized waiting-time distribution of incorrect
// and correct catch trials.
func (a *Analyzer) CatchWTDistrib(p *plot.Plotter, trials []Trial, o CatchWTOptions) error {
	pool := o.apply(selectTrials(waitingTrials(trials, o.MaxWaitTime), caughtOrWrong))
	if len(pool) == 0 {
		a.Logger.Info("no waiting-time trials, skipping catch distribution")
		return nil
	}
	prefix := ""
	if o.LabelPrefix != "" {
		prefix = o.LabelPrefix + "-"
	}
	for _, g := range []struct {
		name, color string
		keep        func(*Trial) bool
	}{
		{"Incorrect", "r", (*Trial).Incorrect},
		{"Correct", "g", (*Trial).CaughtCorrect},
	} {
		wt := feedbackTimes(selectTrials(pool, g.keep))
		label := fmt.Sprintf("Norm. %sCatch %s (%s points)", prefix, g.name, commaInt(len(wt)))
		if len(wt) == 0 || floats.Max(wt)-floats.Min(wt) <= wtHistStep {
			// nothing to normalize, keep the count in the legend
			if err := p.AddLegendItem(plot.Options{plot.KeyColor: g.color, plot.KeyLabel: label}); err != nil {
				return err
			}
			continue
		}
		slices.Sort(wt)

		if !o.Histogram {
			cum := make([]float64, len(wt))
			floats.CumSum(cum, wt)
			floats.Scale(1/cum[len(cum)-1], cum)
			if err := p.AddLine(wt, cum, plot.Options{
				plot.KeyColor:  g.color,
				plot.KeyLabel:  label,
				plot.KeyZOrder: -1,
			}); err != nil {
				return err
			}
			continue
		}

		lo, hi := wt[0], wt[len(wt)-1]
		n := int((hi - lo) / wtHistStep)
		edges := linspace(lo, hi, n+1)
		counts := make([]float64, n)
		for _, v := range wt {
			counts[binIndex(edges, v)]++
		}
		floats.Scale(1/floats.Max(counts), counts)
		if err := p.AddLine(edges[:n], counts, plot.Options{
			plot.KeyColor:  g.color,
			plot.KeyAlpha:  0.3,
			plot.KeyZOrder: -1,
		}); err != nil {
			return err
		}

		xs := linspace(lo, hi, wtKDEPoints)
		density := gaussianKDE(wt, xs, wtKDEBandwidth)
		if peak := floats.Max(density); peak > 0 {
			floats.Scale(1/peak, density)
		}
		shifted := make([]float64, len(xs))
		for i, x := range xs {
			shifted[i] = x - wtKDEBandwidth
		}
		if err := p.AddLine(shifted, density, plot.Options{
			plot.KeyColor: g.color,
			plot.KeyLabel: label,
		}); err != nil {
			return err
		}
	}

	loc := "upper left"
	if o.Histogram {
		loc = "upper right"
	}
	p.SetGraphTitle("Accuracy vs WT - " + strings.Join(Animals(pool), " - "))
	p.SetXLabel("Waiting Time (s)")
	p.SetYLabel("Normalized Trial Count")
	if err := p.SetXLim(plot.At(0), plot.At(wtAxisMax)); err != nil {
		return err
	}
	if err := p.Draw(); err != nil {
		return err
	}
	return p.Legend(plot.Options{
		plot.KeyLoc:  loc,
		plot.KeyProp: map[string]any{"size": "xx-small"},
	})
}

// gaussianKDE evaluates a Gaussian kernel density at xs. The kernel width is
// bandwidth times the sample standard deviation of data.
func gaussianKDE(data, xs []float64, bandwidth float64) []float64 {
	out := make([]float64, len(xs))
	sigma := bandwidth * std(data)
	if math.IsNaN(sigma) || sigma == 0 {
		return out
	}
	for _, d := range data {
		k := distuv.Normal{Mu: d, Sigma: sigma}
		for i, x := range xs {
			out[i] += k.Prob(x)
		}
	}
	floats.Scale(1/float64(len(data)), out)
	return out
}

// AccWTMethod groups catch trials by waiting time for AccuracyWT.
type AccWTMethod int

const (
	// AccWTHist uses one-second bins and plots each at the bin center.
	AccWTHist AccWTMethod = iota
	// AccWTEvery100 uses equal-count groups of about 100 trials.
	AccWTEvery100
	// AccWTMergeSparse folds bins holding less than 15% of the fullest bin
	// into the next populated one.
	AccWTMergeSparse
)

var accWTTitles = map[AccWTMethod]string{
	AccWTEvery100:    " (grouped in 100 trials)",
	AccWTMergeSparse: " (0.15 bins added to nearest)",
}

// AccuracyWTOptions controls AccuracyWT.
type AccuracyWTOptions struct {
	WTOptions
	Method AccWTMethod
}

type wtBucket struct {
	x      float64
	trials []Trial
}

// AccuracyWT plots the accuracy of catch trials against their waiting time,
// with the waiting-time histogram on the secondary axis.
func (a *Analyzer) AccuracyWT(p *plot.Plotter, trials []Trial, o AccuracyWTOptions) error {
	catch := o.apply(selectTrials(waitingTrials(trials, o.MaxWaitTime), func(t *Trial) bool {
		return bool(t.CatchTrial) && (t.Correct() || t.Incorrect())
	}))
	if len(catch) == 0 {
		a.Logger.Info("no catch trials, skipping accuracy vs waiting time")
		return nil
	}
	catch = slices.Clone(catch)
	slices.SortStableFunc(catch, func(x, y Trial) int { return cmp.Compare(x.FeedbackTime, y.FeedbackTime) })

	lo := math.Floor(catch[0].FeedbackTime)
	hi := math.Ceil(catch[len(catch)-1].FeedbackTime)
	nBins := max(1, int(hi-lo))
	hist := make([][]Trial, nBins)
	counts := make([]float64, nBins)
	barX := make([]float64, nBins)
	for b := range barX {
		barX[b] = lo + float64(b)
	}
	for _, t := range catch {
		b := min(int(t.FeedbackTime-lo), nBins-1)
		hist[b] = append(hist[b], t)
		counts[b]++
	}

	var buckets []wtBucket
	switch o.Method {
	case AccWTEvery100:
		n := (len(catch) + accWTGroupSize - 1) / accWTGroupSize
		for i := range n {
			part := catch[i*len(catch)/n : (i+1)*len(catch)/n]
			buckets = append(buckets, wtBucket{x: mean(feedbackTimes(part)), trials: part})
		}
	case AccWTMergeSparse:
		peak := floats.Max(counts)
		var carry []Trial
		for _, h := range hist {
			if len(h) == 0 {
				continue
			}
			if float64(len(h))/peak < sparseBinFraction {
				carry = append(carry, h...)
				continue
			}
			buckets = append(buckets, wtBucket{trials: slices.Concat(carry, h)})
			carry = nil
		}
		if len(carry) > 0 {
			last := &buckets[len(buckets)-1]
			last.trials = slices.Concat(last.trials, carry)
		}
		for i := range buckets {
			buckets[i].x = mean(feedbackTimes(buckets[i].trials))
		}
	default:
		for b, h := range hist {
			if len(h) > 0 {
				buckets = append(buckets, wtBucket{x: barX[b] + 0.5, trials: h})
			}
		}
	}

	var x, y, lower, upper []float64
	var correct, incorrect int
	for _, b := range buckets {
		outcome := make([]float64, len(b.trials))
		for i, t := range b.trials {
			outcome[i] = *t.ChoiceCorrect
			if t.Correct() {
				correct++
			} else {
				incorrect++
			}
		}
		m, e := mean(outcome), sem(outcome)
		if math.IsNaN(e) {
			e = 0
		}
		x = append(x, b.x)
		y = append(y, m)
		lower = append(lower, m-e)
		upper = append(upper, m+e)
	}
	if err := p.AddLine(x, y, plot.Options{
		plot.KeyColor:           "k",
		plot.KeyLineWidth:       0.5,
		plot.KeyMarker:          "o",
		plot.KeyMarkerSize:      10,
		plot.KeyMarkerFaceColor: "b",
	}); err != nil {
		return err
	}
	if err := p.FillBetween(x, lower, upper, "b", 0.2, plot.DefaultZOrder); err != nil {
		return err
	}

	sec, err := p.AddYAxis()
	if err != nil {
		return err
	}
	if err := sec.AddBar(barX, counts, plot.Options{
		plot.KeyColor:     "pink",
		plot.KeyEdgeColor: "k",
		plot.KeyWidth:     1.0,
		plot.KeyAlign:     "edge",
		plot.KeyLabel:     "Waiting Time",
		plot.KeyZOrder:    -1,
	}); err != nil {
		return err
	}

	p.SetGraphTitle(fmt.Sprintf("Accuracy vs WT%s: %s (%s correct / %s incorrect pts)",
		accWTTitles[o.Method], strings.Join(Animals(catch), " - "), commaInt(correct), commaInt(incorrect)))
	p.SetXLabel("Waiting Time (s)")
	p.SetYLabel("Accuracy")
	sec.SetYLabel("Trials Count")
	if err := p.SetYTickLabelColor("b"); err != nil {
		return err
	}
	if err := sec.SetYTickLabelColor("r"); err != nil {
		return err
	}
	if err := p.SetYLim(plot.At(0.5), plot.At(1)); err != nil {
		return err
	}
	if err := p.SetXLim(plot.At(0), plot.At(wtAxisMax)); err != nil {
		return err
	}
	return p.Draw()
}

// ShortLongOptions controls ShortLongWT.
type ShortLongOptions struct {
	WTOptions
	// Quantile splits the catch trials into short and long waits; 0 means
	// the median.
	Quantile float64
	// Mirror takes the long waits above the 1-Quantile quantile instead of
	// the same split point.
	Mirror bool
}

// ShortLongWT draws one psychometric curve for catch trials with short
// waiting times and one for long waiting times.
func (a *Analyzer) ShortLongWT(p *plot.Plotter, trials []Trial, o ShortLongOptions) error {
	q := o.Quantile
	if q == 0 {
		q = 0.5
	}
	if q < 0 || q >= 1 {
		return errors.New(errors.ErrCodeInvalidInput, "waiting-time quantile %g outside (0, 1)", q)
	}
	pool := o.apply(waitingTrials(trials, o.MaxWaitTime))
	catch := selectTrials(pool, func(t *Trial) bool { return bool(t.CatchTrial) })
	if len(catch) < minShortLongTrials {
		a.Logger.Info("too few catch trials, skipping short/long waiting time", "trials", len(catch))
		return nil
	}
	wt := feedbackTimes(catch)
	low := quantile(q, wt)
	high := low
	if o.Mirror {
		high = quantile(1-q, wt)
	}
	short := selectTrials(catch, func(t *Trial) bool { return t.FeedbackTime < low })
	long := selectTrials(catch, func(t *Trial) bool { return high <= t.FeedbackTime })

	if err := a.PsychAxes(p, ""); err != nil {
		return err
	}
	title := fmt.Sprintf("%s (Short-WT < %g quantile", joinNames(pool), q)
	if o.Mirror {
		title += fmt.Sprintf(" / Long-WT > %g", 1-q)
	}
	p.SetGraphTitle(title + ")")

	for _, g := range []struct {
		name, color string
		trials      []Trial
	}{
		{"Short-WT", "purple", short},
		{"Long-WT", "blue", long},
	} {
		var correct, incorrect int
		for i := range g.trials {
			if g.trials[i].Correct() {
				correct++
			} else if g.trials[i].Incorrect() {
				incorrect++
			}
		}
		label := fmt.Sprintf("%s - %s pts (correct: %s, incorrect: %s)",
			g.name, commaInt(len(g.trials)), commaInt(correct), commaInt(incorrect))
		if _, _, err := a.Psych(p, g.trials, PsychOptions{
			Color: g.color,
			Label: label,
			SEM:   true,
		}); err != nil {
			return err
		}
	}
	if err := p.Draw(); err != nil {
		return err
	}
	return p.Legend(plot.Options{
		plot.KeyLoc:  "upper left",
		plot.KeyProp: map[string]any{"size": "x-small"},
	})
}

// SamplingVsDifficulty plots the mean sampling time per stimulus strength
// with its SEM band. overlapSides merges both sides by |DV|.
func (a *Analyzer) SamplingVsDifficulty(p *plot.Plotter, trials []Trial, overlapSides bool) error {
	scored := selectTrials(trials, (*Trial).Scored)
	if len(scored) == 0 {
		return nil
	}
	groups := make(map[float64][]float64)
	for _, t := range scored {
		dv := t.DV
		if overlapSides {
			dv = math.Abs(dv)
		}
		groups[dv] = append(groups[dv], t.ST)
	}
	var x, y, lower, upper []float64
	for _, dv := range slices.Sorted(maps.Keys(groups)) {
		st := groups[dv]
		m, e := mean(st), sem(st)
		if math.IsNaN(e) {
			e = 0
		}
		coherence := math.Round(dv * 100)
		a.Logger.Debug("sampling time", "coherence", coherence, "trials", len(st), "mean", m)
		x = append(x, coherence)
		y = append(y, m)
		lower = append(lower, m-e)
		upper = append(upper, m+e)
	}
	if err := p.AddLine(x, y, plot.Options{
		plot.KeyColor:  "b",
		plot.KeyMarker: "o",
		plot.KeyLabel:  fmt.Sprintf("Sampling Time (%s pts)", commaInt(len(scored))),
	}); err != nil {
		return err
	}
	if err := p.FillBetween(x, lower, upper, "b", 0.2, plot.DefaultZOrder); err != nil {
		return err
	}
	p.SetGraphTitle(fmt.Sprintf("Sampling vs Difficulty - %s (%s pts)", joinNames(scored), commaInt(len(scored))))
	p.SetXLabel("Coherence %")
	p.SetYLabel("Sampling Time (s)")
	if err := p.Draw(); err != nil {
		return err
	}
	return p.Legend(plot.Options{
		plot.KeyLoc:  "upper right",
		plot.KeyProp: map[string]any{"size": "small"},
	})
}
