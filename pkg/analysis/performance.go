package analysis

import (
	"fmt"
	"math"
	"time"

	"github.com/matzehuels/afcplot/pkg/errors"
	"github.com/matzehuels/afcplot/pkg/plot"
	"github.com/matzehuels/afcplot/pkg/plot/colors"
)

// PerfPlot selects one curve of the performance-over-time figure.
type PerfPlot int

// Performance figure curves.
const (
	PlotPerformance PerfPlot = iota
	PlotDifficulties
	PlotDifficultiesCount
	PlotBias
	PlotEarlyWD
	PlotSamplingT
	PlotMovementT
	PlotReactionT
	PlotCatchWT
	PlotMaxFeedbackDelay
	PlotStimAPO
	PlotHeadFixDate
)

// AllPerfPlots enables every curve.
var AllPerfPlots = []PerfPlot{
	PlotPerformance, PlotDifficulties, PlotDifficultiesCount, PlotBias,
	PlotEarlyWD, PlotSamplingT, PlotMovementT, PlotReactionT, PlotCatchWT,
	PlotMaxFeedbackDelay, PlotStimAPO, PlotHeadFixDate,
}

var perfPlotNames = map[PerfPlot]string{
	PlotPerformance:       "performance",
	PlotDifficulties:      "difficulties",
	PlotDifficultiesCount: "difficulties-count",
	PlotBias:              "bias",
	PlotEarlyWD:           "early-wd",
	PlotSamplingT:         "sampling-time",
	PlotMovementT:         "movement-time",
	PlotReactionT:         "reaction-time",
	PlotCatchWT:           "catch-wait-time",
	PlotMaxFeedbackDelay:  "max-feedback-delay",
	PlotStimAPO:           "stim-after-poke-out",
	PlotHeadFixDate:       "head-fix-date",
}

func (pp PerfPlot) String() string {
	if s, ok := perfPlotNames[pp]; ok {
		return s
	}
	return fmt.Sprintf("PerfPlot(%d)", int(pp))
}

// ParsePerfPlots parses curve names such as "performance" or "bias".
// An empty list selects every curve.
func ParsePerfPlots(names []string) ([]PerfPlot, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]PerfPlot, 0, len(names))
	for _, n := range names {
		found := false
		for pp, s := range perfPlotNames {
			if s == n {
				out = append(out, pp)
				found = true
				break
			}
		}
		if !found {
			return nil, errors.New(errors.ErrCodeInvalidInput, "unknown performance curve %q", n)
		}
	}
	return out, nil
}

const (
	minSessionTrials = 50
	sessionBinSize   = 20
	numDifficulties  = 4
)

// PerfOptions controls PerformanceOverTime.
type PerfOptions struct {
	// SingleSession bins the trials of one session by 20 instead of
	// plotting one point per session.
	SingleSession bool
	// HeadFixation marks the first session on or after this date.
	HeadFixation *time.Time
	// Plots lists the curves to draw; nil draws all of them.
	Plots []PerfPlot
	// NoLegend skips Draw and Legend so the caller can add more traces.
	NoLegend bool
	// ReverseAlphas fades the sampling-time curve instead of the movement time.
	ReverseAlphas bool
}

func (o PerfOptions) enabled(pp PerfPlot) bool {
	if o.Plots == nil {
		return true
	}
	for _, p := range o.Plots {
		if p == pp {
			return true
		}
	}
	return false
}

// block is the per-session (or per-bin) summary of a performance figure.
type block struct {
	x            float64
	performance  float64
	earlyWD      float64
	leftBias     float64
	sampling     float64
	samplingStd  float64
	movement     float64
	movementStd  float64
	reaction     float64
	reactionStd  float64
	feedbackMax  float64
	catchCorrect float64
	catchError   float64
	stimAPO      bool
	difficulties [numDifficulties]float64
	numDiffs     int
}

// PerformanceOverTime draws the learning curve of one animal: session
// performance, early withdrawals, bias and the difficulty levels in percent
// on the primary axis, and the timing metrics in seconds on a secondary axis.
func (a *Analyzer) PerformanceOverTime(p *plot.Plotter, trials []Trial, o PerfOptions) error {
	names := Animals(trials)
	if len(names) != 1 {
		return errors.New(errors.ErrCodeInvalidInput, "performance over time needs exactly one animal, got %v", names)
	}
	animal := a.DisplayName(names[0])

	sorted := sortedTrials(trials)
	title := "Performance over time " + animal
	xLabel := "Session Num"
	if o.SingleSession {
		title = "Session performance " + animal + sorted[0].Date.Format(" - 2006-01-02")
		xLabel = "Trial Num"
	}
	p.SetXLabel(xLabel)
	if err := p.SetYLim(plot.At(0), plot.At(105)); err != nil {
		return err
	}
	p.SetYTickSuffix("%")
	p.SetYLabel("Rate (%)")
	p.SetGraphTitle(title)

	blocks, headFixIdx := a.summarize(sorted, o)
	if len(blocks) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no session of %s has at least %d trials", animal, minSessionTrials)
	}
	x := make([]float64, len(blocks))
	for i, b := range blocks {
		x[i] = b.x
	}
	if err := p.SetXLim(plot.At(x[0]), plot.At(x[len(x)-1])); err != nil {
		return err
	}

	if err := a.primaryCurves(p, blocks, x, o); err != nil {
		return err
	}
	if err := a.timingCurves(p, blocks, x, o); err != nil {
		return err
	}

	if err := p.CreateHLine(50, plot.Options{plot.KeyColor: "gray", plot.KeyLineStyle: "dashed", plot.KeyZOrder: -1}); err != nil {
		return err
	}
	if o.enabled(PlotHeadFixDate) && headFixIdx >= 0 {
		if err := p.CreateVLine(float64(headFixIdx), plot.Options{
			plot.KeyColor:     "gray",
			plot.KeyLineStyle: "-",
			plot.KeyAlpha:     1.0,
			plot.KeyZOrder:    -1,
			plot.KeyLabel:     "1st head-fixed session",
		}); err != nil {
			return err
		}
	}

	if o.NoLegend {
		return nil
	}
	if err := p.Draw(); err != nil {
		return err
	}
	return p.Legend(plot.Options{
		plot.KeyLoc:          "upper center",
		plot.KeyBBoxToAnchor: []float64{0.5, -0.18},
		plot.KeyNCol:         3,
		plot.KeyFancyBox:     true,
		plot.KeyProp:         map[string]any{"size": "small"},
	})
}

// summarize reduces the trials to one block per session, or per bin of 20
// trials in single-session mode. It also returns the index of the first
// head-fixed block, or -1.
func (a *Analyzer) summarize(sorted []Trial, o PerfOptions) ([]block, int) {
	var groups [][]Trial
	if o.SingleSession {
		for i := 0; i < len(sorted); i += sessionBinSize {
			groups = append(groups, sorted[i:min(i+sessionBinSize, len(sorted))])
		}
	} else {
		for _, s := range Sessions(sorted) {
			groups = append(groups, s.Trials)
		}
	}

	headFix := -1
	var blocks []block
	for _, g := range groups {
		var b block
		n := len(g)
		if o.SingleSession {
			if n < 2 {
				continue
			}
			var chose, correct int
			for _, t := range g {
				if t.Chose() {
					chose++
					if t.Correct() {
						correct++
					}
				}
			}
			if chose > 0 {
				b.performance = float64(correct) / float64(chose)
			}
			for _, t := range g {
				b.x = max(b.x, float64(t.TrialNumber))
			}
		} else {
			n = g[0].MaxTrial
			if n < minSessionTrials {
				a.Logger.Debug("skipping short session", "date", g[0].Date.Format(dayLayout), "trials", n)
				continue
			}
			b.performance = g[0].SessionPerformance / 100
			b.x = float64(len(blocks) + 1)
		}
		fillBlock(&b, g, n)
		blocks = append(blocks, b)

		if o.HeadFixation != nil && headFix < 0 && !g[0].Date.Before(*o.HeadFixation) {
			headFix = len(blocks) - 1
		}
	}
	return blocks, headFix
}

func fillBlock(b *block, g []Trial, n int) {
	var ewd, stimAPO float64
	var leftCorrect, rightCorrect, left float64
	var st, mt, rt, fbMax, catchOK, catchErr []float64
	for _, t := range g {
		if t.EarlyWithdrawal {
			ewd++
		}
		if t.StimAfterPokeOut {
			stimAPO++
		}
		if t.LeftRewarded {
			left++
			if t.Correct() {
				leftCorrect++
			}
		} else if t.Correct() {
			rightCorrect++
		}
		st = append(st, t.ST)
		mt = append(mt, t.MT)
		if t.ReactionTime != -1 {
			rt = append(rt, t.ReactionTime)
		}
		fbMax = append(fbMax, t.FeedbackDelayMax)
		if bool(t.CatchError) && t.Incorrect() {
			catchErr = append(catchErr, t.FeedbackTime)
		}
		if t.CaughtCorrect() {
			catchOK = append(catchOK, t.FeedbackTime)
		}
	}
	total := float64(n)
	right := total - left
	var perfL, perfR float64
	if left > 0 {
		perfL = leftCorrect / left
	}
	if right > 0 {
		perfR = rightCorrect / right
	}

	b.earlyWD = ewd / total
	b.leftBias = (perfL-perfR)/2 + 0.5
	b.stimAPO = math.Round(stimAPO/total) != 0
	st, mt, rt = dropNaN(st), dropNaN(mt), dropNaN(rt)
	b.sampling, b.samplingStd = mean(st), std(st)
	b.movement, b.movementStd = mean(mt), std(mt)
	b.reaction, b.reactionStd = mean(rt), std(rt)
	b.feedbackMax = mean(dropNaN(fbMax))
	b.catchCorrect = mean(catchOK)
	b.catchError = mean(catchErr)

	rdk := true
	for _, t := range g {
		if t.ExperimentType != RDK {
			rdk = false
			break
		}
	}
	for d := range numDifficulties {
		var valid []float64
		for _, t := range g {
			if v := t.Difficulties()[d]; v != nil && !math.IsNaN(*v) {
				valid = append(valid, *v)
			}
		}
		b.difficulties[d] = math.NaN()
		// Settings used briefly while the experimenter edited the table
		// are not plotted.
		if len(valid) >= 5 && float64(len(valid)) > float64(len(g))/10 {
			m := mean(valid)
			if rdk {
				m = (m - 50) * 2
			}
			b.difficulties[d] = m
			b.numDiffs++
		}
	}
	b.numDiffs = min(3, b.numDiffs)
}

func (a *Analyzer) primaryCurves(p *plot.Plotter, blocks []block, x []float64, o PerfOptions) error {
	diffColors, err := colors.Range("green", "orange", numDifficulties)
	if err != nil {
		return err
	}
	type curve struct {
		plot  PerfPlot
		color string
		label string
		alpha float64
		value func(block) float64
	}
	curves := []curve{
		{PlotPerformance, "black", "Performance Rate", 1, func(b block) float64 { return 100 * b.performance }},
		{PlotEarlyWD, "blue", "Early-Withdrawal Rate", 1, func(b block) float64 { return 100 * b.earlyWD }},
		{PlotBias, "cyan", "Left Bias Rate", 0.6, func(b block) float64 { return 100 * b.leftBias }},
	}
	for d := range numDifficulties {
		curves = append(curves, curve{PlotDifficulties, diffColors[d], fmt.Sprintf("Difficulty %d", d+1), 0.8,
			func(b block) float64 { return b.difficulties[d] }})
	}
	for _, c := range curves {
		y := column(blocks, c.value)
		if !o.enabled(c.plot) || nanSum(y) == 0 {
			continue
		}
		if err := p.AddLine(x, y, plot.Options{
			plot.KeyColor:     c.color,
			plot.KeyLabel:     c.label,
			plot.KeyAlpha:     c.alpha,
			plot.KeyLineStyle: "solid",
		}); err != nil {
			return err
		}
	}

	if o.enabled(PlotDifficultiesCount) {
		size := max(20, min(50, 7500/float64(len(blocks))))
		if p.Backend().Mode() == plot.ModeInteractive {
			size /= 5
		}
		for n := 1; n <= numDifficulties; n++ {
			var xs, ys []float64
			for i, b := range blocks {
				if b.numDiffs == n {
					xs = append(xs, x[i])
					ys = append(ys, 100*b.performance)
				}
			}
			if len(xs) == 0 {
				continue
			}
			// gist_gray: one level is black, more levels are lighter
			gray := float64(n) / 3
			if n == 1 {
				gray = 0
			}
			label := fmt.Sprintf("%d difficulties", n)
			if n == 1 {
				label = "1 difficulty"
			}
			if err := p.AddScatter(xs, ys, plot.Options{
				plot.KeyColor:      []float64{gray, gray, gray},
				plot.KeyEdgeColors: "black",
				plot.KeyMarker:     "o",
				plot.KeyZOrder:     10,
				plot.KeyS:          size,
				plot.KeyLabel:      label,
			}); err != nil {
				return err
			}
		}
	}

	if o.enabled(PlotStimAPO) {
		y := column(blocks, func(b block) float64 {
			if b.stimAPO {
				return 100
			}
			return math.NaN()
		})
		if err := p.AddStep(x, y, plot.Options{
			plot.KeyColor:     "green",
			plot.KeyLineStyle: "-",
			plot.KeyLabel:     "Stim-After-Poke",
			plot.KeyAlpha:     0.5,
			plot.KeyWhere:     "mid",
		}); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) timingCurves(p *plot.Plotter, blocks []block, x []float64, o PerfOptions) error {
	if !o.enabled(PlotSamplingT) && !o.enabled(PlotMovementT) && !o.enabled(PlotReactionT) &&
		!o.enabled(PlotMaxFeedbackDelay) && !o.enabled(PlotCatchWT) {
		return nil
	}
	p2, err := p.AddYAxis()
	if err != nil {
		return err
	}
	if err := p2.SetYTickLabelColor("black"); err != nil {
		return err
	}
	p2.SetYLabel("Time (s)")
	catchOK := column(blocks, func(b block) float64 { return b.catchCorrect })
	catchErr := column(blocks, func(b block) float64 { return b.catchError })
	top := 4.0
	for _, v := range []float64{nanMax(catchOK), nanMax(catchErr)} {
		if !math.IsNaN(v) {
			top = max(top, v)
		}
	}
	if err := p2.SetYLim(plot.At(0), plot.At(top)); err != nil {
		return err
	}

	alphas := []float64{1.0, 0.6, 0.8, 0.5, 1.0, 1.0}
	shaded := []float64{0.1, 0.15, 0.1}
	if o.ReverseAlphas {
		alphas = []float64{0.2, 0.8, 0.8, 0.5, 1.0, 1.0}
		shaded = []float64{0.04, 0.1, 0.1}
	}
	type curve struct {
		plot   PerfPlot
		color  string
		label  string
		marker string
		value  func(block) float64
		std    func(block) float64
	}
	curves := []curve{
		{PlotSamplingT, "red", "Sampling Time (s)", "", func(b block) float64 { return b.sampling }, func(b block) float64 { return b.samplingStd }},
		{PlotMovementT, "magenta", "Movement Time (s)", "", func(b block) float64 { return b.movement }, func(b block) float64 { return b.movementStd }},
		{PlotReactionT, "gray", "Reaction Time (s)", "", func(b block) float64 { return b.reaction }, func(b block) float64 { return b.reactionStd }},
		{PlotMaxFeedbackDelay, "orange", "Used Feedback Delay (s)", "", func(b block) float64 { return b.feedbackMax }, nil},
		{PlotCatchWT, "green", "Catch Correct (s)", "+", func(b block) float64 { return b.catchCorrect }, nil},
		{PlotCatchWT, "red", "Catch Error (s)", "+", func(b block) float64 { return b.catchError }, nil},
	}
	for i, c := range curves {
		y := column(blocks, c.value)
		if !o.enabled(c.plot) || nanSum(y) == 0 {
			continue
		}
		opts := plot.Options{
			plot.KeyColor:           c.color,
			plot.KeyLineStyle:       "-",
			plot.KeyLabel:           c.label,
			plot.KeyAlpha:           alphas[i],
			plot.KeyMarkerEdgeColor: c.color,
		}
		if c.marker != "" {
			opts[plot.KeyMarker] = c.marker
			opts[plot.KeyLineStyle] = "None"
		}
		if err := p2.AddLine(x, y, opts); err != nil {
			return err
		}
		if c.std == nil {
			continue
		}
		sd := column(blocks, c.std)
		lower := make([]float64, len(y))
		upper := make([]float64, len(y))
		for j := range y {
			lower[j], upper[j] = y[j]-sd[j], y[j]+sd[j]
		}
		if err := p2.FillBetween(x, lower, upper, c.color, shaded[i], plot.DefaultZOrder); err != nil {
			return err
		}
	}
	return nil
}

func column(blocks []block, f func(block) float64) []float64 {
	out := make([]float64, len(blocks))
	for i, b := range blocks {
		out[i] = f(b)
	}
	return out
}
