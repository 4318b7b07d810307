package analysis

import (
	"fmt"
	"math"

	"github.com/matzehuels/afcplot/pkg/plot"
)

// samplingDurations are the minimum-sampling settings compared in chronometry.
var samplingDurations = []float64{0.3, 0.6, 0.9, 1.2, 1.5}

// coherenceGroups name the three equal-width |DV| groups, weakest first.
var coherenceGroups = []struct {
	percent int
	color   string
}{{10, "r"}, {50, "g"}, {100, "b"}}

// Chronometry plots performance against the minimum sampling duration, one
// line per stimulus-strength group, with the SEM drawn as a band.
func (a *Analyzer) Chronometry(p *plot.Plotter, trials []Trial) error {
	var kept []Trial
	for _, t := range trials {
		if t.Scored() && (t.MinSample <= 1.2 || t.MinSample == 1.5) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, t := range kept {
		lo = math.Min(lo, math.Abs(t.DV))
		hi = math.Max(hi, math.Abs(t.DV))
	}
	groups := make([][]Trial, len(coherenceGroups))
	edges := linspace(lo, hi, len(coherenceGroups)+1)
	for _, t := range kept {
		g := binIndex(edges, math.Abs(t.DV))
		groups[g] = append(groups[g], t)
	}

	for gi, group := range groups {
		y := make([]float64, len(samplingDurations))
		lower := make([]float64, len(samplingDurations))
		upper := make([]float64, len(samplingDurations))
		points := 0
		for i, ms := range samplingDurations {
			var outcome []float64
			for _, t := range group {
				if math.Abs(t.MinSample-ms) <= 0.001 {
					outcome = append(outcome, *t.ChoiceCorrect)
				}
			}
			points += len(outcome)
			y[i] = 100 * mean(outcome)
			e := 100 * sem(outcome)
			lower[i], upper[i] = y[i]-e, y[i]+e
		}
		c := coherenceGroups[gi]
		label := fmt.Sprintf("%d%% Coherence (%s trials)", c.percent, commaInt(points))
		if err := p.AddLine(samplingDurations, y, plot.Options{
			plot.KeyColor:  c.color,
			plot.KeyMarker: "o",
			plot.KeyLabel:  label,
		}); err != nil {
			return err
		}
		if err := p.FillBetween(samplingDurations, lower, upper, c.color, 0.2, plot.DefaultZOrder); err != nil {
			return err
		}
	}

	p.SetGraphTitle("Chronometry - " + joinNames(kept))
	p.SetXLabel("Sampling Duration (s)")
	p.SetYLabel("Performance %")
	p.SetXTickValues(samplingDurations)
	if err := p.Draw(); err != nil {
		return err
	}
	return p.Legend(plot.Options{
		plot.KeyLoc:  "upper left",
		plot.KeyProp: map[string]any{"size": "x-small"},
	})
}
