package analysis

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/matzehuels/afcplot/pkg/plot"
)

const (
	stimBins  = 10
	extraBins = 2
	curvePts  = 50
)

// PsychAxes sets up the axes of a psychometric figure: coherence ticks, the
// percentage scale and dashed chance lines.
func (a *Analyzer) PsychAxes(p *plot.Plotter, animal string) error {
	title := "Psychometric Stim"
	if animal != "" {
		title += " " + a.DisplayName(animal)
	}
	xLabel := a.stimulusLabel()
	ticks := []float64{-1, -0.6, -0.2, 0.2, 0.6, 1}
	labels := make([]string, len(ticks))
	for i, t := range ticks {
		labels[i] = coherenceLabel(t)
	}

	p.SetGraphTitle(title)
	if err := p.SetYLim(plot.At(-5), plot.At(105)); err != nil {
		return err
	}
	if err := p.SetXLim(plot.At(-1.05), plot.At(1.05)); err != nil {
		return err
	}
	p.SetXLabel(xLabel)
	p.SetYLabel("Choice Left (%)")
	p.SetXTickValues(ticks)
	p.SetXTickLabels(labels)
	p.SetYTickSuffix("%")
	chance := plot.Options{plot.KeyColor: "gray", plot.KeyLineStyle: "dashed", plot.KeyZOrder: -10}
	if err := p.CreateVLine(0, chance); err != nil {
		return err
	}
	return p.CreateHLine(50, chance)
}

func (a *Analyzer) stimulusLabel() string {
	if a.ExpType == RDK {
		return "RDK Coherence"
	}
	return "Light Intensity"
}

// coherenceLabel renders a signed coherence as "60%R", "0%" or "20%L".
func coherenceLabel(tick float64) string {
	c := int(math.Round(100 * tick))
	side := ""
	switch {
	case c < 0:
		side, c = "R", -c
	case c > 0:
		side = "L"
	}
	return fmt.Sprintf("%d%%%s", c, side)
}

// PsychOptions controls one psychometric curve.
type PsychOptions struct {
	Color     any
	LineWidth float64
	// Label names the curve in the legend; empty leaves it unlabeled.
	Label string
	// Points draws the binned choice rates under the curve.
	Points bool
	// Offset pulls the binned points half a bin towards zero.
	Offset bool
	// SEM draws the 95% confidence band of the fit.
	SEM bool
	// MinSlope skips drawing the curve of shallower fits when non-nil.
	MinSlope *float64
}

// Psych draws the choice-left rate against the stimulus and the fitted
// logistic curve. It returns the fit, or ok=false when the trials could not
// be fitted.
func (a *Analyzer) Psych(p *plot.Plotter, trials []Trial, o PsychOptions) (fit Logistic, ok bool, err error) {
	if len(trials) == 0 {
		return Logistic{}, false, nil
	}
	if o.LineWidth == 0 {
		o.LineWidth = 2
	}
	if o.Color == nil {
		o.Color = "k"
	}
	var x, y []float64
	dvMin, dvMax := math.Inf(1), math.Inf(-1)
	for i := range trials {
		t := &trials[i]
		dvMin = math.Min(dvMin, t.DV)
		dvMax = math.Max(dvMax, t.DV)
		if t.Chose() && !bool(t.ForcedLEDTrial) {
			x = append(x, t.DV)
			y = append(y, *t.ChoiceLeft)
		}
	}

	if o.Points {
		px, py := binChoices(x, y, dvMin, dvMax, o.Offset)
		if err := p.AddLine(px, py, plot.Options{
			plot.KeyMarker:          "o",
			plot.KeyC:               o.Color,
			plot.KeyMarkerEdgeColor: o.Color,
			plot.KeyMarkerSize:      1.5 * o.LineWidth,
			plot.KeyLineStyle:       "None",
		}); err != nil {
			return Logistic{}, false, err
		}
	}
	if len(x) < 2 {
		return Logistic{}, false, nil
	}

	fit, err = FitLogistic(x, y)
	if errors.Is(err, ErrPerfectSeparation) {
		a.Logger.Warn("skipping logistic fit", "reason", err, "trials", len(x))
		return Logistic{}, false, nil
	}
	if err != nil {
		return Logistic{}, false, err
	}
	if o.MinSlope != nil && fit.Slope < *o.MinSlope {
		return fit, true, nil
	}

	xs := linspace(dvMin, dvMax, curvePts)
	ys := make([]float64, len(xs))
	lower := make([]float64, len(xs))
	upper := make([]float64, len(xs))
	for i, v := range xs {
		ys[i] = 100 * fit.Predict(v)
		lo, hi := fit.ConfInt(v, 0.05)
		lower[i], upper[i] = 100*lo, 100*hi
	}
	opts := plot.Options{plot.KeyColor: o.Color, plot.KeyLineWidth: o.LineWidth}
	if o.Label != "" {
		label := o.Label
		if o.Points {
			label = fmt.Sprintf("%s (%s trials)", label, commaInt(len(trials)))
		}
		opts[plot.KeyLabel] = label
	}
	if err := p.AddLine(xs, ys, opts); err != nil {
		return fit, true, err
	}
	if o.SEM {
		if err := p.FillBetween(xs, lower, upper, o.Color, 0.2, plot.DefaultZOrder); err != nil {
			return fit, true, err
		}
	}
	return fit, true, nil
}

// binChoices averages the choices over equal-width stimulus bins and maps
// each occupied bin to its position on the [-1, 1] coherence axis.
func binChoices(x, y []float64, lo, hi float64, offset bool) (px, py []float64) {
	edges := linspace(lo, hi, stimBins+extraBins)
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i, v := range x {
		b := binIndex(edges, v)
		sums[b] += y[i]
		counts[b]++
	}
	bins := make([]int, 0, len(counts))
	for b := range counts {
		bins = append(bins, b)
	}
	slices.Sort(bins)
	shift := 0.5 / (stimBins / 2)
	for _, b := range bins {
		pos := float64(b+1)/stimBins*2 - 1 - extraBins*(1.0/stimBins)
		if offset {
			switch {
			case pos < 0:
				pos += shift
			case pos > 0:
				pos -= shift
			}
		}
		px = append(px, pos)
		py = append(py, 100*sums[b]/float64(counts[b]))
	}
	return px, py
}

// binIndex returns the right-closed bin of v; the lowest edge belongs to bin 0.
func binIndex(edges []float64, v float64) int {
	n := len(edges) - 1
	if n < 1 || v <= edges[0] {
		return 0
	}
	i, _ := slices.BinarySearch(edges, v)
	return min(i-1, n-1)
}
