package analysis

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/matzehuels/afcplot/pkg/plot"
)

// maxSessionSeconds bounds a believable session length; longer spans come
// from corrupt timestamps.
const maxSessionSeconds = 3 * 60 * 60

type ratePoint struct{ t, trial float64 }

// TrialRate plots the trial count against the elapsed session time, one grey
// line per session. With more than one usable session it adds the fitted
// average curve and dashed medians of the session length and trial count.
func (a *Analyzer) TrialRate(p *plot.Plotter, trials []Trial) error {
	sessions := Sessions(trials)
	if len(sessions) == 0 {
		return nil
	}

	var durations []float64
	for _, s := range sessions {
		if d := span(s.Trials); d <= maxSessionSeconds {
			durations = append(durations, d)
		}
	}
	q1, q3 := quantile(0.25, durations), quantile(0.75, durations)
	iqr := q3 - q1
	a.Logger.Info("session times",
		"sessions", len(sessions),
		"iqr_min", iqr/60, "q1_min", q1/60, "q3_min", q3/60,
		"lower_min", (q1-1.5*iqr)/60, "upper_min", (q3+1.5*iqr)/60)

	var included [][]ratePoint
	for _, s := range sessions {
		start := s.Trials[0].TrialStartTimestamp
		for _, t := range s.Trials {
			start = min(start, t.TrialStartTimestamp)
		}
		d := span(s.Trials)
		if d > maxSessionSeconds {
			a.Logger.Warn("skipping session with unrealistic duration", "session", s.Key, "seconds", d)
			continue
		}
		if d < q1-1.5*iqr || d > q3+1.5*iqr {
			a.Logger.Info("skipping outlier session", "session", s.Key, "minutes", int(d/60), "trials", len(s.Trials))
			continue
		}
		pts := make([]ratePoint, len(s.Trials))
		xs := make([]float64, len(s.Trials))
		ys := make([]float64, len(s.Trials))
		for i, t := range s.Trials {
			pts[i] = ratePoint{t: t.TrialStartTimestamp - start, trial: float64(t.TrialNumber)}
			xs[i], ys[i] = pts[i].t/60, pts[i].trial
		}
		opts := plot.Options{plot.KeyColor: "gray", plot.KeyLineStyle: "solid"}
		if len(included) == 0 {
			opts[plot.KeyLabel] = fmt.Sprintf("Single Session (%d sessions)", len(sessions))
		}
		if err := p.AddLine(xs, ys, opts); err != nil {
			return err
		}
		included = append(included, pts)
	}

	if len(included) > 1 {
		if err := a.rateAverage(p, included); err != nil {
			return err
		}
	}

	if err := p.Draw(); err != nil {
		return err
	}
	p.SetGraphTitle("Trial Rate - " + joinNames(trials))
	p.SetXLabel("Time (Minutes)")
	p.SetYLabel("Trial Number")
	if err := p.SetXLim(plot.At(0), plot.Auto); err != nil {
		return err
	}
	if err := p.SetYLim(plot.At(0), plot.Auto); err != nil {
		return err
	}
	if len(sessions) > 1 {
		return p.Legend(plot.Options{plot.KeyLoc: "upper left"})
	}
	return nil
}

func (a *Analyzer) rateAverage(p *plot.Plotter, included [][]ratePoint) error {
	lengths := make([]float64, len(included))
	counts := make([]float64, len(included))
	for i, pts := range included {
		for _, pt := range pts {
			lengths[i] = max(lengths[i], pt.t)
			counts[i] = max(counts[i], pt.trial)
		}
	}
	medianLength := quantile(0.5, lengths)
	medianCount := quantile(0.5, counts)
	limit := quantile(0.95, lengths)
	a.Logger.Info("session medians", "minutes", medianLength/60, "trials", medianCount, "limit_s", limit)

	var all []ratePoint
	for _, pts := range included {
		for _, pt := range pts {
			if pt.t < limit {
				all = append(all, pt)
			}
		}
	}
	slices.SortStableFunc(all, func(a, b ratePoint) int { return cmp.Compare(a.t, b.t) })
	if len(all) >= 2 {
		xs := make([]float64, len(all))
		ys := make([]float64, len(all))
		for i, pt := range all {
			xs[i], ys[i] = pt.t, pt.trial
		}
		c0, c1, err := fitLinearSqrt(xs, ys)
		if err != nil {
			a.Logger.Warn("skipping average curve", "err", err)
		} else {
			fitted := make([]float64, len(xs))
			minutes := make([]float64, len(xs))
			for i, x := range xs {
				fitted[i] = c0*x + c1*math.Sqrt(x)
				minutes[i] = x / 60
			}
			if err := p.AddLine(minutes, fitted, plot.Options{
				plot.KeyColor:     "black",
				plot.KeyLabel:     "Sessions Average",
				plot.KeyLineWidth: 3,
				plot.KeyAlpha:     0.8,
			}); err != nil {
				return err
			}
		}
	}

	z := float64(len(lengths))
	if err := p.CreateVLine(medianLength/60, plot.Options{
		plot.KeyLineStyle: "dashed",
		plot.KeyColor:     "black",
		plot.KeyLabel:     "Median Session Time",
		plot.KeyAlpha:     0.8,
		plot.KeyZOrder:    z,
	}); err != nil {
		return err
	}
	return p.CreateHLine(medianCount, plot.Options{
		plot.KeyLineStyle: "dashed",
		plot.KeyColor:     "black",
		plot.KeyLabel:     "Median Session Trials Count",
		plot.KeyAlpha:     0.8,
		plot.KeyZOrder:    z,
	})
}

// span is the time between the first and last trial start.
func span(trials []Trial) float64 {
	lo, hi := trials[0].TrialStartTimestamp, trials[0].TrialStartTimestamp
	for _, t := range trials[1:] {
		lo = min(lo, t.TrialStartTimestamp)
		hi = max(hi, t.TrialStartTimestamp)
	}
	return hi - lo
}
