// Package analysis draws the behavioral figures of two-alternative forced
// choice experiments onto a [plot.Plotter].
//
// Every figure works the same way under both rendering modes because it only
// uses the plot call surface:
//
//	a := analysis.New(logger)
//	p, _ := plot.New()
//	_ = a.PsychAxes(p, "M1")
//	_, _, _ = a.Psych(p, trials, analysis.PsychOptions{Color: "k", Label: "All", Points: true})
//	_ = p.Draw()
//
// # Figures
//
//   - [Analyzer.PsychAxes] and [Analyzer.Psych]: choice-left rate against the
//     stimulus with a logistic fit and its confidence band.
//   - [Analyzer.Chronometry]: performance against the minimum sampling time.
//   - [Analyzer.PerformanceOverTime]: the learning curve, with timing metrics on
//     a secondary y-axis.
//   - [Analyzer.TrialRate]: trial count against elapsed session time.
//
// Statistics (means, quantiles, the logistic and least-squares fits) use
// gonum.
package analysis
