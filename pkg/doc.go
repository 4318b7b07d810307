// Package pkg provides the libraries behind afcplot, a plotting toolkit for
// two-alternative-forced-choice (2AFC) behavior experiments.
//
// # Overview
//
// Analysis code draws against one plotting API; a process-wide mode decides
// whether the result is a static image or an interactive Plotly figure.
//
//  1. [plot] - Backend-neutral Plotter: traces, axes, legends, deferred options
//  2. [plot/static] and [plot/interactive] - The two rendering backends
//  3. [analysis] - Psychometric, chronometric, learning-curve and trial-rate figures
//  4. [pipeline] - Orchestration (filter → analyze → export), declarative charts
//  5. [cache], [config], [io], [errors], [observability] - Infrastructure
//
// # Architecture
//
//	trial table (JSON)
//	       ↓
//	  [io] ReadTrials
//	       ↓
//	  [analysis] draws onto a [plot.Plotter]
//	       ↓
//	  [plot.Backend] (static: go-chart, interactive: Plotly JSON)
//	       ↓
//	  PNG/SVG/HTML/JSON, cached by [cache]
//
// # Quick Start
//
//	plot.SetMode(plot.ModeStatic)
//	p, _ := plot.New()
//	p.AddLine([]float64{0, 1, 2}, []float64{1, 4, 9}, plot.Options{"label": "squares"})
//	p.Draw()
//	p.Legend(plot.Options{"loc": "upper left"})
//	afcio.SavePlot(ctx, p.Backend(), "Demo", afcio.SaveOptions{Formats: []string{"png"}})
package pkg
