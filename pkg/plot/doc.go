// Package plot is the render abstraction layer of afcplot.
//
// # Overview
//
// A [Plotter] owns one y-axis of a chart. Analysis code describes a chart once
// (lines, bars, scatter, steps, filled bands, reference lines, legend items,
// axis limits and labels) and the same calls render through either backend:
//
//   - [ModeStatic]: an immediate-draw model with native z-order, implemented in
//     the static subpackage on go-chart (PNG and SVG output).
//   - [ModeInteractive]: a call-order-only model without z-order, implemented in
//     the interactive subpackage as a Plotly figure (JSON and HTML output).
//
// The mode is process-wide. Select it once at startup, before any Plotter
// exists, and import the backend packages so they register themselves:
//
//	import (
//	    "github.com/matzehuels/afcplot/pkg/plot"
//	    _ "github.com/matzehuels/afcplot/pkg/plot/interactive"
//	    _ "github.com/matzehuels/afcplot/pkg/plot/static"
//	)
//
//	plot.SetMode(plot.ModeInteractive)
//	p, err := plot.New()
//
// # Deferred Traces
//
// Trace-adding calls never draw. Each call appends one or more [Trace] records
// carrying a draw sequence number and a z-order. [Plotter.Draw] merges the
// records of the primary and secondary axis, sorts them by (z-order, sequence)
// and flushes them through the backend in that order. The backend that lacks
// z-order gets correct layering this way, and both backends share one contract.
//
//	p.AddBar(x, counts, plot.Options{"label": "Trials", "zorder": 1})
//	p.AddLine(x, perf, plot.Options{"label": "Performance", "color": "k"})
//	p.CreateHLine(50, plot.Options{"color": "gray", "linestyle": "dashed"})
//	if err := p.Draw(); err != nil {
//	    return err
//	}
//	p.Legend(nil)
//
// # Call Order
//
// Some operations are only legal before Draw (adding traces and legend items),
// others only after it (Legend). Violations return an error coded
// USAGE_ORDER from the errors package. [Plotter.UpdateLegendText] works at both
// times. When an axis limit is left to auto-scaling, call Draw first so the
// backend knows the data extent.
//
// # Style Options
//
// Every call takes an [Options] bag keyed by static-style option names
// ("color", "linestyle", "marker", "label", ...). Each backend translates the
// keys it understands. Unknown keys are dropped with a warning, so a single
// bag can be shared between backends.
package plot
