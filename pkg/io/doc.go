// Package io reads trial tables and writes rendered figures.
//
// # Import
//
// Trial tables are JSON exports of the session logs, one record per trial
// with the column names of the acquisition software:
//
//	[
//	  {"Name": "M1", "Date": "2019-04-01", "SessionNum": 1, "TrialNumber": 1,
//	   "ChoiceLeft": 1, "ChoiceCorrect": 1, "ForcedLEDTrial": 0, "DV": 0.4},
//	  ...
//	]
//
// Use [ImportTrials] for a file or [ReadTrials] for any io.Reader. A wrapping
// {"trials": [...]} object and JSON Lines are accepted as well. Missing values
// are null; boolean columns may be written as true/false or 0/1.
//
// # Export
//
// [SavePlot] writes a chart once per format under
//
//	figs/[sqr/][prefix_]<title>.<format>
//
// where "sqr/" is used for square figures and the prefix is usually the animal
// name. Only the base name of the title is used. [Render] exports a chart into
// memory, which the server and the cache use.
//
// Every export reports to the observability render hooks.
package io
