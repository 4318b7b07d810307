package io

import (
	"bytes"
	"context"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"time"

	"github.com/matzehuels/afcplot/pkg/errors"
	"github.com/matzehuels/afcplot/pkg/observability"
	"github.com/matzehuels/afcplot/pkg/plot"
)

// DefaultDir is the figure directory used when SaveOptions.Dir is empty.
const DefaultDir = "figs"

// SaveOptions controls where SavePlot writes a figure.
type SaveOptions struct {
	// Dir is the output root; defaults to DefaultDir.
	Dir string
	// Square places the figure in the "sqr" subdirectory.
	Square bool
	// Prefix, usually the animal name, is prepended as "prefix_".
	Prefix string
	// Formats lists the file formats; defaults to every format the backend
	// supports.
	Formats []string
}

// FigurePath returns the extension-less output path of a figure:
// <dir>/[sqr/][prefix_]<base of title>.
func FigurePath(title string, o SaveOptions) (string, error) {
	base := path.Base(filepath.ToSlash(title))
	if err := errors.ValidateFigureName(base); err != nil {
		return "", err
	}
	dir := o.Dir
	if dir == "" {
		dir = DefaultDir
	}
	if o.Square {
		dir = filepath.Join(dir, "sqr")
	}
	if o.Prefix != "" {
		base = o.Prefix + "_" + base
	}
	return filepath.Join(dir, base), nil
}

// Render exports the chart of b in one format.
func Render(ctx context.Context, b plot.Backend, format string) ([]byte, error) {
	start := time.Now()
	var buf bytes.Buffer
	err := b.Export(&buf, format)
	observability.Render().OnExport(ctx, b.Mode().String(), format, buf.Len(), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SavePlot writes the chart of b once per format, creating the output
// directory as needed. It returns the written paths.
func SavePlot(ctx context.Context, b plot.Backend, title string, o SaveOptions) ([]string, error) {
	formats := o.Formats
	if len(formats) == 0 {
		formats = b.Formats()
	}
	if err := errors.ValidateFormats(formats, b.Formats()); err != nil {
		return nil, err
	}
	artifacts := make(map[string][]byte, len(formats))
	for _, format := range formats {
		data, err := Render(ctx, b, format)
		if err != nil {
			return nil, err
		}
		artifacts[format] = data
	}
	o.Formats = formats
	return WriteArtifacts(title, o, artifacts)
}

// WriteArtifacts writes already exported figures, one file per format, to
// the path FigurePath builds. Formats are written in o.Formats order, or in
// sorted order when o.Formats is empty.
func WriteArtifacts(title string, o SaveOptions, artifacts map[string][]byte) ([]string, error) {
	formats := o.Formats
	if len(formats) == 0 {
		formats = slices.Sorted(maps.Keys(artifacts))
	}
	stem, err := FigurePath(title, o)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(stem), 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", filepath.Dir(stem))
	}

	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		data, ok := artifacts[format]
		if !ok {
			return paths, errors.New(errors.ErrCodeInvalidFormat, "no %s output to write", format)
		}
		p := stem + "." + format
		if err := os.WriteFile(p, data, 0644); err != nil {
			return paths, errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", p)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
