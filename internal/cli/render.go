package cli

import (
	"context"

	"github.com/spf13/cobra"

	afcio "github.com/matzehuels/afcplot/pkg/io"
	"github.com/matzehuels/afcplot/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	formats string // comma-separated output formats
	output  string // output directory
	prefix  string // file name prefix
	square  bool   // write to the sqr/ subdirectory
	width   int
	height  int
	policy  string // axis limit policy
}

// renderCommand creates the render command for declarative TOML charts.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render <chart.toml>",
		Short: "Render a chart described in TOML",
		Long: `Render a chart described in TOML.

A chart file lists traces (line, scatter, bar, step, fill), reference
lines, extra legend items and axis settings, including an optional secondary
y-axis. The chart is drawn with the selected backend and written once per
format.`,
		Example: `  afcplot render chart.toml
  afcplot render chart.toml -b interactive -f html,json -o out`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return c.runRender(ctx, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output formats, comma-separated")
	cmd.Flags().StringVarP(&opts.output, "out", "o", "", "output directory (default from config)")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "", "file name prefix")
	cmd.Flags().BoolVar(&opts.square, "square", false, "write to the sqr/ subdirectory")
	cmd.Flags().IntVar(&opts.width, "width", 0, "figure width in pixels")
	cmd.Flags().IntVar(&opts.height, "height", 0, "figure height in pixels")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "axis limit policy: strict or relaxed")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, input string, opts renderOpts) error {
	spec, err := pipeline.LoadChartSpec(input)
	if err != nil {
		return err
	}

	runner := pipeline.NewRunner(nil, nil, c.Logger)
	popts := c.pipelineOptions(analyzeOpts{
		formats: opts.formats,
		square:  opts.square,
		width:   opts.width,
		height:  opts.height,
		policy:  opts.policy,
	})

	prog := newProgress(c.Logger)
	result, err := runner.RenderChart(ctx, spec, popts)
	if err != nil {
		return err
	}

	dir := opts.output
	if dir == "" {
		dir = c.Config.OutputDir
	}
	paths, err := afcio.WriteArtifacts(result.Title, afcio.SaveOptions{
		Dir:    dir,
		Square: opts.square || c.Config.Square,
		Prefix: opts.prefix,
	}, result.Artifacts)
	if err != nil {
		return err
	}
	prog.done("Rendered " + result.Title)

	printSuccess(c.out, "Rendered %s", result.Title)
	for _, p := range paths {
		printFile(c.out, p)
	}
	return nil
}
