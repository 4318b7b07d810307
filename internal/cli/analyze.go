package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/afcplot/pkg/analysis"
	afcio "github.com/matzehuels/afcplot/pkg/io"
	"github.com/matzehuels/afcplot/pkg/pipeline"
)

// squareSide is the edge length of square figures when no size is given.
const squareSide = 600

// analyzeOpts holds the command-line flags for the analyze command.
type analyzeOpts struct {
	kind          string
	animal        string
	pick          bool
	formats       string
	output        string
	square        bool
	noCache       bool
	refresh       bool
	curves        []string
	singleSession bool
	headFix       string
	wtFilter      string
	width         int
	height        int
	policy        string
}

// analyzeCommand creates the analyze command, which draws one behavioral
// figure from a trial table.
func (c *CLI) analyzeCommand() *cobra.Command {
	opts := analyzeOpts{kind: pipeline.KindPsych}

	cmd := &cobra.Command{
		Use:   "analyze <trials.json>",
		Short: "Draw a behavioral figure from a trial table",
		Long: `Draw a behavioral figure from a trial table.

Kinds:
  psych        psychometric curve with logistic fit
  chronometry  sampling time against stimulus difficulty
  performance  learning curves over sessions
  trialrate    cumulative trials over session time
  vevaiometric waiting time of errors and catch trials against the stimulus
  catchwt      waiting-time distribution of catch trials
  accuracywt   catch-trial accuracy against waiting time
  shortlongwt  psychometric curves of short and long waits
  samplingdiff sampling time against stimulus strength

Without --animal, performance figures are drawn once per animal.`,
		Example: `  afcplot analyze trials.json --kind psych --animal M1
  afcplot analyze trials.json --kind performance --curves performance,bias
  afcplot analyze trials.json --kind vevaiometric --wt-filter iqr
  afcplot analyze trials.json --kind psych --pick -b interactive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAnalyze(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.kind, "kind", "k", opts.kind, "figure kind: "+strings.Join(pipeline.Kinds, ", "))
	cmd.Flags().StringVarP(&opts.animal, "animal", "a", "", "only use trials of this animal")
	cmd.Flags().BoolVar(&opts.pick, "pick", false, "choose the animal from an interactive list")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output formats, comma-separated")
	cmd.Flags().StringVarP(&opts.output, "out", "o", "", "output directory (default from config)")
	cmd.Flags().BoolVar(&opts.square, "square", false, "square figure, written to the sqr/ subdirectory")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the figure cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "redraw even if the figure is cached")
	cmd.Flags().StringSliceVar(&opts.curves, "curves", nil, "performance curves to draw (default all)")
	cmd.Flags().BoolVar(&opts.singleSession, "single-session", false, "performance: one point per session")
	cmd.Flags().StringVar(&opts.headFix, "head-fix", "", "performance: head fixation date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.wtFilter, "wt-filter", "", "waiting-time figures: outlier filter, none or iqr")
	cmd.Flags().IntVar(&opts.width, "width", 0, "figure width in pixels")
	cmd.Flags().IntVar(&opts.height, "height", 0, "figure height in pixels")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "axis limit policy: strict or relaxed")

	return cmd
}

func (c *CLI) runAnalyze(cmd *cobra.Command, input string, opts analyzeOpts) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := pipeline.ValidateKind(opts.kind); err != nil {
		return err
	}

	trials, err := afcio.ImportTrials(input)
	if err != nil {
		return err
	}
	c.Logger.Debug("loaded trials", "file", input, "trials", len(trials))

	runner, err := c.newRunner(opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	if opts.pick {
		name, err := pickAnimal(summarizeAnimals(trials, runner.Analyzer), cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if name == "" {
			printInfo(c.out, "No animal selected")
			return nil
		}
		opts.animal = name
	}

	animals := []string{opts.animal}
	if opts.kind == pipeline.KindPerformance && opts.animal == "" {
		animals = analysis.Animals(trials)
	}

	base := c.pipelineOptions(opts)
	for _, animal := range animals {
		popts := base
		popts.Animal = animal
		if err := c.analyzeOne(ctx, runner, trials, popts, opts); err != nil {
			if animal != "" {
				return fmt.Errorf("animal %s: %w", animal, err)
			}
			return err
		}
	}
	return nil
}

func (c *CLI) analyzeOne(ctx context.Context, runner *pipeline.Runner, trials []analysis.Trial, popts pipeline.Options, opts analyzeOpts) error {
	prog := newProgress(c.Logger)
	spin := newSpinner(ctx, c.errOut, "Drawing "+popts.Kind).Start()
	result, err := runner.Execute(ctx, trials, popts)
	spin.Stop()
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
		Prefix: popts.Animal,
	}, result.Artifacts)
	if err != nil {
		return err
	}
	prog.done("Saved " + result.Title)

	printSuccess(c.out, "%s %s", result.Title, StyleDim.Render(runner.Analyzer.DisplayName(popts.Animal)))
	printStats(c.out, result.Stats.Trials, result.Stats.Sessions, result.CacheInfo.RenderHit)
	for _, p := range paths {
		printFile(c.out, p)
	}
	return nil
}

// pipelineOptions merges flags over the config file.
func (c *CLI) pipelineOptions(opts analyzeOpts) pipeline.Options {
	width, height := opts.width, opts.height
	if width == 0 {
		width = c.Config.Width
	}
	if height == 0 {
		height = c.Config.Height
	}
	if opts.square || c.Config.Square {
		side := max(width, height)
		if side == 0 {
			side = squareSide
		}
		width, height = side, side
	}
	policy := opts.policy
	if policy == "" {
		policy = c.Config.AxisPolicy
	}
	return pipeline.Options{
		Kind:          opts.kind,
		Formats:       c.parseFormats(opts.formats),
		Width:         width,
		Height:        height,
		Policy:        policy,
		Curves:        opts.curves,
		SingleSession: opts.singleSession,
		HeadFixation:  opts.headFix,
		WTFilter:      opts.wtFilter,
		Refresh:       opts.refresh,
		Logger:        c.Logger,
	}
}
