package main

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/internal/app"
	"github.com/hebrew-ms/backend/internal/evaluation"
	"github.com/hebrew-ms/backend/internal/ingestion"
	"github.com/hebrew-ms/backend/internal/pipeline"
)

type runFlags struct {
	input    string
	output   string
	prefix   string
	limit    int
	noAI     bool
	useIndex bool
}

func runCommand(ctx *cliContext) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract, classify and export entities from a catalog CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var useIndex *bool
			if cmd.Flags().Changed("use-index") {
				useIndex = &flags.useIndex
			}
			return runExtraction(cmd.Context(), ctx, flags, useIndex)
		},
	}

	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "Input CSV (defaults to input.path)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output directory (defaults to output.dir)")
	cmd.Flags().StringVar(&flags.prefix, "prefix", "", "Output file prefix")
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 0, "Process at most this many records")
	cmd.Flags().BoolVar(&flags.noAI, "no-ai", false, "Disable the AI classifier")
	cmd.Flags().BoolVar(&flags.useIndex, "use-index", true, "Use the gazetteer index instead of the legacy gazetteer")
	return cmd
}

func loadRecords(ctx context.Context, cli *cliContext, input string, limit int) (*ingestion.Result, error) {
	cfg := cli.cfg
	if input == "" {
		input = cfg.Input.Path
	}
	if input == "" {
		return nil, fmt.Errorf("no input file given")
	}
	if limit == 0 {
		limit = cfg.Input.Limit
	}

	opts := ingestion.DefaultOptions
	if cfg.Input.IDColumn != "" {
		opts.IDColumn = cfg.Input.IDColumn
	}
	if len(cfg.Input.NoteColumns) > 0 {
		opts.NoteColumns = cfg.Input.NoteColumns
	}
	opts.Limit = limit

	return ingestion.NewLoader(opts, cli.logger()).LoadFile(ctx, input)
}

func runExtraction(parent context.Context, cli *cliContext, flags *runFlags, useIndex *bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := cli.cfg
	output := flags.output
	if output == "" {
		output = cfg.Output.Dir
	}

	loaded, err := loadRecords(ctx, cli, flags.input, flags.limit)
	if err != nil {
		return err
	}

	components, err := app.Build(ctx, cfg, app.Options{
		UseIndex:     useIndex,
		NoAI:         flags.noAI,
		OutputDir:    output,
		OutputPrefix: flags.prefix,
		Logger:       cli.logger(),
	})
	if err != nil {
		return err
	}
	defer components.Close()

	report, err := components.Pipeline.Run(ctx, loaded.Records)
	if report == nil {
		return err
	}
	if err != nil {
		cli.logger().Warn("Run finished with sink errors", zap.Error(err))
	}

	printReport(cli, report, loaded.Skipped)
	return err
}

func printReport(cli *cliContext, report *pipeline.Report, skipped int) {
	w := cli.out
	coverage := evaluation.Coverage(report.Result.Manuscripts, report.Classified, report.Stats)

	fmt.Fprintf(w, "Run %s finished in %s\n", report.RunID, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Rows without notes skipped: %d\n", skipped)

	summary := report.Result.Summary()
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-12s %d\n", k, summary[k])
	}

	fmt.Fprintf(w, "Pattern success: persons %.1f%%, locations %.1f%%\n",
		coverage.PersonPatternRate*100, coverage.LocationPatternRate*100)
	fmt.Fprintf(w, "Labels: pattern %d (%.1f%%), ai %d (%.1f%%), unclassified %d (%.1f%%)\n",
		coverage.PatternLabels, coverage.PatternShare*100,
		coverage.AILabels, coverage.AIShare*100,
		coverage.Unclassified, coverage.UnclassifiedShare*100)
}
