package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hebrew-ms/backend/internal/app"
	"github.com/hebrew-ms/backend/internal/classification"
	"github.com/hebrew-ms/backend/internal/evaluation"
	"github.com/hebrew-ms/backend/internal/models"
	"github.com/hebrew-ms/backend/internal/pipeline"
)

const maxPrintedDiffs = 5

func compareCommand(ctx *cliContext) *cobra.Command {
	var input string
	var limit int
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare location extraction between the legacy gazetteer and the index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := loadRecords(cmd.Context(), ctx, input, limit)
			if err != nil {
				return err
			}

			legacy, _, err := app.NewExtractor(ctx.cfg, false, ctx.logger())
			if err != nil {
				return err
			}
			indexed, index, err := app.NewExtractor(ctx.cfg, true, ctx.logger())
			if err != nil {
				return err
			}
			if index == nil {
				return fmt.Errorf("gazetteer index not found in %s", ctx.cfg.Gazetteer.Dir)
			}

			arbiter := classification.NewArbiter(nil)
			left, err := pipeline.New(legacy, arbiter).Extract(cmd.Context(), loaded.Records)
			if err != nil {
				return err
			}
			right, err := pipeline.New(indexed, arbiter).Extract(cmd.Context(), loaded.Records)
			if err != nil {
				return err
			}

			printComparison(ctx, evaluation.CompareLocations(left, right))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Input CSV (defaults to input.path)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Number of records to compare")
	return cmd
}

func printComparison(ctx *cliContext, cmp evaluation.ModeComparison) {
	w := ctx.out
	fmt.Fprintf(w, "%-10s %-8s %8s %8s %8s\n", "mode", "type", "total", "avg", "max")
	for _, side := range []struct {
		name string
		r    evaluation.CoverageReport
	}{{"legacy", cmp.Left}, {"index", cmp.Right}} {
		for _, t := range []models.EntityType{models.EntityDate, models.EntityLocation, models.EntityPerson} {
			tc := side.r.Types[t]
			fmt.Fprintf(w, "%-10s %-8s %8d %8.2f %8d\n", side.name, t, tc.Total, tc.Average, tc.Max)
		}
	}

	fmt.Fprintf(w, "Index found more locations: %d\n", cmp.MoreRight)
	fmt.Fprintf(w, "Legacy found more locations: %d\n", cmp.MoreLeft)
	fmt.Fprintf(w, "Same count: %d\n", cmp.Same)

	for i, d := range cmp.Diffs {
		if i == maxPrintedDiffs {
			break
		}
		fmt.Fprintf(w, "%s\n  legacy only: %v\n  index only:  %v\n", d.ManuscriptID, d.OnlyLeft, d.OnlyRight)
	}
}
