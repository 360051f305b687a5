package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hebrew-ms/backend/internal/gazetteer"
)

func gazetteerCommand(ctx *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gazetteer",
		Short: "Build and inspect gazetteers",
	}
	cmd.AddCommand(gazetteerBuildCommand(ctx), gazetteerStatsCommand(ctx), gazetteerLookupCommand(ctx))
	return cmd
}

func gazetteerBuildCommand(ctx *cliContext) *cobra.Command {
	var dir, output string
	opts := gazetteer.DefaultBuildOptions
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the legacy gazetteer from NLI authority MARCXML dumps",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = ctx.cfg.Gazetteer.LegacyPath
			}
			names, err := gazetteer.NewBuilder(opts, ctx.logger()).BuildFromDirectory(cmd.Context(), dir)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create gazetteer file: %w", err)
			}
			defer f.Close()
			if err := gazetteer.WriteCSV(f, names); err != nil {
				return fmt.Errorf("failed to write gazetteer: %w", err)
			}

			fmt.Fprintf(ctx.out, "Wrote %d locations to %s\n", len(names), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory holding *.xml and *.xml.gz authority files")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output CSV (defaults to gazetteer.legacyPath)")
	cmd.Flags().IntVar(&opts.MinOccurrences, "min-count", opts.MinOccurrences, "Keep names seen in more than this many files")
	cmd.Flags().IntVar(&opts.MinLength, "min-length", opts.MinLength, "Keep names longer than this many letters")
	return cmd
}

func loadIndex(ctx *cliContext) (*gazetteer.Index, error) {
	cfg := ctx.cfg.Gazetteer
	return gazetteer.Load(gazetteer.Files{
		Dir:      cfg.Dir,
		Master:   cfg.MasterFile,
		Variants: cfg.VariantsFile,
		Forms:    cfg.FormsFile,
	}, cfg.CacheSize, ctx.logger())
}

func gazetteerStatsCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print gazetteer index statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			index, err := loadIndex(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(ctx.out)
			enc.SetIndent("", "  ")
			return enc.Encode(index.Statistics())
		},
	}
}

func gazetteerLookupCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup NAME...",
		Short: "Resolve names against the gazetteer index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := loadIndex(ctx)
			if err != nil {
				return err
			}
			for _, name := range args {
				p, ok := index.Lookup(name)
				if !ok {
					fmt.Fprintf(ctx.out, "%s\tnot found\n", name)
					continue
				}
				fmt.Fprintf(ctx.out, "%s\t%s\t%s\twikidata=%s geonames=%s\n", name, p.Hebrew, p.Romanized, p.Wikidata, p.GeoNames)
			}
			return nil
		},
	}
}
