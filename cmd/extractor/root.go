package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/pkg/config"
	appLogger "github.com/hebrew-ms/backend/pkg/logger"
)

// cliContext is shared by every subcommand once the root pre-run has loaded the config.
type cliContext struct {
	configPath string
	logLevel   string
	cfg        *config.Config
	out        io.Writer
}

func (c *cliContext) logger() *zap.Logger {
	return appLogger.GetLogger()
}

func RootCommand(ctx *cliContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "extractor",
		Short:         "Hebrew manuscript catalog-note entity extractor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&ctx.configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "Override logging.level")

	rootCmd.AddCommand(
		runCommand(ctx),
		compareCommand(ctx),
		gazetteerCommand(ctx),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return initialize(ctx, cmd.OutOrStdout())
	}
	return rootCmd
}

func initialize(ctx *cliContext, out io.Writer) error {
	cfg, err := config.LoadFrom(ctx.configPath)
	if err != nil {
		return err
	}
	if ctx.logLevel != "" {
		cfg.Logging.Level = ctx.logLevel
	}

	err = appLogger.InitWithRotation(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath, appLogger.Rotation{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx.cfg = cfg
	ctx.out = out
	return nil
}
