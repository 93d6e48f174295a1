package main

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vadiminshakov/fgi/config"
	"github.com/vadiminshakov/fgi/internal"
)

var (
	runConfigPath string
	runDryRun     bool
	runTimeout    time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch both indices, render the image and publish it",
	Long: `Run one pass of the pipeline: fetch the equity and crypto indices, update the
daily history, render the image and the post text, save them to the output
directory and publish to every enabled channel.

Example usage:
  fgi run                          # uses ./config.yaml when present
  fgi run --config prod.yaml
  fgi run --dry-run                # render only, history is not persisted
  fgi run --timeout=2m`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runConfigPath, "config", config.DefaultPath, "path to yaml config")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "render and save artifacts without publishing or persisting history")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "overall run deadline, overrides run.timeout")
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	path := runConfigPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	conf, err := config.Load(path)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if runTimeout > 0 {
		conf.RunTimeout = runTimeout
	}

	logger, err := newLogger(conf.LogLevel, conf.LogDevelopment)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), conf.RunTimeout)
	defer cancel()

	pipeline, err := internal.NewPipeline(ctx, conf, logger, runDryRun)
	if err != nil {
		return errors.Wrap(err, "failed to create pipeline")
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			logger.Warn("failed to close ledgers", zap.Error(err))
		}
	}()

	outcome, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), outcome, runDryRun)
	if outcome.PublishFailed {
		return errors.Wrapf(errPublishFailed, "fail policy %q", conf.Publish.FailPolicy)
	}
	return nil
}

func newLogger(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}
	return logger, nil
}
