package cli

import (
	"context"

	"cvmatch/internal/config"
	"cvmatch/internal/errors"

	"github.com/spf13/cobra"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "cvmatch",
	Short: "Match résumés against job descriptions using AI",
	Long: `cvmatch turns a résumé and a job description into structured records,
infers enrichment attributes for both, reports the information the résumé is
missing for the job and drafts interview questions about each gap.

Stages can be run one at a time (extract, enrich, gaps, questionnaire), all at
once (process), over a directory of résumés (batch) or behind an HTTP API (serve).`,
	SilenceUsage: true,
}

func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	// Attach the config and logger to the context, making them available to all subcommands
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.ExecuteContext(ctx)
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	panic("config not found in context") // Should not happen if properly initialized
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) *errors.Logger {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger
	}
	panic("logger not found in context") // Should not happen if properly initialized
}

func init() {
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(gapsCmd)
	rootCmd.AddCommand(questionnaireCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
