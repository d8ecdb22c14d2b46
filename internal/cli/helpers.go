package cli

import (
	"context"

	"cvmatch/internal/ai"
	"cvmatch/internal/common"
	"cvmatch/internal/config"
	"cvmatch/internal/errors"
	"cvmatch/internal/observability"
	"cvmatch/internal/pipeline"

	"github.com/spf13/cobra"
)

// pipelineFactory builds the pipeline a command runs. Tests replace it.
var pipelineFactory = newPipeline

func newPipeline(cfg *config.Config, logger *errors.Logger) (*pipeline.Pipeline, func(), error) {
	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version))
	if err != nil {
		return nil, nil, err
	}
	shutdownTelemetry := func() {
		if err := om.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to flush telemetry", "error", err)
		}
	}

	services, err := ai.NewServices(cfg, logger)
	if err != nil {
		shutdownTelemetry()
		return nil, nil, err
	}
	closeAll := func() {
		if err := services.Close(); err != nil {
			logger.Warn("Failed to close AI services", "error", err)
		}
		shutdownTelemetry()
	}

	p, err := pipeline.NewFromConfig(cfg, services, om.GetMetrics(), logger)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return p, closeAll, nil
}

// oneShot returns a copy of cfg for a command that exits after one run.
// Such commands do not serve Prometheus, which would race a running server
// for the port.
func oneShot(cfg *config.Config) *config.Config {
	c := *cfg
	c.Observability.Prometheus.Enabled = false
	return &c
}

// addOutputFlags registers the output file and format flags shared by
// every stage command
func addOutputFlags(cmd *cobra.Command, cc *common.CommandConfig) {
	cmd.Flags().StringVarP(&cc.OutputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&cc.OutputFormat, "format", "", "Output format (json, text, markdown, yaml)")

	// Add completion for format flag
	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

// prepareOutput applies configured defaults and validates the output flags
func prepareOutput(cmd *cobra.Command, cc *common.CommandConfig) error {
	cfg := getConfigFromContext(cmd.Context())
	if cc.OutputFormat == "" {
		cc.OutputFormat = cfg.App.DefaultFormat
	}
	cc.MaxFileSize = cfg.App.MaxFileSize
	return common.ValidateOutputFormat(cc.OutputFormat, cfg.App.SupportedFormats)
}

// stageRunner wires a command to a freshly built pipeline
func stageRunner[Input, Output any](
	cmd *cobra.Command,
	cc common.CommandConfig,
	args []string,
	readInput common.ReadInputFunc[Input],
	stage func(*pipeline.Pipeline) common.StageFunc[Input, Output],
	logDetails common.LogDetailsFunc[Input],
) error {
	cfg := oneShot(getConfigFromContext(cmd.Context()))
	logger := getLoggerFromContext(cmd.Context())

	p, closePipeline, err := pipelineFactory(cfg, logger)
	if err != nil {
		return err
	}
	defer closePipeline()

	return common.RunStageCommand(cmd.Context(), logger, cc, args, readInput, stage(p), logDetails)
}
