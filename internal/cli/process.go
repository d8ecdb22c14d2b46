package cli

import (
	"path/filepath"
	"strings"

	"cvmatch/internal/common"
	"cvmatch/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	processCmdConfig   common.CommandConfig
	processRole        string
	processOutputDir   string
	processNoArtifacts bool
	processParallel    bool
)

var processCmd = &cobra.Command{
	Use:   "process [resume-file] [job-file]",
	Short: "Run the full pipeline for a résumé and a job description",
	Long: `Extract and enrich both documents, analyze the résumé's gaps for the job and
draft an interview question per gap.

Each run writes its artifacts to a directory named after the run ID under
--output-dir. A run that fails part way still writes and prints whatever it
produced before returning the error.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return prepareOutput(cmd, &processCmdConfig)
	},
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processRole, "role", "r", "", "Role the candidate is assessed for (default from config)")
	processCmd.Flags().StringVar(&processOutputDir, "output-dir", "", "Directory for run artifacts (default from config)")
	processCmd.Flags().BoolVar(&processNoArtifacts, "no-artifacts", false, "Do not write run artifacts")
	processCmd.Flags().BoolVar(&processParallel, "parallel", false, "Process both documents concurrently (overrides config)")
	addOutputFlags(processCmd, &processCmdConfig)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := oneShot(getConfigFromContext(ctx))
	logger := getLoggerFromContext(ctx)

	if cmd.Flags().Changed("parallel") {
		cfg.Pipeline.Parallel = processParallel
	}
	role := strings.TrimSpace(processRole)
	if role == "" {
		role = cfg.Pipeline.Role
	}
	outputDir := processOutputDir
	if outputDir == "" {
		outputDir = cfg.Pipeline.OutputDir
	}

	fp := common.NewFileProcessor(logger, processCmdConfig.MaxFileSize)
	contents, err := fp.ValidateAndReadFiles(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	p, closePipeline, err := pipelineFactory(cfg, logger)
	if err != nil {
		return err
	}
	defer closePipeline()

	logger.Info("Processing résumé against job description",
		"resume_file", args[0],
		"job_file", args[1],
		"role", role,
		"parallel", cfg.Pipeline.Parallel,
		"output_format", processCmdConfig.OutputFormat,
		"output_file", processCmdConfig.OutputFile)

	result, runErr := p.Run(ctx, pipeline.Input{
		ResumeText: contents[0],
		JobText:    contents[1],
		Role:       role,
		ResumeName: args[0],
		JobName:    args[1],
	})

	if result == nil {
		return runErr
	}

	if !processNoArtifacts && outputDir != "" {
		aw := common.NewArtifactWriter(filepath.Join(outputDir, result.RunID), logger)
		if written, err := aw.Write(result); err != nil {
			logger.LogError(err, "Failed to write run artifacts", "dir", aw.Dir())
		} else if len(written) > 0 {
			logger.Info("Run artifacts written", "dir", aw.Dir(), "files", len(written))
		}
	}

	logger.Info("AI token usage",
		"input_tokens", result.Usage.InputTokens,
		"output_tokens", result.Usage.OutputTokens,
		"total_tokens", result.Usage.TotalTokens)

	if err := common.NewOutputHandler(logger).HandleOutput(result, processCmdConfig); err != nil {
		return err
	}
	return runErr
}
