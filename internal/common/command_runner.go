package common

import (
	"context"
	"fmt"
	"os"

	"cvmatch/internal/errors"
	"cvmatch/internal/pipeline"
	"cvmatch/internal/types"
)

// ReadInputFunc builds the stage input from the command arguments.
type ReadInputFunc[Input any] func(ctx context.Context, fp *FileProcessor, args []string) (Input, error)

// LogDetailsFunc defines how to log the start of an operation.
type LogDetailsFunc[Input any] func(input Input, cfg CommandConfig)

// StageFunc runs one pipeline stage.
type StageFunc[Input, Output any] func(context.Context, Input) (Output, error)

// RunStageCommand encapsulates the common logic for file-based CLI commands with token usage reporting.
func RunStageCommand[Input, Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	args []string,
	readInput ReadInputFunc[Input],
	stage StageFunc[Input, Output],
	logDetails LogDetailsFunc[Input],
) error {
	return runStageCommand(ctx, logger, NewOutputHandler(logger), cmdConfig, args, readInput, stage, logDetails)
}

func runStageCommand[Input, Output any](
	ctx context.Context,
	logger *errors.Logger,
	outputHandler *OutputHandler,
	cmdConfig CommandConfig,
	args []string,
	readInput ReadInputFunc[Input],
	stage StageFunc[Input, Output],
	logDetails LogDetailsFunc[Input],
) error {
	fileProcessor := NewFileProcessor(logger, cmdConfig.MaxFileSize)

	input, err := readInput(ctx, fileProcessor, args)
	if err != nil {
		return err
	}

	if logDetails != nil {
		logDetails(input, cmdConfig)
	}

	ctx, usage := pipeline.TrackUsage(ctx)
	result, err := stage(ctx, input)
	if err != nil {
		if isPartialResult(result) {
			log := errors.OrNop(logger)
			log.LogError(err, "Stage failed, writing partial result")
			if outErr := outputHandler.HandleOutput(result, cmdConfig); outErr != nil {
				log.LogError(outErr, "Failed to write partial result")
			}
		}
		return err
	}

	// Report token usage
	if tokenUsage := usage(); tokenUsage.TotalTokens > 0 {
		if logger != nil {
			logger.Info("AI token usage", "input_tokens", tokenUsage.InputTokens, "output_tokens", tokenUsage.OutputTokens, "total_tokens", tokenUsage.TotalTokens)
		} else {
			fmt.Fprintf(os.Stderr, "AI token usage: input=%d, output=%d, total=%d\n", tokenUsage.InputTokens, tokenUsage.OutputTokens, tokenUsage.TotalTokens)
		}
	}

	return outputHandler.HandleOutput(result, cmdConfig)
}

// isPartialResult reports whether a failed stage still produced something
// worth keeping
func isPartialResult(v any) bool {
	switch r := v.(type) {
	case *types.DocumentResult:
		return r != nil && r.Record != nil
	case *types.RunResult:
		return r != nil
	}
	return false
}
