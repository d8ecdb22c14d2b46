package common

import (
	"fmt"
	"io"
	"os"

	"cvmatch/internal/errors"
	"cvmatch/internal/formatters"
)

// CommandConfig holds the output settings shared by every command
type CommandConfig struct {
	OutputFile   string
	OutputFormat string
	MaxFileSize  int64
}

// OutputHandler renders stage results through the formatter registry and
// writes them to a file or the console.
type OutputHandler struct {
	files    *FileProcessor
	registry *formatters.FormatterRegistry
	console  io.Writer
	logger   *errors.Logger
}

func NewOutputHandler(logger *errors.Logger) *OutputHandler {
	return &OutputHandler{
		files:    NewFileProcessor(logger, 0),
		registry: formatters.GlobalRegistry,
		console:  os.Stdout,
		logger:   errors.OrNop(logger),
	}
}

// WithWriter replaces stdout as the destination when no output file is set
func (oh *OutputHandler) WithWriter(w io.Writer) *OutputHandler {
	oh.console = w
	return oh
}

// HandleOutput renders data in cfg.OutputFormat. The output file is checked
// before rendering so a bad path fails without spending formatter work.
func (oh *OutputHandler) HandleOutput(data any, cfg CommandConfig) error {
	if err := oh.files.ValidateOutputFile(cfg.OutputFile); err != nil {
		return err
	}

	rendered, err := oh.registry.Format(data, cfg.OutputFormat)
	if err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Failed to format %T as %s", data, cfg.OutputFormat), err)
	}

	if cfg.OutputFile == "" {
		if _, err := io.WriteString(oh.console, rendered); err != nil {
			return errors.NewIOError("OUTPUT_WRITE_FAILED", "Cannot write output", err)
		}
		return nil
	}

	if err := oh.files.WriteFile(cfg.OutputFile, rendered); err != nil {
		return err
	}
	oh.logger.Info("Output written", "file", cfg.OutputFile, "format", cfg.OutputFormat, "bytes", len(rendered))
	return nil
}
