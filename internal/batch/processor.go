// Package batch runs many résumés against one job description, either once
// over a directory or continuously as files appear in it.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cvmatch/internal/common"
	"cvmatch/internal/errors"
	"cvmatch/internal/types"
	"cvmatch/internal/utils"
)

// DefaultExtensions are the résumé files picked up when none are configured
var DefaultExtensions = []string{".pdf", ".txt", ".md"}

// Runner processes one résumé against an already prepared job
type Runner interface {
	RunWithJob(ctx context.Context, job *types.DocumentResult, resumeName, resumeText, role string) (*types.RunResult, error)
}

// DocumentReader extracts the text of a résumé file
type DocumentReader interface {
	ReadDocument(ctx context.Context, filename string) (string, error)
}

// Options tune a batch
type Options struct {
	Role       string
	OutputDir  string
	Extensions []string
}

// Outcome is the result of processing one file
type Outcome struct {
	File      string
	RunID     string
	Artifacts []string
	Warnings  []string
	Duration  time.Duration
	Err       error
}

// Summary collects the outcomes of a directory pass
type Summary struct {
	Outcomes []Outcome
}

// Failed counts the files whose run failed
func (s Summary) Failed() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Processor holds the job record shared by every résumé of a batch
type Processor struct {
	runner Runner
	reader DocumentReader
	job    *types.DocumentResult
	opts   Options
	logger *errors.Logger
}

// NewProcessor creates a processor for job. The job must already be
// extracted and enriched.
func NewProcessor(runner Runner, reader DocumentReader, job *types.DocumentResult, opts Options, logger *errors.Logger) *Processor {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	return &Processor{
		runner: runner,
		reader: reader,
		job:    job,
		opts:   opts,
		logger: errors.OrNop(logger),
	}
}

// Accepts reports whether a file name looks like a résumé to process
func (p *Processor) Accepts(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return utils.HasExtension(base, p.opts.Extensions)
}

// ListInputs returns the accepted files of dir in name order
func (p *Processor) ListInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read input directory: %s", dir), err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !p.Accepts(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ProcessDir processes every accepted file of dir, one at a time. A failing
// file does not stop the batch; only a cancelled context does.
func (p *Processor) ProcessDir(ctx context.Context, dir string) (Summary, error) {
	files, err := p.ListInputs(dir)
	if err != nil {
		return Summary{}, err
	}

	p.logger.Info("Batch started", "dir", dir, "files", len(files))

	var summary Summary
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Outcomes = append(summary.Outcomes, p.ProcessFile(ctx, file))
	}

	p.logger.Info("Batch finished",
		"dir", dir,
		"processed", len(summary.Outcomes),
		"failed", summary.Failed())
	return summary, nil
}

// ProcessFile runs one résumé and writes its artifacts into a directory
// named after the file
func (p *Processor) ProcessFile(ctx context.Context, file string) (outcome Outcome) {
	start := time.Now()
	outcome.File = file
	defer func() { outcome.Duration = time.Since(start) }()

	text, err := p.reader.ReadDocument(ctx, file)
	if err != nil {
		outcome.Err = err
		p.logger.LogError(err, "Failed to read résumé", "file", file)
		return outcome
	}

	result, runErr := p.runner.RunWithJob(ctx, p.job, filepath.Base(file), text, p.opts.Role)
	if result != nil {
		outcome.RunID = result.RunID
		outcome.Warnings = result.Warnings
		outcome.Artifacts, err = p.writeArtifacts(file, result)
		if err != nil && runErr == nil {
			runErr = err
		}
	}
	outcome.Err = runErr

	if runErr != nil {
		p.logger.LogError(runErr, "Résumé run failed", "file", file, "run_id", outcome.RunID)
	} else {
		p.logger.Info("Résumé processed",
			"file", file,
			"run_id", outcome.RunID,
			"artifacts", len(outcome.Artifacts))
	}
	return outcome
}

// OutputDirFor returns the artifact directory of one résumé file
func (p *Processor) OutputDirFor(file string) string {
	return filepath.Join(p.opts.OutputDir, filepath.Base(file))
}

func (p *Processor) writeArtifacts(file string, result *types.RunResult) ([]string, error) {
	if p.opts.OutputDir == "" {
		return nil, nil
	}
	return common.NewArtifactWriter(p.OutputDirFor(file), p.logger).Write(result)
}
