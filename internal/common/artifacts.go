package common

import (
	"fmt"
	"path/filepath"

	"cvmatch/internal/errors"
	"cvmatch/internal/formatters"
	"cvmatch/internal/types"
	"cvmatch/internal/utils"
)

// Artifact file names written for every run
const (
	ArtifactEnrichedResume = "enriched_resume.json"
	ArtifactEnrichedJob    = "enriched_job.json"
	ArtifactGapAnalysis    = "gap_analysis.txt"
	ArtifactQuestionnaire  = "questionnaire.txt"
	ArtifactRun            = "run.json"
)

// ArtifactWriter persists the outputs of a run into a directory
type ArtifactWriter struct {
	dir           string
	fileProcessor *FileProcessor
	registry      *formatters.FormatterRegistry
	logger        *errors.Logger
}

// NewArtifactWriter creates a writer for dir. The directory is created on
// first write.
func NewArtifactWriter(dir string, logger *errors.Logger) *ArtifactWriter {
	return &ArtifactWriter{
		dir:           dir,
		fileProcessor: NewFileProcessor(logger, 0),
		registry:      formatters.GlobalRegistry,
		logger:        errors.OrNop(logger),
	}
}

// Dir returns the output directory
func (aw *ArtifactWriter) Dir() string {
	return aw.dir
}

// Write stores whatever parts of result exist and returns the paths written.
// run.json is always written so a partial run can be inspected.
func (aw *ArtifactWriter) Write(result *types.RunResult) ([]string, error) {
	if err := utils.EnsureDir(aw.dir); err != nil {
		return nil, errors.NewIOError("DIRECTORY_CREATE_FAILED",
			fmt.Sprintf("Cannot create directory: %s", aw.dir), err)
	}

	var written []string
	write := func(name, content string) error {
		path := filepath.Join(aw.dir, name)
		if err := aw.fileProcessor.WriteFile(path, content); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	documents := []struct {
		name string
		doc  *types.DocumentResult
	}{
		{ArtifactEnrichedResume, result.Resume},
		{ArtifactEnrichedJob, result.Job},
	}
	for _, d := range documents {
		name, doc := d.name, d.doc
		if doc == nil {
			continue
		}
		encoded, err := doc.Kind.Template().Encode(doc.Record)
		if err != nil {
			return written, errors.NewInternalError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("Failed to encode %s record", doc.Kind), err)
		}
		if err := write(name, string(encoded)+"\n"); err != nil {
			return written, err
		}
	}

	formatted := []struct {
		name   string
		data   any
		format string
	}{
		{ArtifactGapAnalysis, result.Gaps, "text"},
		{ArtifactQuestionnaire, result.Questionnaire, "text"},
		{ArtifactRun, result, "json"},
	}
	for _, f := range formatted {
		if isNilResult(f.data) {
			continue
		}
		content, err := aw.registry.Format(f.data, f.format)
		if err != nil {
			return written, errors.NewInternalError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("Failed to format %s", f.name), err)
		}
		if err := write(f.name, content); err != nil {
			return written, err
		}
	}

	aw.logger.Info("Run artifacts written",
		"run_id", result.RunID,
		"dir", aw.dir,
		"files", len(written))
	return written, nil
}

func isNilResult(data any) bool {
	switch v := data.(type) {
	case *types.GapReport:
		return v == nil
	case *types.Questionnaire:
		return v == nil
	case *types.RunResult:
		return v == nil
	}
	return data == nil
}
