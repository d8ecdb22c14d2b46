package common

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cvmatch/internal/document"
	"cvmatch/internal/errors"
	"cvmatch/internal/schema"
	"cvmatch/internal/types"
	"cvmatch/internal/utils"
)

// FileProcessor handles common file operations
type FileProcessor struct {
	logger *errors.Logger
	source *document.Source
}

// NewFileProcessor creates a new file processor instance. Documents larger
// than maxFileSize bytes are rejected; zero means no limit.
func NewFileProcessor(logger *errors.Logger, maxFileSize int64) *FileProcessor {
	return &FileProcessor{logger: logger, source: document.NewSource(maxFileSize, logger)}
}

// ReadFile reads content from a file with proper error handling
func (fp *FileProcessor) ReadFile(filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			// Log the error but don't override the main operation result
			if fp.logger != nil {
				fp.logger.Warn("Failed to close file", "filename", filename, "error", err)
			}
		}
	}()

	content, err := io.ReadAll(file)
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}

	return string(content), nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename, content string) error {
	if err := utils.EnsureDir(filepath.Dir(filename)); err != nil {
		return errors.NewIOError("DIRECTORY_CREATE_FAILED",
			fmt.Sprintf("Cannot create directory: %s", filepath.Dir(filename)), err)
	}

	err := os.WriteFile(filename, []byte(content), 0600)
	if err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// ReadDocument extracts the normalized text of a PDF or text file
func (fp *FileProcessor) ReadDocument(ctx context.Context, filename string) (string, error) {
	if !utils.IsTextFile(filename) && !utils.IsPDFFile(filename) {
		if fp.logger != nil {
			fp.logger.Warn("File may not be a text or PDF document",
				"filename", filename)
		} else {
			fmt.Fprintf(os.Stderr, "Warning: %s may not be a text or PDF document\n", filename)
		}
	}
	return fp.source.ReadFile(ctx, filename)
}

// ValidateAndReadFiles validates and extracts the text of multiple documents
func (fp *FileProcessor) ValidateAndReadFiles(ctx context.Context, filenames ...string) ([]string, error) {
	contents := make([]string, len(filenames))

	for i, filename := range filenames {
		content, err := fp.ReadDocument(ctx, filename)
		if err != nil {
			return nil, err // Error already wrapped by the document source
		}
		contents[i] = content
	}

	return contents, nil
}

// ReadRecord loads a record saved as JSON. Both a bare record and a
// document result holding one under "record" are accepted.
func (fp *FileProcessor) ReadRecord(filename string, kind types.DocumentKind) (schema.Record, error) {
	if err := utils.ValidateInputFile(filename, 0); err != nil {
		return nil, errors.NewValidationError("INVALID_INPUT_FILE",
			fmt.Sprintf("Invalid file %s", filename), err)
	}
	content, err := fp.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	obj, err := schema.Decode([]byte(content))
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("%s is not a JSON object", filename), err)
	}
	if nested, ok := obj["record"].(map[string]any); ok {
		obj = nested
	}

	t := kind.Template()
	rec := t.Conform(obj)
	if err := t.Validate(rec); err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("%s is not a %s record", filename, t.Name), err)
	}
	return rec, nil
}

// ReadPoints loads gap points from a gap report or run saved as JSON, or
// from a text file with one point per line
func (fp *FileProcessor) ReadPoints(filename string) ([]string, error) {
	if err := utils.ValidateInputFile(filename, 0); err != nil {
		return nil, errors.NewValidationError("INVALID_INPUT_FILE",
			fmt.Sprintf("Invalid file %s", filename), err)
	}
	content, err := fp.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	if utils.GetFileExtension(filename) == ".json" {
		var doc struct {
			Points []string `json:"points"`
			Gaps   *struct {
				Points []string `json:"points"`
			} `json:"gaps"`
		}
		if err := json.Unmarshal([]byte(content), &doc); err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("%s is not a gap report", filename), err)
		}
		if doc.Gaps != nil {
			return append([]string{}, doc.Gaps.Points...), nil
		}
		return append([]string{}, doc.Points...), nil
	}

	points := []string{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-•*"))
		if line != "" {
			points = append(points, line)
		}
	}
	if len(points) > types.MaxGapPoints {
		points = points[:types.MaxGapPoints]
	}
	return points, nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	if err := utils.ValidateOutputFile(filename); err != nil {
		return errors.NewValidationError("INVALID_OUTPUT_FILE",
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}

	return nil
}
