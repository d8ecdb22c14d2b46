// Package document turns uploaded files into normalized plain text.
package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"cvmatch/internal/errors"
	"cvmatch/internal/utils"

	"github.com/ledongthuc/pdf"
)

// TextSource converts a named binary document into text
type TextSource interface {
	Text(ctx context.Context, name string, data []byte) (string, error)
}

// Source reads PDF and plain-text documents
type Source struct {
	maxSize int64
	logger  *errors.Logger
}

var _ TextSource = (*Source)(nil)

// NewSource creates a document source. Documents larger than maxSize bytes
// are rejected; zero means no limit.
func NewSource(maxSize int64, logger *errors.Logger) *Source {
	return &Source{maxSize: maxSize, logger: logger}
}

// Text extracts the text of a document. A document with no extractable text
// yields an empty string and no error; deciding whether that is acceptable
// is left to the caller.
func (s *Source) Text(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return "", errors.NewValidationError("FILE_TOO_LARGE",
			fmt.Sprintf("%s is %s, larger than the %s limit", name,
				utils.FormatFileSize(int64(len(data))), utils.FormatFileSize(s.maxSize)), nil)
	}

	var raw string
	switch {
	case isPDF(name, data):
		text, err := extractPDF(data)
		if err != nil {
			return "", errors.NewIOError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("Cannot read PDF %s", name), err)
		}
		raw = text
	case utf8.Valid(data):
		raw = string(data)
	default:
		return "", errors.NewIOError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Unsupported document %s: not a PDF or UTF-8 text", name), nil)
	}

	text := Normalize(raw)
	if s.logger != nil {
		s.logger.Debug("Document text extracted",
			"name", name,
			"bytes", len(data),
			"chars", utf8.RuneCountInString(text))
	}
	return text, nil
}

// ReadFile validates and reads a document from disk
func (s *Source) ReadFile(ctx context.Context, filename string) (string, error) {
	if err := utils.ValidateInputFile(filename, s.maxSize); err != nil {
		return "", errors.NewValidationError("INVALID_INPUT_FILE",
			fmt.Sprintf("Invalid file %s", filename), err)
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	return s.Text(ctx, filename, data)
}

func isPDF(name string, data []byte) bool {
	return utils.IsPDFFile(name) || bytes.HasPrefix(data, []byte("%PDF-"))
}

// extractPDF reads the plain text of every page. The parser panics on some
// malformed files, so panics are turned into errors.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var blankRun = regexp.MustCompile(`\n{3,}`)

// Normalize converts line endings to LF, drops NUL bytes, turns form feeds
// into line breaks, trims trailing spaces on every line and collapses runs of
// blank lines into one.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\f", "\n")
	text = strings.ReplaceAll(text, "\x00", "")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\u00a0")
	}
	text = strings.Join(lines, "\n")

	text = blankRun.ReplaceAllString(text, "\n\n")
	return strings.Trim(text, "\n")
}
