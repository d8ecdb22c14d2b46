package common

import (
	"fmt"
	"slices"

	"cvmatch/internal/types"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// ValidateDocumentKind parses a --kind flag value
func ValidateDocumentKind(kind string) (types.DocumentKind, error) {
	parsed, ok := types.ParseDocumentKind(kind)
	if !ok {
		return "", fmt.Errorf("unsupported document kind '%s'. Supported kinds: resume, job", kind)
	}
	return parsed, nil
}
