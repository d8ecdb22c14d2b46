package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "resume.txt")
	if err := os.WriteFile(small, []byte("Jane Doe"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		file    string
		maxSize int64
		wantErr string
	}{
		{name: "ok", file: small, maxSize: 1024},
		{name: "no limit", file: small},
		{name: "empty name", file: "", wantErr: "cannot be empty"},
		{name: "missing", file: filepath.Join(dir, "absent.pdf"), wantErr: "does not exist"},
		{name: "directory", file: dir, wantErr: "directory"},
		{name: "too large", file: small, maxSize: 4, wantErr: "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInputFile(tt.file, tt.maxSize)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestHasExtension(t *testing.T) {
	exts := []string{".pdf", "txt", " .MD "}
	tests := map[string]bool{
		"cv.PDF":          true,
		"cv.txt":          true,
		"notes.md":        true,
		"cv.docx":         false,
		"README":          false,
		"archive.pdf.zip": false,
	}
	for name, want := range tests {
		if got := HasExtension(name, exts); got != want {
			t.Errorf("HasExtension(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:              "512 B",
		2048:             "2.0 KB",
		10 * 1024 * 1024: "10.0 MB",
	}
	for size, want := range tests {
		if got := FormatFileSize(size); got != want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", size, got, want)
		}
	}
}
