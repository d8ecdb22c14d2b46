package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writePromptFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to create prompt file %s: %v", name, err)
	}
	return path
}

func TestLoadPromptsFromFiles(t *testing.T) {
	tempDir := t.TempDir()

	systemContent := "You compare candidates."
	userContent := "Compare {{.Resume}} with {{.Job}}"

	config := &Config{}
	config.AI.Gaps.CustomPrompts = PromptConfig{
		SystemFile: writePromptFile(t, tempDir, "system.gaps.md", "  "+systemContent+"\n"),
		UserFile:   writePromptFile(t, tempDir, "user.gaps.md", userContent),
	}

	if err := config.loadPromptsFromFiles(); err != nil {
		t.Fatalf("Failed to load prompts from files: %v", err)
	}

	loaded := config.GetOperationConfig(OperationGaps).CustomPrompts.Loaded
	if loaded.System != systemContent {
		t.Errorf("Expected trimmed system prompt %q, got %q", systemContent, loaded.System)
	}
	if loaded.User != userContent {
		t.Errorf("Expected user prompt %q, got %q", userContent, loaded.User)
	}

	if config.GetOperationConfig(OperationExtract).CustomPrompts.Loaded != (LoadedPrompts{}) {
		t.Error("Expected no prompts loaded for extract")
	}
}

func TestValidatePromptFiles(t *testing.T) {
	tempDir := t.TempDir()
	validFile := writePromptFile(t, tempDir, "valid.md", "Valid content")

	config := &Config{}
	config.AI.Questionnaire.CustomPrompts.UserFile = validFile

	if err := config.validatePromptFiles(); err != nil {
		t.Errorf("Expected validation to pass for valid file, got error: %v", err)
	}

	config.AI.Enrich.CustomPrompts.SystemFile = filepath.Join(tempDir, "nonexistent.md")
	if err := config.validatePromptFiles(); err == nil {
		t.Error("Expected validation to fail for non-existent file")
	}
}

func TestLoadPromptFromFile(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{
			name: "valid file",
			path: writePromptFile(t, tempDir, "test.md", "Test prompt content"),
			want: "Test prompt content",
		},
		{
			name:    "empty file",
			path:    writePromptFile(t, tempDir, "empty.md", " \n "),
			wantErr: true,
		},
		{
			name:    "missing file",
			path:    filepath.Join(tempDir, "nonexistent.md"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadPromptFromFile(tt.path, "system", "extract")
			if (err != nil) != tt.wantErr {
				t.Fatalf("loadPromptFromFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("loadPromptFromFile() = %q, want %q", got, tt.want)
			}
		})
	}
}
