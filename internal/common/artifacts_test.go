package common

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cvmatch/internal/schema"
	"cvmatch/internal/types"
)

func sampleRun() *types.RunResult {
	return &types.RunResult{
		RunID: "run-1",
		Resume: &types.DocumentResult{
			Kind:   types.DocumentResume,
			Record: schema.Resume.Conform(map[string]any{"name": "Ada Lovelace"}),
		},
		Job: &types.DocumentResult{
			Kind:   types.DocumentJob,
			Record: schema.Job.Conform(map[string]any{"summary": "Programmer"}),
		},
		Gaps: &types.GapReport{
			Narrative: "Key Missing Information:\n- Missing A",
			Points:    []string{"Missing A"},
		},
		Questionnaire: &types.Questionnaire{
			Points:    []string{"Missing A"},
			Questions: []string{"Why A?"},
			Narrative: "1. Why A?",
		},
	}
}

func TestArtifactWriterCompleteRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "run-1")
	written, err := NewArtifactWriter(dir, nil).Write(sampleRun())
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	want := []string{ArtifactEnrichedResume, ArtifactEnrichedJob, ArtifactGapAnalysis, ArtifactQuestionnaire, ArtifactRun}
	if len(written) != len(want) {
		t.Fatalf("wrote %d files, want %d: %v", len(written), len(want), written)
	}
	for i, name := range want {
		if written[i] != filepath.Join(dir, name) {
			t.Errorf("written[%d] = %s, want %s", i, written[i], name)
		}
	}

	resume, err := os.ReadFile(filepath.Join(dir, ArtifactEnrichedResume))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(resume), "{\n  \"name\": \"Ada Lovelace\"") {
		t.Errorf("resume record not in template order:\n%s", resume)
	}

	gaps, err := os.ReadFile(filepath.Join(dir, ArtifactGapAnalysis))
	if err != nil {
		t.Fatal(err)
	}
	narrative := strings.Index(string(gaps), "Key Missing Information:")
	points := strings.Index(string(gaps), "=== KEY MISSING POINTS ===\n1. Missing A")
	if narrative < 0 || points < narrative {
		t.Errorf("gap analysis should list points after the narrative:\n%s", gaps)
	}

	run, err := os.ReadFile(filepath.Join(dir, ArtifactRun))
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(run, &decoded); err != nil {
		t.Fatalf("run.json is not valid JSON: %v", err)
	}
	if decoded["runId"] != "run-1" {
		t.Errorf("runId = %v", decoded["runId"])
	}
}

func TestArtifactWriterPartialRun(t *testing.T) {
	result := sampleRun()
	result.Resume = nil
	result.Gaps = nil
	result.Questionnaire = nil

	dir := t.TempDir()
	written, err := NewArtifactWriter(dir, nil).Write(result)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("wrote %v, want job record and run summary", written)
	}
	if _, err := os.Stat(filepath.Join(dir, ArtifactGapAnalysis)); !os.IsNotExist(err) {
		t.Error("gap analysis should not be written for a partial run")
	}
}
