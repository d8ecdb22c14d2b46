package prompts

import (
	"strings"
	"testing"

	"cvmatch/internal/config"
	"cvmatch/internal/errors"
	"cvmatch/internal/schema"
)

func TestExtractionPromptRejectsEmptySource(t *testing.T) {
	b := NewDefaultBuilder()

	for _, source := range []string{"", "   ", "\n\t\n"} {
		_, err := b.ExtractionPrompt(schema.Resume, source)
		if !errors.IsEmptyInput(err) {
			t.Errorf("ExtractionPrompt(%q) error = %v, want empty input error", source, err)
		}
	}
}

func TestExtractionPrompt(t *testing.T) {
	b := NewDefaultBuilder()

	tests := []struct {
		name        string
		template    *schema.Template
		wantContain []string
		wantAbsent  []string
	}{
		{
			name:     "resume",
			template: schema.Resume,
			wantContain: []string{
				"expert resume parser",
				`"email": ""`,
				"Resume:\n\"\"\"\nJane Doe, Go engineer\n\"\"\"",
				"Respond ONLY with raw JSON",
			},
			wantAbsent: []string{"resembles a resume schema"},
		},
		{
			name:     "job",
			template: schema.Job,
			wantContain: []string{
				"expert job description parser",
				"resembles a resume schema",
				"Job Description:\n\"\"\"",
			},
			wantAbsent: []string{`"email"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, err := b.ExtractionPrompt(tt.template, "Jane Doe, Go engineer")
			if err != nil {
				t.Fatalf("ExtractionPrompt() error: %v", err)
			}
			for _, want := range tt.wantContain {
				if !strings.Contains(prompt, want) {
					t.Errorf("prompt is missing %q", want)
				}
			}
			for _, absent := range tt.wantAbsent {
				if strings.Contains(prompt, absent) {
					t.Errorf("prompt unexpectedly contains %q", absent)
				}
			}
			if strings.Contains(prompt, "```") {
				t.Error("prompt must not contain code fences")
			}
		})
	}
}

func TestExtractionPromptSchemaPrecedesSource(t *testing.T) {
	prompt, err := NewDefaultBuilder().ExtractionPrompt(schema.Resume, "SOURCE-MARKER")
	if err != nil {
		t.Fatalf("ExtractionPrompt() error: %v", err)
	}
	if strings.Index(prompt, `"experience"`) > strings.Index(prompt, "SOURCE-MARKER") {
		t.Error("expected the schema example before the source text")
	}
}

func TestEnrichmentPrompt(t *testing.T) {
	b := NewDefaultBuilder()

	rec := schema.Resume.Empty()
	rec["name"] = "Jane Doe"

	prompt, err := b.EnrichmentPrompt(schema.Resume, rec)
	if err != nil {
		t.Fatalf("EnrichmentPrompt() error: %v", err)
	}
	for _, want := range []string{
		"- leadership_experience: Highlight leadership roles and responsibilities.",
		"Big Five (OCEAN)",
		"- openness:",
		"High, Moderate, Low",
		`"name": "Jane Doe"`,
		`"enrichment": {`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("resume enrichment prompt is missing %q", want)
		}
	}

	jobPrompt, err := b.EnrichmentPrompt(schema.Job, schema.Job.Empty())
	if err != nil {
		t.Fatalf("EnrichmentPrompt() error: %v", err)
	}
	if strings.Contains(jobPrompt, "OCEAN") {
		t.Error("job enrichment prompt must not ask for personality traits")
	}

	if _, err := b.EnrichmentPrompt(schema.Job, schema.Record{}); !errors.IsEmptyInput(err) {
		t.Errorf("expected empty input error for an empty record, got %v", err)
	}
}

func TestGapPromptRole(t *testing.T) {
	b := NewDefaultBuilder()

	tests := []struct {
		role string
		want string
	}{
		{role: "", want: "applying for the role described in the Job Description"},
		{role: "  Chief Legal Officer ", want: `applying for the role of "Chief Legal Officer"`},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			prompt, err := b.GapPrompt(schema.Resume.Empty(), schema.Job.Empty(), tt.role)
			if err != nil {
				t.Fatalf("GapPrompt() error: %v", err)
			}
			if !strings.Contains(prompt, tt.want) {
				t.Errorf("prompt is missing %q", tt.want)
			}
			if !strings.Contains(prompt, "Sum it up in 5 points") {
				t.Error("prompt must cap the number of points")
			}
			if !strings.Contains(prompt, "Key Missing Information:") {
				t.Error("prompt must name the heading")
			}
		})
	}
}

func TestQuestionnairePrompt(t *testing.T) {
	b := NewDefaultBuilder()

	prompt, err := b.QuestionnairePrompt([]string{"No salary history", "No references"})
	if err != nil {
		t.Fatalf("QuestionnairePrompt() error: %v", err)
	}
	if !strings.Contains(prompt, "a 2-question questionnaire") {
		t.Errorf("prompt does not size the questionnaire: %s", prompt)
	}
	if !strings.Contains(prompt, `"No references"`) {
		t.Error("prompt is missing a point")
	}

	empty, err := b.QuestionnairePrompt(nil)
	if err != nil {
		t.Fatalf("QuestionnairePrompt(nil) error: %v", err)
	}
	if !strings.Contains(empty, "[]") {
		t.Error("empty point list should render as an empty JSON array")
	}
}

func TestNewBuilderPromptPriority(t *testing.T) {
	cfg := &config.Config{}
	cfg.AI.Gaps.CustomPrompts = config.PromptConfig{
		User:   "inline {{.Role}}",
		System: "inline system",
		Loaded: config.LoadedPrompts{User: "from file {{.Role}}"},
	}
	cfg.AI.Questionnaire.CustomPrompts = config.PromptConfig{User: "{{.Count}} questions"}

	b, err := NewBuilder(cfg)
	if err != nil {
		t.Fatalf("NewBuilder() error: %v", err)
	}

	gaps, err := b.GapPrompt(schema.Resume.Empty(), schema.Job.Empty(), "")
	if err != nil {
		t.Fatalf("GapPrompt() error: %v", err)
	}
	if !strings.HasPrefix(gaps, "from file") {
		t.Errorf("expected file prompt to win, got %q", gaps)
	}
	if b.System(StageGaps) != "inline system" {
		t.Errorf("expected inline system prompt, got %q", b.System(StageGaps))
	}

	q, err := b.QuestionnairePrompt([]string{"a"})
	if err != nil {
		t.Fatalf("QuestionnairePrompt() error: %v", err)
	}
	if q != "1 questions" {
		t.Errorf("expected config prompt, got %q", q)
	}

	if b.System(StageExtract) != Defaults[StageExtract].System {
		t.Error("expected default system prompt for extraction")
	}
}

func TestNewBuilderRejectsBrokenTemplate(t *testing.T) {
	cfg := &config.Config{}
	cfg.AI.Extract.CustomPrompts = config.PromptConfig{User: "{{.Source"}

	if _, err := NewBuilder(cfg); err == nil {
		t.Error("expected an error for an unparsable template")
	}
}
