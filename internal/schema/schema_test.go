package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestTemplateKeys(t *testing.T) {
	tests := []struct {
		name     string
		template *Template
		want     []string
	}{
		{
			name:     "resume",
			template: Resume,
			want:     []string{"name", "email", "phone", "location", "summary", "skills", "experience", "education", "enrichment"},
		},
		{
			name:     "job omits identity fields",
			template: Job,
			want:     []string{"location", "summary", "skills", "experience", "education", "enrichment"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.template.Keys()
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Keys() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnrichmentBlocks(t *testing.T) {
	resumeFields := Resume.Enrichment().Fields
	jobFields := Job.Enrichment().Fields

	if len(jobFields) != 12 {
		t.Errorf("job enrichment has %d attributes, want 12", len(jobFields))
	}
	if len(resumeFields) != 13 {
		t.Errorf("resume enrichment has %d entries, want 12 attributes plus personality", len(resumeFields))
	}

	var personality *Field
	for i := range resumeFields {
		if resumeFields[i].Name == PersonalityKey {
			personality = &resumeFields[i]
		}
	}
	if personality == nil {
		t.Fatal("resume enrichment is missing the personality block")
	}
	if len(personality.Fields) != 5 {
		t.Errorf("personality block has %d traits, want 5", len(personality.Fields))
	}

	for _, f := range jobFields {
		if f.Name == PersonalityKey {
			t.Error("job enrichment must not carry a personality block")
		}
	}
}

func TestExamplePreservesOrder(t *testing.T) {
	example := Resume.Example()

	var decoded map[string]any
	if err := json.Unmarshal([]byte(example), &decoded); err != nil {
		t.Fatalf("example is not valid JSON: %v", err)
	}

	last := -1
	for _, key := range Resume.Keys() {
		idx := strings.Index(example, `"`+key+`"`)
		if idx < 0 {
			t.Fatalf("example is missing key %q", key)
		}
		if idx < last {
			t.Errorf("key %q is out of order", key)
		}
		last = idx
	}

	if strings.Contains(example, "Moderate") {
		t.Error("example must not contain sample values")
	}

	skills, ok := decoded["skills"].([]any)
	if !ok || len(skills) != 1 {
		t.Errorf("expected skills to show one empty item, got %v", decoded["skills"])
	}
}

func TestEnrichmentExample(t *testing.T) {
	var decoded map[string]map[string]any
	if err := json.Unmarshal([]byte(Job.EnrichmentExample()), &decoded); err != nil {
		t.Fatalf("enrichment example is not valid JSON: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected only the enrichment key, got %v", decoded)
	}
	if _, ok := decoded[EnrichmentKey]["cultural_fit_indicators"]; !ok {
		t.Error("enrichment example is missing cultural_fit_indicators")
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "object", input: `{"name": "Ada"}`},
		{name: "trailing whitespace", input: "{\"name\": \"Ada\"}\n\n"},
		{name: "array", input: `[1, 2]`, wantErr: true},
		{name: "null", input: `null`, wantErr: true},
		{name: "trailing prose", input: `{"name": "Ada"} hope this helps`, wantErr: true},
		{name: "truncated", input: `{"name": "Ada"`, wantErr: true},
		{name: "empty", input: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConform(t *testing.T) {
	raw, err := Decode([]byte(`{
		"name": "Ada Lovelace",
		"phone": 5551234,
		"hobbies": "chess",
		"skills": [{"specialized_skill": "Go", "common_skill": "Writing", "level": 5}],
		"experience": {"job_title": "Engineer", "company": "Analytical Engines"},
		"education": null,
		"enrichment": [{"leadership_experience": "Led a team", "personality_traits": [{"openness": "High"}]}],
		"summary": ["Curious", "Precise"]
	}`))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	rec := Resume.Conform(raw)

	if len(rec) != len(Resume.Keys()) {
		t.Errorf("expected exactly %d keys, got %d", len(Resume.Keys()), len(rec))
	}
	if _, ok := rec["hobbies"]; ok {
		t.Error("undeclared key was not dropped")
	}
	if got := rec.String("phone"); got != "5551234" {
		t.Errorf("phone = %q, want number rendered as text", got)
	}
	if got := rec.String("email"); got != "" {
		t.Errorf("missing email = %q, want explicit empty string", got)
	}
	if got := rec.String("summary"); got != "Curious, Precise" {
		t.Errorf("summary = %q, want joined list", got)
	}

	skills := rec["skills"].([]any)
	skill := skills[0].(map[string]any)
	if _, ok := skill["level"]; ok {
		t.Error("undeclared nested key was not dropped")
	}

	experience, ok := rec["experience"].([]any)
	if !ok || len(experience) != 1 {
		t.Fatalf("single experience object should be wrapped in a list, got %v", rec["experience"])
	}
	if got := experience[0].(map[string]any)["end_date"]; got != "" {
		t.Errorf("missing end_date = %v, want empty string", got)
	}

	if education, ok := rec["education"].([]any); !ok || len(education) != 0 {
		t.Errorf("null education = %v, want empty list", rec["education"])
	}

	enrichment := rec["enrichment"].(map[string]any)
	if enrichment["leadership_experience"] != "Led a team" {
		t.Errorf("list-wrapped enrichment was not unwrapped: %v", enrichment)
	}
	traits := enrichment[PersonalityKey].(map[string]any)
	if traits["openness"] != "High" || traits["neuroticism"] != "" {
		t.Errorf("personality traits = %v", traits)
	}

	if err := Resume.Validate(rec); err != nil {
		t.Errorf("conformed record failed validation: %v", err)
	}
}

func TestConformScalarListItems(t *testing.T) {
	raw, err := Decode([]byte(`{"skills": ["Go", "", "SQL"]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	rec := Job.Conform(raw)

	skills, ok := rec["skills"].([]any)
	if !ok || len(skills) != 2 {
		t.Fatalf("skills = %#v, want two items", rec["skills"])
	}
	for i, want := range []string{"Go", "SQL"} {
		item, ok := skills[i].(map[string]any)
		if !ok {
			t.Fatalf("skills[%d] = %#v, want an object", i, skills[i])
		}
		if item["specialized_skill"] != want {
			t.Errorf("skills[%d].specialized_skill = %v, want %q", i, item["specialized_skill"], want)
		}
		if item["common_skill"] != "" {
			t.Errorf("skills[%d].common_skill = %v, want empty", i, item["common_skill"])
		}
	}
	if err := Job.Validate(rec); err != nil {
		t.Errorf("conformed record failed validation: %v", err)
	}
}

func TestValidateRejectsUnrepairableShapes(t *testing.T) {
	raw := map[string]any{
		"summary": map[string]any{"text": "nested where text is expected"},
		"skills":  "Go, Python",
	}
	rec := Job.Conform(raw)

	err := Job.Validate(rec)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}

	fields := make(map[string]bool)
	for _, fe := range ve.Errors {
		fields[fe.Field] = true
	}
	for _, want := range []string{"summary", "skills"} {
		if !fields[want] {
			t.Errorf("expected a validation error for %q, got %v", want, ve.Errors)
		}
	}
}

func TestValidateEmptyRecords(t *testing.T) {
	for _, tmpl := range []*Template{Resume, Job} {
		t.Run(tmpl.Name, func(t *testing.T) {
			if err := tmpl.Validate(tmpl.Empty()); err != nil {
				t.Errorf("empty record failed validation: %v", err)
			}
		})
	}
}

func TestEncodeKeepsTemplateOrder(t *testing.T) {
	rec := Job.Empty()
	rec["summary"] = "Build <fast> systems & tools"
	rec["extra"] = "kept"

	out, err := Job.Encode(rec)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	text := string(out)

	if strings.Index(text, `"location"`) > strings.Index(text, `"enrichment"`) {
		t.Error("expected location before enrichment")
	}
	if strings.Index(text, `"enrichment"`) > strings.Index(text, `"extra"`) {
		t.Error("expected undeclared keys after declared ones")
	}
	if !strings.Contains(text, "<fast> systems & tools") {
		t.Error("expected text to be written without HTML escaping")
	}
}

func TestForKind(t *testing.T) {
	if tmpl, ok := ForKind("resume"); !ok || tmpl != Resume {
		t.Error("expected resume template")
	}
	if tmpl, ok := ForKind("job"); !ok || tmpl != Job {
		t.Error("expected job template")
	}
	if _, ok := ForKind("cover-letter"); ok {
		t.Error("unexpected template for unknown kind")
	}
}
