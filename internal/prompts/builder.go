// Package prompts renders the instructions sent to the generation service
// for each pipeline stage.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"cvmatch/internal/config"
	"cvmatch/internal/errors"
	"cvmatch/internal/schema"
	"cvmatch/internal/types"
)

// Builder renders stage prompts from parsed templates. It is safe for
// concurrent use once built.
type Builder struct {
	system map[Stage]string
	user   map[Stage]*template.Template
}

// NewBuilder resolves each stage prompt from, in order, a prompt file, an
// inline configuration value and the built-in default.
func NewBuilder(cfg *config.Config) (*Builder, error) {
	return newBuilder(func(stage Stage) Prompt {
		custom := cfg.GetOperationConfig(string(stage)).CustomPrompts
		def := Defaults[stage]
		return Prompt{
			System: resolvePrompt(custom.Loaded.System, custom.System, def.System),
			User:   resolvePrompt(custom.Loaded.User, custom.User, def.User),
		}
	})
}

// NewDefaultBuilder returns a builder using only the built-in prompts.
func NewDefaultBuilder() *Builder {
	b, err := newBuilder(func(stage Stage) Prompt { return Defaults[stage] })
	if err != nil {
		panic(err)
	}
	return b
}

func newBuilder(resolve func(Stage) Prompt) (*Builder, error) {
	b := &Builder{
		system: make(map[Stage]string, len(Stages)),
		user:   make(map[Stage]*template.Template, len(Stages)),
	}
	for _, stage := range Stages {
		p := resolve(stage)
		tmpl, err := template.New(string(stage)).Option("missingkey=error").Parse(p.User)
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("invalid %s prompt template", stage), err)
		}
		b.system[stage] = p.System
		b.user[stage] = tmpl
	}
	return b, nil
}

// resolvePrompt picks a file prompt over a config prompt over the default
func resolvePrompt(loadedFromFile, fromConfig, fromDefault string) string {
	if loadedFromFile != "" {
		return loadedFromFile
	}
	if fromConfig != "" {
		return fromConfig
	}
	return fromDefault
}

// System returns the system instruction for a stage
func (b *Builder) System(stage Stage) string {
	return b.system[stage]
}

type attribute struct {
	Name        string
	Description string
}

// ExtractionPrompt renders the instruction that turns source text into a
// record. Whitespace-only text is rejected.
func (b *Builder) ExtractionPrompt(t *schema.Template, source string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", errors.NewEmptyInputError(fmt.Sprintf("no text to extract a %s record from", t.Name))
	}

	document, title := documentNames(t)
	return b.render(StageExtract, map[string]any{
		"Document": document,
		"Title":    title,
		"Job":      t == schema.Job,
		"Schema":   t.Example(),
		"Source":   source,
	})
}

// EnrichmentPrompt renders the instruction that infers the enrichment block
// of an extracted record.
func (b *Builder) EnrichmentPrompt(t *schema.Template, rec schema.Record) (string, error) {
	if len(rec) == 0 {
		return "", errors.NewEmptyInputError(fmt.Sprintf("no %s record to enrich", t.Name))
	}

	encoded, err := t.Encode(rec)
	if err != nil {
		return "", errors.NewInternalError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("failed to serialize %s record", t.Name), err)
	}

	var attrs, traits []attribute
	for _, f := range t.Enrichment().Fields {
		if f.Name == schema.PersonalityKey {
			for _, trait := range f.Fields {
				traits = append(traits, attribute{Name: trait.Name, Description: trait.Description})
			}
			continue
		}
		attrs = append(attrs, attribute{Name: f.Name, Description: f.Description})
	}

	document, title := documentNames(t)
	return b.render(StageEnrich, map[string]any{
		"Document":   document,
		"Title":      title,
		"Attributes": attrs,
		"Traits":     traits,
		"Levels":     strings.Join(schema.TraitLevels, ", "),
		"Record":     string(encoded),
		"Schema":     t.EnrichmentExample(),
	})
}

// GapPrompt renders the narrative comparison of a résumé against a job.
// An empty role refers to the role described in the job description.
func (b *Builder) GapPrompt(resume, job schema.Record, role string) (string, error) {
	resumeJSON, err := schema.Resume.Encode(resume)
	if err != nil {
		return "", errors.NewInternalError(errors.ErrCodeInvalidFormat, "failed to serialize resume record", err)
	}
	jobJSON, err := schema.Job.Encode(job)
	if err != nil {
		return "", errors.NewInternalError(errors.ErrCodeInvalidFormat, "failed to serialize job record", err)
	}

	roleText := "the role described in the Job Description"
	if r := strings.TrimSpace(role); r != "" {
		roleText = fmt.Sprintf("the role of %q", r)
	}

	return b.render(StageGaps, map[string]any{
		"Resume":    string(resumeJSON),
		"Job":       string(jobJSON),
		"Role":      roleText,
		"MaxPoints": types.MaxGapPoints,
	})
}

// QuestionnairePrompt renders the request for one question per gap point.
// An empty point list still yields a prompt.
func (b *Builder) QuestionnairePrompt(points []string) (string, error) {
	if points == nil {
		points = []string{}
	}
	encoded, err := json.MarshalIndent(points, "", "  ")
	if err != nil {
		return "", errors.NewInternalError(errors.ErrCodeInvalidFormat, "failed to serialize gap points", err)
	}

	return b.render(StageQuestionnaire, map[string]any{
		"Count":  len(points),
		"Points": string(encoded),
	})
}

func (b *Builder) render(stage Stage, data map[string]any) (string, error) {
	var sb strings.Builder
	if err := b.user[stage].Execute(&sb, data); err != nil {
		return "", errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("failed to render %s prompt", stage), err)
	}
	return sb.String(), nil
}

func documentNames(t *schema.Template) (document, title string) {
	if t == schema.Job {
		return "job description", "Job Description"
	}
	return "resume", "Resume"
}
