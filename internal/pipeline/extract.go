package pipeline

import (
	"context"
	"time"

	"cvmatch/internal/ai"
	"cvmatch/internal/errors"
	"cvmatch/internal/prompts"
	"cvmatch/internal/schema"

	"go.opentelemetry.io/otel/attribute"
)

var extractTemperature float32

// Extractor turns source text into a record shaped by a template
type Extractor struct {
	client   ai.GenerationClient
	prompts  *prompts.Builder
	recorder Recorder
	logger   *errors.Logger
}

// NewExtractor creates an extractor. A nil builder uses the default prompts.
func NewExtractor(client ai.GenerationClient, builder *prompts.Builder, logger *errors.Logger) *Extractor {
	if builder == nil {
		builder = prompts.NewDefaultBuilder()
	}
	return &Extractor{client: client, prompts: builder, recorder: nopRecorder{}, logger: errors.OrNop(logger)}
}

// Extract asks the service for a record matching t and decodes the reply.
//
// Whitespace-only text fails with an empty input error before any call is
// made. A reply that cannot be decoded, or whose shape cannot be repaired to
// the template, fails with a schema decode error carrying the raw reply.
// Missing keys are filled with empty values so the record always has exactly
// the template's top-level keys.
func (e *Extractor) Extract(ctx context.Context, t *schema.Template, source string) (schema.Record, error) {
	prompt, err := e.prompts.ExtractionPrompt(t, source)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "pipeline.extract")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.kind", t.Name),
		attribute.Int("input.source_length", len(source)),
	)

	start := time.Now()
	raw, err := generate(ctx, e.client, e.recorder, StageExtract, ai.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: e.prompts.System(StageExtract),
		Temperature:  &extractTemperature,
		JSON:         true,
		Template:     t,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	rec, err := decodeRecord(t, raw)
	if err != nil {
		span.RecordError(err)
		e.logger.LogError(err, "Extraction response could not be decoded",
			"document", t.Name,
			"response_length", len(raw))
		return nil, err
	}

	e.logger.Debug("Record extracted",
		"document", t.Name,
		"duration", time.Since(start),
		"experience_items", listLen(rec, "experience"))
	return rec, nil
}

func listLen(rec schema.Record, key string) int {
	items, _ := rec[key].([]any)
	return len(items)
}
