package pipeline

import (
	"context"
	"fmt"

	"cvmatch/internal/ai"
	"cvmatch/internal/config"
	"cvmatch/internal/errors"
	"cvmatch/internal/prompts"
	"cvmatch/internal/schema"

	"go.opentelemetry.io/otel/attribute"
)

// EnrichOutcome is the merged record plus a warning when enrichment was
// skipped under the continue policy
type EnrichOutcome struct {
	Record   schema.Record
	Enriched bool
	Warning  string
}

// Enricher infers the enrichment block of a record and merges it in
type Enricher struct {
	client   ai.GenerationClient
	prompts  *prompts.Builder
	policy   string
	recorder Recorder
	logger   *errors.Logger
}

// NewEnricher creates an enricher. policy is config.EnrichmentPolicyContinue
// or config.EnrichmentPolicyAbort; anything else behaves as continue.
func NewEnricher(client ai.GenerationClient, builder *prompts.Builder, policy string, logger *errors.Logger) *Enricher {
	if builder == nil {
		builder = prompts.NewDefaultBuilder()
	}
	return &Enricher{
		client:   client,
		prompts:  builder,
		policy:   policy,
		recorder: nopRecorder{},
		logger:   errors.OrNop(logger),
	}
}

// Enrich runs one enrichment round for rec. Only the enrichment key of the
// result differs from rec; rec itself is never modified.
//
// An undecodable reply is a schema decode error under the abort policy.
// Under the continue policy the record comes back unchanged with a warning.
// Service failures are always returned.
func (e *Enricher) Enrich(ctx context.Context, t *schema.Template, rec schema.Record) (EnrichOutcome, error) {
	prompt, err := e.prompts.EnrichmentPrompt(t, rec)
	if err != nil {
		return EnrichOutcome{}, err
	}

	ctx, span := tracer.Start(ctx, "pipeline.enrich")
	defer span.End()
	span.SetAttributes(attribute.String("document.kind", t.Name))

	raw, err := generate(ctx, e.client, e.recorder, StageEnrich, ai.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: e.prompts.System(StageEnrich),
		JSON:         true,
	})
	if err != nil {
		span.RecordError(err)
		return EnrichOutcome{}, err
	}

	merged, err := mergeEnrichment(t, rec, raw)
	if err != nil {
		span.RecordError(err)
		if e.policy == config.EnrichmentPolicyAbort {
			return EnrichOutcome{}, err
		}
		e.logger.LogError(err, "Enrichment skipped, keeping extracted record",
			"document", t.Name,
			"policy", config.EnrichmentPolicyContinue)
		span.SetAttributes(attribute.Bool("enrichment.skipped", true))
		return EnrichOutcome{
			Record:  rec.Copy(),
			Warning: fmt.Sprintf("%s enrichment skipped: %v", t.Name, err),
		}, nil
	}

	return EnrichOutcome{Record: merged, Enriched: true}, nil
}

// mergeEnrichment decodes an enrichment reply and returns a copy of rec with
// its enrichment replaced. The reply may be the block itself, an object
// holding it under "enrichment", or a whole record.
func mergeEnrichment(t *schema.Template, rec schema.Record, raw string) (schema.Record, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	block := obj
	if nested, ok := obj[schema.EnrichmentKey].(map[string]any); ok {
		block = nested
	}

	enrichment := t.Enrichment()
	if hasField(enrichment, schema.PersonalityKey) {
		if _, ok := block[schema.PersonalityKey]; !ok {
			if traits, ok := obj[schema.PersonalityKey]; ok {
				block = withKey(block, schema.PersonalityKey, traits)
			}
		}
	}

	if !anyKnownKey(enrichment, block) {
		return nil, errors.NewSchemaDecodeError("Response has no enrichment attributes", raw, nil)
	}

	// validate the block alone so that fields of rec never fail the merge
	probe := t.Conform(map[string]any{schema.EnrichmentKey: block})
	if err := t.Validate(probe); err != nil {
		return nil, errors.NewSchemaDecodeError("Enrichment does not match the "+t.Name+" schema", raw, err)
	}

	merged := rec.Copy()
	merged[schema.EnrichmentKey] = probe[schema.EnrichmentKey]
	return merged, nil
}

func hasField(f schema.Field, name string) bool {
	for _, sub := range f.Fields {
		if sub.Name == name {
			return true
		}
	}
	return false
}

func anyKnownKey(f schema.Field, obj map[string]any) bool {
	for _, sub := range f.Fields {
		if _, ok := obj[sub.Name]; ok {
			return true
		}
	}
	return false
}

func withKey(m map[string]any, key string, v any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, val := range m {
		out[k] = val
	}
	out[key] = v
	return out
}
