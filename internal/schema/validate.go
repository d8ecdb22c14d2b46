package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError lists every field that does not match the template
type ValidationError struct {
	Template string
	Errors   []FieldError
}

// FieldError is a single mismatch at a field path
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s record does not match schema:", ve.Template))
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf(" %d. %s: %s;", i+1, err.Field, err.Message))
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// JSONSchema returns the JSON Schema document equivalent to the template.
// Every declared key is required and no other keys are allowed.
func (t *Template) JSONSchema() map[string]any {
	doc := objectSchema(t.Fields)
	doc["$schema"] = "http://json-schema.org/draft-07/schema#"
	doc["title"] = t.Name
	return doc
}

func objectSchema(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]any, 0, len(fields))
	for _, f := range fields {
		props[f.Name] = fieldSchema(f)
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func fieldSchema(f Field) map[string]any {
	switch f.Kind {
	case KindObject:
		return objectSchema(f.Fields)
	case KindList:
		return map[string]any{
			"type":  "array",
			"items": objectSchema(f.Fields),
		}
	default:
		return map[string]any{"type": "string"}
	}
}

func (t *Template) schema() (*gojsonschema.Schema, error) {
	t.once.Do(func() {
		t.compiled, t.compErr = gojsonschema.NewSchema(gojsonschema.NewGoLoader(t.JSONSchema()))
	})
	return t.compiled, t.compErr
}

// Validate checks a record against the template's JSON Schema.
func (t *Template) Validate(r Record) error {
	s, err := t.schema()
	if err != nil {
		return fmt.Errorf("failed to compile %s schema: %w", t.Name, err)
	}

	result, err := s.Validate(gojsonschema.NewGoLoader(map[string]any(r)))
	if err != nil {
		return fmt.Errorf("failed to validate %s record: %w", t.Name, err)
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{Template: t.Name}
	for _, desc := range result.Errors() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	return ve
}
