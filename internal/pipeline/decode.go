package pipeline

import (
	"regexp"
	"strings"

	"cvmatch/internal/errors"
	"cvmatch/internal/schema"
)

const fence = "```"

var fenceTag = regexp.MustCompile(`^[A-Za-z0-9_+-]*[ \t]*\r?\n?`)

// StripFences removes an enclosing ``` block, with or without a language
// tag, and any prose before the opening fence. Only a fence at the start of
// a line opens a block, so backticks inside JSON strings are left alone.
// Text without an opening fence is returned trimmed.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	start := openingFence(text)
	if start < 0 {
		return text
	}

	body := text[start+len(fence):]
	body = fenceTag.ReplaceAllString(body, "")
	if end := strings.LastIndex(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// openingFence returns the index of the first fence preceded on its line by
// nothing but whitespace, or -1.
func openingFence(text string) int {
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], fence)
		if i < 0 {
			return -1
		}
		i += from
		lineStart := strings.LastIndexByte(text[:i], '\n') + 1
		if strings.TrimSpace(text[lineStart:i]) == "" {
			return i
		}
		from = i + len(fence)
	}
	return -1
}

// objectSpan narrows text to the outermost {...} when prose surrounds it
func objectSpan(text string) string {
	if strings.HasPrefix(text, "{") {
		return text
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}

// decodeObject cleans a raw response and decodes it as a JSON object. The
// returned error is a SchemaDecodeError carrying the raw response.
func decodeObject(raw string) (map[string]any, error) {
	if trimmed := strings.TrimSpace(raw); strings.HasPrefix(trimmed, "{") {
		if obj, err := schema.Decode([]byte(trimmed)); err == nil {
			return obj, nil
		}
	}

	cleaned := objectSpan(StripFences(raw))
	if cleaned == "" {
		return nil, errors.NewSchemaDecodeError("Response is empty", raw, nil)
	}
	obj, err := schema.Decode([]byte(cleaned))
	if err != nil {
		return nil, errors.NewSchemaDecodeError("Response is not a JSON object", raw, err)
	}
	return obj, nil
}

// decodeRecord decodes a response into a record conforming to t
func decodeRecord(t *schema.Template, raw string) (schema.Record, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	rec := t.Conform(obj)
	if err := t.Validate(rec); err != nil {
		return nil, errors.NewSchemaDecodeError("Response does not match the "+t.Name+" schema", raw, err)
	}
	return rec, nil
}
