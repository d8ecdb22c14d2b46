package pipeline

import (
	"testing"

	"cvmatch/internal/errors"
	"cvmatch/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "no fence", input: `  {"a": "b"}  `, expected: `{"a": "b"}`},
		{name: "json tag", input: "```json\n{\"a\": \"b\"}\n```", expected: `{"a": "b"}`},
		{name: "bare fence", input: "```\n{\"a\": \"b\"}\n```", expected: `{"a": "b"}`},
		{name: "prose around", input: "Here you go:\n```JSON\n{}\n```\nThanks", expected: `{}`},
		{name: "unterminated", input: "```json\n{\"a\": 1}", expected: `{"a": 1}`},
		{name: "same line", input: "```{\"a\": 1}```", expected: `{"a": 1}`},
		{name: "backticks inside a value", input: "{\"summary\": \"Writes ```go blocks\"}", expected: "{\"summary\": \"Writes ```go blocks\"}"},
		{name: "indented fence", input: "Result:\n  ```json\n  {}\n  ```", expected: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripFences(tt.input))
		})
	}
}

func TestDecodeRecord(t *testing.T) {
	t.Run("fenced response decodes", func(t *testing.T) {
		rec, err := decodeRecord(schema.Resume, "```json\n"+resumeJSON+"\n```")
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", rec.String("name"))
	})

	t.Run("keys are exactly the template keys", func(t *testing.T) {
		rec, err := decodeRecord(schema.Job, `{"summary": "Go developer", "salary": 100, "skills": null}`)
		require.NoError(t, err)
		assert.ElementsMatch(t, schema.Job.Keys(), keysOf(rec))
		assert.Equal(t, []any{}, rec["skills"])
	})

	t.Run("backticks inside an unfenced value", func(t *testing.T) {
		raw := "{\"name\": \"Ada\", \"summary\": \"Writes docs with ```go code blocks\"}"
		rec, err := decodeRecord(schema.Resume, raw)
		require.NoError(t, err)
		assert.Equal(t, "Writes docs with ```go code blocks", rec.String("summary"))
	})

	t.Run("backticks inside a fenced value", func(t *testing.T) {
		raw := "```json\n{\"summary\": \"Uses ``` in docs\"}\n```"
		rec, err := decodeRecord(schema.Job, raw)
		require.NoError(t, err)
		assert.Equal(t, "Uses ``` in docs", rec.String("summary"))
	})

	t.Run("prose around object", func(t *testing.T) {
		rec, err := decodeRecord(schema.Job, `Sure! {"summary": "Go developer"} Hope this helps.`)
		require.NoError(t, err)
		assert.Equal(t, "Go developer", rec.String("summary"))
	})

	failures := map[string]string{
		"not json":       "I could not parse this document.",
		"empty":          "```json\n```",
		"unrepairable":   `{"skills": 42}`,
		"trailing data":  `{"summary": "a"} {"summary": "b"}`,
		"truncated json": `{"summary": "a"`,
	}
	for name, raw := range failures {
		t.Run(name, func(t *testing.T) {
			_, err := decodeRecord(schema.Job, raw)
			require.Error(t, err)
			assert.True(t, errors.IsSchemaDecode(err))
			assert.Equal(t, raw, errors.RawResponse(err))
		})
	}
}

func keysOf(rec schema.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	return keys
}
