package pipeline

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"cvmatch/internal/errors"
	"cvmatch/internal/schema"
	"cvmatch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMissingPoints(t *testing.T) {
	tests := []struct {
		name      string
		narrative string
		expected  []string
	}{
		{
			name:      "heading with bullets then prose",
			narrative: gapNarrative,
			expected:  []string{"Missing A", "Missing B", "Missing C"},
		},
		{
			name:      "no heading",
			narrative: "The candidate is strong overall.\n- Good Go skills\n- Solid background",
			expected:  []string{},
		},
		{
			name:      "empty narrative",
			narrative: "",
			expected:  []string{},
		},
		{
			name:      "bold heading and mixed bullets",
			narrative: "**Key Missing Information:**\n\n• No certifications\n* No **team lead** role\n- Gap in 2020",
			expected:  []string{"No certifications", "No **team lead** role", "Gap in 2020"},
		},
		{
			name:      "lowercase heading variant",
			narrative: "Here is the key information that is absent:\n- Salary history\n- References",
			expected:  []string{"Salary history", "References"},
		},
		{
			name:      "capped at five",
			narrative: "Missing information:\n- one\n- two\n- three\n- four\n- five\n- six\n- seven",
			expected:  []string{"one", "two", "three", "four", "five"},
		},
		{
			name:      "bullet mentioning missing information is not a heading",
			narrative: "Key Missing Information:\n- The missing information about Kubernetes\n- Cloud certifications",
			expected:  []string{"The missing information about Kubernetes", "Cloud certifications"},
		},
		{
			name:      "numbered fallback",
			narrative: "Summary first.\n1. Missing cloud experience\n2. No management role\n\n3. No degree",
			expected:  []string{"Missing cloud experience", "No management role", "No degree"},
		},
		{
			name:      "numbered fallback capped at five",
			narrative: "1. Missing A\n2. B\n3. C\n4. D\n5. E\n6. F",
			expected:  []string{"Missing A", "B", "C", "D", "E"},
		},
		{
			name:      "numbered list restarting is rejected",
			narrative: "1. Missing A\n2. B\n1. Something else",
			expected:  []string{},
		},
		{
			name:      "numbered list skipping is rejected",
			narrative: "1. Missing A\n3. C",
			expected:  []string{},
		},
		{
			name:      "numbered list without missing marker",
			narrative: "1. Overview\n2. Experience\n3. Education",
			expected:  []string{},
		},
		{
			name:      "heading written as a bullet",
			narrative: "- Key Missing Information:\n  - A\n  - B",
			expected:  []string{"A", "B"},
		},
		{
			name:      "bold heading written as a bullet",
			narrative: "Overview.\n\n* **Key Missing Information:**\n* **Salary history**\n* Python __init__ hooks\n\nDone.",
			expected:  []string{"Salary history", "Python __init__ hooks"},
		},
		{
			name:      "bullet heading inside the list starts a new section",
			narrative: "Key Missing Information:\n- A\n- Other missing information:\n- B",
			expected:  []string{"A", "B"},
		},
		{
			name:      "separator lines are not points",
			narrative: "Key Missing Information:\n---\n- A",
			expected:  []string{"A"},
		},
		{
			name:      "decimal is not a list number",
			narrative: "1. Missing cloud experience\n2.5 years gap noted\n2. No degree",
			expected:  []string{"Missing cloud experience", "No degree"},
		},
		{
			name:      "crlf line endings",
			narrative: "Key Missing Information:\r\n- A\r\n- B\r\n\r\nDone.",
			expected:  []string{"A", "B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := ExtractMissingPoints(tt.narrative)
			assert.Equal(t, tt.expected, points)
			assert.LessOrEqual(t, len(points), types.MaxGapPoints)
			assert.Equal(t, points, ExtractMissingPoints(tt.narrative), "segmentation must be a pure function of the text")
		})
	}
}

func TestExtractMissingPointsNeverExceedsCap(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Key Missing Information:\n")
	for i := 0; i < 50; i++ {
		sb.WriteString("- point\n")
	}
	assert.Len(t, ExtractMissingPoints(sb.String()), types.MaxGapPoints)
}

func TestAnalyzeForRole(t *testing.T) {
	resume, err := decodeRecord(schema.Resume, resumeJSON)
	require.NoError(t, err)
	job, err := decodeRecord(schema.Job, jobJSON)
	require.NoError(t, err)

	t.Run("narrative and points", func(t *testing.T) {
		client := replyWith(gapNarrative)
		report, err := NewGapAnalyzer(client, nil, nil).AnalyzeForRole(context.Background(), resume, job, " Staff Engineer ")
		require.NoError(t, err)

		assert.Equal(t, gapNarrative, report.Narrative)
		assert.Equal(t, []string{"Missing A", "Missing B", "Missing C"}, report.Points)
		assert.Equal(t, "Staff Engineer", report.Role)

		req := client.lastRequest()
		assert.False(t, req.JSON)
		assert.Contains(t, req.Prompt, `"Staff Engineer"`)
		assert.Contains(t, req.Prompt, "Ada Lovelace")
	})

	t.Run("default role", func(t *testing.T) {
		client := replyWith("Nothing is missing.")
		report, err := NewGapAnalyzer(client, nil, nil).Analyze(context.Background(), resume, job)
		require.NoError(t, err)
		assert.Empty(t, report.Points)
		assert.NotNil(t, report.Points)
		assert.Contains(t, client.lastRequest().Prompt, "the role described in the Job Description")
	})

	t.Run("service failure", func(t *testing.T) {
		_, err := NewGapAnalyzer(failWith(stderrors.New("unavailable")), nil, nil).Analyze(context.Background(), resume, job)
		require.Error(t, err)
		assert.True(t, errors.IsServiceError(err))
	})
}
