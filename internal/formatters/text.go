package formatters

import (
	"fmt"
	"strings"
	"time"

	"cvmatch/internal/types"
)

// RunTextFormatter handles text formatting for a full pipeline run
type RunTextFormatter struct{}

func (rtf *RunTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.RunResult)
	if !ok {
		return "", fmt.Errorf("expected RunResult, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== RUN ===\n")
	output.WriteString(fmt.Sprintf("ID: %s\n", result.RunID))
	output.WriteString(fmt.Sprintf("Duration: %s\n", result.Duration().Round(time.Millisecond)))
	output.WriteString(fmt.Sprintf("Tokens: %d (input %d, output %d)\n\n",
		result.Usage.TotalTokens, result.Usage.InputTokens, result.Usage.OutputTokens))

	for _, doc := range []*types.DocumentResult{result.Resume, result.Job} {
		if doc == nil {
			continue
		}
		writeDocumentText(&output, *doc)
		output.WriteString("\n")
	}

	if result.Gaps != nil {
		writeGapText(&output, *result.Gaps)
		output.WriteString("\n")
	}
	if result.Questionnaire != nil {
		writeQuestionnaireText(&output, *result.Questionnaire, false)
		output.WriteString("\n")
	}

	if len(result.Warnings) > 0 {
		output.WriteString("=== WARNINGS ===\n")
		for _, w := range result.Warnings {
			output.WriteString("- ")
			output.WriteString(w)
			output.WriteString("\n")
		}
	}

	return strings.TrimRight(output.String(), "\n") + "\n", nil
}

func (rtf *RunTextFormatter) SupportedType() string {
	return "RunResult"
}

// DocumentTextFormatter handles text formatting for one extracted document
type DocumentTextFormatter struct{}

func (dtf *DocumentTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.DocumentResult)
	if !ok {
		return "", fmt.Errorf("expected DocumentResult, got %T", data)
	}

	var output strings.Builder
	writeDocumentText(&output, result)
	return output.String(), nil
}

func (dtf *DocumentTextFormatter) SupportedType() string {
	return "DocumentResult"
}

func writeDocumentText(output *strings.Builder, doc types.DocumentResult) {
	output.WriteString(fmt.Sprintf("=== %s ===\n", strings.ToUpper(documentTitle(doc.Kind))))
	if doc.Source != "" {
		output.WriteString(fmt.Sprintf("Source: %s\n", doc.Source))
	}
	if doc.Warning != "" {
		output.WriteString(fmt.Sprintf("Warning: %s\n", doc.Warning))
	}
	output.WriteString("\n")
	writeRecordText(output, doc.Kind.Template().Fields, doc.Record, "")
}

// GapTextFormatter renders the narrative followed by the extracted points
type GapTextFormatter struct{}

func (gtf *GapTextFormatter) Format(data any) (string, error) {
	report, ok := data.(types.GapReport)
	if !ok {
		return "", fmt.Errorf("expected GapReport, got %T", data)
	}

	var output strings.Builder
	writeGapText(&output, report)
	return output.String(), nil
}

func (gtf *GapTextFormatter) SupportedType() string {
	return "GapReport"
}

func writeGapText(output *strings.Builder, report types.GapReport) {
	output.WriteString("=== GAP ANALYSIS ===\n")
	if report.Role != "" {
		output.WriteString(fmt.Sprintf("Role: %s\n", report.Role))
	}
	output.WriteString("\n")
	output.WriteString(strings.TrimSpace(report.Narrative))
	output.WriteString("\n\n")

	output.WriteString("=== KEY MISSING POINTS ===\n")
	if len(report.Points) == 0 {
		output.WriteString("No missing points identified.\n")
		return
	}
	for i, point := range report.Points {
		output.WriteString(fmt.Sprintf("%d. %s\n", i+1, point))
	}
}

// QuestionnaireTextFormatter handles text formatting for questionnaires
type QuestionnaireTextFormatter struct{}

func (qtf *QuestionnaireTextFormatter) Format(data any) (string, error) {
	q, ok := data.(types.Questionnaire)
	if !ok {
		return "", fmt.Errorf("expected Questionnaire, got %T", data)
	}

	var output strings.Builder
	writeQuestionnaireText(&output, q, true)
	return output.String(), nil
}

func (qtf *QuestionnaireTextFormatter) SupportedType() string {
	return "Questionnaire"
}

func writeQuestionnaireText(output *strings.Builder, q types.Questionnaire, withNarrative bool) {
	output.WriteString("=== INTERVIEW QUESTIONNAIRE ===\n\n")
	for i, point := range q.Points {
		output.WriteString(fmt.Sprintf("%d. %s\n", i+1, point))
		question := "(no question generated)"
		if i < len(q.Questions) && q.Questions[i] != "" {
			question = q.Questions[i]
		}
		output.WriteString("   Question: ")
		output.WriteString(question)
		output.WriteString("\n")
	}

	if withNarrative || len(q.Points) == 0 {
		if len(q.Points) > 0 {
			output.WriteString("\n")
		}
		output.WriteString("=== FULL RESPONSE ===\n")
		output.WriteString(strings.TrimSpace(q.Narrative))
		output.WriteString("\n")
	}
}

func documentTitle(kind types.DocumentKind) string {
	if kind == types.DocumentJob {
		return "Job Description"
	}
	return "Resume"
}
