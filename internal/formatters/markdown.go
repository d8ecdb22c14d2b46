package formatters

import (
	"fmt"
	"strings"

	"cvmatch/internal/types"
)

// RunMarkdownFormatter handles markdown formatting for a full pipeline run
type RunMarkdownFormatter struct{}

func (rmf *RunMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.RunResult)
	if !ok {
		return "", fmt.Errorf("expected RunResult, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Candidate Match Report\n\n")
	output.WriteString(fmt.Sprintf("**Run:** `%s`  \n", result.RunID))
	output.WriteString(fmt.Sprintf("**Tokens:** %d\n\n", result.Usage.TotalTokens))

	if len(result.Warnings) > 0 {
		output.WriteString("> **Warnings**\n")
		for _, w := range result.Warnings {
			output.WriteString(fmt.Sprintf("> - %s\n", w))
		}
		output.WriteString("\n")
	}

	for _, doc := range []*types.DocumentResult{result.Resume, result.Job} {
		if doc != nil {
			writeDocumentMarkdown(&output, *doc, 2)
		}
	}
	if result.Gaps != nil {
		writeGapMarkdown(&output, *result.Gaps, 2)
	}
	if result.Questionnaire != nil {
		writeQuestionnaireMarkdown(&output, *result.Questionnaire, 2)
	}

	return strings.TrimRight(output.String(), "\n") + "\n", nil
}

func (rmf *RunMarkdownFormatter) SupportedType() string {
	return "RunResult"
}

// DocumentMarkdownFormatter handles markdown formatting for one document
type DocumentMarkdownFormatter struct{}

func (dmf *DocumentMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.DocumentResult)
	if !ok {
		return "", fmt.Errorf("expected DocumentResult, got %T", data)
	}

	var output strings.Builder
	writeDocumentMarkdown(&output, result, 1)
	return strings.TrimRight(output.String(), "\n") + "\n", nil
}

func (dmf *DocumentMarkdownFormatter) SupportedType() string {
	return "DocumentResult"
}

func writeDocumentMarkdown(output *strings.Builder, doc types.DocumentResult, level int) {
	output.WriteString(fmt.Sprintf("%s %s\n\n", strings.Repeat("#", level), documentTitle(doc.Kind)))
	if doc.Source != "" {
		output.WriteString(fmt.Sprintf("_Source: %s_\n\n", doc.Source))
	}
	writeRecordMarkdown(output, doc.Kind.Template().Fields, doc.Record, level+1)
}

// GapMarkdownFormatter handles markdown formatting for gap reports
type GapMarkdownFormatter struct{}

func (gmf *GapMarkdownFormatter) Format(data any) (string, error) {
	report, ok := data.(types.GapReport)
	if !ok {
		return "", fmt.Errorf("expected GapReport, got %T", data)
	}

	var output strings.Builder
	writeGapMarkdown(&output, report, 1)
	return strings.TrimRight(output.String(), "\n") + "\n", nil
}

func (gmf *GapMarkdownFormatter) SupportedType() string {
	return "GapReport"
}

func writeGapMarkdown(output *strings.Builder, report types.GapReport, level int) {
	heading := strings.Repeat("#", level)
	output.WriteString(fmt.Sprintf("%s Gap Analysis\n\n", heading))
	if report.Role != "" {
		output.WriteString(fmt.Sprintf("**Role:** %s\n\n", report.Role))
	}

	output.WriteString(fmt.Sprintf("%s# Key Missing Information\n\n", heading))
	if len(report.Points) == 0 {
		output.WriteString("No missing points identified.\n\n")
	}
	for i, point := range report.Points {
		output.WriteString(fmt.Sprintf("%d. %s\n", i+1, point))
	}
	if len(report.Points) > 0 {
		output.WriteString("\n")
	}

	output.WriteString(fmt.Sprintf("%s# Narrative\n\n", heading))
	output.WriteString(strings.TrimSpace(report.Narrative))
	output.WriteString("\n\n")
}

// QuestionnaireMarkdownFormatter handles markdown formatting for questionnaires
type QuestionnaireMarkdownFormatter struct{}

func (qmf *QuestionnaireMarkdownFormatter) Format(data any) (string, error) {
	q, ok := data.(types.Questionnaire)
	if !ok {
		return "", fmt.Errorf("expected Questionnaire, got %T", data)
	}

	var output strings.Builder
	writeQuestionnaireMarkdown(&output, q, 1)
	return strings.TrimRight(output.String(), "\n") + "\n", nil
}

func (qmf *QuestionnaireMarkdownFormatter) SupportedType() string {
	return "Questionnaire"
}

func writeQuestionnaireMarkdown(output *strings.Builder, q types.Questionnaire, level int) {
	output.WriteString(fmt.Sprintf("%s Interview Questionnaire\n\n", strings.Repeat("#", level)))

	if len(q.Points) == 0 {
		output.WriteString(strings.TrimSpace(q.Narrative))
		output.WriteString("\n\n")
		return
	}

	output.WriteString("| # | Missing point | Question |\n")
	output.WriteString("|---|---|---|\n")
	for i, point := range q.Points {
		question := ""
		if i < len(q.Questions) {
			question = q.Questions[i]
		}
		output.WriteString(fmt.Sprintf("| %d | %s | %s |\n", i+1, escapeCell(point), escapeCell(question)))
	}
	output.WriteString("\n")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
