package pipeline

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"cvmatch/internal/ai"
	"cvmatch/internal/errors"
	"cvmatch/internal/prompts"
	"cvmatch/internal/schema"
	"cvmatch/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

// GapAnalyzer compares a résumé with a job and lists what the résumé lacks
type GapAnalyzer struct {
	client   ai.GenerationClient
	prompts  *prompts.Builder
	recorder Recorder
	logger   *errors.Logger
}

// NewGapAnalyzer creates a gap analyzer. A nil builder uses the default prompts.
func NewGapAnalyzer(client ai.GenerationClient, builder *prompts.Builder, logger *errors.Logger) *GapAnalyzer {
	if builder == nil {
		builder = prompts.NewDefaultBuilder()
	}
	return &GapAnalyzer{client: client, prompts: builder, recorder: nopRecorder{}, logger: errors.OrNop(logger)}
}

// Analyze compares the records against the role described in the job
func (g *GapAnalyzer) Analyze(ctx context.Context, resume, job schema.Record) (types.GapReport, error) {
	return g.AnalyzeForRole(ctx, resume, job, "")
}

// AnalyzeForRole compares the records for a named target role. The narrative
// is returned as is; Points holds at most types.MaxGapPoints entries
// segmented from it. Only a service failure is an error.
func (g *GapAnalyzer) AnalyzeForRole(ctx context.Context, resume, job schema.Record, role string) (types.GapReport, error) {
	prompt, err := g.prompts.GapPrompt(resume, job, role)
	if err != nil {
		return types.GapReport{}, err
	}

	ctx, span := tracer.Start(ctx, "pipeline.gaps")
	defer span.End()

	narrative, err := generate(ctx, g.client, g.recorder, StageGaps, ai.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: g.prompts.System(StageGaps),
	})
	if err != nil {
		span.RecordError(err)
		return types.GapReport{}, err
	}

	points := ExtractMissingPoints(narrative)
	span.SetAttributes(
		attribute.Int("gaps.narrative_length", len(narrative)),
		attribute.Int("gaps.points", len(points)),
	)
	if len(points) == 0 {
		g.logger.Warn("No missing-information points found in gap narrative",
			"narrative_length", len(narrative))
	}

	return types.GapReport{
		Role:      strings.TrimSpace(role),
		Narrative: narrative,
		Points:    points,
	}, nil
}

var (
	headingPhrases = []string{"key missing information", "missing information", "key information"}
	bulletLine     = regexp.MustCompile(`^[-•*]\s`)
	numberedLine   = regexp.MustCompile(`^(\d+)\.\s+(.*)$`)
)

// ExtractMissingPoints segments a gap narrative into at most
// types.MaxGapPoints points. It is a pure function of the text.
//
// The preferred form is a heading mentioning missing or key information
// followed by bullet lines; collection stops at the first blank line once a
// point has been found. Without bullets, a numbered list whose first item
// mentions "missing" is used instead, as long as it counts up from 1 with no
// gaps or restarts. Anything else yields an empty, non-nil slice.
func ExtractMissingPoints(narrative string) []string {
	lines := strings.Split(strings.ReplaceAll(narrative, "\r\n", "\n"), "\n")

	points := bulletPoints(lines)
	if len(points) == 0 {
		points = numberedPoints(lines)
	}
	if len(points) > types.MaxGapPoints {
		points = points[:types.MaxGapPoints]
	}
	return points
}

// isHeading reports whether line introduces the missing-information list.
// A bullet line counts as a heading before collection starts, or when it
// ends with a colon. Once collecting, other bullets are points even if they
// mention missing information.
func isHeading(line string, collecting bool) bool {
	trimmed := strings.TrimSpace(line)
	if bulletLine.MatchString(trimmed) && collecting &&
		!strings.HasSuffix(strings.TrimRight(trimmed, "*_ \t"), ":") {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, phrase := range headingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func bulletPoints(lines []string) []string {
	points := []string{}
	collecting := false

	for _, line := range lines {
		if isHeading(line, collecting) {
			collecting = true
			continue
		}
		if !collecting {
			continue
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			if len(points) > 0 {
				return points
			}
		case strings.HasPrefix(trimmed, "-"), strings.HasPrefix(trimmed, "•"), strings.HasPrefix(trimmed, "*"):
			if text := cleanPoint(trimmed); text != "" {
				points = append(points, text)
			}
		}
	}
	return points
}

func numberedPoints(lines []string) []string {
	points := []string{}

	first := -1
	for i, line := range lines {
		m := numberedLine.FindStringSubmatch(strings.TrimSpace(line))
		if m != nil && m[1] == "1" && strings.Contains(strings.ToLower(line), "missing") {
			first = i
			points = append(points, cleanPoint(m[2]))
			break
		}
	}
	if first < 0 {
		return points
	}

	want := 2
	for _, line := range lines[first+1:] {
		if want > types.MaxGapPoints {
			break
		}
		m := numberedLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		if n != want {
			// restarted or skipped numbering
			return []string{}
		}
		points = append(points, cleanPoint(m[2]))
		want++
	}
	return points
}

var emphasisMarks = []string{"**", "__", "*", "_"}

// cleanPoint strips one leading bullet glyph, emphasis wrapping the whole
// text, and surrounding whitespace. Emphasis inside the text is kept.
func cleanPoint(s string) string {
	s = strings.TrimSpace(s)
	if strings.Trim(s, "-•*_ \t") == "" {
		return ""
	}
	for _, glyph := range []string{"-", "•", "*"} {
		if rest, ok := strings.CutPrefix(s, glyph); ok && !strings.HasPrefix(rest, glyph) {
			s = strings.TrimSpace(rest)
			break
		}
	}
	for _, mark := range emphasisMarks {
		if len(s) > 2*len(mark) && strings.HasPrefix(s, mark) && strings.HasSuffix(s, mark) {
			s = strings.TrimSpace(s[len(mark) : len(s)-len(mark)])
			break
		}
	}
	return s
}
