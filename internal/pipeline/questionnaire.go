package pipeline

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"cvmatch/internal/ai"
	"cvmatch/internal/errors"
	"cvmatch/internal/prompts"
	"cvmatch/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

// QuestionnaireGenerator drafts one interview question per gap point
type QuestionnaireGenerator struct {
	client   ai.GenerationClient
	prompts  *prompts.Builder
	recorder Recorder
	logger   *errors.Logger
}

// NewQuestionnaireGenerator creates a generator. A nil builder uses the default prompts.
func NewQuestionnaireGenerator(client ai.GenerationClient, builder *prompts.Builder, logger *errors.Logger) *QuestionnaireGenerator {
	if builder == nil {
		builder = prompts.NewDefaultBuilder()
	}
	return &QuestionnaireGenerator{client: client, prompts: builder, recorder: nopRecorder{}, logger: errors.OrNop(logger)}
}

// Generate asks for a questionnaire covering points. The call is made even
// when points is empty. Points beyond types.MaxGapPoints are dropped.
// Questions always has one entry per kept point; a point the reply does not
// cover gets an empty question.
func (q *QuestionnaireGenerator) Generate(ctx context.Context, points []string) (types.Questionnaire, error) {
	if points == nil {
		points = []string{}
	}
	if len(points) > types.MaxGapPoints {
		q.logger.Warn("Questionnaire points truncated",
			"points", len(points),
			"kept", types.MaxGapPoints)
		points = points[:types.MaxGapPoints]
	}
	prompt, err := q.prompts.QuestionnairePrompt(points)
	if err != nil {
		return types.Questionnaire{}, err
	}

	ctx, span := tracer.Start(ctx, "pipeline.questionnaire")
	defer span.End()
	span.SetAttributes(attribute.Int("questionnaire.points", len(points)))

	narrative, err := generate(ctx, q.client, q.recorder, StageQuestionnaire, ai.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: q.prompts.System(StageQuestionnaire),
	})
	if err != nil {
		span.RecordError(err)
		return types.Questionnaire{}, err
	}

	questions := SplitQuestions(narrative, len(points))
	answered := 0
	for _, question := range questions {
		if question != "" {
			answered++
		}
	}
	if answered < len(points) {
		q.logger.Warn("Questionnaire does not cover every gap point",
			"points", len(points),
			"questions", answered)
	}

	return types.Questionnaire{
		Points:    append([]string{}, points...),
		Questions: questions,
		Narrative: narrative,
	}, nil
}

var numberedQuestion = regexp.MustCompile(`(?i)^(?:[-•*]\s+)?(?:\*\*)?(?:question\s*)?(\d+)[.):]\s*(?:\*\*)?\s*(.*)$`)

// SplitQuestions segments a questionnaire reply into exactly n questions.
// Numbered lines ("1.", "2)", "Question 3:") are placed by their number; a
// number whose line carries no text takes the next non-empty line. Without
// numbering, bullet lines are taken in order. Unfilled slots stay empty.
func SplitQuestions(narrative string, n int) []string {
	questions := make([]string, n)
	if n == 0 {
		return questions
	}

	lines := strings.Split(strings.ReplaceAll(narrative, "\r\n", "\n"), "\n")

	found := false
	pending := -1
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m := numberedQuestion.FindStringSubmatch(trimmed); m != nil {
			num, _ := strconv.Atoi(m[1])
			pending = -1
			if num < 1 || num > n || questions[num-1] != "" {
				continue
			}
			found = true
			if text := cleanPoint(m[2]); text != "" {
				questions[num-1] = text
			} else {
				pending = num - 1
			}
			continue
		}
		if pending >= 0 {
			questions[pending] = cleanPoint(trimmed)
			pending = -1
		}
	}
	if found {
		return questions
	}

	i := 0
	for _, line := range lines {
		if i == n {
			break
		}
		trimmed := strings.TrimSpace(line)
		if bulletLine.MatchString(trimmed) {
			if text := cleanPoint(trimmed); text != "" {
				questions[i] = text
				i++
			}
		}
	}
	return questions
}
