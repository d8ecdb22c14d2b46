package pipeline

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"cvmatch/internal/ai"
	"cvmatch/internal/types"
)

// fakeClient answers generation requests from a function and keeps a log
type fakeClient struct {
	respond func(req ai.GenerateRequest) (string, error)
	usage   *types.TokenUsage

	calls    atomic.Int32
	mu       sync.Mutex
	requests []ai.GenerateRequest
}

func newFakeClient(respond func(req ai.GenerateRequest) (string, error)) *fakeClient {
	return &fakeClient{respond: respond}
}

func replyWith(text string) *fakeClient {
	return newFakeClient(func(ai.GenerateRequest) (string, error) { return text, nil })
}

func failWith(err error) *fakeClient {
	return newFakeClient(func(ai.GenerateRequest) (string, error) { return "", err })
}

func (f *fakeClient) Generate(ctx context.Context, req ai.GenerateRequest) (string, *types.TokenUsage, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	text, err := f.respond(req)
	if f.usage == nil {
		return text, nil, err
	}
	usage := *f.usage
	return text, &usage, err
}

func (f *fakeClient) lastRequest() ai.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return ai.GenerateRequest{}
	}
	return f.requests[len(f.requests)-1]
}

const (
	resumeJSON = `{
  "name": "Ada Lovelace",
  "email": "ada@example.com",
  "phone": "",
  "location": "London",
  "summary": "Analyst and mathematician",
  "skills": [{"specialized_skill": "Analytical engines", "common_skill": "Writing"}],
  "experience": [{"job_title": "Analyst", "company": "Babbage & Co", "start_date": "1842", "end_date": "1843", "description": "Wrote the first program"}],
  "education": [{"degree": "Private tutoring", "institution": "Home", "start_year": "1830", "end_year": "1835"}],
  "enrichment": {}
}`

	jobJSON = `{
  "location": "Remote",
  "summary": "Senior programmer",
  "skills": [{"specialized_skill": "Go", "common_skill": "Communication"}],
  "experience": [{"job_title": "Engineer", "company": "", "start_date": "", "end_date": "", "description": "5 years"}],
  "education": [],
  "enrichment": {}
}`

	resumeEnrichmentJSON = `{
  "employment_pattern_progression": "Short, intense engagement",
  "leadership_experience": "None recorded",
  "personality_traits": {
    "openness": "High",
    "conscientiousness": "High",
    "extraversion": "Low",
    "agreeableness": "Moderate",
    "neuroticism": "Moderate"
  }
}`

	jobEnrichmentJSON = `{"company_type_sector": "Software", "salary_expectations": "Competitive"}`

	gapNarrative = `Overview: a mathematician with early programming experience.

Key Missing Information:
- Missing A
- Missing B
- Missing C

The candidate may still be a strong fit.`

	questionnaireNarrative = `1. Could you tell us about A?
2. Could you tell us about B?
3. Could you tell us about C?`
)

// stageClients answers every stage with a well-formed reply for each document
func stageClients() (Clients, map[Stage]*fakeClient) {
	extract := newFakeClient(func(req ai.GenerateRequest) (string, error) {
		if req.Template != nil && req.Template.Name == "job" {
			return "```json\n" + jobJSON + "\n```", nil
		}
		return resumeJSON, nil
	})
	enrich := newFakeClient(func(req ai.GenerateRequest) (string, error) {
		if strings.Contains(req.Prompt, "Job Description enrichment") {
			return jobEnrichmentJSON, nil
		}
		return resumeEnrichmentJSON, nil
	})
	gaps := replyWith(gapNarrative)
	questionnaire := replyWith(questionnaireNarrative)

	fakes := map[Stage]*fakeClient{
		StageExtract:       extract,
		StageEnrich:        enrich,
		StageGaps:          gaps,
		StageQuestionnaire: questionnaire,
	}
	return Clients{Extract: extract, Enrich: enrich, Gaps: gaps, Questionnaire: questionnaire}, fakes
}
