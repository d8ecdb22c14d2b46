package types

import (
	"encoding/json"
	"time"

	"cvmatch/internal/schema"
)

// MaxGapPoints caps the missing-information points kept from a gap narrative
const MaxGapPoints = 5

// DocumentKind identifies which template a document is extracted with
type DocumentKind string

const (
	DocumentResume DocumentKind = "resume"
	DocumentJob    DocumentKind = "job"
)

// Template returns the schema template for the kind
func (k DocumentKind) Template() *schema.Template {
	if k == DocumentJob {
		return schema.Job
	}
	return schema.Resume
}

// ParseDocumentKind accepts resume/cv and job/jd
func ParseDocumentKind(s string) (DocumentKind, bool) {
	switch s {
	case "resume", "cv":
		return DocumentResume, true
	case "job", "jd":
		return DocumentJob, true
	}
	return "", false
}

// DocumentResult is the outcome of one extraction track
type DocumentResult struct {
	Kind     DocumentKind  `json:"kind" yaml:"kind"`
	Source   string        `json:"source,omitempty" yaml:"source,omitempty"`
	Record   schema.Record `json:"record,omitempty" yaml:"record,omitempty"`
	Enriched bool          `json:"enriched" yaml:"enriched"`
	Warning  string        `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// GapReport holds the gap narrative and the points segmented from it
type GapReport struct {
	Role      string   `json:"role,omitempty" yaml:"role,omitempty"`
	Narrative string   `json:"narrative" yaml:"narrative"`
	Points    []string `json:"points" yaml:"points"`
}

// Questionnaire pairs each gap point with one follow-up question.
// Questions always has the same length as Points.
type Questionnaire struct {
	Points    []string `json:"points" yaml:"points"`
	Questions []string `json:"questions" yaml:"questions"`
	Narrative string   `json:"narrative" yaml:"narrative"`
}

// TokenUsage totals the tokens spent by generation calls
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens" yaml:"inputTokens"`
	OutputTokens int64 `json:"outputTokens" yaml:"outputTokens"`
	TotalTokens  int64 `json:"totalTokens" yaml:"totalTokens"`
}

// Add accumulates another usage report; nil is ignored
func (u *TokenUsage) Add(other *TokenUsage) {
	if other == nil {
		return
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// RunResult is the value produced by one pipeline run
type RunResult struct {
	RunID         string          `json:"runId" yaml:"runId"`
	StartedAt     time.Time       `json:"startedAt" yaml:"startedAt"`
	FinishedAt    time.Time       `json:"finishedAt" yaml:"finishedAt"`
	Resume        *DocumentResult `json:"resume,omitempty" yaml:"resume,omitempty"`
	Job           *DocumentResult `json:"job,omitempty" yaml:"job,omitempty"`
	Gaps          *GapReport      `json:"gaps,omitempty" yaml:"gaps,omitempty"`
	Questionnaire *Questionnaire  `json:"questionnaire,omitempty" yaml:"questionnaire,omitempty"`
	Warnings      []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Usage         TokenUsage      `json:"usage" yaml:"usage"`
}

// Complete reports whether every stage produced a result
func (r *RunResult) Complete() bool {
	return r.Resume != nil && r.Job != nil && r.Gaps != nil && r.Questionnaire != nil
}

// Duration is the wall time of the run
func (r *RunResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// MarshalJSON writes the record with keys in template order
func (d DocumentResult) MarshalJSON() ([]byte, error) {
	type plain DocumentResult
	out := struct {
		plain
		Record json.RawMessage `json:"record,omitempty"`
	}{plain: plain(d)}

	if d.Record != nil {
		encoded, err := d.Kind.Template().Encode(d.Record)
		if err != nil {
			return nil, err
		}
		out.Record = encoded
	}
	return json.Marshal(out)
}
