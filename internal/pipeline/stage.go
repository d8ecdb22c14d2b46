package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cvmatch/internal/ai"
	"cvmatch/internal/errors"
	"cvmatch/internal/prompts"
	"cvmatch/internal/types"
)

// Stage names a pipeline step
type Stage = prompts.Stage

const (
	StageExtract       = prompts.StageExtract
	StageEnrich        = prompts.StageEnrich
	StageGaps          = prompts.StageGaps
	StageQuestionnaire = prompts.StageQuestionnaire
)

// StageError records which document and stage failed. Document is empty for
// the joint gap and questionnaire stages.
type StageError struct {
	Document types.DocumentKind
	Stage    Stage
	Err      error
}

func (e *StageError) Error() string {
	if e.Document == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s/%s: %v", e.Document, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Recorder receives stage timings. Implementations must be safe for
// concurrent use since the two document tracks may run in parallel.
type Recorder interface {
	RecordStage(ctx context.Context, stage Stage, document types.DocumentKind, duration time.Duration, err error)
	RecordTokens(ctx context.Context, stage Stage, usage *types.TokenUsage)
}

type nopRecorder struct{}

func (nopRecorder) RecordStage(context.Context, Stage, types.DocumentKind, time.Duration, error) {}
func (nopRecorder) RecordTokens(context.Context, Stage, *types.TokenUsage)                       {}

// usageMeter totals token usage for one run
type usageMeter struct {
	mu    sync.Mutex
	total types.TokenUsage
}

type usageKey struct{}

func withUsage(ctx context.Context) (context.Context, *usageMeter) {
	m := &usageMeter{}
	return context.WithValue(ctx, usageKey{}, m), m
}

// TrackUsage returns a context that totals the token usage of every stage
// run with it, and a function reporting the total so far. Run does this on
// its own; the single-stage methods only count when given such a context.
func TrackUsage(ctx context.Context) (context.Context, func() types.TokenUsage) {
	ctx, m := withUsage(ctx)
	return ctx, m.snapshot
}

func (m *usageMeter) add(u *types.TokenUsage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total.Add(u)
}

func (m *usageMeter) snapshot() types.TokenUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// generate calls the client and books its token usage against the run in
// ctx. Every failure comes back as a service error.
func generate(ctx context.Context, client ai.GenerationClient, recorder Recorder, stage Stage, req ai.GenerateRequest) (string, error) {
	if req.Operation == "" {
		req.Operation = string(stage)
	}
	text, usage, err := client.Generate(ctx, req)
	if usage != nil {
		if m, ok := ctx.Value(usageKey{}).(*usageMeter); ok {
			m.add(usage)
		}
		recorder.RecordTokens(ctx, stage, usage)
	}
	if err != nil && !errors.IsServiceError(err) {
		err = errors.NewServiceError(fmt.Sprintf("Generation failed for %s", stage), err)
	}
	return text, err
}
