// Package pipeline turns a résumé and a job description into structured
// records, a gap report and an interview questionnaire.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"cvmatch/internal/ai"
	"cvmatch/internal/config"
	"cvmatch/internal/errors"
	"cvmatch/internal/prompts"
	"cvmatch/internal/schema"
	"cvmatch/internal/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("cvmatch.pipeline")

// Input is the text of one résumé/job pair. The names are informational.
type Input struct {
	ResumeText string
	JobText    string
	Role       string
	ResumeName string
	JobName    string
}

// Clients holds the generation client used by each stage
type Clients struct {
	Extract       ai.GenerationClient
	Enrich        ai.GenerationClient
	Gaps          ai.GenerationClient
	Questionnaire ai.GenerationClient
}

// SingleClient uses one client for every stage
func SingleClient(c ai.GenerationClient) Clients {
	return Clients{Extract: c, Enrich: c, Gaps: c, Questionnaire: c}
}

// ClientsFrom picks the per-operation services
func ClientsFrom(s *ai.Services) Clients {
	return Clients{
		Extract:       s.Client(config.OperationExtract),
		Enrich:        s.Client(config.OperationEnrich),
		Gaps:          s.Client(config.OperationGaps),
		Questionnaire: s.Client(config.OperationQuestionnaire),
	}
}

// Options tune a pipeline
type Options struct {
	Parallel         bool
	EnrichmentPolicy string
	Prompts          *prompts.Builder
	Recorder         Recorder
}

// Pipeline wires the stages together. It holds no per-run state and is safe
// for concurrent runs.
type Pipeline struct {
	extractor     *Extractor
	enricher      *Enricher
	gaps          *GapAnalyzer
	questionnaire *QuestionnaireGenerator
	parallel      bool
	recorder      Recorder
	logger        *errors.Logger
}

// New creates a pipeline from explicit clients
func New(clients Clients, opts Options, logger *errors.Logger) *Pipeline {
	logger = errors.OrNop(logger)
	builder := opts.Prompts
	if builder == nil {
		builder = prompts.NewDefaultBuilder()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	policy := opts.EnrichmentPolicy
	if policy == "" {
		policy = config.EnrichmentPolicyContinue
	}

	p := &Pipeline{
		extractor:     NewExtractor(clients.Extract, builder, logger),
		enricher:      NewEnricher(clients.Enrich, builder, policy, logger),
		gaps:          NewGapAnalyzer(clients.Gaps, builder, logger),
		questionnaire: NewQuestionnaireGenerator(clients.Questionnaire, builder, logger),
		parallel:      opts.Parallel,
		recorder:      recorder,
		logger:        logger,
	}
	p.extractor.recorder = recorder
	p.enricher.recorder = recorder
	p.gaps.recorder = recorder
	p.questionnaire.recorder = recorder
	return p
}

// NewFromConfig creates a pipeline using the configured prompts, policy and
// per-operation services
func NewFromConfig(cfg *config.Config, services *ai.Services, recorder Recorder, logger *errors.Logger) (*Pipeline, error) {
	builder, err := prompts.NewBuilder(cfg)
	if err != nil {
		return nil, err
	}
	return New(ClientsFrom(services), Options{
		Parallel:         cfg.Pipeline.Parallel,
		EnrichmentPolicy: cfg.Pipeline.EnrichmentFailurePolicy,
		Prompts:          builder,
		Recorder:         recorder,
	}, logger), nil
}

// Run processes one résumé/job pair.
//
// Both document tracks are always attempted. Gap analysis and the
// questionnaire only run once both records exist. On failure the partial
// result is returned together with the joined stage errors.
func (p *Pipeline) Run(ctx context.Context, in Input) (*types.RunResult, error) {
	ctx, meter := withUsage(ctx)
	result := &types.RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", result.RunID),
		attribute.Bool("run.parallel", p.parallel),
	)

	p.logger.Info("Pipeline run started",
		"run_id", result.RunID,
		"parallel", p.parallel,
		"resume", in.ResumeName,
		"job", in.JobName)

	var resumeErr, jobErr error
	resumeTrack := func() {
		result.Resume, resumeErr = p.RunDocument(ctx, types.DocumentResume, in.ResumeName, in.ResumeText)
	}
	jobTrack := func() {
		result.Job, jobErr = p.RunDocument(ctx, types.DocumentJob, in.JobName, in.JobText)
	}

	if p.parallel {
		// plain Group: a failed track must not cancel its sibling
		var g errgroup.Group
		g.Go(func() error { resumeTrack(); return nil })
		g.Go(func() error { jobTrack(); return nil })
		_ = g.Wait()
	} else {
		resumeTrack()
		jobTrack()
	}

	for _, doc := range []*types.DocumentResult{result.Resume, result.Job} {
		if doc != nil && doc.Warning != "" {
			result.Warnings = append(result.Warnings, doc.Warning)
		}
	}

	finish := func(err error) (*types.RunResult, error) {
		result.FinishedAt = time.Now()
		result.Usage = meter.snapshot()
		if err != nil {
			span.RecordError(err)
			p.logger.LogError(err, "Pipeline run failed",
				"run_id", result.RunID,
				"duration", result.Duration())
		} else {
			p.logger.Info("Pipeline run completed",
				"run_id", result.RunID,
				"duration", result.Duration(),
				"gap_points", len(result.Gaps.Points),
				"total_tokens", result.Usage.TotalTokens)
		}
		return result, err
	}

	if err := stderrors.Join(resumeErr, jobErr); err != nil {
		return finish(err)
	}

	report, err := p.Gaps(ctx, result.Resume.Record, result.Job.Record, in.Role)
	if err != nil {
		return finish(err)
	}
	result.Gaps = &report
	if len(report.Points) == 0 {
		result.Warnings = append(result.Warnings, "no missing-information points found in gap narrative")
	}

	questionnaire, err := p.Questionnaire(ctx, report.Points)
	if err != nil {
		return finish(err)
	}
	result.Questionnaire = &questionnaire

	return finish(nil)
}

// RunDocument extracts and enriches one document. Errors are *StageError.
// When enrichment fails the extracted record is still returned, unenriched,
// so the enrich stage can be re-run on its own.
func (p *Pipeline) RunDocument(ctx context.Context, kind types.DocumentKind, name, text string) (*types.DocumentResult, error) {
	rec, err := p.Extract(ctx, kind, text)
	if err != nil {
		return nil, err
	}

	outcome, err := p.Enrich(ctx, kind, rec)
	if err != nil {
		return &types.DocumentResult{Kind: kind, Source: name, Record: rec}, err
	}

	return &types.DocumentResult{
		Kind:     kind,
		Source:   name,
		Record:   outcome.Record,
		Enriched: outcome.Enriched,
		Warning:  outcome.Warning,
	}, nil
}

// Extract runs the extraction stage for one document
func (p *Pipeline) Extract(ctx context.Context, kind types.DocumentKind, text string) (schema.Record, error) {
	start := time.Now()
	rec, err := p.extractor.Extract(ctx, kind.Template(), text)
	p.recorder.RecordStage(ctx, StageExtract, kind, time.Since(start), err)
	if err != nil {
		return nil, &StageError{Document: kind, Stage: StageExtract, Err: err}
	}
	return rec, nil
}

// Enrich runs the enrichment stage for an existing record
func (p *Pipeline) Enrich(ctx context.Context, kind types.DocumentKind, rec schema.Record) (EnrichOutcome, error) {
	start := time.Now()
	outcome, err := p.enricher.Enrich(ctx, kind.Template(), rec)
	p.recorder.RecordStage(ctx, StageEnrich, kind, time.Since(start), err)
	if err != nil {
		return EnrichOutcome{}, &StageError{Document: kind, Stage: StageEnrich, Err: err}
	}
	return outcome, nil
}

// Gaps runs gap analysis on two records
func (p *Pipeline) Gaps(ctx context.Context, resume, job schema.Record, role string) (types.GapReport, error) {
	start := time.Now()
	report, err := p.gaps.AnalyzeForRole(ctx, resume, job, role)
	p.recorder.RecordStage(ctx, StageGaps, "", time.Since(start), err)
	if err != nil {
		return types.GapReport{}, &StageError{Stage: StageGaps, Err: err}
	}
	return report, nil
}

// Questionnaire drafts the interview questions for a list of points
func (p *Pipeline) Questionnaire(ctx context.Context, points []string) (types.Questionnaire, error) {
	start := time.Now()
	q, err := p.questionnaire.Generate(ctx, points)
	p.recorder.RecordStage(ctx, StageQuestionnaire, "", time.Since(start), err)
	if err != nil {
		return types.Questionnaire{}, &StageError{Stage: StageQuestionnaire, Err: err}
	}
	return q, nil
}

// RunWithJob processes a résumé against a job that was already extracted
// and enriched, as batch mode does for every résumé in a directory.
func (p *Pipeline) RunWithJob(ctx context.Context, job *types.DocumentResult, resumeName, resumeText, role string) (*types.RunResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job record is required")
	}
	ctx, meter := withUsage(ctx)
	result := &types.RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Job:       job,
	}
	finish := func(err error) (*types.RunResult, error) {
		result.FinishedAt = time.Now()
		result.Usage = meter.snapshot()
		return result, err
	}

	resume, err := p.RunDocument(ctx, types.DocumentResume, resumeName, resumeText)
	result.Resume = resume
	if err != nil {
		return finish(err)
	}
	if resume.Warning != "" {
		result.Warnings = append(result.Warnings, resume.Warning)
	}

	report, err := p.Gaps(ctx, resume.Record, job.Record, role)
	if err != nil {
		return finish(err)
	}
	result.Gaps = &report

	q, err := p.Questionnaire(ctx, report.Points)
	if err != nil {
		return finish(err)
	}
	result.Questionnaire = &q
	return finish(nil)
}
