package observability

import (
	"context"
	"fmt"
	"time"

	"cvmatch/internal/errors"
	"cvmatch/internal/pipeline"
	"cvmatch/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the custom instruments of the pipeline and server. The zero
// value records nothing.
type Metrics struct {
	StageDuration metric.Float64Histogram
	StageCount    metric.Int64Counter
	StageErrors   metric.Int64Counter
	TokenUsage    metric.Int64Counter

	RunsCompleted metric.Int64Counter
	GapPoints     metric.Int64Histogram

	RateLimitHits metric.Int64Counter
}

var _ pipeline.Recorder = (*Metrics)(nil)

// NewMetrics creates every instrument on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.StageDuration, err = meter.Float64Histogram(
		"cvmatch_stage_duration_seconds",
		metric.WithDescription("Time spent in each pipeline stage"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage duration metric: %w", err)
	}

	m.StageCount, err = meter.Int64Counter(
		"cvmatch_stage_runs_total",
		metric.WithDescription("Total number of pipeline stage runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage count metric: %w", err)
	}

	m.StageErrors, err = meter.Int64Counter(
		"cvmatch_stage_errors_total",
		metric.WithDescription("Total number of failed pipeline stage runs by error kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage error metric: %w", err)
	}

	m.TokenUsage, err = meter.Int64Counter(
		"cvmatch_ai_tokens_total",
		metric.WithDescription("Tokens spent on generation calls (input, output, total)"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token usage metric: %w", err)
	}

	m.RunsCompleted, err = meter.Int64Counter(
		"cvmatch_runs_total",
		metric.WithDescription("Total number of pipeline runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run count metric: %w", err)
	}

	m.GapPoints, err = meter.Int64Histogram(
		"cvmatch_gap_points",
		metric.WithDescription("Missing-information points found per gap analysis"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 4, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gap points metric: %w", err)
	}

	m.RateLimitHits, err = meter.Int64Counter(
		"cvmatch_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	return m, nil
}

// ErrorKind names the failure class used as a metric attribute
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.IsEmptyInput(err):
		return "empty_input"
	case errors.IsSchemaDecode(err):
		return "schema_decode"
	case errors.IsServiceError(err):
		return "service"
	default:
		return "other"
	}
}

// RecordStage records the duration and outcome of one stage
func (m *Metrics) RecordStage(ctx context.Context, stage pipeline.Stage, document types.DocumentKind, duration time.Duration, err error) {
	if m == nil || m.StageCount == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("stage", string(stage)),
		attribute.String("document", string(document)),
		attribute.Bool("success", err == nil),
	}
	m.StageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.StageCount.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil {
		m.StageErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", string(stage)),
			attribute.String("document", string(document)),
			attribute.String("error_kind", ErrorKind(err)),
		))
	}
}

// RecordTokens records the token usage of one generation call
func (m *Metrics) RecordTokens(ctx context.Context, stage pipeline.Stage, usage *types.TokenUsage) {
	if m == nil || m.TokenUsage == nil || usage == nil {
		return
	}

	tokenTypes := []struct {
		tokenType string
		value     int64
	}{
		{"input", usage.InputTokens},
		{"output", usage.OutputTokens},
		{"total", usage.TotalTokens},
	}
	for _, tt := range tokenTypes {
		m.TokenUsage.Add(ctx, tt.value, metric.WithAttributes(
			attribute.String("stage", string(stage)),
			attribute.String("token_type", tt.tokenType),
		))
	}
}

// RecordRun records the outcome of a full run
func (m *Metrics) RecordRun(ctx context.Context, result *types.RunResult, err error) {
	if m == nil || m.RunsCompleted == nil {
		return
	}

	complete := result != nil && result.Complete()
	m.RunsCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", err == nil),
		attribute.Bool("complete", complete),
		attribute.String("error_kind", ErrorKind(err)),
	))
	if result != nil && result.Gaps != nil {
		m.GapPoints.Record(ctx, int64(len(result.Gaps.Points)))
	}
}

// RecordRateLimitHit records a rejected request
func (m *Metrics) RecordRateLimitHit(ctx context.Context, attributes ...attribute.KeyValue) {
	if m == nil || m.RateLimitHits == nil {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attributes...))
}
