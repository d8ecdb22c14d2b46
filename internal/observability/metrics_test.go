package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	stderrors "errors"
	"testing"
	"time"

	"cvmatch/internal/config"
	"cvmatch/internal/errors"
	"cvmatch/internal/pipeline"
	"cvmatch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, ""},
		{errors.NewEmptyInputError("empty"), "empty_input"},
		{errors.NewSchemaDecodeError("bad", "raw", nil), "schema_decode"},
		{errors.NewServiceError("down", nil), "service"},
		{&pipeline.StageError{Stage: pipeline.StageGaps, Err: errors.NewServiceError("down", nil)}, "service"},
		{stderrors.New("boom"), "other"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ErrorKind(tt.err))
	}
}

func TestRecordStage(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStage(ctx, pipeline.StageExtract, types.DocumentResume, 120*time.Millisecond, nil)
	m.RecordStage(ctx, pipeline.StageExtract, types.DocumentJob, 80*time.Millisecond, errors.NewSchemaDecodeError("bad", "", nil))
	m.RecordTokens(ctx, pipeline.StageExtract, &types.TokenUsage{InputTokens: 10, OutputTokens: 4, TotalTokens: 14})
	m.RecordTokens(ctx, pipeline.StageExtract, nil)

	data := collect(t, reader)
	assert.EqualValues(t, 2, sumOf(t, data["cvmatch_stage_runs_total"]))
	assert.EqualValues(t, 1, sumOf(t, data["cvmatch_stage_errors_total"]))
	assert.EqualValues(t, 28, sumOf(t, data["cvmatch_ai_tokens_total"]))

	hist, ok := data["cvmatch_stage_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.EqualValues(t, 2, count)
}

func TestRecordRun(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordRun(context.Background(), &types.RunResult{Gaps: &types.GapReport{Points: []string{"a", "b"}}}, nil)
	m.RecordRateLimitHit(context.Background())

	data := collect(t, reader)
	assert.EqualValues(t, 1, sumOf(t, data["cvmatch_runs_total"]))
	assert.EqualValues(t, 1, sumOf(t, data["cvmatch_rate_limit_hits_total"]))

	hist, ok := data["cvmatch_gap_points"].(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.EqualValues(t, 2, hist.DataPoints[0].Sum)
}

func TestZeroMetricsAreNoOps(t *testing.T) {
	var nilMetrics *Metrics
	for _, m := range []*Metrics{{}, nilMetrics} {
		m.RecordStage(context.Background(), pipeline.StageGaps, "", time.Second, nil)
		m.RecordTokens(context.Background(), pipeline.StageGaps, &types.TokenUsage{TotalTokens: 1})
		m.RecordRun(context.Background(), nil, stderrors.New("x"))
		m.RecordRateLimitHit(context.Background())
	}
}

func TestDisabledManager(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{Enabled: false})
	require.NoError(t, err)

	assert.NotNil(t, om.GetMetrics())
	assert.NotNil(t, om.Tracer("test"))
	assert.NoError(t, om.Shutdown(context.Background()))

	var nilManager *ObservabilityManager
	assert.NotNil(t, nilManager.GetMetrics())
	assert.NoError(t, nilManager.Shutdown(context.Background()))
}

func TestEnabledManagerWithoutExporters(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{
		ServiceName: "cvmatch-test",
		Enabled:     true,
		SampleRate:  1.0,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = om.Shutdown(context.Background()) })

	assert.NotNil(t, om.GetMetrics().StageCount)
	assert.NotNil(t, om.HTTPMiddleware())
}

func TestGetObservabilityConfigFallback(t *testing.T) {
	cfg := GetObservabilityConfig(nil, "1.2.3")
	assert.Equal(t, "cvmatch", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.False(t, cfg.Prometheus.Enabled)
}

func TestConsoleTelemetryGoesToConfiguredWriter(t *testing.T) {
	var buf bytes.Buffer
	om, err := NewObservabilityManager(ObservabilityConfig{
		ServiceName:   "cvmatch-test",
		Enabled:       true,
		Tracing:       true,
		SampleRate:    1.0,
		Metrics:       true,
		ConsoleOutput: true,
		Console:       &buf,
	})
	require.NoError(t, err)

	ctx, span := om.Tracer("test").Start(context.Background(), "pipeline.run")
	om.GetMetrics().RecordStage(ctx, pipeline.StageExtract, types.DocumentResume, time.Millisecond, nil)
	span.End()

	require.NoError(t, om.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "pipeline.run")
	assert.Contains(t, buf.String(), "cvmatch_stage_runs_total")
}

func TestPrometheusHandler(t *testing.T) {
	reader, handler, err := NewPrometheusHandler(PrometheusConfig{})
	require.NoError(t, err)

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	m, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)
	m.RecordRun(context.Background(), &types.RunResult{Gaps: &types.GapReport{Points: []string{"A", "B"}}}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cvmatch_runs_total")
}

func TestGetObservabilityConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Observability.Enabled = true
	cfg.Observability.SampleRate = 0.5
	cfg.Observability.Tracing = config.TracingConfig{Enabled: true, SampleRate: 0.25}
	cfg.Observability.Metrics.Enabled = true

	resolved := GetObservabilityConfig(cfg, "1.2.3")
	assert.Equal(t, "cvmatch", resolved.ServiceName)
	assert.Equal(t, "1.2.3", resolved.ServiceVersion)
	assert.Equal(t, 0.25, resolved.SampleRate)
	assert.True(t, resolved.Tracing)
	assert.Equal(t, defaultCollectionInterval, resolved.interval())
}
