package ai

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"cvmatch/internal/config"
	"cvmatch/internal/errors"
	"cvmatch/internal/schema"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

var testLogger = errors.NewLogger(slog.LevelDebug)

func timePtr(d time.Duration) *time.Duration { return &d }
func intPtr(i int) *int                      { return &i }
func float32Ptr(f float32) *float32          { return &f }
func boolPtr(b bool) *bool                   { return &b }

func testOperationConfig() *config.OperationAIConfig {
	return &config.OperationAIConfig{
		Provider:         "gemini",
		Model:            "gemini-2.0-flash",
		Timeout:          timePtr(30 * time.Second),
		APIKey:           "test-key",
		MaxRetries:       intPtr(2),
		Temperature:      float32Ptr(0.3),
		UseSystemPrompts: boolPtr(true),
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "network", err: &net.OpError{Op: "dial", Err: stderrors.New("connection refused")}, want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "googleapi 429", err: &googleapi.Error{Code: http.StatusTooManyRequests}, want: true},
		{name: "googleapi 503 wrapped", err: fmt.Errorf("call: %w", &googleapi.Error{Code: http.StatusServiceUnavailable}), want: true},
		{name: "googleapi 400", err: &googleapi.Error{Code: http.StatusBadRequest}, want: false},
		{name: "genai 500", err: genai.APIError{Code: http.StatusInternalServerError}, want: true},
		{name: "genai 403", err: genai.APIError{Code: http.StatusForbidden}, want: false},
		{name: "plain", err: stderrors.New("invalid argument"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		base    time.Duration
	}{
		{attempt: 1, base: time.Second},
		{attempt: 2, base: 2 * time.Second},
		{attempt: 4, base: 8 * time.Second},
	}
	for _, tt := range tests {
		got := backoffDelay(tt.attempt)
		if got < tt.base || got > tt.base+tt.base/10 {
			t.Errorf("backoffDelay(%d) = %v, want within [%v, %v]", tt.attempt, got, tt.base, tt.base+tt.base/10)
		}
	}

	if got := backoffDelay(10); got != maxBackoff {
		t.Errorf("backoffDelay(10) = %v, want cap %v", got, maxBackoff)
	}
}

func TestBuildConfig(t *testing.T) {
	g := &GeminiProvider{config: testOperationConfig(), logger: testLogger}

	t.Run("narrative request uses operation temperature", func(t *testing.T) {
		cfg := g.buildConfig(GenerateRequest{Prompt: "compare", SystemPrompt: "be brief"})
		if *cfg.Temperature != 0.3 {
			t.Errorf("Temperature = %v, want 0.3", *cfg.Temperature)
		}
		if cfg.ResponseMIMEType != "" {
			t.Errorf("ResponseMIMEType = %q, want empty", cfg.ResponseMIMEType)
		}
		if cfg.SystemInstruction == nil {
			t.Error("SystemInstruction should be set when system prompts are enabled")
		}
	})

	t.Run("json request with template", func(t *testing.T) {
		cfg := g.buildConfig(GenerateRequest{
			Prompt:      "extract",
			JSON:        true,
			Template:    schema.Job,
			Temperature: float32Ptr(0),
		})
		if *cfg.Temperature != 0 {
			t.Errorf("Temperature = %v, want explicit 0", *cfg.Temperature)
		}
		if cfg.ResponseMIMEType != "application/json" {
			t.Errorf("ResponseMIMEType = %q", cfg.ResponseMIMEType)
		}
		if cfg.ResponseSchema == nil || len(cfg.ResponseSchema.Required) != len(schema.Job.Keys()) {
			t.Fatalf("ResponseSchema should require every job key, got %+v", cfg.ResponseSchema)
		}
	})

	t.Run("system prompt omitted when disabled", func(t *testing.T) {
		opCfg := testOperationConfig()
		opCfg.UseSystemPrompts = boolPtr(false)
		g := &GeminiProvider{config: opCfg, logger: testLogger}

		cfg := g.buildConfig(GenerateRequest{Prompt: "p", SystemPrompt: "s"})
		if cfg.SystemInstruction != nil {
			t.Error("SystemInstruction should be nil when system prompts are disabled")
		}
	})
}

func TestResponseSchemaMirrorsTemplate(t *testing.T) {
	s := responseSchema(schema.Resume.Fields)

	if s.Type != genai.TypeObject {
		t.Fatalf("Type = %v, want object", s.Type)
	}
	skills := s.Properties["skills"]
	if skills == nil || skills.Type != genai.TypeArray || skills.Items == nil || skills.Items.Type != genai.TypeObject {
		t.Fatalf("skills should be an array of objects, got %+v", skills)
	}
	enrichment := s.Properties[schema.EnrichmentKey]
	if enrichment == nil || enrichment.Type != genai.TypeObject {
		t.Fatalf("enrichment should be an object, got %+v", enrichment)
	}
	traits := enrichment.Properties[schema.PersonalityKey]
	if traits == nil || traits.Properties["openness"] == nil || traits.Properties["openness"].Type != genai.TypeString {
		t.Errorf("personality traits should hold string levels, got %+v", traits)
	}
}

func TestExecuteWithRetry(t *testing.T) {
	opCfg := testOperationConfig()
	opCfg.MaxRetries = intPtr(0)
	g := &GeminiProvider{config: opCfg, logger: testLogger}

	t.Run("non-retryable error stops immediately", func(t *testing.T) {
		calls := 0
		_, err := g.executeWithRetry(context.Background(), "extract", func(context.Context) (*genai.GenerateContentResponse, error) {
			calls++
			return nil, &googleapi.Error{Code: http.StatusBadRequest}
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("attempt gets a deadline", func(t *testing.T) {
		_, err := g.executeWithRetry(context.Background(), "extract", func(ctx context.Context) (*genai.GenerateContentResponse, error) {
			if _, ok := ctx.Deadline(); !ok {
				return nil, stderrors.New("no deadline")
			}
			return &genai.GenerateContentResponse{}, nil
		})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("retries transient failures", func(t *testing.T) {
		opCfg := testOperationConfig()
		opCfg.MaxRetries = intPtr(1)
		g := &GeminiProvider{config: opCfg, logger: testLogger}

		calls := 0
		resp, err := g.executeWithRetry(context.Background(), "gaps", func(context.Context) (*genai.GenerateContentResponse, error) {
			calls++
			if calls == 1 {
				return nil, &googleapi.Error{Code: http.StatusServiceUnavailable}
			}
			return &genai.GenerateContentResponse{}, nil
		})
		if err != nil || resp == nil {
			t.Fatalf("expected success after retry, got %v", err)
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
	})
}

func TestExtractTokenUsage(t *testing.T) {
	if extractTokenUsage(nil) != nil {
		t.Error("nil response should yield nil usage")
	}

	usage := extractTokenUsage(&genai.GenerateContentResponse{
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     120,
			CandidatesTokenCount: 30,
			TotalTokenCount:      150,
		},
	})
	if usage == nil || usage.InputTokens != 120 || usage.OutputTokens != 30 || usage.TotalTokens != 150 {
		t.Errorf("unexpected usage %+v", usage)
	}
}
