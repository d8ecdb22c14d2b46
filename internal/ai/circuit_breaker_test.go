package ai

import (
	stderrors "errors"
	"testing"
	"time"

	"cvmatch/internal/config"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

func breakerConfig(minRequests uint32, threshold float64) *config.OperationAIConfig {
	return &config.OperationAIConfig{
		Provider: "gemini",
		Model:    "test-model",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			MinRequests:      minRequests,
			FailureThreshold: threshold,
		},
	}
}

func TestIndependentCircuitBreakers(t *testing.T) {
	breakers := make(map[string]*AICircuitBreaker)
	for _, op := range config.Operations {
		breakers[op] = NewAICircuitBreaker(op, breakerConfig(2, 0.5), testLogger)
	}

	for op, cb := range breakers {
		t.Run(op, func(t *testing.T) {
			stats := cb.GetStats()
			if name, _ := stats["name"].(string); name != "AI-"+op {
				t.Errorf("Expected circuit breaker name 'AI-%s', got '%s'", op, name)
			}
			if state, _ := stats["state"].(string); state != "closed" {
				t.Errorf("Expected initial state 'closed', got '%s'", state)
			}
			if enabled, _ := stats["enabled"].(bool); !enabled {
				t.Error("Circuit breaker should be enabled")
			}
		})
	}

	// tripping one breaker leaves the others closed
	failing := func() (*genai.GenerateContentResponse, error) { return nil, stderrors.New("503") }
	for range 2 {
		_, _ = breakers[config.OperationGaps].Execute(failing)
	}

	if breakers[config.OperationGaps].IsHealthy() {
		t.Error("Gaps circuit breaker should be open after repeated failures")
	}
	for _, op := range []string{config.OperationExtract, config.OperationEnrich, config.OperationQuestionnaire} {
		if !breakers[op].IsHealthy() {
			t.Errorf("%s circuit breaker should still be healthy", op)
		}
	}
}

func TestCircuitBreakerOpenRejectsCalls(t *testing.T) {
	cb := NewAICircuitBreaker("extract", breakerConfig(1, 1.0), testLogger)

	_, _ = cb.Execute(func() (*genai.GenerateContentResponse, error) {
		return nil, stderrors.New("boom")
	})

	called := false
	_, err := cb.Execute(func() (*genai.GenerateContentResponse, error) {
		called = true
		return &genai.GenerateContentResponse{}, nil
	})

	if called {
		t.Error("Open breaker should not run the call")
	}
	if !stderrors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Expected ErrOpenState, got %v", err)
	}
}

func TestModelCircuitBreakerIsLenient(t *testing.T) {
	cb := NewModelCircuitBreaker("gaps", breakerConfig(1, 0.1), testLogger)
	if name, _ := cb.GetStats()["name"].(string); name != "AI-Model-gaps" {
		t.Errorf("Expected model circuit breaker name 'AI-Model-gaps', got '%s'", name)
	}

	failing := func() (*genai.Model, error) { return nil, stderrors.New("unavailable") }
	for range 4 {
		_, _ = cb.Execute(failing)
	}
	if !cb.IsHealthy() {
		t.Error("Model breaker should need five requests before tripping")
	}

	_, _ = cb.Execute(failing)
	if cb.IsHealthy() {
		t.Error("Model breaker should trip after five failed requests")
	}
}

func TestCircuitBreakerDisabled(t *testing.T) {
	disabled := &config.OperationAIConfig{Provider: "gemini", Model: "test-model"}

	cb := NewAICircuitBreaker("disabled", disabled, nil)
	if cb != nil {
		t.Fatal("Circuit breaker should be nil when disabled")
	}

	// a nil breaker passes calls straight through
	want := &genai.GenerateContentResponse{}
	got, err := cb.Execute(func() (*genai.GenerateContentResponse, error) { return want, nil })
	if err != nil || got != want {
		t.Errorf("Execute() = %v, %v; want passthrough", got, err)
	}
	if !cb.IsHealthy() {
		t.Error("Disabled breaker should report healthy")
	}
	if enabled, _ := cb.GetStats()["enabled"].(bool); enabled {
		t.Error("Disabled breaker stats should report enabled=false")
	}
}
