package ai

import (
	"context"

	"cvmatch/internal/schema"
	"cvmatch/internal/types"
)

// TokenUsage represents token usage information from AI responses
type TokenUsage = types.TokenUsage

// GenerateRequest is one stateless call to the text-generation service
type GenerateRequest struct {
	Operation    string
	Prompt       string
	SystemPrompt string
	// Temperature overrides the operation temperature when set
	Temperature *float32
	// JSON asks for an application/json response
	JSON bool
	// Template is sent as the response schema of a JSON request
	Template *schema.Template
}

// GenerationClient sends a prompt and returns the raw response text.
// The text carries no formatting guarantee; callers decode it themselves.
type GenerationClient interface {
	Generate(ctx context.Context, req GenerateRequest) (string, *TokenUsage, error)
}

// AIProvider is a GenerationClient backed by a concrete model API
type AIProvider interface {
	GenerationClient
	GetModelInfo(ctx context.Context) *ModelInfo
	GetCircuitBreakerStats() map[string]any
	Close() error
}
