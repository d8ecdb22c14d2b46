package ai

import (
	"context"
	stderrors "errors"
	"fmt"

	"cvmatch/internal/config"
	"cvmatch/internal/errors"
)

// Service binds a provider to one pipeline operation
type Service struct {
	Provider  AIProvider
	operation string
	config    *config.OperationAIConfig
	logger    *errors.Logger
}

var _ GenerationClient = (*Service)(nil)

// NewService creates a new AI service instance with configuration for a specific operation
func NewService(cfg *config.OperationAIConfig, operationType string, logger *errors.Logger) (*Service, error) {
	var provider AIProvider
	var err error

	logger.Debug("Initializing AI service",
		"provider", cfg.Provider,
		"operation_type", operationType,
		"model", cfg.Model,
		"temperature", *cfg.Temperature,
		"timeout", *cfg.Timeout,
		"max_retries", *cfg.MaxRetries,
		"use_system_prompts", *cfg.UseSystemPrompts)

	switch cfg.Provider {
	case "gemini":
		provider, err = NewGeminiProvider(cfg, operationType, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}

	if err != nil {
		return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed,
			"Failed to create AI provider", err)
	}

	return &Service{
		Provider:  provider,
		operation: operationType,
		config:    cfg,
		logger:    logger,
	}, nil
}

// Generate forwards the request to the provider, tagged with this operation
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (string, *TokenUsage, error) {
	if req.Operation == "" {
		req.Operation = s.operation
	}
	return s.Provider.Generate(ctx, req)
}

// GetModelInfo returns information about the AI model for health checks
func (s *Service) GetModelInfo(ctx context.Context) *ModelInfo {
	return s.Provider.GetModelInfo(ctx)
}

// Operation returns the operation the service was built for
func (s *Service) Operation() string {
	return s.operation
}

// Services holds one Service per pipeline operation so that each stage keeps
// its own model, temperature, retries and circuit breaker.
type Services struct {
	byOperation map[string]*Service
}

// NewServices builds a service for every operation in config.Operations
func NewServices(cfg *config.Config, logger *errors.Logger) (*Services, error) {
	services := &Services{byOperation: make(map[string]*Service, len(config.Operations))}
	for _, op := range config.Operations {
		opCfg := cfg.GetOperationConfig(op)
		svc, err := NewService(&opCfg, op, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s service: %w", op, err)
		}
		services.byOperation[op] = svc
	}
	return services, nil
}

// Get returns the service of an operation, or nil
func (s *Services) Get(operation string) *Service {
	return s.byOperation[operation]
}

// Client returns the generation client of an operation
func (s *Services) Client(operation string) GenerationClient {
	if svc := s.byOperation[operation]; svc != nil {
		return svc
	}
	return nil
}

// ModelInfo checks model availability for every operation
func (s *Services) ModelInfo(ctx context.Context) map[string]*ModelInfo {
	info := make(map[string]*ModelInfo, len(s.byOperation))
	for op, svc := range s.byOperation {
		info[op] = svc.GetModelInfo(ctx)
	}
	return info
}

// CircuitBreakerStats returns breaker statistics keyed by operation
func (s *Services) CircuitBreakerStats() map[string]any {
	stats := make(map[string]any, len(s.byOperation))
	for op, svc := range s.byOperation {
		stats[op] = svc.Provider.GetCircuitBreakerStats()
	}
	return stats
}

// Close releases every provider
func (s *Services) Close() error {
	var errs []error
	for _, svc := range s.byOperation {
		if err := svc.Provider.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
