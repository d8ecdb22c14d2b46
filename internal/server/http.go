package server

import (
	"context"
	"time"

	"cvmatch/internal/ai"
	"cvmatch/internal/config"
	cvmatchErrors "cvmatch/internal/errors"
	"cvmatch/internal/observability"
	"cvmatch/internal/pipeline"
)

// ProcessRequest is the body of POST /process
type ProcessRequest struct {
	Resume         string `json:"resume"`
	JobDescription string `json:"jobDescription"`
	Role           string `json:"role,omitempty"`
}

// ExtractRequest is the body of POST /extract. Enrich also runs the
// enrichment stage on the extracted record.
type ExtractRequest struct {
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	Enrich bool   `json:"enrich,omitempty"`
}

// GapsRequest is the body of POST /gaps
type GapsRequest struct {
	Resume map[string]any `json:"resume"`
	Job    map[string]any `json:"job"`
	Role   string         `json:"role,omitempty"`
}

// QuestionnaireRequest is the body of POST /questionnaire
type QuestionnaireRequest struct {
	Points []string `json:"points"`
}

// ErrorResponse represents an error response. Result carries whatever a
// failed run managed to produce.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// HealthChecker reports model availability and circuit breaker state
type HealthChecker interface {
	ModelInfo(ctx context.Context) map[string]*ai.ModelInfo
	CircuitBreakerStats() map[string]any
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	// TLS Configuration
	TLSConfig config.TLSConfig

	// API Authentication
	APIKeys map[string]bool

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	// Pipeline serves every stage endpoint; built from AppConfig on Start when nil
	Pipeline *pipeline.Pipeline
	Health   HealthChecker

	metrics *observability.Metrics

	// Logger
	Logger *cvmatchErrors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
	Pipeline       *pipeline.Pipeline
	Health         HealthChecker
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, logger *cvmatchErrors.Logger) *Server {
	// Convert API keys slice to map for O(1) lookup
	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	logger = cvmatchErrors.OrNop(logger)

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.BurstCapacity,
			logger,
		)
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		TLSConfig:      cfg.TLSConfig,
		APIKeys:        apiKeyMap,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Pipeline:       cfg.Pipeline,
		Health:         cfg.Health,
		metrics:        &observability.Metrics{},
		Logger:         logger,
	}
}
