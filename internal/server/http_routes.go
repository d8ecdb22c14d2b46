package server

import (
	"net/http"

	"cvmatch/internal/observability"
)

// route is one endpoint of the API. Protected routes pass through rate
// limiting, authentication and the request size limit.
type route struct {
	pattern   string
	summary   string
	protected bool
	handler   func(*Server, *observability.ObservabilityManager) http.HandlerFunc
}

var apiRoutes = []route{
	{"GET /health", "Model availability and circuit breakers", false, func(s *Server, _ *observability.ObservabilityManager) http.HandlerFunc { return s.healthHandler }},
	{"GET /stats", "Server statistics", false, func(s *Server, _ *observability.ObservabilityManager) http.HandlerFunc { return s.statsHandler }},
	{"POST /process", "Full résumé/job run", true, (*Server).createProcessHandler},
	{"POST /extract", "Extract one document", true, (*Server).createExtractHandler},
	{"POST /gaps", "Gap analysis of two records", true, (*Server).createGapsHandler},
	{"POST /questionnaire", "Questions for gap points", true, (*Server).createQuestionnaireHandler},
}

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes(om *observability.ObservabilityManager) *http.ServeMux {
	s.metrics = om.GetMetrics()
	mux := http.NewServeMux()

	rateLimit := s.rateLimitMiddleware()
	sizeLimit := s.requestSizeLimitMiddleware()
	for _, rt := range apiRoutes {
		h := rt.handler(s, om)
		if rt.protected {
			h = rateLimit(s.authMiddleware(sizeLimit(h)))
		}
		mux.HandleFunc(rt.pattern, h)
	}
	return mux
}

// authMiddleware admits requests carrying one of the configured API keys.
// With no keys configured every request is admitted.
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.APIKeys) == 0 {
			next(w, r)
			return
		}

		key := requestAPIKey(r)
		switch {
		case key == "":
			s.Logger.Info("Rejected request without API key", "path", r.URL.Path, "client_ip", getClientIP(r))
			writeErrorResponse(w, "Missing API key", "X-API-Key header or Authorization Bearer token required", http.StatusUnauthorized)
		case !s.APIKeys[key]:
			s.Logger.Info("Rejected request with unknown API key", "path", r.URL.Path, "client_ip", getClientIP(r), "api_key_prefix", maskAPIKey(key))
			writeErrorResponse(w, "Invalid API key", "Unauthorized access", http.StatusUnauthorized)
		default:
			next(w, r)
		}
	}
}

// requestSizeLimitMiddleware caps the request body at MaxRequestSize
func (s *Server) requestSizeLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if s.MaxRequestSize <= 0 {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
			next(w, r)
		}
	}
}

func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}
