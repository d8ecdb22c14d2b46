package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"cvmatch/internal/errors"
	"cvmatch/internal/observability"
	"cvmatch/internal/pipeline"
	"cvmatch/internal/schema"
	"cvmatch/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const apiTracerName = "cvmatch.api"

// badRequest marks a request the handler rejects before running a stage
type badRequest struct {
	title   string
	message string
}

func (b *badRequest) Error() string { return b.message }

func invalid(title, format string, args ...any) error {
	return &badRequest{title: title, message: fmt.Sprintf(format, args...)}
}

// stageHandler decodes a request, validates it and runs one stage. Failures
// map to a status code through errorStatus.
func stageHandler[Req, Resp any](
	s *Server,
	om *observability.ObservabilityManager,
	operation string,
	validate func(*Req) error,
	run func(context.Context, Req) (Resp, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer(apiTracerName).Start(r.Context(), "api."+operation)
		defer span.End()
		span.SetAttributes(attribute.String("operation", operation))

		var req Req
		if err := parseJSONRequest(r, &req); err != nil {
			failSpan(span, err, "validation")
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}
		if err := validate(&req); err != nil {
			s.writeFailure(w, span, err, nil)
			return
		}

		result, err := run(ctx, req)
		if err != nil {
			s.writeFailure(w, span, err, result)
			return
		}

		span.SetAttributes(attribute.Bool("success", true))
		writeJSON(w, span, http.StatusOK, result)
	}
}

// createProcessHandler runs the full pipeline for one résumé/job pair
func (s *Server) createProcessHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer(apiTracerName).Start(r.Context(), "api.process")
		defer span.End()

		var req ProcessRequest
		if err := parseJSONRequest(r, &req); err != nil {
			failSpan(span, err, "validation")
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.checkTextSize("resume", req.Resume); err != nil {
			s.writeFailure(w, span, err, nil)
			return
		}
		if err := s.checkTextSize("jobDescription", req.JobDescription); err != nil {
			s.writeFailure(w, span, err, nil)
			return
		}

		span.SetAttributes(
			attribute.Int("request.resume_length", len(req.Resume)),
			attribute.Int("request.job_length", len(req.JobDescription)),
			attribute.String("operation", "process"),
		)

		result, err := s.Pipeline.Run(ctx, pipelineInput(req))
		s.metrics.RecordRun(ctx, result, err)
		if err != nil {
			s.writeFailure(w, span, err, result)
			return
		}

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.String("run.id", result.RunID),
			attribute.Int("gaps.points", len(result.Gaps.Points)),
			attribute.Int64("tokens.total", result.Usage.TotalTokens),
		)
		writeJSON(w, span, http.StatusOK, result)
	}
}

// createExtractHandler extracts one document, optionally enriching it
func (s *Server) createExtractHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	validate := func(req *ExtractRequest) error {
		if _, ok := types.ParseDocumentKind(req.Kind); !ok {
			return invalid("Invalid document kind", "kind must be one of resume, cv, job, jd (got %q)", req.Kind)
		}
		return s.checkTextSize("text", req.Text)
	}

	return stageHandler(s, om, "extract", validate, func(ctx context.Context, req ExtractRequest) (*types.DocumentResult, error) {
		kind, _ := types.ParseDocumentKind(req.Kind)
		if req.Enrich {
			return s.Pipeline.RunDocument(ctx, kind, "", req.Text)
		}
		rec, err := s.Pipeline.Extract(ctx, kind, req.Text)
		if err != nil {
			return nil, err
		}
		return &types.DocumentResult{Kind: kind, Record: rec}, nil
	})
}

// createGapsHandler runs gap analysis over two submitted records
func (s *Server) createGapsHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	validate := func(req *GapsRequest) error {
		var err error
		if req.Resume, err = conformRecord("resume", types.DocumentResume, req.Resume); err != nil {
			return err
		}
		req.Job, err = conformRecord("job", types.DocumentJob, req.Job)
		return err
	}

	return stageHandler(s, om, "gaps", validate, func(ctx context.Context, req GapsRequest) (types.GapReport, error) {
		return s.Pipeline.Gaps(ctx, req.Resume, req.Job, req.Role)
	})
}

// createQuestionnaireHandler generates one question per submitted point
func (s *Server) createQuestionnaireHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	validate := func(req *QuestionnaireRequest) error {
		if len(req.Points) > types.MaxGapPoints {
			return invalid("Too many points", "at most %d points are accepted (got %d)", types.MaxGapPoints, len(req.Points))
		}
		return nil
	}

	return stageHandler(s, om, "questionnaire", validate, func(ctx context.Context, req QuestionnaireRequest) (types.Questionnaire, error) {
		return s.Pipeline.Questionnaire(ctx, req.Points)
	})
}

func pipelineInput(req ProcessRequest) pipeline.Input {
	return pipeline.Input{
		ResumeText: req.Resume,
		JobText:    req.JobDescription,
		Role:       strings.TrimSpace(req.Role),
		ResumeName: "request.resume",
		JobName:    "request.jobDescription",
	}
}

// checkTextSize rejects a text field over half the request limit
func (s *Server) checkTextSize(field, text string) error {
	if s.MaxRequestSize <= 0 || int64(len(text)) <= s.MaxRequestSize/2 {
		return nil
	}
	return invalid("Request field too large",
		"%s exceeds recommended size limit of %d characters", field, s.MaxRequestSize/2)
}

// conformRecord shapes a submitted object to its template and validates it
func conformRecord(field string, kind types.DocumentKind, obj map[string]any) (schema.Record, error) {
	if obj == nil {
		return nil, invalid("Missing record", "%s record is required", field)
	}
	t := kind.Template()
	rec := t.Conform(obj)
	if err := t.Validate(rec); err != nil {
		return nil, invalid("Invalid record", "%s is not a valid %s record: %v", field, t.Name, err)
	}
	return rec, nil
}

// statusPriority orders failure statuses when several tracks fail at once
var statusPriority = []int{
	http.StatusBadRequest,
	http.StatusUnprocessableEntity,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
	http.StatusInternalServerError,
}

// errorStatus maps a failure to its HTTP status and a short title
func errorStatus(err error) (int, string) {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		status, title := http.StatusInternalServerError, "Pipeline failed"
		for _, e := range joined.Unwrap() {
			s, t := errorStatus(e)
			if rank(s) < rank(status) {
				status, title = s, t
			}
		}
		return status, title
	}

	var br *badRequest
	switch {
	case stderrors.As(err, &br):
		return http.StatusBadRequest, br.title
	case errors.IsEmptyInput(err):
		return http.StatusUnprocessableEntity, "Empty input"
	case errors.IsSchemaDecode(err):
		return http.StatusBadGateway, "Malformed model response"
	case errors.IsServiceError(err):
		return http.StatusServiceUnavailable, "Generation service unavailable"
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timed out"
	default:
		return http.StatusInternalServerError, "Pipeline failed"
	}
}

func rank(status int) int {
	for i, s := range statusPriority {
		if s == status {
			return i
		}
	}
	return len(statusPriority)
}

// writeFailure logs a failed request and writes its error response
func (s *Server) writeFailure(w http.ResponseWriter, span trace.Span, err error, partial any) {
	status, title := errorStatus(err)
	errorType := "pipeline"
	if status == http.StatusBadRequest {
		errorType = "validation"
	} else {
		s.Logger.LogError(err, "Request failed", "status", status)
	}
	failSpan(span, err, errorType)
	span.SetAttributes(attribute.Int("http.status", status))

	response := ErrorResponse{Error: title, Message: err.Error()}
	switch result := partial.(type) {
	case *types.RunResult:
		if result != nil {
			response.Result = result
		}
	case *types.DocumentResult:
		if result != nil && result.Record != nil {
			response.Result = result
		}
	}
	writeJSON(w, span, status, response)
}

func failSpan(span trace.Span, err error, errorType string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("error.type", errorType))
}

func writeJSON(w http.ResponseWriter, span trace.Span, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		span.RecordError(err)
	}
}
