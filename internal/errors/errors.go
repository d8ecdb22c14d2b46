package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeAI         ErrorType = "ai"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeInput      ErrorType = "input"
	ErrorTypeDecode     ErrorType = "decode"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// newAppError is an unexported helper to create AppError instances
func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error constructors for different types
func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewAIError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeAI, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// NewEmptyInputError reports a document with no usable source text.
func NewEmptyInputError(message string) *AppError {
	return newAppError(ErrorTypeInput, ErrCodeEmptyInput, message, nil)
}

// NewSchemaDecodeError reports generation output that could not be decoded
// into the expected record shape. The raw response is kept for operators.
func NewSchemaDecodeError(message, raw string, cause error) *AppError {
	return newAppError(ErrorTypeDecode, ErrCodeSchemaDecode, message, cause).
		WithContext(contextKeyRawResponse, raw)
}

// NewServiceError reports a failed call to the generation service.
func NewServiceError(message string, cause error) *AppError {
	return newAppError(ErrorTypeAI, ErrCodeAIServiceFailed, message, cause)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// hasCode walks the chain looking for an AppError with the given code
func hasCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// IsEmptyInput reports whether err carries an empty input failure
func IsEmptyInput(err error) bool {
	return hasCode(err, ErrCodeEmptyInput)
}

// IsSchemaDecode reports whether err carries a schema decode failure
func IsSchemaDecode(err error) bool {
	return hasCode(err, ErrCodeSchemaDecode)
}

// IsServiceError reports whether err carries a generation service failure
func IsServiceError(err error) bool {
	return hasCode(err, ErrCodeAIServiceFailed) || hasCode(err, ErrCodeAITimeout)
}

// RawResponse returns the raw generation output attached to a decode error.
func RawResponse(err error) string {
	var appErr *AppError
	for stderrors.As(err, &appErr) {
		if raw, ok := appErr.Context[contextKeyRawResponse].(string); ok {
			return raw
		}
		err = appErr.Cause
	}
	return ""
}

// Logger wraps slog with application-specific methods
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new structured logger writing JSON to stderr, which
// keeps stdout free for command output
func NewLogger(level slog.Level) *Logger {
	return NewLoggerTo(os.Stderr, level)
}

// NewLoggerTo creates a structured logger writing JSON to w
func NewLoggerTo(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{logger: slog.New(handler)}
}

// NopLogger returns a logger that discards everything
func NopLogger() *Logger {
	return NewLoggerTo(io.Discard, slog.LevelError)
}

// OrNop returns l, or a discarding logger when l is nil
func OrNop(l *Logger) *Logger {
	if l == nil {
		return NopLogger()
	}
	return l
}

// LogError logs err at error level. AppError fields are flattened into
// attributes; the raw model response is left out.
func (l *Logger) LogError(err error, message string, args ...any) {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		l.logger.Error(message, append([]any{"error", err.Error()}, args...)...)
		return
	}

	attrs := []any{
		"error_type", appErr.Type,
		"error_code", appErr.Code,
		"error_message", appErr.Message,
	}
	for key, value := range appErr.Context {
		if key != contextKeyRawResponse {
			attrs = append(attrs, key, value)
		}
	}
	if appErr.Cause != nil {
		attrs = append(attrs, "cause", appErr.Cause.Error())
	}
	l.logger.Error(message, append(attrs, args...)...)
}

func (l *Logger) Info(message string, args ...any)  { l.logger.Info(message, args...) }
func (l *Logger) Debug(message string, args ...any) { l.logger.Debug(message, args...) }
func (l *Logger) Warn(message string, args ...any)  { l.logger.Warn(message, args...) }

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// New creates a stderr logger for one of debug, info, warn or error
func New(level string) (*Logger, error) {
	lvl, ok := logLevels[level]
	if !ok {
		return nil, fmt.Errorf("invalid log level: %s", level)
	}
	return NewLogger(lvl), nil
}

const (
	ErrCodeFileNotFound    = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable = "FILE_NOT_READABLE"
	ErrCodeInvalidFormat   = "INVALID_FORMAT"
	ErrCodeInvalidConfig   = "INVALID_CONFIG"

	ErrCodeAIServiceFailed = "AI_SERVICE_FAILED"
	ErrCodeAITimeout       = "AI_TIMEOUT"

	ErrCodeEmptyInput   = "EMPTY_INPUT"
	ErrCodeSchemaDecode = "SCHEMA_DECODE_FAILED"
)

const contextKeyRawResponse = "raw_response"
