package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"
)

// RFC 7807 problem types.
const (
	TypeValidation    = "/errors/validation"
	TypeNotFound      = "/errors/not-found"
	TypeUnauthorized  = "/errors/unauthorized"
	TypeRateLimit     = "/errors/rate-limit"
	TypeInternal      = "/errors/internal"
	TypeTimeout       = "/errors/timeout"
	TypeConflict      = "/errors/conflict"
	TypeUnlinked      = "/errors/analysis/unlinked-datasets"
	TypeMissingColumn = "/errors/analysis/missing-column"
	TypeSmallSample   = "/errors/analysis/insufficient-sample"
)

// APIError represents a structured API error response.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer for chi/render.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// NewAPIError creates an APIError.
func NewAPIError(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`
}

// Render implements render.Renderer.
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON flattens extensions into the top-level object.
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := map[string]interface{}{
		"type":   pd.Type,
		"title":  pd.Title,
		"status": pd.Status,
	}
	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}
	for k, v := range pd.Extensions {
		data[k] = v
	}
	return json.Marshal(data)
}

// NewProblemDetails creates an RFC 7807 problem.
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension field.
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// ErrorHandler converts errors to problem responses and logs them.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates an ErrorHandler. includeStack should only be set
// in development configurations.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError logs err and writes it as an RFC 7807 response.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	problem := h.ErrorToProblem(err, r)
	if h.includeStack {
		problem.WithExtension("stack", string(debug.Stack()))
	}
	render.Render(w, r, problem)
}

// ErrorToProblem maps an error to RFC 7807 Problem Details. Typed pipeline
// failures get their own problem types so clients can distinguish a data
// problem from a server fault.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout,
			"Request Timeout", "The request took too long to process and was cancelled", r.URL.Path)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return NewProblemDetails(apiErr.StatusCode, problemTypeForStatus(apiErr.StatusCode),
			http.StatusText(apiErr.StatusCode), apiErr.Message, r.URL.Path).
			WithExtension("error_code", apiErr.ErrorCode)
	}

	var unlinked *UnlinkedDatasetsError
	if errors.As(err, &unlinked) {
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeUnlinked,
			"Datasets Cannot Be Correlated", unlinked.Error(), r.URL.Path).
			WithExtension("project_ids", unlinked.ProjectIDs).
			WithExtension("transaction_ids", unlinked.TransactionIDs)
	}

	var missing *MissingColumnError
	if errors.As(err, &missing) {
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeMissingColumn,
			"Dataset Missing Required Columns", missing.Error(), r.URL.Path).
			WithExtension("table", missing.Table).
			WithExtension("columns", missing.Columns)
	}

	var sample *InsufficientSampleError
	if errors.As(err, &sample) {
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeSmallSample,
			"Insufficient Peer Sample", sample.Error(), r.URL.Path).
			WithExtension("city", sample.City).
			WithExtension("regions", sample.Regions)
	}

	if errors.Is(err, fs.ErrNotExist) {
		return NewProblemDetails(http.StatusBadRequest, TypeValidation,
			"Dataset Not Found", err.Error(), r.URL.Path)
	}

	if errors.Is(err, ErrRunNotFound) || errors.Is(err, ErrNoCompletedRun) {
		return NewProblemDetails(http.StatusNotFound, TypeNotFound,
			"Not Found", err.Error(), r.URL.Path)
	}

	if errors.Is(err, ErrInvalidRunID) {
		return NewProblemDetails(http.StatusBadRequest, TypeValidation,
			"Invalid Run ID", err.Error(), r.URL.Path)
	}

	if errors.Is(err, ErrAnalysisRunning) {
		return NewProblemDetails(http.StatusConflict, TypeConflict,
			"Analysis Already Running", err.Error(), r.URL.Path)
	}

	return NewProblemDetails(http.StatusInternalServerError, TypeInternal,
		"Internal Server Error", "An unexpected error occurred while processing your request", r.URL.Path)
}

// HandlePanic recovers from handler panics with an RFC 7807 response.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(http.StatusInternalServerError, TypeInternal,
		"Internal Server Error", "An unexpected error occurred", r.URL.Path)
	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
	}
	render.Render(w, r, problem)
}

// NotFound writes a standard 404 problem.
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	render.Render(w, r, NewProblemDetails(http.StatusNotFound, TypeNotFound,
		"Not Found", "The requested resource was not found", r.URL.Path))
}

// MethodNotAllowed writes a standard 405 problem.
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	render.Render(w, r, NewProblemDetails(http.StatusMethodNotAllowed, TypeInternal,
		"Method Not Allowed", fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method), r.URL.Path))
}

func problemTypeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return TypeValidation
	case http.StatusNotFound:
		return TypeNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return TypeUnauthorized
	case http.StatusTooManyRequests:
		return TypeRateLimit
	case http.StatusConflict:
		return TypeConflict
	default:
		return TypeInternal
	}
}
