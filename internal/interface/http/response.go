package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vespa-hub/vespa-results/internal/domain/shared"
	"github.com/vespa-hub/vespa-results/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`

	// Retry tells the client to offer a retry action (POST .../refresh).
	Retry bool `json:"retry,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version,omitempty"`
	TotalCount int       `json:"total_count,omitempty"`
	Page       int       `json:"page,omitempty"`
	PageSize   int       `json:"page_size,omitempty"`
	HasMore    bool      `json:"has_more,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSONWithMeta(w, r, status, data, nil)
}

// writeJSONWithMeta writes a JSON response with custom metadata. The body is
// encoded before the status is sent, so an unencodable value becomes a 500.
func writeJSONWithMeta(w http.ResponseWriter, r *http.Request, status int, data any, meta *ResponseMeta) {
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()
	meta.Version = "v1"

	var buf bytes.Buffer
	err := json.NewEncoder(&buf).Encode(JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      meta,
		RequestID: getRequestID(r.Context()),
	})
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to encode response", logger.Err(err))
		writeAPIError(w, r, http.StatusInternalServerError, &APIError{Code: CodeInternal, Message: msgInternal})
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// writeJSONError writes an error JSON response.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeAPIError(w, r, status, &APIError{Code: code, Message: message})
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, apiErr *APIError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(JSONResponse{
		Success:   false,
		Error:     apiErr,
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC()},
		RequestID: getRequestID(r.Context()),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// Error codes returned in APIError.Code.
const (
	CodeMissingIdentity    = "missing_identity"
	CodeAccessUnresolved   = "access_unresolved"
	CodeFeatureDisabled    = "feature_disabled"
	CodeResultsUnavailable = "results_unavailable"
	CodeFetchInProgress    = "fetch_in_progress"
	CodeSessionNotLoaded   = "session_not_loaded"
	CodeStudentNotFound    = "student_not_found"
	CodeInvalidView        = "invalid_view"
	CodeInvalidRequest     = "invalid_request"
	CodeTimeout            = "timeout"
	CodeInternal           = "internal_server_error"
)

// Messages shown to the viewer. Remote failure detail is logged, never shown.
const (
	msgNoRoles            = "Your account has no staff role that can view student results. Please contact your administrator."
	msgEstablishment      = "We could not determine your establishment. Please try again or contact your administrator."
	msgUnscoped           = "Your access could not be determined. Please try again."
	msgResultsUnavailable = "Failed to load student results. Please try again."
	msgFetchInProgress    = "Results are already loading. Please wait."
	msgSessionNotLoaded   = "Results have not been loaded yet."
	msgMissingIdentity    = "The viewer could not be identified."
	msgFeatureDisabled    = "This feature is not enabled for your account."
	msgTimeout            = "Loading results took too long. Please try again."
	msgInternal           = "An unexpected error occurred"
)

// errorResponse maps an application error onto a status and API error.
func errorResponse(err error) (int, *APIError) {
	switch {
	case errors.Is(err, shared.ErrMissingIdentity):
		return http.StatusUnauthorized, &APIError{Code: CodeMissingIdentity, Message: msgMissingIdentity}

	case errors.Is(err, shared.ErrFeatureDisabled):
		return http.StatusForbidden, &APIError{Code: CodeFeatureDisabled, Message: msgFeatureDisabled}

	case errors.Is(err, shared.ErrNoRoles):
		return http.StatusForbidden, &APIError{Code: CodeAccessUnresolved, Message: msgNoRoles, Retry: true}
	case errors.Is(err, shared.ErrEstablishmentUnresolved):
		return http.StatusForbidden, &APIError{Code: CodeAccessUnresolved, Message: msgEstablishment, Retry: true}
	case shared.IsForbidden(err):
		return http.StatusForbidden, &APIError{Code: CodeAccessUnresolved, Message: msgUnscoped, Retry: true}

	case errors.Is(err, shared.ErrFetchInProgress):
		return http.StatusConflict, &APIError{Code: CodeFetchInProgress, Message: msgFetchInProgress}

	case errors.Is(err, shared.ErrSessionNotLoaded):
		return http.StatusNotFound, &APIError{Code: CodeSessionNotLoaded, Message: msgSessionNotLoaded}
	case errors.Is(err, shared.ErrStudentNotFound):
		return http.StatusNotFound, &APIError{Code: CodeStudentNotFound, Message: "Student not found."}

	case errors.Is(err, shared.ErrInvalidView):
		return http.StatusBadRequest, &APIError{Code: CodeInvalidView, Message: "The requested view is not valid.", Details: detail(err)}
	case shared.IsValidation(err):
		return http.StatusBadRequest, &APIError{Code: CodeInvalidRequest, Message: "The request is not valid.", Details: detail(err)}

	case errors.Is(err, shared.ErrTransport), shared.IsExternalService(err):
		return http.StatusBadGateway, &APIError{Code: CodeResultsUnavailable, Message: msgResultsUnavailable, Retry: true}

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, &APIError{Code: CodeTimeout, Message: msgTimeout, Retry: true}

	default:
		return http.StatusInternalServerError, &APIError{Code: CodeInternal, Message: msgInternal}
	}
}

// detail returns the innermost message of a validation error.
func detail(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Err != nil {
		return de.Err.Error()
	}
	return ""
}

// writeError logs err and writes the mapped response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := errorResponse(err)

	log := logger.FromContext(r.Context())
	fields := []logger.Field{logger.Err(err), logger.StatusCode(status), logger.String("code", apiErr.Code)}
	if status >= 500 {
		log.Error("request failed", fields...)
	} else {
		log.Debug("request rejected", fields...)
	}

	writeAPIError(w, r, status, apiErr)
}
