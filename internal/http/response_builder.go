// Package http serves the JSON API.
//
// This file implements the builder used for every JSON response so status
// codes, headers and error bodies stay consistent across handlers.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"finpilot/internal/ai"
	"finpilot/internal/core"
	"finpilot/internal/log"
	"finpilot/internal/records"
	"finpilot/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a builder with a default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A nil body writes no content.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal error")
}

// errRequest marks a malformed request.
type errRequest struct{ msg string }

func (e *errRequest) Error() string { return e.msg }

func badRequest(msg string) error { return &errRequest{msg: msg} }

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	var reqErr *errRequest
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, records.ErrNotFound):
		return http.StatusNotFound
	case core.IsValidation(err),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrNoSession),
		errors.Is(err, services.ErrEmptyStatement):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrUnsupportedStatement):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, services.ErrSnapshotsDisabled), errors.Is(err, ai.ErrDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes the matching error response. Internal
// errors are not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := StatusFor(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldOperation, op, log.FieldError, err)
		InternalServerError().Write(w)
		return
	}
	logger.DebugContext(r.Context(), "Request rejected",
		log.FieldOperation, op, log.FieldStatusCode, status, log.FieldError, err)
	ErrorResponse(status, err.Error()).Write(w)
}
