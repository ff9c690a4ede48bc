// Package http serves the JSON API.
//
// This file holds the builder used for every response and the mapping from
// core errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"contas/internal/blob"
	"contas/internal/core"
	"contas/internal/log"
)

// JSONResponseBuilder provides a fluent API for JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse starts a 200 response.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{statusCode: http.StatusOK, headers: map[string]string{}}
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

func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    core.ErrorKind `json:"kind"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Row     int            `json:"row,omitempty"`
}

const kindInternal core.ErrorKind = "internal_error"

// ErrorResponse maps err to a status code and the structured error body.
// Store and unclassified errors are logged and their details withheld.
func ErrorResponse(r *http.Request, err error) *JSONResponseBuilder {
	status, detail := failure(r, err)
	return NewJSONResponse().Status(status).Body(errorBody{Error: detail})
}

// failure classifies err and logs server-side failures.
func failure(r *http.Request, err error) (int, errorDetail) {
	status, detail := classify(err)
	if status >= 500 {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldErrorKind, detail.Kind,
			log.FieldError, err)
	}
	return status, detail
}

func classify(err error) (int, errorDetail) {
	var maxBytes *http.MaxBytesError
	if errors.Is(err, blob.ErrTooLarge) || errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge, errorDetail{
			Kind: core.KindValidation, Message: "upload exceeds the size limit", Field: "file",
		}
	}

	var ce *core.Error
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError, errorDetail{Kind: kindInternal, Message: "internal server error"}
	}
	detail := errorDetail{Kind: ce.Kind, Message: ce.Message, Field: ce.Field, Row: ce.Row}
	switch ce.Kind {
	case core.KindValidation:
		return http.StatusBadRequest, detail
	case core.KindNotFound:
		return http.StatusNotFound, detail
	case core.KindUnauthorized:
		return http.StatusUnauthorized, detail
	case core.KindAttachment:
		return http.StatusBadGateway, detail
	case core.KindStore:
		return http.StatusInternalServerError, detail
	}
	return http.StatusInternalServerError, errorDetail{Kind: kindInternal, Message: "internal server error"}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(r, err).Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}
