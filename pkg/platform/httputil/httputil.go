// Package httputil holds the JSON response and request helpers shared by all
// handlers so every endpoint speaks the same error envelope.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "evidentia/pkg/domain-errors"
)

// CorrelationHeader carries the request correlation ID on every response.
const CorrelationHeader = "X-Correlation-ID"

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 4 << 20

// ErrorResponse is the wire shape of every non-2xx response.
type ErrorResponse struct {
	Error         string               `json:"error"`
	Description   string               `json:"error_description"`
	ReasonCode    string               `json:"reason_code,omitempty"`
	FieldErrors   []dErrors.FieldError `json:"field_errors,omitempty"`
	Allowed       []string             `json:"allowed,omitempty"`
	CorrelationID string               `json:"correlation_id,omitempty"`
	Retryable     bool                 `json:"retryable"`
}

// Validatable is implemented by request bodies that normalize and validate themselves.
type Validatable interface {
	Validate() error
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to its status code and writes the error envelope.
// Wrapped causes are never serialized; internal failures get a generic message.
func WriteError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{CorrelationID: w.Header().Get(CorrelationHeader)}
	code := dErrors.CodeInternal
	if de, ok := dErrors.As(err); ok {
		code = de.Code
		resp.Description = de.Message
		resp.ReasonCode = de.Reason
		resp.FieldErrors = de.Fields
		resp.Allowed = de.Allowed
	}
	status := dErrors.HTTPStatus(code)
	if status == http.StatusInternalServerError {
		resp.Description = "internal server error"
		resp.FieldErrors = nil
		resp.Allowed = nil
	}
	resp.Error = string(code)
	resp.Retryable = dErrors.Retryable(code)
	WriteJSON(w, status, resp)
}

// DecodeAndPrepare decodes a JSON body into T and runs its Validate method.
// On failure it writes the error response and returns false.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		msg := "invalid JSON body"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			msg = "request body too large"
		} else if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		logger.WarnContext(ctx, "failed to decode request",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, msg))
		return nil, false
	}
	if v, ok := any(&req).(Validatable); ok {
		if err := v.Validate(); err != nil {
			logger.InfoContext(ctx, "request validation failed",
				"request_id", requestID,
				"error", err,
			)
			WriteError(w, err)
			return nil, false
		}
	}
	return &req, true
}
