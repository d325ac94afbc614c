// Package httputil provides shared HTTP response helpers.
package httputil

import (
	"encoding/json"
	"net/http"
)

// APIError is the JSON error envelope returned by every endpoint.
type APIError struct {
	Error APIErrorBody `json:"error"`
}

// APIErrorBody carries the error details inside the envelope.
type APIErrorBody struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError writes a JSON error response with the given status code.
func WriteError(w http.ResponseWriter, status int, errType, message, code, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := APIError{
		Error: APIErrorBody{
			Message:   message,
			Type:      errType,
			Code:      code,
			RequestID: requestID,
		},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteAuthError writes a 401 authentication error.
func WriteAuthError(w http.ResponseWriter, message, requestID string) {
	WriteError(w, http.StatusUnauthorized, "authentication_error", message, "invalid_api_key", requestID)
}

// WriteBadRequestError writes a 400 invalid request error.
func WriteBadRequestError(w http.ResponseWriter, message, requestID string) {
	WriteError(w, http.StatusBadRequest, "invalid_request_error", message, "invalid_request", requestID)
}

// WriteRateLimitError writes a 429 rate limit error.
func WriteRateLimitError(w http.ResponseWriter, message, requestID string) {
	WriteError(w, http.StatusTooManyRequests, "rate_limit_error", message, "rate_limited", requestID)
}

// WriteInternalError writes a 500 internal error.
func WriteInternalError(w http.ResponseWriter, requestID string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred", "internal_error", requestID)
}

// WriteConfigurationError writes a 500 for requests that cannot be served
// because the deployment is misconfigured, such as a task type with no
// model mapping.
func WriteConfigurationError(w http.ResponseWriter, message, requestID string) {
	WriteError(w, http.StatusInternalServerError, "configuration_error", message, "configuration_error", requestID)
}

// WriteNoProviderError writes a 503 when no healthy provider can serve
// the request.
func WriteNoProviderError(w http.ResponseWriter, message, requestID string) {
	WriteError(w, http.StatusServiceUnavailable, "no_healthy_provider", message, "no_healthy_provider", requestID)
}

// WriteNotFoundError writes a 404 for unknown resources.
func WriteNotFoundError(w http.ResponseWriter, message, requestID string) {
	WriteError(w, http.StatusNotFound, "not_found", message, "not_found", requestID)
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
