package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/marcus/doable/internal/models"
)

// Error code constants for structured API error responses.
const (
	ErrCodeBadRequest        = "bad_request"
	ErrCodeNotFound          = "not_found"
	ErrCodeAlreadyExists     = "already_exists"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeVersionConflict   = "version_conflict"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeInternal          = "internal_error"
)

// APIError represents a structured error returned by the API.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError for JSON serialization.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ConflictResponse is the 409 body for a failed compare-and-swap. It carries
// the current authoritative todo so the loser can retry without a round-trip.
type ConflictResponse struct {
	Error       APIError    `json:"error"`
	CurrentTodo models.Todo `json:"current_todo"`
}

// writeError writes a JSON error response with the given HTTP status code.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error: APIError{Code: code, Message: message},
	}); err != nil {
		slog.Error("write error response", "err", err)
	}
}

// writeConflict writes the structured 409 payload for a version conflict.
func writeConflict(w http.ResponseWriter, current models.Todo) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	if err := json.NewEncoder(w).Encode(ConflictResponse{
		Error:       APIError{Code: ErrCodeVersionConflict, Message: "expected version does not match"},
		CurrentTodo: current,
	}); err != nil {
		slog.Error("write conflict response", "err", err)
	}
}

// writeJSON writes a JSON response with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write json response", "err", err)
	}
}
