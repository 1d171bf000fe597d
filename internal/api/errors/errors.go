// Package errors writes API errors in the EventSync format:
// {"error": {"code": "...", "message": "...", "details": {...}}}.
// Every error response goes through WriteError or WriteErrorWithDetails.
package errors

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error codes.
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeMalformedPayload = "MALFORMED_PAYLOAD"
	CodeWrongEvent       = "WRONG_EVENT"
	CodeAlreadyScanned   = "ALREADY_SCANNED"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeInternalError    = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteError writes an error response without details.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	WriteErrorWithDetails(w, statusCode, code, message, nil)
}

// WriteErrorWithDetails writes an error response; details is omitted when nil.
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// --- Shorthands ---

// ValidationError - 400 invalid input.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// MalformedPayload - 400 no tracking id in the scanned data.
func MalformedPayload(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeMalformedPayload, message)
}

// WrongEvent - 400 the code belongs to another event.
func WrongEvent(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeWrongEvent, message)
}

// AlreadyScanned - 400 with the original scan in details.
func AlreadyScanned(w http.ResponseWriter, message string, details any) {
	WriteErrorWithDetails(w, http.StatusBadRequest, CodeAlreadyScanned, message, details)
}

// NotFound - 404.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized - 401 authentication required.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden - 403.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// InternalError - 500. Never pass internal error text here.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
