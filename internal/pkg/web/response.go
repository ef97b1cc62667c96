package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ferdiebergado/gdprkit/internal/pkg/message"
	"github.com/ferdiebergado/gopherkit/http/response"
)

// OKResponse represents the structure of a JSON-encoded success response.
//
// It includes an optional message and optional data payload. The generic type
// parameter T allows OKResponse to carry arbitrary response data.
type OKResponse[T any] struct {
	Message string `json:"message,omitempty"`
	Data    T      `json:"data,omitempty"`
}

// ErrorResponse represents the structure of a JSON-encoded error response.
//
// It includes a general error message and, optionally, a map of field-level
// validation errors. The Errors field is omitted from the response if empty.
type ErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// OK writes a JSON-encoded success response to w with the provided HTTP status code.
//
// If msg is non-nil, its value is included in the response under the "message" field.
// The data is included under the "data" field.
//
//	{
//	  "message": "Consent saved.",
//	  "data": {
//	    "id": "8b0c...",
//	    "policy_version": "2025-01"
//	  }
//	}
func OK[T any](w http.ResponseWriter, status int, msg *string, data T) {
	payload := &OKResponse[T]{Data: data}
	if msg != nil {
		payload.Message = *msg
	}

	response.JSON(w, status, payload)
}

// Fail writes a JSON-encoded error response to w with the provided HTTP status code.
//
// The reason is logged with the key "reason" and never reaches the client.
// Server errors are logged at Error level, client errors at Warn level.
//
//	{
//	  "message": "Invalid input.",
//	  "errors": {
//	    "email": "email must be a valid email address"
//	  }
//	}
func Fail(w http.ResponseWriter, status int, reason error, msg string, errs map[string]string) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(context.Background(), level, "request failed", "status", status, "reason", reason)

	payload := &ErrorResponse{
		Message: msg,
		Errors:  errs,
	}
	response.JSON(w, status, payload)
}

func RespondOK[T any](w http.ResponseWriter, msg *string, data T) {
	OK(w, http.StatusOK, msg, data)
}

func RespondCreated[T any](w http.ResponseWriter, msg *string, data T) {
	OK(w, http.StatusCreated, msg, data)
}

func RespondAccepted[T any](w http.ResponseWriter, msg *string, data T) {
	OK(w, http.StatusAccepted, msg, data)
}

func RespondBadRequest(w http.ResponseWriter, err error, msg string, details map[string]string) {
	Fail(w, http.StatusBadRequest, err, msg, details)
}

func RespondUnauthorized(w http.ResponseWriter, err error, msg string, details map[string]string) {
	Fail(w, http.StatusUnauthorized, err, msg, details)
}

func RespondForbidden(w http.ResponseWriter, err error, msg string, details map[string]string) {
	Fail(w, http.StatusForbidden, err, msg, details)
}

func RespondNotFound(w http.ResponseWriter, err error, msg string, details map[string]string) {
	Fail(w, http.StatusNotFound, err, msg, details)
}

func RespondConflict(w http.ResponseWriter, err error, msg string, details map[string]string) {
	Fail(w, http.StatusConflict, err, msg, details)
}

func RespondUnprocessableEntity(w http.ResponseWriter, err error, msg string, details map[string]string) {
	Fail(w, http.StatusUnprocessableEntity, err, msg, details)
}

func RespondRequestEntityTooLarge(w http.ResponseWriter, err error, msg string, details map[string]string) {
	Fail(w, http.StatusRequestEntityTooLarge, err, msg, details)
}

func RespondUnsupportedMediaType(w http.ResponseWriter, err error, msg string, details map[string]string) {
	Fail(w, http.StatusUnsupportedMediaType, err, msg, details)
}

func RespondRequestTimeout(w http.ResponseWriter, err error, msg string, details map[string]string) {
	Fail(w, http.StatusRequestTimeout, err, msg, details)
}

func RespondTooManyRequests(w http.ResponseWriter, err error, msg string, details map[string]string) {
	Fail(w, http.StatusTooManyRequests, err, msg, details)
}

func RespondInternalServerError(w http.ResponseWriter, err error) {
	Fail(w, http.StatusInternalServerError, err, message.UnexpectedErr, nil)
}
