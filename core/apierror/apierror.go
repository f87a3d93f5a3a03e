// Package apierror defines the public error taxonomy of the dispatch API.
//
// Every public error carries a three part identity: a numeric code prefixed
// with the HTTP status and incrementing per resource kind, a machine readable
// key, and a human readable message. Responses the API gives through the
// router endpoints always use this collection, so clients see one consistent
// error shape everywhere.
package apierror

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/snabb-tech/dispatch/core/logger"
)

// APIError is an error with a public identity.
type APIError struct {
	Code     int    `json:"code"`
	Key      string `json:"key"`
	Message  string `json:"message"`
	Status   int    `json:"-"`
	IsPublic bool   `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// kind offsets within a status group. The numeric code is status*1000+offset,
// so the worker variants of NotFound and AlreadyExists share the same offset.
// Offsets 2 to 5 are fixed by published API contracts and must not change;
// offset 1 stays reserved for the retired agent kind.
var kindOffsets = map[string]int{
	"organization": 2,
	"task":         3,
	"team":         4,
	"user":         5,
	"address":      6,
	"contact":      7,
	"customer":     8,
	"location":     9,
	"worker":       10,
}

func offset(kind string) int {
	return kindOffsets[kind]
}

// NotFound returns the kind-specific 404 error.
func NotFound(kind string) *APIError {
	return &APIError{
		Code:     404000 + offset(kind),
		Key:      strings.ToUpper(kind) + "_NOT_FOUND",
		Message:  fmt.Sprintf("No such %s exists", kind),
		Status:   http.StatusNotFound,
		IsPublic: true,
	}
}

// AlreadyExists returns the kind-specific 409 error for unique index violations.
func AlreadyExists(kind string) *APIError {
	return &APIError{
		Code:     409000 + offset(kind),
		Key:      strings.ToUpper(kind) + "_ALREADY_EXISTS",
		Message:  fmt.Sprintf("A %s with the given unique fields already exists", kind),
		Status:   http.StatusConflict,
		IsPublic: true,
	}
}

// InvalidRequest returns a 422 error carrying the full list of violated
// constraints in its message.
func InvalidRequest(message string) *APIError {
	if message == "" {
		message = "Invalid Request"
	}
	return &APIError{
		Code:     422000,
		Key:      "INVALID_REQUEST",
		Message:  message,
		Status:   http.StatusUnprocessableEntity,
		IsPublic: true,
	}
}

// Unauthorized returns the authentication error. The numeric code keeps its
// historical 422 prefix even though the response status is 401.
func Unauthorized() *APIError {
	return &APIError{
		Code:     422000,
		Key:      "UNAUTHORIZED",
		Message:  "Authentication error",
		Status:   http.StatusUnauthorized,
		IsPublic: true,
	}
}

// Internal returns the generic 500 error. The message is intentionally
// non-descriptive, details belong into the server log only.
func Internal() *APIError {
	return &APIError{
		Code:     500000,
		Key:      "UNKNOWN_ERROR",
		Message:  "An unexpected internal error occurred",
		Status:   http.StatusInternalServerError,
		IsPublic: false,
	}
}

// Render writes err to w as the final JSON error response. Public errors keep
// their identity; everything else is logged and rendered as the generic
// internal error.
func Render(w http.ResponseWriter, r *http.Request, err error) {
	apiError, ok := err.(*APIError)
	if !ok || !apiError.IsPublic {
		logger.FromContext(r.Context()).WithError(err).Errorln("internal error on", r.Method, r.URL.Path)
		apiError = Internal()
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(apiError.Status)
	json.NewEncoder(w).Encode(apiError)
}
