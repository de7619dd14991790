// Package handler contains the HTTP controllers of the blog API.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming request (path params, JSON body, multipart form)
//  2. Call the service with plain values and the caller's auth.Identity
//  3. Write the response envelope or hand the error to Responder
//
// Handlers hold no business rules. Ownership, validation and slug rules
// live in internal/service so cmd/blogctl and the tests share them.
package handler

// RESPONSE HELPERS:
// Every success response is an object with "success": true plus the entity
// under a resource-specific key. Every error response has the same shape:
//
//	{"success": false, "statusCode": 404, "message": "Data not found."}
//
// The frontend reads message for its toasts and statusCode for routing
// (401 sends the user to sign-in, 403 shows "not allowed").

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/blog-platform/internal/apperror"
)

// MsgInternal replaces the message of unexpected errors when internal
// errors are not exposed.
const MsgInternal = "Internal server error."

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// envelope is a success body: {"success": true, ...fields}.
type envelope map[string]any

func ok(fields envelope) envelope {
	if fields == nil {
		fields = envelope{}
	}
	fields["success"] = true
	return fields
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body; once Encode writes,
// header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// Responder translates errors into the JSON error envelope. Its WriteError
// method is also the auth.ErrorWriter the Gate uses, so 401/403 from the
// middleware look exactly like 401/403 from a controller.
type Responder struct {
	logger         *slog.Logger
	exposeInternal bool
}

// NewResponder creates a Responder. exposeInternal surfaces the message of
// unexpected (500) errors to the client; production turns it off.
func NewResponder(logger *slog.Logger, exposeInternal bool) *Responder {
	return &Responder{logger: logger, exposeInternal: exposeInternal}
}

// StatusOf maps an error chain to its HTTP status.
//
// errors.Is walks the chain via Unwrap, so
//
//	fmt.Errorf("service/blog: %w", apperror.NotFoundMsg("Data not found."))
//
// still resolves to 404.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError maps err to a status and writes the error envelope.
func (rs *Responder) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)

	message := err.Error()
	var appErr *apperror.AppError
	if status != http.StatusInternalServerError && errors.As(err, &appErr) {
		message = appErr.Message
	}

	if status == http.StatusInternalServerError {
		rs.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
		if !rs.exposeInternal {
			// The raw message may carry SQL, hostnames or file paths.
			message = MsgInternal
		}
	}

	writeJSON(w, status, ErrorResponse{
		Success:    false,
		StatusCode: status,
		Message:    message,
	})
}

// NotFound answers unknown routes with the standard envelope.
func (rs *Responder) NotFound(w http.ResponseWriter, r *http.Request) {
	rs.WriteError(w, r, apperror.NotFoundMsg("Route not found."))
}

// MethodNotAllowed answers a known route hit with the wrong verb.
func (rs *Responder) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    "Method not allowed.",
	})
}
