package pipeline

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const internalServerError = "Internal server error"

// StatusError attaches an HTTP status to an error that is not a Halt.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string { return e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }

// StatusCode implements the status lookup used by ErrorHandler.
func (e *StatusError) StatusCode() int { return e.Status }

// WithStatus wraps err so that it renders with the given status.
func WithStatus(status int, err error) error {
	if err == nil {
		return nil
	}
	return &StatusError{Status: status, Err: err}
}

// ErrorHandler renders every error that was not a Halt.
type ErrorHandler struct {
	logger      *zap.Logger
	production  bool
	development bool
}

// NewErrorHandler builds the terminal error renderer. Production hides the
// message of 5xx errors; development includes stack traces.
func NewErrorHandler(logger *zap.Logger, production, development bool) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{logger: logger, production: production, development: development}
}

// Handle writes err as a failure envelope.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	var halt *Halt
	if errors.As(err, &halt) {
		WriteJSON(w, halt.Status, Envelope{Success: false, Error: halt.Message, Details: halt.Details})
		return
	}

	status := statusOf(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.Error(err),
			zap.Int("status", status),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
		if h.production {
			message = internalServerError
		}
	}

	env := Envelope{Success: false, Error: message}
	if h.development {
		env.Stack = stackOf(err)
	}
	WriteJSON(w, status, env)
}

// NotFoundHandler answers unmatched routes.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
}

func statusOf(err error) int {
	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		if status := coded.StatusCode(); status >= 400 && status < 600 {
			return status
		}
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

func stackOf(err error) string {
	var traced interface{ StackTrace() string }
	if errors.As(err, &traced) {
		return traced.StackTrace()
	}
	return ""
}
