package web

import (
	"errors"
	"net/http"

	"github.com/willemschots/forum/internal/errorz"
)

var (
	ErrInvalidBody  = errorz.NewCoded(errorz.ErrInvalidInput, "InvalidBody", "Request body is not valid JSON")
	ErrBodyTooLarge = errorz.NewCoded(errorz.ErrInvalidInput, "BodyTooLarge", "Request body is too large")
)

// errorResponse is the body of every error response.
type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
	// Fields contains a message per invalid field, if the error was caused by them.
	Fields map[string]string `json:"fields,omitempty"`
}

// statusFor returns the HTTP status for the class of err.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errorz.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errorz.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errorz.ErrConflict):
		return http.StatusPreconditionFailed
	case errors.Is(err, errorz.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	var coded *errorz.Coded
	isCoded := errors.As(err, &coded)

	switch {
	case status == http.StatusInternalServerError:
		s.deps.Logger.Error("internal server error", "method", r.Method, "path", r.URL.Path, "error", err)
		s.writeError(w, r, status, errorResponse{Name: "InternalError"})
	case status == http.StatusServiceUnavailable && !isCoded:
		s.deps.Logger.Warn("service unavailable", "method", r.Method, "path", r.URL.Path, "error", err)
		s.writeError(w, r, status, errorResponse{
			Name:    "Unavailable",
			Message: "The service is busy, try again later",
		})
	case !isCoded:
		// Classified errors should always be coded, treat this as a bug.
		s.deps.Logger.Error("uncoded error", "method", r.Method, "path", r.URL.Path, "error", err)
		s.writeError(w, r, http.StatusInternalServerError, errorResponse{Name: "InternalError"})
	default:
		s.writeError(w, r, status, errorResponse{
			Name:    coded.Code,
			Message: coded.Message,
			Fields:  fieldMessages(err),
		})
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, res errorResponse) {
	err := writeJSON(w, status, res)
	if err != nil {
		s.deps.Logger.Error("failed to write error response", "method", r.Method, "path", r.URL.Path, "error", err)
	}
}

// fieldMessages returns the messages of the keyed errors in an InvalidInput error.
func fieldMessages(err error) map[string]string {
	var invalid errorz.InvalidInput
	if !errors.As(err, &invalid) {
		return nil
	}

	return invalid.Fields()
}
