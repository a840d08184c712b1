package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/metalyard/metalyard/internal/shared"
)

// StatusFor maps an error kind onto an HTTP status code.
func StatusFor(kind shared.Kind) int {
	switch kind {
	case shared.KindUnauthorized:
		return http.StatusUnauthorized
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindInvalidInput:
		return http.StatusBadRequest
	case shared.KindConflict, shared.KindInvalidState:
		return http.StatusConflict
	case shared.KindUpstreamFailure:
		return http.StatusBadGateway
	case shared.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to the JSON error body. Errors without a kind are
// reported as internal and their message is not leaked.
func RespondError(w http.ResponseWriter, err error) {
	var e *shared.Error
	if !errors.As(err, &e) {
		Fail(w, http.StatusInternalServerError, shared.KindInternal, "Internal server error", "")
		return
	}
	message := e.Message
	details := e.Details
	if e.Kind == shared.KindInternal {
		message, details = "Internal server error", ""
	}
	Fail(w, StatusFor(e.Kind), e.Kind, message, details)
}

// RespondFailure reports err to the client. Errors that carry no kind are storage or
// programming faults: they are logged and surfaced as upstream failures with message.
func RespondFailure(w http.ResponseWriter, r *http.Request, logger *slog.Logger, message string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch shared.KindOf(err) {
	case shared.KindInternal:
		logger.Error(message, slog.Any("error", err), slog.String("request_id", middleware.GetReqID(r.Context())))
		err = shared.Upstream(message, err)
	case shared.KindUpstreamFailure, shared.KindUnavailable:
		logger.Warn(message, slog.Any("error", err), slog.String("request_id", middleware.GetReqID(r.Context())))
	}
	RespondError(w, err)
}
