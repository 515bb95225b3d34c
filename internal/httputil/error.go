package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/bracket-resolver/internal/bracket"
	"github.com/AdamBeresnev/bracket-resolver/internal/service"
)

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	clientError(w, http.StatusBadRequest, "bad request", msg, err)
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	clientError(w, http.StatusNotFound, "not found", msg, err)
}

func Forbidden(w http.ResponseWriter, msg string, err error) {
	clientError(w, http.StatusForbidden, "forbidden", msg, err)
}

func UnprocessableEntity(w http.ResponseWriter, msg string, err error) {
	clientError(w, http.StatusUnprocessableEntity, "unprocessable entity", msg, err)
}

func clientError(w http.ResponseWriter, status int, kind, msg string, err error) {
	if err != nil {
		slog.Warn(kind, "message", msg, "error", err)
	} else {
		slog.Warn(kind, "message", msg)
	}
	http.Error(w, msg, status)
}

// ServiceError picks the response status for an error returned by the service layer
func ServiceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		Forbidden(w, err.Error(), err)
	case errors.Is(err, service.ErrBracketNotFound), errors.Is(err, service.ErrMatchNotFound):
		NotFound(w, err.Error(), err)
	case errors.Is(err, service.ErrBracketUnusable),
		errors.Is(err, bracket.ErrLayoutParse),
		errors.Is(err, bracket.ErrNoConnections),
		errors.Is(err, bracket.ErrInvalidMatchNumber),
		errors.Is(err, bracket.ErrMatchOutOfOrder):
		UnprocessableEntity(w, err.Error(), err)
	case errors.Is(err, service.ErrInvalidBracketInput),
		errors.Is(err, service.ErrInvalidScore),
		errors.Is(err, service.ErrMatchNotReady):
		BadRequest(w, err.Error(), err)
	default:
		InternalServerError(w, msg, err)
	}
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
