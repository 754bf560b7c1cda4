package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mactrac-proxy/internal/domain"
	"github.com/mactrac-proxy/internal/infrastructure/openai"
)

// httpError maps a service error to its status code and envelope, logging it first.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	var se *openai.StatusError
	switch {
	case errors.As(err, &se):
		slog.WarnContext(r.Context(), "upstream error", "path", r.URL.Path, "upstream_status", se.Status)
		writeJSON(w, http.StatusBadGateway, UpstreamErrorEnvelope{
			Error:          "Upstream error",
			UpstreamStatus: se.Status,
			Text:           se.Text,
		})
	case errors.Is(err, openai.ErrNetwork):
		slog.ErrorContext(r.Context(), "upstream unreachable", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusBadGateway, "Upstream network error: "+cause(err, openai.ErrNetwork))
	case errors.Is(err, domain.ErrBadRequest):
		slog.WarnContext(r.Context(), "bad request", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusBadRequest, reason(err, domain.ErrBadRequest))
	case errors.Is(err, domain.ErrUnauthorized):
		slog.WarnContext(r.Context(), "unauthorized", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusUnauthorized, reason(err, domain.ErrUnauthorized))
	case errors.Is(err, domain.ErrDeliveryFailed):
		slog.ErrorContext(r.Context(), "code delivery failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "Email send failed: "+cause(err, domain.ErrDeliveryFailed))
	default:
		slog.ErrorContext(r.Context(), "internal error", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// reason drops the trailing category sentinel so clients get the human part only.
func reason(err, category error) string {
	return strings.TrimSuffix(err.Error(), ": "+category.Error())
}

// cause drops the leading sentinel from errors built as fmt.Errorf("%w: %v", sentinel, cause).
func cause(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}
