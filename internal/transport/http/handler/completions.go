package handler

import (
	"io"
	"net/http"

	"github.com/mactrac-proxy/internal/application/completion"
)

const maxCompletionBody = 1 << 20

// CompletionHandler relays chat-completion requests upstream.
type CompletionHandler struct {
	svc completion.Service
}

func NewCompletionHandler(svc completion.Service) *CompletionHandler {
	return &CompletionHandler{svc: svc}
}

// Create writes the upstream body verbatim on success.
func (h *CompletionHandler) Create(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCompletionBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := h.svc.Complete(r.Context(), raw)
	if err != nil {
		httpError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}
