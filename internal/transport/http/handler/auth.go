package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mactrac-proxy/internal/application/auth"
	"github.com/mactrac-proxy/internal/domain"
	"github.com/mactrac-proxy/internal/transport/http/middleware"
)

// AuthHandler serves the email-code sign-in endpoints.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req auth.RequestCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	issue, err := h.svc.RequestCode(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RequestCodeEnvelope{
		OK:   true,
		Sent: issue.Delivery == domain.DeliveryDelivered,
	})
}

func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.VerifyCode(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyCodeEnvelope{
		OK:        true,
		Token:     res.Token,
		Email:     res.Email,
		ExpiresIn: int64(res.ExpiresIn.Seconds()),
	})
}

// Session reports the session behind the bearer token. Requires middleware.Auth.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{OK: true, Email: sess.Email, ExpiresAt: sess.ExpiresAt})
}
