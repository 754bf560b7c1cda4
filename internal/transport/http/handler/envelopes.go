package handler

import (
	"net/http"

	"github.com/mactrac-proxy/internal/transport/http/respond"
)

// MessageEnvelope is the generic success wrapper. Errors use respond.ErrorBody.
type MessageEnvelope struct {
	OK      bool   `json:"ok,omitempty"`
	Message string `json:"message,omitempty"`
}

// RequestCodeEnvelope answers POST /auth/request-code. The code itself is never echoed.
type RequestCodeEnvelope struct {
	OK   bool `json:"ok"`
	Sent bool `json:"sent"`
}

// VerifyCodeEnvelope answers POST /auth/verify-code.
type VerifyCodeEnvelope struct {
	OK        bool   `json:"ok"`
	Token     string `json:"token"`
	Email     string `json:"email"`
	ExpiresIn int64  `json:"expires_in"` // seconds
}

// SessionEnvelope answers GET /auth/session.
type SessionEnvelope struct {
	OK        bool   `json:"ok"`
	Email     string `json:"email"`
	ExpiresAt int64  `json:"expires_at"`
}

// UpstreamErrorEnvelope carries a failed upstream reply back to the caller.
type UpstreamErrorEnvelope struct {
	Error          string `json:"error"`
	UpstreamStatus int    `json:"upstream_status"`
	Text           string `json:"text"`
}

// ServiceEnvelope answers GET /.
type ServiceEnvelope struct {
	OK      bool     `json:"ok"`
	Service string   `json:"service"`
	Routes  []string `json:"routes"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	respond.JSON(w, status, v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respond.Error(w, status, msg)
}
