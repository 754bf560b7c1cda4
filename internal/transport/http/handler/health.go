package handler

import (
	"net/http"
)

// HealthHandler serves liveness and service-discovery endpoints.
type HealthHandler struct {
	service string
	routes  func() []string
}

// NewHealthHandler takes routes as a func so the list reflects the finished router.
func NewHealthHandler(service string, routes func() []string) *HealthHandler {
	return &HealthHandler{service: service, routes: routes}
}

func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, MessageEnvelope{OK: true})
}

func (h *HealthHandler) Root(w http.ResponseWriter, _ *http.Request) {
	var routes []string
	if h.routes != nil {
		routes = h.routes()
	}
	writeJSON(w, http.StatusOK, ServiceEnvelope{OK: true, Service: h.service, Routes: routes})
}
