package http

import (
	"github.com/mactrac-proxy/internal/application/auth"
	"github.com/mactrac-proxy/internal/application/completion"
)

// Deps holds the application services the router exposes.
type Deps struct {
	Auth       auth.Service
	Completion completion.Service
}
