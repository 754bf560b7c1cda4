package http

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mactrac-proxy/internal/config"
	"github.com/mactrac-proxy/internal/transport/http/handler"
	appmiddleware "github.com/mactrac-proxy/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authH := handler.NewAuthHandler(deps.Auth)
	completionH := handler.NewCompletionHandler(deps.Completion)
	healthH := handler.NewHealthHandler(cfg.ServiceName, func() []string { return listRoutes(r) })

	// Mounted under /auth and /api/auth with one contract.
	authRoutes := func(r chi.Router) {
		r.Post("/request-code", authH.RequestCode)
		r.Post("/verify-code", authH.VerifyCode)
		r.With(appmiddleware.Auth(deps.Auth)).Get("/session", authH.Session)
	}

	r.Get("/", healthH.Root)
	r.Get("/health", healthH.Health)
	r.Route("/auth", authRoutes)
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", authRoutes)
		r.Post("/chat-completions", completionH.Create)
	})

	return r
}

// listRoutes returns "METHOD /path" for every registered route, sorted by path.
func listRoutes(r chi.Routes) []string {
	var out []string
	_ = chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		out = append(out, method+" "+route)
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		pi, pj := pathOf(out[i]), pathOf(out[j])
		if pi != pj {
			return pi < pj
		}
		return out[i] < out[j]
	})
	return out
}

func pathOf(route string) string {
	_, path, _ := strings.Cut(route, " ")
	return path
}
