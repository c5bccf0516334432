package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-image-playground/internal/handler"
	"go-image-playground/internal/middleware"
	"go-image-playground/internal/web"
)

// Handlers carries the wired request handlers for route registration.
type Handlers struct {
	Auth     *handler.AuthHandler
	Template *handler.TemplateHandler
	Edit     *handler.EditHandler
	Pages    *web.Pages
}

// New assembles the router with the full middleware chain. The session gate
// runs last so its redirects and 401s are still logged and counted.
func New(h Handlers, gate *middleware.SessionGate, corsOrigins []string) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(corsOrigins))
	r.Use(gate.Handler)

	r.Get("/api/health", handler.Health)
	r.Post("/api/auth/login", h.Auth.Login)
	r.Post("/api/auth/logout", h.Auth.Logout)
	r.Get("/api/templates", h.Template.List)
	r.Get("/api/templates/{name}", h.Template.Get)
	r.Post("/api/image-edit", h.Edit.Edit)

	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/static/*", web.StaticHandler())

	r.Get("/", h.Pages.Home)
	r.Get("/playground", h.Pages.Playground)
	r.Get("/about", h.Pages.About)
	r.Get("/settings", h.Pages.Settings)
	r.Get("/login", h.Pages.Login)

	return r
}
