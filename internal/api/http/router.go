package http

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fxp-labs/support-bridge/internal/api/http/handlers"
	"github.com/fxp-labs/support-bridge/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Control        *handlers.ControlHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Post("/auth/login", cfg.Auth.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/tickets", cfg.Tickets.ListTickets)
	protected.Get("/tickets/:id", cfg.Tickets.GetTicket)
	protected.Post("/tickets/:id/reply", cfg.Tickets.Reply)
	protected.Post("/tickets/:id/status", cfg.Tickets.UpdateStatus)

	protected.Post("/control/pause", cfg.Control.Pause)
	protected.Post("/control/resume", cfg.Control.Resume)
	protected.Get("/control/status", cfg.Control.Status)
	protected.Post("/queue/outgoing", cfg.Control.PushOutgoing)
}
