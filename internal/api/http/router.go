package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/jobticket-service/internal/api/http/handlers"
	"github.com/spec-kit/jobticket-service/internal/auth"
	"github.com/spec-kit/jobticket-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Queue          *handlers.QueueHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/operators/login", cfg.Auth.Login)

	operator := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireOperator()}

	tickets := app.Group("/tickets", operator...)
	tickets.Get("/", cfg.Tickets.List)
	tickets.Post("/", cfg.Tickets.Admit)
	tickets.Get("/number/:number", cfg.Tickets.GetByNumber)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Get("/:id/printers", cfg.Tickets.Printers)
	tickets.Post("/:id/print", cfg.Tickets.Print)
	tickets.Post("/:id/retry", cfg.Tickets.Retry)
	tickets.Post("/:id/settle", cfg.Tickets.Settle)
	tickets.Post("/:id/cancel", cfg.Tickets.Cancel)
	tickets.Post("/:id/amend", cfg.Tickets.Amend)

	app.Group("/archive", operator...).Post("/:id/reopen", cfg.Tickets.Reopen)
	app.Group("/queue", operator...).Get("/stats", cfg.Queue.Stats)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.OperatorRoleAdmin))
	admin.Post("/operators", cfg.Auth.CreateOperator)
	admin.Get("/metrics", cfg.Queue.Metrics)

	backend := app.Group("/backend", cfg.AuthMiddleware.Handle, auth.RequireBackend())
	backend.Post("/jobs/:printOutId/state", cfg.Queue.JobState)
}
