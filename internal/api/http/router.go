package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/ticketflow/internal/api/http/handlers"
	"github.com/opsdesk/ticketflow/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Assignments    *handlers.AssignmentsHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)
	app.Get("/auth/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	tickets := app.Group("/tickets/:id", cfg.AuthMiddleware.Handle)
	tickets.Post("/assign", auth.RequireAssigner(), cfg.Assignments.Assign)
	tickets.Post("/auto-assign", auth.RequireAssigner(), cfg.Assignments.AutoAssign)
	tickets.Post("/reassign", auth.RequireAssigner(), cfg.Assignments.Reassign)
	tickets.Post("/escalate", auth.RequireAssigner(), cfg.Assignments.Escalate)
	tickets.Post("/complete", auth.RequireAuthenticated(), cfg.Assignments.Complete)
	tickets.Get("/assignment", auth.RequireAuthenticated(), cfg.Assignments.GetCurrent)
	tickets.Get("/assignments", auth.RequireAuthenticated(), cfg.Assignments.History)
	tickets.Get("/escalations", auth.RequireAuthenticated(), cfg.Assignments.Escalations)
	tickets.Get("/escalations/last", auth.RequireAuthenticated(), cfg.Assignments.LastEscalation)

	app.Get("/users/:id/assignments", cfg.AuthMiddleware.Handle, auth.RequireAssigner(), cfg.Users.Workload)
	app.Get("/notifications", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Users.Notifications)
}
