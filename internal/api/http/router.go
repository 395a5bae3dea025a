package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/AhmadRadith/jycc-sub001/internal/api/http/handlers"
	"github.com/AhmadRadith/jycc-sub001/internal/auth"
	"github.com/AhmadRadith/jycc-sub001/internal/policy"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
	RBAC           *policy.RBAC
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	can := func(op policy.Operation) fiber.Handler {
		return auth.RequireOperation(cfg.RBAC, op)
	}

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Get("/", can(policy.OpList), cfg.Tickets.ListTickets)
	tickets.Post("/", can(policy.OpCreate), cfg.Tickets.CreateTicket)
	tickets.Get("/:id", can(policy.OpRead), cfg.Tickets.GetTicket)
	tickets.Patch("/:id", can(policy.OpPatch), cfg.Tickets.PatchTicket)
	tickets.Post("/:id/comments", can(policy.OpComment), cfg.Tickets.AddComment)
	tickets.Post("/:id/escalate", can(policy.OpEscalate), cfg.Tickets.Escalate)
	tickets.Post("/:id/transitions", can(policy.OpTransition), cfg.Tickets.Transition)
	tickets.Post("/:id/student-reports", can(policy.OpStudentReport), cfg.Tickets.AttachStudentReport)
	tickets.Get("/:id/advisory", can(policy.OpAdvisory), cfg.Tickets.Advisory)
	tickets.Post("/:id/advisory/ai", can(policy.OpAdvisory), cfg.Tickets.GenerateAdvisory)
}
