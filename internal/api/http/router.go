package http

import (
	nethttp "net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/service-ticket/internal/api/http/handlers"
	"github.com/spec-kit/service-ticket/internal/auth"
	"github.com/spec-kit/service-ticket/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	CSV            *handlers.CSVHandler
	AuthMiddleware *auth.AuthMiddleware
	// Metrics is served at /metrics when set.
	Metrics nethttp.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Users.Me)

	managerOnly := auth.RequireRole(domain.UserRoleManager)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/transitions", cfg.Tickets.Transitions)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", managerOnly, cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/approve", managerOnly, cfg.Tickets.ApproveTicket)
	tickets.Get("/:id/history", cfg.Tickets.TicketHistory)

	csv := app.Group("/csv", cfg.AuthMiddleware.Handle)
	csv.Post("/export", cfg.CSV.Export)
	csv.Get("/download/:fileName", cfg.CSV.Download)
	csv.Post("/import", managerOnly, cfg.CSV.Import)
	csv.Post("/schedule-automated-processing", managerOnly, cfg.CSV.ScheduleAutomation)
	csv.Post("/process-automated-updates", managerOnly, cfg.CSV.ProcessAutomation)
}
