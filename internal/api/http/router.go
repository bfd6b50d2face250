package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/crm-helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/crm-helpdesk/internal/auth"
	"github.com/spec-kit/crm-helpdesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Agents         *handlers.AgentsHandler
	Tickets        *handlers.TicketsHandler
	Customers      *handlers.CustomersHandler
	Email          *handlers.EmailHandler
	Stats          *handlers.StatsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics, promhttp.HandlerOpts{})))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/agents/register", cfg.Agents.Register)
	authGroup.Post("/agents/login", cfg.Agents.Login)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	adminOnly := auth.RequireRole(domain.AgentRoleAdmin)
	api.Get("/agents/me", cfg.Agents.Me)
	api.Get("/agents", adminOnly, cfg.Agents.List)
	api.Post("/agents/:id/approve", adminOnly, cfg.Agents.Approve)
	api.Post("/agents/:id/reject", adminOnly, cfg.Agents.Reject)

	api.Get("/stats", cfg.Stats.Summary)

	tickets := api.Group("/tickets")
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Get("/:id/messages", cfg.Tickets.ListMessages)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)

	customers := api.Group("/customers")
	customers.Get("", cfg.Customers.List)
	customers.Post("", cfg.Customers.Create)
	customers.Put("/:id", cfg.Customers.Update)
	customers.Delete("/:id", cfg.Customers.Delete)

	email := api.Group("/email")
	email.Get("/imap", cfg.Email.GetIMAP)
	email.Put("/imap", cfg.Email.SaveIMAP)
	email.Get("/smtp", cfg.Email.GetSMTP)
	email.Put("/smtp", cfg.Email.SaveSMTP)
	email.Post("/test-imap", cfg.Email.TestIMAP)
	email.Post("/test-smtp", cfg.Email.TestSMTP)
	email.Get("/status", cfg.Email.Status)
	email.Get("/templates", cfg.Email.ListTemplates)
	email.Put("/templates", cfg.Email.SaveTemplates)
	email.Post("/check-now", cfg.Email.CheckNow)
	email.Get("/monitor/status", cfg.Email.MonitorStatus)
	email.Post("/monitor/start", cfg.Email.StartMonitor)
	email.Post("/monitor/stop", cfg.Email.StopMonitor)
}
