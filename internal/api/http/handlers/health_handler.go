package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck names one readiness dependency.
type HealthCheck struct {
	Name   string
	Pinger Pinger
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	checks      []HealthCheck
	monitor     Monitor
}

// NewHealthHandler returns a new handler instance. monitor may be nil.
func NewHealthHandler(serviceName, version string, monitor Monitor, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, checks: checks, monitor: monitor}
}

// Live reports service liveness and whether the inbox monitor runs.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	}
	if h.monitor != nil {
		resp["mailbox_monitor"] = h.monitor.IsRunning()
	}
	return c.JSON(resp)
}

// Ready pings every dependency. The monitor being stopped does not make the
// service unready.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true
	for _, check := range h.checks {
		if err := check.Pinger.Ping(ctx); err != nil {
			depStatus[check.Name] = err.Error()
			ready = false
			continue
		}
		depStatus[check.Name] = "ok"
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}
