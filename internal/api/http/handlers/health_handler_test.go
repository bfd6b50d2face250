package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/crm-helpdesk/internal/api/http/handlers"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type stubMonitor struct{ running bool }

func (m *stubMonitor) Start() bool     { m.running = true; return true }
func (m *stubMonitor) Stop()           { m.running = false }
func (m *stubMonitor) IsRunning() bool { return m.running }

func TestHealthReady(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	app := fiber.New()
	healthy := handlers.NewHealthHandler("crm", "test", nil, handlers.HealthCheck{Name: "postgres", Pinger: ok})
	broken := handlers.NewHealthHandler("crm", "test", nil,
		handlers.HealthCheck{Name: "postgres", Pinger: ok},
		handlers.HealthCheck{Name: "redis", Pinger: down},
	)
	app.Get("/ok", healthy.Ready)
	app.Get("/broken", broken.Ready)

	status, body := doJSON(t, app, http.MethodGet, "/ok", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	status, body = doJSON(t, app, http.MethodGet, "/broken", "")
	require.Equal(t, http.StatusServiceUnavailable, status)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "ok", details["postgres"])
	assert.Equal(t, "connection refused", details["redis"])
}

func TestHealthLiveReportsMonitor(t *testing.T) {
	monitor := &stubMonitor{running: true}
	app := fiber.New()
	app.Get("/live", handlers.NewHealthHandler("crm", "test", monitor).Live)

	status, body := doJSON(t, app, http.MethodGet, "/live", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["mailbox_monitor"])
	assert.Equal(t, "crm", body["service"])
}
