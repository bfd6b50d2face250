package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/crm-helpdesk/internal/api/http"
	"github.com/spec-kit/crm-helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/service"
)

type memCustomers struct {
	mu    sync.Mutex
	seq   int64
	items map[int64]domain.Customer
}

func newMemCustomers() *memCustomers {
	return &memCustomers{items: map[int64]domain.Customer{}}
}

func (m *memCustomers) Create(_ context.Context, c *domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	c.ID = m.seq
	m.items[c.ID] = *c
	return nil
}

func (m *memCustomers) Update(_ context.Context, c *domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[c.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.items[c.ID] = *c
	return nil
}

func (m *memCustomers) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func (m *memCustomers) GetByID(_ context.Context, id int64) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

func (m *memCustomers) GetByEmail(_ context.Context, email string) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.items {
		if strings.EqualFold(c.Email, email) {
			c := c
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memCustomers) List(_ context.Context, limit, offset int) ([]domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Customer, 0, len(m.items))
	for id := int64(1); id <= m.seq; id++ {
		if c, ok := m.items[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func newCustomersApp(repo *memCustomers) *fiber.App {
	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	h := handlers.NewCustomersHandler(service.NewCustomerService(repo))
	app.Get("/api/customers", h.List)
	app.Post("/api/customers", h.Create)
	app.Put("/api/customers/:id", h.Update)
	app.Delete("/api/customers/:id", h.Delete)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestCustomersCreateAndList(t *testing.T) {
	app := newCustomersApp(newMemCustomers())

	status, body := doJSON(t, app, http.MethodPost, "/api/customers",
		`{"name":"Mario Rossi","email":"mario@example.it","company":"Rossi Srl"}`)
	require.Equal(t, http.StatusCreated, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "mario@example.it", data["email"])
	assert.Equal(t, "Active", data["status"])

	status, body = doJSON(t, app, http.MethodGet, "/api/customers", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)
}

func TestCustomersValidationEnvelope(t *testing.T) {
	app := newCustomersApp(newMemCustomers())

	status, body := doJSON(t, app, http.MethodPost, "/api/customers", `{"name":"Senza email"}`)
	require.Equal(t, http.StatusBadRequest, status)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_FAILED", errBody["code"])
}

func TestCustomersUpdateMissingIsNotFound(t *testing.T) {
	app := newCustomersApp(newMemCustomers())

	status, body := doJSON(t, app, http.MethodPut, "/api/customers/42", `{"name":"X","email":"x@example.it"}`)
	require.Equal(t, http.StatusNotFound, status)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", errBody["code"])
	assert.Equal(t, "customer not found", errBody["message"])
}

func TestCustomersDelete(t *testing.T) {
	repo := newMemCustomers()
	app := newCustomersApp(repo)
	require.NoError(t, repo.Create(context.Background(), &domain.Customer{Name: "A", Email: "a@example.it"}))

	status, _ := doJSON(t, app, http.MethodDelete, "/api/customers/1", "")
	assert.Equal(t, http.StatusNoContent, status)

	status, body := doJSON(t, app, http.MethodDelete, "/api/customers/abc", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])
}
