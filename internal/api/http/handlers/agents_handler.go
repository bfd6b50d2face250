package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-helpdesk/internal/api/dto"
	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/service"
	"github.com/spec-kit/crm-helpdesk/pkg/util/errorutil"
)

// AgentsHandler exposes registration, login and approval for agents.
type AgentsHandler struct {
	auth *service.AuthService
}

// NewAgentsHandler constructs handler.
func NewAgentsHandler(authService *service.AuthService) *AgentsHandler {
	return &AgentsHandler{auth: authService}
}

// Register handles POST /auth/agents/register.
func (h *AgentsHandler) Register(c *fiber.Ctx) error {
	var req dto.AgentRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		return errorutil.NewValidationError("full_name, email, password required", nil)
	}

	agent, err := h.auth.RegisterAgent(c.UserContext(), req.FullName, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": agentResponse(agent)})
}

// Login handles POST /auth/agents/login.
func (h *AgentsHandler) Login(c *fiber.Ctx) error {
	var req dto.AgentLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return errorutil.NewValidationError("email and password required", nil)
	}

	agent, token, exp, err := h.auth.LoginAgent(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"agent": agentResponse(agent),
			"auth":  dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Me handles GET /api/agents/me.
func (h *AgentsHandler) Me(c *fiber.Ctx) error {
	agent := currentAgent(c)
	if agent == nil {
		return errorutil.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": agentResponse(agent)})
}

// List handles GET /api/agents.
func (h *AgentsHandler) List(c *fiber.Ctx) error {
	var status *domain.AgentStatus
	if s := strings.TrimSpace(c.Query("status")); s != "" {
		st := domain.AgentStatus(s)
		status = &st
	}
	agents, err := h.auth.ListAgents(c.UserContext(), status)
	if err != nil {
		return err
	}
	resp := make([]dto.AgentResponse, 0, len(agents))
	for i := range agents {
		resp = append(resp, agentResponse(&agents[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Approve handles POST /api/agents/:id/approve.
func (h *AgentsHandler) Approve(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req dto.AgentApproveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorutil.NewValidationError("invalid payload", nil)
		}
	}
	if req.Role == "" {
		req.Role = domain.AgentRoleAgent
	}
	agent, err := h.auth.ApproveAgent(c.UserContext(), id, req.Role)
	if err != nil {
		return notFoundAs(err, "agent")
	}
	return c.JSON(fiber.Map{"data": agentResponse(agent)})
}

// Reject handles POST /api/agents/:id/reject.
func (h *AgentsHandler) Reject(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	actor := currentAgent(c)
	if actor == nil {
		return errorutil.NewUnauthorized("authentication required")
	}
	agent, err := h.auth.RejectAgent(c.UserContext(), id, actor.ID)
	if err != nil {
		return notFoundAs(err, "agent")
	}
	return c.JSON(fiber.Map{"data": agentResponse(agent)})
}

func agentResponse(agent *domain.Agent) dto.AgentResponse {
	return dto.AgentResponse{
		ID:        agent.ID,
		FullName:  agent.FullName,
		Email:     agent.Email,
		Role:      agent.Role,
		Status:    agent.Status,
		CreatedAt: agent.CreatedAt,
	}
}
