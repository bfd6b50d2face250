package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/repository"
	"github.com/spec-kit/crm-helpdesk/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated agent.
type Principal struct {
	Agent *domain.Agent
}

// AuthMiddleware validates bearer tokens and loads the agent.
type AuthMiddleware struct {
	tokens *TokenManager
	agents repository.AgentRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, agents repository.AgentRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, agents: agents}
}

// Handle enforces authentication for protected routes. Only approved agents pass.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return errorutil.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return errorutil.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return errorutil.NewUnauthorized("invalid token")
	}

	agent, err := m.agents.GetByID(c.UserContext(), claims.AgentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errorutil.NewUnauthorized("agent not found")
		}
		return errorutil.ToDomainError(err)
	}
	if agent.Status != domain.AgentStatusApproved {
		return errorutil.NewForbidden("agent not approved")
	}

	c.Locals(principalKey, &Principal{Agent: agent})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok && principal.Agent != nil
}
