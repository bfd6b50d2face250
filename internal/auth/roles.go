package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/pkg/util/errorutil"
)

// RequireRole ensures the agent has one of the allowed roles.
func RequireRole(allowed ...domain.AgentRole) fiber.Handler {
	allowedSet := make(map[domain.AgentRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return errorutil.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Agent.Role]; !exists {
			return errorutil.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
