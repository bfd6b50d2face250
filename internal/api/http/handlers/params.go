package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-helpdesk/pkg/util/errorutil"
)

func paramID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorutil.NewValidationError("invalid id", map[string]any{"id": c.Params("id")})
	}
	return id, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// notFoundAs names the missing resource in a not-found error.
func notFoundAs(err error, resource string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errorutil.NewNotFound(resource, nil)
	}
	return err
}
