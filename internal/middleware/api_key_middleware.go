package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// APIKeyHeader is the header carrying the shared deployment secret.
const APIKeyHeader = "X-API-Key"

// APIKeyRequired is a Fiber middleware gating every route behind the shared
// API key. It fails closed: a missing or mismatched key terminates the
// request before any downstream guard or handler runs.
func APIKeyRequired(apiKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provided := c.Get(APIKeyHeader)
		if provided == "" || provided != apiKey {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}
