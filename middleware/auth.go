package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware attaches the gateway-provided user id, if any, to the
// request context. Authentication policy itself lives upstream; handlers fall
// back to this id when a request body omits user_id.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID := c.Get("X-User-ID"); userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	}
}
