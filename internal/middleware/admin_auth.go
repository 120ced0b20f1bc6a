package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// RequireAdminKey guards the admin API with a shared X-Admin-Key header.
// An empty key leaves the API open (local development).
func RequireAdminKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return c.Next()
		}
		if subtle.ConstantTimeCompare([]byte(c.Get("X-Admin-Key")), []byte(key)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}
