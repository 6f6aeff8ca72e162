// middleware/admin.go
package middleware

import (
	"crypto/subtle"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
)

// AdminAuthMiddleware validates the static shared-secret header on admin
// routes. Admin access is deliberately not session auth.
func AdminAuthMiddleware() fiber.Handler {
	expectedKey := os.Getenv("ADMIN_API_KEY")
	if expectedKey == "" {
		log.Fatal("❌ ADMIN_API_KEY is not set — admin routes cannot be protected")
	}

	return func(c *fiber.Ctx) error {
		key := c.Get("X-Admin-Key")
		if key == "" {
			log.Printf("🚫 [ADMIN_AUTH] Missing X-Admin-Key header for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "admin key missing",
			})
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(expectedKey)) != 1 {
			log.Printf("❌ [ADMIN_AUTH] Invalid admin key for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid admin key",
			})
		}

		return c.Next()
	}
}
