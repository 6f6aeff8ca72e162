// middleware/auth.go
package middleware

import (
	"log"

	"waste-rewards-system/models"
	"waste-rewards-system/security"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// UserContextMiddleware validates the bearer token, rejects revoked sessions
// and attaches the account to the request context.
func UserContextMiddleware(secret []byte, revoker security.Revoker, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := security.ExtractBearer(c.Get("Authorization"))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing bearer token",
			})
		}

		claims, err := security.ParseToken(token, secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired token",
			})
		}

		// Revoked-session check: a compensated registration or account switch
		// tears down every token issued before the cut-off.
		if claims.IssuedAt != nil {
			revoked, err := revoker.IsRevoked(c.Context(), claims.Subject, claims.IssuedAt.Time)
			if err != nil {
				log.Printf("❌ [USER_CTX] revocation check failed for %s: %v", claims.Subject, err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "session validation failed",
				})
			}
			if revoked {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "session has been revoked",
				})
			}
		}

		var account models.Account
		if err := db.First(&account, "id = ?", claims.Subject).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "account no longer exists",
			})
		}

		c.Locals("account", &account)
		c.Locals("user_id", account.ID)
		c.Locals("user_role", string(account.Role))

		return c.Next()
	}
}

// AccountFromCtx pulls the authenticated account set by UserContextMiddleware.
func AccountFromCtx(c *fiber.Ctx) *models.Account {
	account, _ := c.Locals("account").(*models.Account)
	return account
}

// RequireApprovedAgent gates handlers that only approved agents may call.
func RequireApprovedAgent() fiber.Handler {
	return func(c *fiber.Ctx) error {
		account := AccountFromCtx(c)
		if account == nil || !account.IsApprovedAgent() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "approved agent role required",
			})
		}
		return c.Next()
	}
}
