// handlers/user_routes.go
package handlers

import (
	"errors"
	"strconv"

	"waste-rewards-system/middleware"
	"waste-rewards-system/models"
	"waste-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

type updateProfileRequest struct {
	Username      string `json:"username"`
	WalletAddress string `json:"walletAddress"`
}

func SetupUserRoutes(app *fiber.App, authService *services.AuthService, wasteService *services.WasteService, notificationService *services.NotificationService) {
	users := app.Group("/users", middleware.UserContextMiddleware(authService.Secret, authService.Revoker, authService.DB))

	users.Get("/profile", func(c *fiber.Ctx) error {
		return c.JSON(middleware.AccountFromCtx(c))
	})

	users.Put("/profile", func(c *fiber.Ctx) error {
		account := middleware.AccountFromCtx(c)

		var req updateProfileRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		if req.Username != "" {
			account.Username = req.Username
			if err := authService.DB.WithContext(c.Context()).Save(account).Error; err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to update profile", "cause": err.Error(),
				})
			}
		}
		if req.WalletAddress != "" {
			updated, err := authService.BindWallet(c.Context(), account.ID, req.WalletAddress)
			if err != nil {
				if errors.Is(err, services.ErrDuplicateWallet) {
					return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
				}
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to bind wallet", "cause": err.Error(),
				})
			}
			account = updated
		}
		return c.JSON(account)
	})

	users.Get("/waste-reports", func(c *fiber.Ctx) error {
		account := middleware.AccountFromCtx(c)
		limit, _ := strconv.Atoi(c.Query("limit"))
		reports, err := wasteService.List(c.Context(), account.ID, models.ReportStatus(c.Query("status")), limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list reports", "cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"reports": reports})
	})

	users.Get("/statistics", func(c *fiber.Ctx) error {
		account := middleware.AccountFromCtx(c)
		stats, err := wasteService.Statistics(c.Context(), account)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to compute statistics", "cause": err.Error(),
			})
		}
		return c.JSON(stats)
	})

	users.Get("/notifications", func(c *fiber.Ctx) error {
		account := middleware.AccountFromCtx(c)
		limit, _ := strconv.Atoi(c.Query("limit"))
		unreadOnly := c.Query("unread") == "true"
		notifications, err := notificationService.List(c.Context(), account.ID, unreadOnly, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list notifications", "cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"notifications": notifications})
	})

	users.Put("/notifications/:id/read", func(c *fiber.Ctx) error {
		account := middleware.AccountFromCtx(c)
		if err := notificationService.MarkRead(c.Context(), account.ID, c.Params("id")); err != nil {
			if errors.Is(err, services.ErrNotificationNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "notification not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to mark notification", "cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"message": "marked as read"})
	})

	users.Delete("/notifications/:id", func(c *fiber.Ctx) error {
		account := middleware.AccountFromCtx(c)
		if err := notificationService.Delete(c.Context(), account.ID, c.Params("id")); err != nil {
			if errors.Is(err, services.ErrNotificationNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "notification not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to delete notification", "cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"message": "notification deleted"})
	})
}
