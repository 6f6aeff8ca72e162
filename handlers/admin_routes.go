// handlers/admin_routes.go
package handlers

import (
	"waste-rewards-system/middleware"
	"waste-rewards-system/models"
	"waste-rewards-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type settingsRequest struct {
	Settings map[string]string `json:"settings"`
}

func SetupAdminRoutes(app *fiber.App, db *gorm.DB, authService *services.AuthService) {
	admin := app.Group("/admin", middleware.AdminAuthMiddleware())

	admin.Get("/dashboard-stats", func(c *fiber.Ctx) error {
		var (
			totalUsers    int64
			totalAgents   int64
			pendingAgents int64
			divergent     int64
			totalReports  int64
			processed     int64
		)
		db.Model(&models.Account{}).Count(&totalUsers)
		db.Model(&models.Account{}).Where("role = ?", models.RoleAgent).Count(&totalAgents)
		db.Model(&models.Account{}).Where("role = ? AND agent_status = ?", models.RoleAgent, models.AgentPending).Count(&pendingAgents)
		db.Model(&models.Account{}).Where("chain_status = ?", models.ChainStatusPending).Count(&divergent)
		db.Model(&models.WasteReport{}).Count(&totalReports)
		db.Model(&models.WasteReport{}).Where("status = ?", models.StatusProcessed).Count(&processed)

		return c.JSON(fiber.Map{
			"total_users":       totalUsers,
			"total_agents":      totalAgents,
			"pending_agents":    pendingAgents,
			"chain_divergent":   divergent,
			"total_reports":     totalReports,
			"processed_reports": processed,
		})
	})

	admin.Get("/users", func(c *fiber.Ctx) error {
		var accounts []models.Account
		query := db.Model(&models.Account{}).Order("created_at DESC").Limit(200)
		if role := c.Query("role"); role != "" {
			query = query.Where("role = ?", role)
		}
		if err := query.Find(&accounts).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list users", "cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"users": accounts})
	})

	admin.Delete("/users/:id", func(c *fiber.Ctx) error {
		if err := authService.DeleteAccount(c.Context(), c.Params("id")); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to delete account", "cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"message": "account deleted"})
	})

	admin.Get("/settings", func(c *fiber.Ctx) error {
		var settings []models.PlatformSetting
		if err := db.Order("key ASC").Find(&settings).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load settings", "cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"settings": settings})
	})

	admin.Put("/settings", func(c *fiber.Ctx) error {
		var req settingsRequest
		if err := c.BodyParser(&req); err != nil || len(req.Settings) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "settings map is required"})
		}

		for key, value := range req.Settings {
			setting := models.PlatformSetting{Key: key, Value: value}
			err := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&setting).Error
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to save setting", "cause": err.Error(),
				})
			}
		}
		return c.JSON(fiber.Map{"message": "settings updated"})
	})
}
