// handlers/waste_routes.go
package handlers

import (
	"errors"
	"strconv"

	"waste-rewards-system/middleware"
	"waste-rewards-system/models"
	"waste-rewards-system/security"
	"waste-rewards-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func wasteErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrReportNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "report not found"})
	case errors.Is(err, services.ErrTransitionConflict),
		errors.Is(err, models.ErrNotCollectable),
		errors.Is(err, models.ErrNotProcessable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, models.ErrOwnerCollect),
		errors.Is(err, models.ErrNotReportAgent),
		errors.Is(err, models.ErrAgentNotApproved):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "waste operation failed", "cause": err.Error(),
		})
	}
}

func SetupWasteRoutes(app *fiber.App, wasteService *services.WasteService, secret []byte, revoker security.Revoker, db *gorm.DB) {
	waste := app.Group("/waste", middleware.UserContextMiddleware(secret, revoker, db))

	waste.Post("/report", func(c *fiber.Ctx) error {
		account := middleware.AccountFromCtx(c)

		var in services.ReportInput
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		report, mirror, err := wasteService.Report(c.Context(), account, in)
		if err != nil {
			return wasteErrorResponse(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"report": report, "mirror": mirror})
	})

	waste.Get("/reports", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit"))
		reports, err := wasteService.List(c.Context(),
			c.Query("owner_id"),
			models.ReportStatus(c.Query("status")),
			limit,
		)
		if err != nil {
			return wasteErrorResponse(c, err)
		}
		return c.JSON(fiber.Map{"reports": reports})
	})

	waste.Get("/reports/:id", func(c *fiber.Ctx) error {
		report, err := wasteService.Get(c.Context(), c.Params("id"))
		if err != nil {
			return wasteErrorResponse(c, err)
		}
		return c.JSON(report)
	})

	// QR scan lookup used by agents in the field.
	waste.Get("/qrcode/:hash", func(c *fiber.Ctx) error {
		report, err := wasteService.GetByQRHash(c.Context(), c.Params("hash"))
		if err != nil {
			return wasteErrorResponse(c, err)
		}
		return c.JSON(report)
	})

	waste.Post("/collect/:id", middleware.RequireApprovedAgent(), func(c *fiber.Ctx) error {
		account := middleware.AccountFromCtx(c)
		report, mirror, err := wasteService.Collect(c.Context(), account, c.Params("id"))
		if err != nil {
			return wasteErrorResponse(c, err)
		}
		return c.JSON(fiber.Map{"report": report, "mirror": mirror})
	})

	waste.Post("/process/:id", middleware.RequireApprovedAgent(), func(c *fiber.Ctx) error {
		account := middleware.AccountFromCtx(c)
		report, mirror, err := wasteService.Process(c.Context(), account, c.Params("id"))
		if err != nil {
			return wasteErrorResponse(c, err)
		}
		return c.JSON(fiber.Map{"report": report, "mirror": mirror})
	})

	waste.Get("/nearby", middleware.RequireApprovedAgent(), func(c *fiber.Ctx) error {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "lat and lng query params are required"})
		}
		radius, _ := strconv.ParseFloat(c.Query("radius_km"), 64)

		reports, err := wasteService.Nearby(c.Context(), lat, lng, radius)
		if err != nil {
			return wasteErrorResponse(c, err)
		}
		return c.JSON(fiber.Map{"reports": reports})
	})
}
