// handlers/agent_routes.go
package handlers

import (
	"errors"

	"waste-rewards-system/middleware"
	"waste-rewards-system/security"
	"waste-rewards-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type serviceAreasRequest struct {
	Areas []services.ServiceAreaInput `json:"areas"`
}

type rateRequest struct {
	Stars int `json:"stars"`
}

func agentErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrAgentProfileNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "agent profile not found"})
	case errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "agent not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "agent operation failed", "cause": err.Error(),
		})
	}
}

func SetupAgentRoutes(app *fiber.App, agentService *services.AgentService, secret []byte, revoker security.Revoker, db *gorm.DB) {
	// The /agents prefix carries two distinct auth schemes: session auth for the
	// agent-facing routes and the static admin header for the approval workflow.
	// Middleware is attached per route, not on the group — group middleware would
	// run on every /agents/* request and each scheme would reject the other's.
	agents := app.Group("/agents")
	userCtx := middleware.UserContextMiddleware(secret, revoker, db)
	adminCtx := middleware.AdminAuthMiddleware()

	agents.Get("/profile", userCtx, func(c *fiber.Ctx) error {
		account := middleware.AccountFromCtx(c)
		profile, err := agentService.Profile(c.Context(), account.ID)
		if err != nil {
			return agentErrorResponse(c, err)
		}
		return c.JSON(profile)
	})

	agents.Put("/profile", userCtx, func(c *fiber.Ctx) error {
		account := middleware.AccountFromCtx(c)

		var req services.ProfileInput
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		profile, err := agentService.UpdateProfile(c.Context(), account.ID, req)
		if err != nil {
			return agentErrorResponse(c, err)
		}
		return c.JSON(profile)
	})

	agents.Put("/service-areas", userCtx, func(c *fiber.Ctx) error {
		account := middleware.AccountFromCtx(c)

		var req serviceAreasRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		profile, err := agentService.ReplaceServiceAreas(c.Context(), account.ID, req.Areas)
		if err != nil {
			return agentErrorResponse(c, err)
		}
		return c.JSON(profile)
	})

	agents.Post("/documents", userCtx, func(c *fiber.Ctx) error {
		account := middleware.AccountFromCtx(c)

		file, err := c.FormFile("document")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "document file is required"})
		}
		kind := c.FormValue("kind", "identity")

		doc, err := agentService.UploadDocument(c.Context(), account.ID, kind, file)
		if err != nil {
			return agentErrorResponse(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	})

	// Any authenticated user may rate an agent after a pickup.
	agents.Post("/:id/rate", userCtx, func(c *fiber.Ctx) error {
		var req rateRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		profile, err := agentService.Rate(c.Context(), c.Params("id"), req.Stars)
		if err != nil {
			return agentErrorResponse(c, err)
		}
		return c.JSON(profile)
	})

	// Approval workflow is admin-only, keyed by the static admin header.
	agents.Get("/pending", adminCtx, func(c *fiber.Ctx) error {
		accounts, err := agentService.PendingAgents(c.Context())
		if err != nil {
			return agentErrorResponse(c, err)
		}
		return c.JSON(fiber.Map{"agents": accounts})
	})

	agents.Put("/:id/approve", adminCtx, func(c *fiber.Ctx) error {
		account, err := agentService.Decide(c.Context(), c.Params("id"), true)
		if err != nil {
			return agentErrorResponse(c, err)
		}
		return c.JSON(account)
	})

	agents.Put("/:id/reject", adminCtx, func(c *fiber.Ctx) error {
		account, err := agentService.Decide(c.Context(), c.Params("id"), false)
		if err != nil {
			return agentErrorResponse(c, err)
		}
		return c.JSON(account)
	})
}
