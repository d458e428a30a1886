// handlers/challenge_routes.go
package handlers

import (
	"pvp-card-service/middleware"
	"pvp-card-service/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SetupChallengeRoutes registers the session lifecycle under /s/, where
// every request carries the acting player.
func SetupChallengeRoutes(app *fiber.App, challenges *services.ChallengeService, logger *zap.Logger) {
	secured := app.Group("/s", middleware.ActorContextMiddleware(logger))

	secured.Post("/challenges", func(c *fiber.Ctx) error {
		var body struct {
			ChannelID int64 `json:"channel_id"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid_body")
		}
		session, err := challenges.CreateChallenge(c.UserContext(), middleware.ActorID(c), body.ChannelID)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.Status(fiber.StatusCreated).JSON(session)
	})

	secured.Get("/challenges/:id", func(c *fiber.Ctx) error {
		session, err := challenges.GetSession(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(session)
	})

	secured.Post("/challenges/:id/claim", func(c *fiber.Ctx) error {
		session, err := challenges.ClaimOpponent(c.UserContext(), c.Params("id"), middleware.ActorID(c))
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(session)
	})

	secured.Post("/challenges/:id/card", func(c *fiber.Ctx) error {
		var body struct {
			CardID string `json:"card_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.CardID == "" {
			return badRequest(c, "invalid_body")
		}
		session, err := challenges.SubmitCard(c.UserContext(), c.Params("id"), middleware.ActorID(c), body.CardID)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(session)
	})

	secured.Post("/challenges/:id/stat", func(c *fiber.Ctx) error {
		var body struct {
			Stat string `json:"stat"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid_body")
		}
		outcome, err := challenges.SubmitStat(c.UserContext(), c.Params("id"), middleware.ActorID(c), body.Stat)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(fiber.Map{
			"resolved": outcome != nil,
			"outcome":  outcome,
		})
	})

	secured.Get("/challenges", func(c *fiber.Ctx) error {
		sessions, err := challenges.ActiveSessionsForPlayer(c.UserContext(), middleware.ActorID(c))
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(fiber.Map{"sessions": sessions})
	})
}
