// handlers/public_routes.go
package handlers

import (
	"pvp-card-service/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SetupPublicRoutes registers channel views and the leaderboard. They need
// the service token but no acting player.
func SetupPublicRoutes(app *fiber.App, challenges *services.ChallengeService, leaderboard *services.LeaderboardService, stream *services.ResultStream, logger *zap.Logger) {
	app.Get("/channels/:channelID/challenge", func(c *fiber.Ctx) error {
		channelID, err := c.ParamsInt("channelID")
		if err != nil {
			return badRequest(c, "invalid_channel")
		}
		session, err := challenges.ActiveSessionForChannel(c.UserContext(), int64(channelID))
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(session)
	})

	app.Get("/channels/:channelID/results/stream", func(c *fiber.Ctx) error {
		channelID, err := c.ParamsInt("channelID")
		if err != nil {
			return badRequest(c, "invalid_channel")
		}
		return stream.Stream(c, int64(channelID))
	})

	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		tf, err := services.ParseTimeframe(c.Query("timeframe"))
		if err != nil {
			return badRequest(c, "invalid_timeframe")
		}
		channelID := int64(c.QueryInt("channel_id", 0))
		entries, err := leaderboard.Top(c.UserContext(), tf, channelID, c.QueryInt("limit", 10))
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(fiber.Map{
			"timeframe": tf,
			"entries":   entries,
		})
	})
}
