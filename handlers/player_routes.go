// handlers/player_routes.go
package handlers

import (
	"math"

	"pvp-card-service/middleware"
	"pvp-card-service/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// PlayerDeps groups the services behind the player routes.
type PlayerDeps struct {
	Ledger   *services.LedgerService
	Catalog  *services.CatalogService
	Cooldown *services.CooldownService
	Stats    *services.StatsService
}

func SetupPlayerRoutes(app *fiber.App, deps PlayerDeps, logger *zap.Logger) {
	app.Get("/players/search", func(c *fiber.Ctx) error {
		players, err := deps.Ledger.SearchPlayers(c.UserContext(), c.Query("q"), c.QueryInt("limit", 50))
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(fiber.Map{"players": players})
	})

	secured := app.Group("/s/player", middleware.ActorContextMiddleware(logger))

	secured.Get("/", func(c *fiber.Ctx) error {
		player, err := deps.Ledger.CheckAndResetHearts(c.UserContext(), middleware.ActorID(c))
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(fiber.Map{
			"player":           player,
			"reset_in_seconds": int64(math.Ceil(deps.Ledger.TimeToReset(player).Seconds())),
		})
	})

	secured.Put("/profile", func(c *fiber.Ctx) error {
		var body struct {
			Username  string `json:"username"`
			FirstName string `json:"first_name"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid_body")
		}
		player, err := deps.Ledger.UpdateProfile(c.UserContext(), middleware.ActorID(c), body.Username, body.FirstName)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(player)
	})

	secured.Get("/stats", func(c *fiber.Ctx) error {
		stats, err := deps.Stats.PlayerStats(c.UserContext(), middleware.ActorID(c))
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(stats)
	})

	secured.Get("/fights", func(c *fiber.Ctx) error {
		page := c.QueryInt("page", 1)
		size := c.QueryInt("size", 20)
		fights, total, err := deps.Stats.RecentFights(c.UserContext(), middleware.ActorID(c), page, size)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(fiber.Map{"fights": fights, "total": total, "page": page})
	})

	secured.Get("/cards", func(c *fiber.Ctx) error {
		cards, err := deps.Catalog.GetOwnedCards(c.UserContext(), middleware.ActorID(c))
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(fiber.Map{"cards": cards})
	})

	secured.Get("/cards/:cardID/stats", func(c *fiber.Ctx) error {
		stats, err := deps.Stats.CardStats(c.UserContext(), middleware.ActorID(c), c.Params("cardID"))
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(stats)
	})

	secured.Get("/cards/:cardID/lockout", func(c *fiber.Ctx) error {
		cardID := c.Params("cardID")
		locked, until, err := deps.Cooldown.CheckLockout(c.UserContext(), middleware.ActorID(c), cardID)
		if err != nil {
			return respondError(c, logger, err)
		}
		resp := fiber.Map{"card_id": cardID, "locked": locked}
		if locked {
			resp["until"] = until
		}
		return c.JSON(resp)
	})

	secured.Get("/lockouts", func(c *fiber.Ctx) error {
		lockouts, err := deps.Cooldown.PlayerLockouts(c.UserContext(), middleware.ActorID(c))
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(fiber.Map{"lockouts": lockouts})
	})
}
