// handlers/admin_routes.go
package handlers

import (
	"time"

	"pvp-card-service/config"
	"pvp-card-service/models"
	"pvp-card-service/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AdminDeps groups the services behind the operator routes.
type AdminDeps struct {
	Challenges *services.ChallengeService
	Ledger     *services.LedgerService
	Cooldown   *services.CooldownService
	Config     *config.Store
}

func SetupAdminRoutes(app *fiber.App, deps AdminDeps, logger *zap.Logger) {
	admin := app.Group("/admin")

	admin.Post("/challenges/expire", func(c *fiber.Ctx) error {
		threshold := deps.Config.Current().Game.ExpiryThreshold()
		if m := c.QueryInt("threshold_minutes", 0); m > 0 {
			threshold = time.Duration(m) * time.Minute
		}
		n, err := deps.Challenges.ExpirePastDeadline(c.UserContext(), threshold)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(fiber.Map{"expired": n})
	})

	admin.Post("/hearts/reset", func(c *fiber.Ctx) error {
		n, err := deps.Ledger.ResetAllHearts(c.UserContext())
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(fiber.Map{"players": n})
	})

	admin.Get("/cooldown-policies", func(c *fiber.Ctx) error {
		policies, err := deps.Cooldown.ListPolicies(c.UserContext())
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(fiber.Map{"policies": policies})
	})

	admin.Get("/cooldown-policies/:cardID", func(c *fiber.Ctx) error {
		policy, err := deps.Cooldown.GetPolicy(c.UserContext(), c.Params("cardID"))
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(policy)
	})

	admin.Put("/cooldown-policies/:cardID", func(c *fiber.Ctx) error {
		var body struct {
			WinThreshold int   `json:"win_threshold"`
			LockoutHours int   `json:"lockout_hours"`
			Enabled      *bool `json:"enabled"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid_body")
		}
		enabled := true
		if body.Enabled != nil {
			enabled = *body.Enabled
		}
		policy, err := deps.Cooldown.SetPolicy(c.UserContext(), models.CooldownPolicy{
			CardID:       c.Params("cardID"),
			WinThreshold: body.WinThreshold,
			LockoutHours: body.LockoutHours,
			Enabled:      enabled,
		})
		if err != nil {
			return respondError(c, logger, err)
		}
		logger.Info("cooldown policy updated",
			zap.String("card_id", policy.CardID),
			zap.Int("win_threshold", policy.WinThreshold),
			zap.Int("lockout_hours", policy.LockoutHours),
			zap.Bool("enabled", policy.Enabled),
		)
		return c.JSON(policy)
	})
}
