// handlers/errors.go
package handlers

import (
	"errors"
	"math"

	"pvp-card-service/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var businessErrors = []errorMapping{
	{services.ErrActiveChallengeExists, fiber.StatusConflict, "active_challenge_exists"},
	{services.ErrAlreadyClaimed, fiber.StatusConflict, "already_claimed"},
	{services.ErrSelfChallenge, fiber.StatusBadRequest, "self_challenge"},
	{services.ErrNotAParticipant, fiber.StatusForbidden, "not_a_participant"},
	{services.ErrCardNotOwned, fiber.StatusForbidden, "card_not_owned"},
	{services.ErrCardNotSelected, fiber.StatusConflict, "card_not_selected"},
	{services.ErrSessionNotFound, fiber.StatusNotFound, "session_not_found"},
	{services.ErrResolutionDataIncomplete, fiber.StatusConflict, "resolution_data_incomplete"},
	{services.ErrAwaitingOpponent, fiber.StatusConflict, "awaiting_opponent"},
	{services.ErrCardAlreadySelected, fiber.StatusConflict, "card_already_selected"},
	{services.ErrStatAlreadySelected, fiber.StatusConflict, "stat_already_selected"},
	{services.ErrInvalidStat, fiber.StatusBadRequest, "invalid_stat"},
	{services.ErrCardNotFound, fiber.StatusNotFound, "card_not_found"},
	{services.ErrPlayerNotFound, fiber.StatusNotFound, "player_not_found"},
	{services.ErrInvalidPolicy, fiber.StatusBadRequest, "invalid_policy"},
}

// respondError writes err as {"error": code, ...}. Only machine codes are
// returned; the messaging layer renders player-facing text.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var cooldown *services.CardInCooldownError
	if errors.As(err, &cooldown) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "card_in_cooldown",
			"card_id": cooldown.CardID,
			"until":   cooldown.Until,
		})
	}
	var hearts *services.NoHeartsRemainingError
	if errors.As(err, &hearts) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":            "no_hearts_remaining",
			"reset_in_seconds": int64(math.Ceil(hearts.ResetIn.Seconds())),
		})
	}
	for _, m := range businessErrors {
		if errors.Is(err, m.err) {
			return c.Status(m.status).JSON(fiber.Map{"error": m.code})
		}
	}
	if services.IsTransient(err) {
		logger.Warn("transient storage failure", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":     "storage_unavailable",
			"retryable": true,
		})
	}
	logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal"})
}

func badRequest(c *fiber.Ctx, code string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": code})
}
