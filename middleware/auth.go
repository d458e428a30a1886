// middleware/auth.go
package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	ActorHeader = "X-Actor-ID"
	actorKey    = "actor_id"
)

// ActorContextMiddleware extracts the acting chat user forwarded by the
// messaging layer. Routes behind it always have a non-zero actor.
func ActorContextMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(ActorHeader)
		if raw == "" {
			logger.Debug("missing actor header", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing_actor",
			})
		}
		actorID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || actorID == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid_actor",
			})
		}
		c.Locals(actorKey, actorID)
		return c.Next()
	}
}

// ActorID returns the actor set by ActorContextMiddleware.
func ActorID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(actorKey).(int64)
	return id
}
