package middleware

import (
	"bookshelf/internal/common"
	"bookshelf/internal/models"
	"bookshelf/internal/session"

	"github.com/gofiber/fiber/v2"
)

const userLocalsKey = "user"

// SessionRequired rejects requests without a live session principal with
// 401 before any handler runs. The principal is stored for CurrentUser.
func SessionRequired(sessions *session.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := sessions.Resolve(c)
		if err != nil {
			return common.NewInternalError(err)
		}
		if user == nil {
			return common.NewUnauthorizedError()
		}
		c.Locals(userLocalsKey, user)
		return c.Next()
	}
}

// CurrentUser returns the principal stored by SessionRequired.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userLocalsKey).(*models.User)
	return user
}
