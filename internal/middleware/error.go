package middleware

import (
	"errors"

	"bookshelf/internal/common"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler renders every error returned by a handler as {"error": message}.
// Only AppError messages and fiber errors reach the client verbatim.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if appErr, ok := common.AsAppError(err); ok {
			if appErr.Kind == common.KindInternal || appErr.Kind == common.KindUpstream {
				logger.Error("Request failed",
					zap.Error(err),
					zap.String("path", c.Path()),
					zap.String("request_id", RequestID(c)),
				)
			}
			return c.Status(appErr.StatusCode()).JSON(fiber.Map{"error": appErr.Message})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
		}

		logger.Error("Unhandled application error",
			zap.Error(err),
			zap.String("path", c.Path()),
			zap.String("request_id", RequestID(c)),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal error"})
	}
}
