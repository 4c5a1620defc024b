package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// RequestIDHeader is the header name for request ID
	RequestIDHeader = "X-Request-ID"
	// RequestIDLocalsKey is where the request ID is stored in the Fiber context
	RequestIDLocalsKey = "requestID"
)

// RequestID returns the ID assigned by RequestLogger.
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(RequestIDLocalsKey).(string)
	return id
}

// RequestLogger logs every request with its final status. Handler errors are
// rendered here through the app's ErrorHandler so the logged status is the
// one the client sees.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDHeader, requestID)
		c.Locals(RequestIDLocalsKey, requestID)

		chainErr := c.Next()
		if chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		statusCode := c.Response().StatusCode()
		fields := []zapcore.Field{
			zap.Int("status_code", statusCode),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", requestID),
		}
		if chainErr != nil {
			fields = append(fields, zap.NamedError("error", chainErr))
		}

		switch {
		case statusCode >= fiber.StatusInternalServerError:
			logger.Error("Server error", fields...)
		case statusCode >= fiber.StatusBadRequest:
			logger.Warn("Client error", fields...)
		default:
			logger.Info("Request handled", fields...)
		}
		return nil
	}
}
