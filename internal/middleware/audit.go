package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Audit emits one structured log line per request. Turns of a USSD dialog
// carry the dialog's session id so a conversation can be followed in logs.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		if id := RequestIDFrom(c); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if dialog, _ := c.Locals(DialogKey).(string); dialog != "" {
			attrs = append(attrs, slog.String("session_id", dialog))
		}

		level := slog.LevelInfo
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
			level = slog.LevelError
		} else if status >= fiber.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.LogAttrs(c.UserContext(), level, "request completed", attrs...)
		return err
	}
}
