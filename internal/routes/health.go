package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/ussd_gateway/internal/session"
)

const checkTimeout = 2 * time.Second

type backendCheck struct {
	name  string
	check func(ctx context.Context) error
}

// RegisterHealthRoutes adds /livez for the process and /healthz for the
// backends a callback turn depends on. Backends that are not configured
// report "disabled" and do not fail the check.
func RegisterHealthRoutes(app *fiber.App, d Deps, sessions session.Store) {
	checks := []backendCheck{{name: "sessions", check: func(ctx context.Context) error {
		_, err := sessions.Count(ctx)
		return err
	}}}
	if d.DB != nil {
		checks = append(checks, backendCheck{name: "postgres", check: func(ctx context.Context) error { return d.DB.Ping(ctx) }})
	}
	if d.Cache != nil {
		checks = append(checks, backendCheck{name: "redis", check: func(ctx context.Context) error { return d.Cache.Ping(ctx).Err() }})
	}

	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), checkTimeout)
		defer cancel()

		report := fiber.Map{"postgres": "disabled", "redis": "disabled"}
		status := http.StatusOK
		for _, p := range checks {
			if err := p.check(ctx); err != nil {
				report[p.name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			report[p.name] = "ok"
		}
		active, _ := sessions.Count(ctx)
		return c.Status(status).JSON(fiber.Map{
			"status":          report,
			"active_sessions": active,
			"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
