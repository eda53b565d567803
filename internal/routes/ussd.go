package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/ussd_gateway/internal/ussd"
)

// RegisterUSSDRoutes wires the carrier callback and the session snapshot.
func RegisterUSSDRoutes(r fiber.Router, h *ussd.Handler) {
	r.Post("/ussd", h.Callback)
	r.Get("/ussd/sessions", h.Sessions)
}
