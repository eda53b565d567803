package ussd

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/ussd_gateway/internal/middleware"
	"github.com/congo-pay/ussd_gateway/internal/session"
	"github.com/congo-pay/ussd_gateway/internal/telco"
)

// Handler exposes the carrier callback and the session snapshot over HTTP.
type Handler struct {
	engine   *Engine
	sessions session.Store
}

// NewHandler constructs a USSD handler.
func NewHandler(engine *Engine, sessions session.Store) *Handler {
	return &Handler{engine: engine, sessions: sessions}
}

// CallbackRequest is the carrier relay payload, accepted as form or JSON.
type CallbackRequest struct {
	SessionID   string `json:"sessionId" form:"sessionId"`
	PhoneNumber string `json:"phoneNumber" form:"phoneNumber"`
	Provider    string `json:"provider" form:"provider"`
	NetworkCode string `json:"networkCode" form:"networkCode"`
	ServiceCode string `json:"serviceCode" form:"serviceCode"`
	Text        string `json:"text" form:"text"`
}

// CallbackResponse is the JSON rendering of a turn.
type CallbackResponse struct {
	Message       string `json:"message"`
	SessionStatus Status `json:"sessionStatus"`
}

// Callback handles one dialog turn. The reply is "CON ..." or "END ..." as
// text/plain unless the relay asks for JSON.
func (h *Handler) Callback(c *fiber.Ctx) error {
	var req CallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	c.Locals(middleware.DialogKey, req.SessionID)

	provider, err := resolveProvider(req)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	resp, err := h.engine.Handle(c.UserContext(), Request{
		SessionID: req.SessionID,
		Phone:     req.PhoneNumber,
		Provider:  provider,
		Text:      req.Text,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return err
	}

	if c.Accepts(fiber.MIMETextPlain, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON {
		return c.Status(http.StatusOK).JSON(CallbackResponse{Message: resp.Message, SessionStatus: resp.Status})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(http.StatusOK).SendString(string(resp.Status) + " " + resp.Message)
}

// resolveProvider prefers the explicit provider, then the network code, then
// the phone prefix.
func resolveProvider(req CallbackRequest) (telco.Provider, error) {
	for _, v := range []string{req.Provider, req.NetworkCode} {
		if strings.TrimSpace(v) == "" {
			continue
		}
		return telco.ParseProvider(v)
	}
	if phone, err := telco.NormalizePhone(req.PhoneNumber); err == nil {
		if p, ok := telco.Detect(phone); ok {
			return p, nil
		}
	}
	return "", telco.ErrUnknownProvider
}

// Sessions lists live sessions for operators. No financial data is included.
func (h *Handler) Sessions(c *fiber.Ctx) error {
	ctx := c.UserContext()
	active, err := h.sessions.Count(ctx)
	if err != nil {
		return err
	}
	snapshot, err := h.sessions.Snapshot(ctx)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"active":   active,
		"sessions": snapshot,
	})
}
