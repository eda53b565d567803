package ussd

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newTestApp(t *testing.T) (*fiber.App, *harness) {
	t.Helper()
	h := newHarness(t)
	handler := NewHandler(h.engine, h.sessions)
	app := fiber.New()
	app.Post("/ussd", handler.Callback)
	app.Get("/ussd/sessions", handler.Sessions)
	return app, h
}

func postForm(t *testing.T, app *fiber.App, form url.Values, accept string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestCallbackFormPlainText(t *testing.T) {
	app, _ := newTestApp(t)

	form := url.Values{
		"sessionId":   {"ATUid_1"},
		"phoneNumber": {"+2348031234567"},
		"networkCode": {"62130"},
		"serviceCode": {"*384*123#"},
		"text":        {""},
	}
	resp := postForm(t, app, form, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.HasPrefix(body, "CON Welcome to AgroPay") {
		t.Fatalf("unexpected body %q", body)
	}

	form.Set("text", "3")
	if body := readBody(t, postForm(t, app, form, "")); !strings.HasPrefix(body, "CON Help") {
		t.Fatalf("unexpected body %q", body)
	}
	form.Set("text", "3*2")
	if body := readBody(t, postForm(t, app, form, "")); !strings.HasPrefix(body, "END ") {
		t.Fatalf("expected END, got %q", body)
	}
}

func TestCallbackJSON(t *testing.T) {
	app, _ := newTestApp(t)

	payload := `{"sessionId":"s-json","phoneNumber":"08051234567","provider":"glo","text":""}`
	req := httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out CallbackResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SessionStatus != StatusContinue || !strings.Contains(out.Message, "1. Register") {
		t.Fatalf("unexpected response %+v", out)
	}
}

func TestCallbackRejectsBadRequests(t *testing.T) {
	app, _ := newTestApp(t)

	cases := []url.Values{
		{"phoneNumber": {"08031234567"}, "provider": {"mtn"}},
		{"sessionId": {"s1"}, "phoneNumber": {"12345"}, "provider": {"mtn"}},
		{"sessionId": {"s1"}, "phoneNumber": {"08031234567"}, "provider": {"vodafone"}},
	}
	for _, form := range cases {
		if resp := postForm(t, app, form, ""); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", form, resp.StatusCode)
		}
	}
}

func TestSessionsSnapshot(t *testing.T) {
	app, _ := newTestApp(t)
	postForm(t, app, url.Values{"sessionId": {"s1"}, "phoneNumber": {"08031234567"}}, "")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ussd/sessions", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var out struct {
		Active   int `json:"active"`
		Sessions []struct {
			Provider string `json:"provider"`
			Stage    string `json:"stage"`
		} `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Active != 1 || len(out.Sessions) != 1 {
		t.Fatalf("unexpected snapshot %+v", out)
	}
	if out.Sessions[0].Provider != "mtn" || out.Sessions[0].Stage != "main" {
		t.Fatalf("unexpected session %+v", out.Sessions[0])
	}
}
