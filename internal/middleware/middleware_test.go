package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Use(RequestID(), RequestLogger(logger))
	app.Get("/known", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusConflict, "already_done")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("pq: relation does not exist")
	})

	tests := []struct {
		path       string
		wantStatus int
		wantError  string
	}{
		{"/known", fiber.StatusConflict, "already_done"},
		{"/boom", fiber.StatusInternalServerError, "server_error"},
		{"/missing", fiber.StatusNotFound, "Cannot GET /missing"},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
		if err != nil {
			t.Fatal(err)
		}
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		var body map[string]string
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("%s: not JSON: %s", tt.path, raw)
		}
		if resp.StatusCode != tt.wantStatus || body["error"] != tt.wantError {
			t.Errorf("%s: got %d %v", tt.path, resp.StatusCode, body)
		}
		if resp.Header.Get(HeaderRequestID) == "" {
			t.Errorf("%s: request id header missing", tt.path)
		}
	}

	if n := logs.FilterMessage("unexpected error").Len(); n != 1 {
		t.Errorf("logged %d unexpected errors, want 1", n)
	}
	if n := logs.FilterMessage("request completed").Len(); n != 3 {
		t.Errorf("logged %d requests, want 3", n)
	}
}

func TestRequestIDReusesHeader(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(CtxRequestIDKey).(string))
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(resp.Body)
	if string(raw) != "abc-123" || resp.Header.Get(HeaderRequestID) != "abc-123" {
		t.Fatalf("got body %q header %q", raw, resp.Header.Get(HeaderRequestID))
	}
}
