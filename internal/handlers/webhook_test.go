package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestWebhookHandlerInvalidJSON(t *testing.T) {
	app := fiber.New()
	handler := NewWebhookHandler(nil)
	app.Post("/api/webhook/:instance", handler.Handle)

	req := httptest.NewRequest("POST", "/api/webhook/main", bytes.NewBufferString(`{not json`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestWebhookHandlerMissingRequiredFields(t *testing.T) {
	app := fiber.New()
	handler := NewWebhookHandler(nil)
	app.Post("/api/webhook/:instance", handler.Handle)

	req := httptest.NewRequest("POST", "/api/webhook/main", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestWebhookHandlerSkipsNonMessageUpsertEvents(t *testing.T) {
	app := fiber.New()
	handler := NewWebhookHandler(nil) // never dereferenced on this path
	app.Post("/api/webhook/:instance", handler.Handle)

	payload := []byte(`{"event":"connection.update","instance":"main","data":{"key":{"id":"abc"}}}`)
	req := httptest.NewRequest("POST", "/api/webhook/main", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Skipped bool `json:"skipped"`
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(&body); decodeErr != nil {
		t.Fatal(decodeErr)
	}
	if !body.Skipped {
		t.Error("expected skipped:true for a non-messages.upsert event")
	}
}
