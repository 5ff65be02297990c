package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"argus/internal/cache"
	"argus/internal/database"
	"argus/internal/envelope"
	"argus/internal/handlers"
	"argus/internal/ingest"
	"argus/internal/models"
	"argus/internal/store"
	"argus/internal/tier"
	"argus/internal/transport"
)

// Integration tests exercise the webhook-to-event lifecycle against a real
// MongoDB instance, the same way internal/preflight's connectivity tests do:
// skipped unless MONGODB_TEST_URI is set, since there is no in-process
// substitute for the document store's aggregation pipelines.

type testServer struct {
	app   *fiber.App
	store *store.Store
	hub   *transport.Hub
}

func setupIntegrationTest(t *testing.T) (*testServer, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB-backed integration test in short mode")
	}
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	ctx := context.Background()
	mdb, err := database.NewMongoDB(uri)
	if err != nil {
		t.Skipf("could not reach test MongoDB: %v", err)
	}
	if err := mdb.Initialize(ctx); err != nil {
		t.Fatalf("failed to initialize collections: %v", err)
	}

	deadLetter := envelope.NewDeadLetterWriter(t.TempDir() + "/dead-letter.jsonl")
	safeCaller := envelope.NewSafeCaller(deadLetter)

	docStore, err := store.New(ctx, mdb, nil, deadLetter, 90)
	if err != nil {
		t.Fatalf("failed to create document store: %v", err)
	}

	// No LLM base URL configured: every tier call fails T1 immediately and
	// falls through to the deterministic T2 heuristics, so the pipeline
	// behaves predictably without a network dependency.
	llmClient := tier.NewClient("", "", "")
	orch := tier.New(tier.ModeAuto, llmClient, safeCaller, 30)
	tierSvc := tier.NewService(orch, llmClient, cache.New(100, time.Minute))

	hub := transport.NewHub()
	pipeline := ingest.New(docStore, tierSvc, nil, hub, ingest.Config{})

	app := fiber.New()
	webhookHandler := handlers.NewWebhookHandler(pipeline)
	eventsHandler := handlers.NewEventsHandler(docStore, hub)

	api := app.Group("/api")
	api.Post("/webhook/*", webhookHandler.Handle)
	api.Get("/events", eventsHandler.List)
	api.Get("/events/:id", eventsHandler.Get)
	api.Post("/events/:id/complete", eventsHandler.Complete)
	api.Post("/events/:id/snooze", eventsHandler.Snooze)
	api.Post("/events/:id/ignore", eventsHandler.Ignore)

	cleanup := func() {
		mdb.Close(ctx)
	}

	return &testServer{app: app, store: docStore, hub: hub}, cleanup
}

func postWebhook(t *testing.T, app *fiber.App, remoteJID, messageID, text string) *fiber.Map {
	t.Helper()
	body := fmt.Sprintf(`{
		"event": "messages.upsert",
		"instance": "main",
		"data": {
			"key": {"remoteJid": %q, "fromMe": false, "id": %q},
			"pushName": "Tester",
			"message": {"conversation": %q},
			"messageTimestamp": %d
		}
	}`, remoteJID, messageID, text, time.Now().Unix())

	req := httptest.NewRequest("POST", "/api/webhook/main", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("webhook request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 from webhook, got %d", resp.StatusCode)
	}

	var result fiber.Map
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode webhook response: %v", err)
	}
	return &result
}

// TestWebhookCreatesDiscoveredEvent verifies the full ingest path: a
// meeting-shaped message becomes a stored event in the discovered state,
// retrievable via the list endpoint.
func TestWebhookCreatesDiscoveredEvent(t *testing.T) {
	ts, cleanup := setupIntegrationTest(t)
	defer cleanup()

	postWebhook(t, ts.app, "1234567890@s.whatsapp.net", "MSG1", "meeting with John tomorrow at 3pm")

	req := httptest.NewRequest("GET", "/api/events?status=discovered", nil)
	resp, err := ts.app.Test(req, -1)
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	defer resp.Body.Close()

	var events []models.Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatalf("failed to decode events: %v", err)
	}

	found := false
	for _, e := range events {
		if e.Title != "" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected at least one discovered event with a title after ingesting a meeting message")
	}
}

// TestEventLifecycleCompleteTransition verifies an event created by the
// pipeline can be advanced through the complete transition via the HTTP API.
func TestEventLifecycleCompleteTransition(t *testing.T) {
	ts, cleanup := setupIntegrationTest(t)
	defer cleanup()

	postWebhook(t, ts.app, "1111111111@s.whatsapp.net", "MSG2", "dinner with Sarah tomorrow at 7pm")

	req := httptest.NewRequest("GET", "/api/events?status=discovered", nil)
	resp, err := ts.app.Test(req, -1)
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	var events []models.Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatalf("failed to decode events: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected at least one discovered event to transition")
	}
	target := events[0]

	completeReq := httptest.NewRequest("POST", fmt.Sprintf("/api/events/%d/complete", target.ID), nil)
	completeResp, err := ts.app.Test(completeReq, -1)
	if err != nil {
		t.Fatalf("complete request failed: %v", err)
	}
	if completeResp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 from complete, got %d", completeResp.StatusCode)
	}

	getReq := httptest.NewRequest("GET", fmt.Sprintf("/api/events/%d", target.ID), nil)
	getResp, err := ts.app.Test(getReq, -1)
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	var updated models.Event
	if err := json.NewDecoder(getResp.Body).Decode(&updated); err != nil {
		t.Fatalf("failed to decode updated event: %v", err)
	}
	if updated.Status != models.StatusCompleted {
		t.Errorf("expected status %q, got %q", models.StatusCompleted, updated.Status)
	}
}

// TestWebhookSkipsNonUpsertEvent verifies a non-"messages.upsert" event is
// acknowledged without creating any event.
func TestWebhookSkipsNonUpsertEvent(t *testing.T) {
	ts, cleanup := setupIntegrationTest(t)
	defer cleanup()

	body := `{"event":"connection.update","instance":"main","data":{"key":{"id":"abc"}}}`
	req := httptest.NewRequest("POST", "/api/webhook/main", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.app.Test(req, -1)
	if err != nil {
		t.Fatalf("webhook request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Skipped bool `json:"skipped"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !result.Skipped {
		t.Error("expected skipped:true for a non-upsert event")
	}
}

// TestEventSnoozeTransition verifies the snooze lifecycle edge moves an
// event out of the active discovered/scheduled pool and sets a future wake
// time.
func TestEventSnoozeTransition(t *testing.T) {
	ts, cleanup := setupIntegrationTest(t)
	defer cleanup()

	postWebhook(t, ts.app, "2222222222@s.whatsapp.net", "MSG3", "call with the team tomorrow at noon")

	req := httptest.NewRequest("GET", "/api/events?status=discovered", nil)
	resp, err := ts.app.Test(req, -1)
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	var events []models.Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatalf("failed to decode events: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected at least one discovered event to snooze")
	}
	target := events[0]

	snoozeBody := `{"minutes": 30}`
	snoozeReq := httptest.NewRequest("POST", fmt.Sprintf("/api/events/%d/snooze", target.ID), bytes.NewBufferString(snoozeBody))
	snoozeReq.Header.Set("Content-Type", "application/json")
	snoozeResp, err := ts.app.Test(snoozeReq, -1)
	if err != nil {
		t.Fatalf("snooze request failed: %v", err)
	}
	if snoozeResp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 from snooze, got %d", snoozeResp.StatusCode)
	}

	getReq := httptest.NewRequest("GET", fmt.Sprintf("/api/events/%d", target.ID), nil)
	getResp, err := ts.app.Test(getReq, -1)
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	var updated models.Event
	if err := json.NewDecoder(getResp.Body).Decode(&updated); err != nil {
		t.Fatalf("failed to decode updated event: %v", err)
	}
	if updated.Status != models.StatusSnoozed {
		t.Errorf("expected status %q, got %q", models.StatusSnoozed, updated.Status)
	}
}
