package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"argus/internal/ingest"
)

// accessLog is a dedicated logrus logger for webhook access/error lines,
// separate from the rest of the handlers package's plain log.Printf use —
// the chat bridge's request shape is the one surface worth structured,
// greppable fields (path, chat id, outcome) on every call.
var accessLog = newAccessLog()

func newAccessLog() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger
}

// WebhookHandler receives the chat bridge's inbound message webhook and
// drives it through the ingestion pipeline (spec §4.6, §6).
type WebhookHandler struct {
	pipeline *ingest.Pipeline
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(pipeline *ingest.Pipeline) *WebhookHandler {
	return &WebhookHandler{pipeline: pipeline}
}

// Handle handles POST /api/webhook/...: any path suffix is accepted, per the
// chat bridge's convention of appending an instance name to the route.
func (h *WebhookHandler) Handle(c *fiber.Ctx) error {
	var payload ingest.WebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		accessLog.WithFields(logrus.Fields{"path": c.Path(), "error": err.Error()}).Warn("invalid webhook payload")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload: " + err.Error()})
	}

	if err := payload.Validate(); err != nil {
		accessLog.WithFields(logrus.Fields{"path": c.Path(), "error": err.Error()}).Warn("rejected webhook payload")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if !payload.IsMessageUpsert() {
		accessLog.WithFields(logrus.Fields{"path": c.Path(), "event": payload.Event}).Debug("skipped non-upsert event")
		return c.JSON(fiber.Map{"skipped": true})
	}

	result, err := h.pipeline.ProcessWebhook(c.Context(), payload)
	if err != nil {
		accessLog.WithFields(logrus.Fields{"path": c.Path(), "error": err.Error()}).Error("webhook processing failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook processing failed"})
	}

	accessLog.WithFields(logrus.Fields{"path": c.Path(), "chatId": payload.Data.Key.RemoteJID}).Info("webhook processed")
	return c.JSON(result)
}
