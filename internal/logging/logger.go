package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithIngestion returns a logger with ingestion-call context fields attached.
func WithIngestion(messageID, chatID string) *slog.Logger {
	return slog.With(
		"message_id", messageID,
		"chat_id", chatID,
	)
}

// WithEvent returns a logger scoped to a specific event.
func WithEvent(logger *slog.Logger, eventID int64, eventType string) *slog.Logger {
	return logger.With(
		"event_id", eventID,
		"event_type", eventType,
	)
}
