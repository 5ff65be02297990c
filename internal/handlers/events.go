package handlers

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"

	"argus/internal/models"
	"argus/internal/store"
	"argus/internal/transport"
)

// EventsHandler serves the /api/events* routes (spec §6): listing, lookup,
// lifecycle transitions, and the day/status/stats query surfaces.
type EventsHandler struct {
	store *store.Store
	hub   *transport.Hub
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(s *store.Store, hub *transport.Hub) *EventsHandler {
	return &EventsHandler{store: s, hub: hub}
}

// List serves GET /api/events?status=&limit=&offset=.
func (h *EventsHandler) List(c *fiber.Ctx) error {
	status := models.EventStatus(c.Query("status"))
	limit, _ := strconv.ParseInt(c.Query("limit", "0"), 10, 64)
	offset, _ := strconv.ParseInt(c.Query("offset", "0"), 10, 64)

	events, err := h.store.ListEvents(c.Context(), status, limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(events)
}

// Get serves GET /api/events/:id.
func (h *EventsHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}
	event, getErr := h.store.GetEvent(c.Context(), id)
	if getErr != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": getErr.Error()})
	}
	return c.JSON(event)
}

// updateEventBody mirrors the json tags of models.Event's editable fields.
type updateEventBody struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
	Keywords    *string `json:"keywords,omitempty"`
	EventTime   *int64  `json:"event_time,omitempty"`
}

// Update serves PATCH /api/events/:id, applying a field patch.
func (h *EventsHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}

	var body updateEventBody
	if parseErr := c.BodyParser(&body); parseErr != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": parseErr.Error()})
	}

	fields := bson.M{}
	if body.Title != nil {
		fields["title"] = *body.Title
	}
	if body.Description != nil {
		fields["description"] = *body.Description
	}
	if body.Location != nil {
		fields["location"] = *body.Location
	}
	if body.Keywords != nil {
		fields["keywords"] = *body.Keywords
	}
	if body.EventTime != nil {
		fields["eventTime"] = *body.EventTime
	}
	if len(fields) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no editable fields supplied"})
	}

	event, updErr := h.store.UpdateEvent(c.Context(), id, fields)
	if updErr != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": updErr.Error()})
	}
	h.hub.Broadcast(models.WSEnvelope{Type: models.WSEventUpdated, Event: event})
	return c.JSON(event)
}

// Delete serves DELETE /api/events/:id.
func (h *EventsHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}
	if delErr := h.store.DeleteEvent(c.Context(), id); delErr != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": delErr.Error()})
	}
	h.hub.Broadcast(models.WSEnvelope{Type: models.WSEventDeleted, Event: &models.Event{ID: id}})
	return c.JSON(fiber.Map{"deleted": true})
}

// Complete serves POST /api/events/:id/complete.
func (h *EventsHandler) Complete(c *fiber.Ctx) error {
	return h.transition(c, models.StatusCompleted, models.WSEventCompleted)
}

// Ignore serves POST /api/events/:id/ignore.
func (h *EventsHandler) Ignore(c *fiber.Ctx) error {
	return h.transition(c, models.StatusIgnored, models.WSEventIgnored)
}

func (h *EventsHandler) transition(c *fiber.Ctx, to models.EventStatus, wsType models.WSMessageType) error {
	id, err := paramID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}
	event, transErr := h.store.TransitionEvent(c.Context(), id, to)
	if transErr != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": transErr.Error()})
	}
	h.hub.Broadcast(models.WSEnvelope{Type: wsType, Event: event})
	return c.JSON(event)
}

// SetReminder serves POST /api/events/:id/set-reminder: moves the event to
// scheduled, deriving reminder_time from event_time via the {-24h, -1h,
// -15m} lead-time ladder (spec §8 invariant 3) rather than accepting a
// client-supplied value, and registers a Trigger row for each surviving
// offset so the time-triggers scan (spec §4.8) has something to fire.
func (h *EventsHandler) SetReminder(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}

	current, getErr := h.store.GetEvent(c.Context(), id)
	if getErr != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": getErr.Error()})
	}
	if !models.CanTransition(current.Status, models.StatusScheduled) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "event cannot be scheduled from its current status"})
	}
	if current.EventTime == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "event has no event_time to derive a reminder from"})
	}

	now := time.Now().Unix()
	triggers, reminderTime := store.DeriveTimeTriggers(id, *current.EventTime, now)
	for _, trigger := range triggers {
		if _, createErr := h.store.CreateTrigger(c.Context(), trigger); createErr != nil {
			log.Printf("⚠️ [EVENTS] failed to create time trigger for event %d: %v", id, createErr)
		}
	}

	update := bson.M{"status": models.StatusScheduled}
	if reminderTime != nil {
		update["reminderTime"] = *reminderTime
	}
	event, updErr := h.store.UpdateEvent(c.Context(), id, update)
	if updErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": updErr.Error()})
	}
	h.hub.Broadcast(models.WSEnvelope{Type: models.WSEventScheduled, Event: event})
	return c.JSON(event)
}

// snoozeBody is POST /api/events/:id/snooze's body.
type snoozeBody struct {
	Minutes int `json:"minutes"`
}

const defaultSnoozeMinutes = 30

// Snooze serves POST /api/events/:id/snooze.
func (h *EventsHandler) Snooze(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}
	var body snoozeBody
	_ = c.BodyParser(&body)
	minutes := body.Minutes
	if minutes <= 0 {
		minutes = defaultSnoozeMinutes
	}

	event, snoozeErr := h.store.SnoozeEvent(c.Context(), id, minutes)
	if snoozeErr != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": snoozeErr.Error()})
	}
	h.hub.Broadcast(models.WSEnvelope{Type: models.WSEventSnoozed, Event: event})
	return c.JSON(event)
}

// dismissBody is POST /api/events/:id/dismiss's body. The popup-button
// actions ActionDismissPermanent and ActionDismissTemp both land on this one
// route; Permanent is accepted but Dismiss does not read it, so both are
// handled identically. URLPattern is present whenever the dismissal should
// also suppress the same event/URL pairing for 30 minutes (spec §3).
type dismissBody struct {
	Permanent  bool   `json:"permanent"`
	URLPattern string `json:"url_pattern,omitempty"`
}

// Dismiss serves POST /api/events/:id/dismiss: bumps dismiss_count and, if a
// url_pattern is supplied, records a context dismissal suppressing further
// context reminders for that pairing.
func (h *EventsHandler) Dismiss(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}
	var body dismissBody
	_ = c.BodyParser(&body)

	if incErr := h.store.IncrementDismissCount(c.Context(), id); incErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": incErr.Error()})
	}
	if body.URLPattern != "" {
		if dismErr := h.store.CreateDismissal(c.Context(), id, body.URLPattern); dismErr != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": dismErr.Error()})
		}
	}

	event, getErr := h.store.GetEvent(c.Context(), id)
	if getErr != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": getErr.Error()})
	}
	h.hub.Broadcast(models.WSEnvelope{Type: models.WSEventDismissed, Event: event})
	return c.JSON(event)
}

// Acknowledge serves POST /api/events/:id/acknowledge: acknowledges receipt
// of a popup without moving the lifecycle state machine, so a client can
// clear a notification without committing to any other button's action.
func (h *EventsHandler) Acknowledge(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}
	event, getErr := h.store.GetEvent(c.Context(), id)
	if getErr != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": getErr.Error()})
	}
	h.hub.Broadcast(models.WSEnvelope{Type: models.WSEventAcknowledged, Event: event})
	return c.JSON(event)
}

// ConfirmUpdate serves POST /api/events/:id/confirm-update: materializes a
// pending "modify" proposal onto the event (spec §4.6 step 5, §9 item 3).
func (h *EventsHandler) ConfirmUpdate(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}
	event, confErr := h.store.ConfirmUpdate(c.Context(), id)
	if confErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": confErr.Error()})
	}
	h.hub.Broadcast(models.WSEnvelope{Type: models.WSUpdateConfirm, Event: event})
	return c.JSON(event)
}

// contextURLBody is POST /api/events/:id/context-url's body.
type contextURLBody struct {
	URL string `json:"url"`
}

// SetContextURL serves POST /api/events/:id/context-url: sets the URL the
// Context Matcher pattern-matches browsed pages against (spec §4.10).
func (h *EventsHandler) SetContextURL(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}
	var body contextURLBody
	if parseErr := c.BodyParser(&body); parseErr != nil || body.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url is required"})
	}

	event, updErr := h.store.UpdateEvent(c.Context(), id, bson.M{"contextUrl": body.URL})
	if updErr != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": updErr.Error()})
	}
	return c.JSON(event)
}

// ByDay serves GET /api/events/day/:unix-timestamp.
func (h *EventsHandler) ByDay(c *fiber.Ctx) error {
	ts, err := strconv.ParseInt(c.Params("timestamp"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid timestamp"})
	}
	events, listErr := h.store.ListEventsByDay(c.Context(), ts)
	if listErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": listErr.Error()})
	}
	return c.JSON(events)
}

// ByStatus serves GET /api/events/status/:status.
func (h *EventsHandler) ByStatus(c *fiber.Ctx) error {
	status := models.EventStatus(c.Params("status"))
	events, err := h.store.ListEventsByStatus(c.Context(), status)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(events)
}

// Stats serves GET /api/stats.
func (h *EventsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.store.Stats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(stats)
}

func paramID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}
