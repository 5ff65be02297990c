package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"argus/internal/models"
	"argus/internal/store"
)

const formCheckCandidateLimit = 50

// locationFieldTypes and dateFieldTypes classify the fieldType values the
// browser extension's autofill detector reports, per DESIGN.md's
// resolution of spec §6's form-check semantics.
var (
	locationFieldTypes = map[string]bool{"destination": true, "location": true, "city": true}
	dateFieldTypes     = map[string]bool{"date": true, "travel_date": true, "checkin_date": true, "checkin": true}
)

// FormCheckHandler serves POST /api/form-check (spec §6).
type FormCheckHandler struct {
	store *store.Store
}

// NewFormCheckHandler creates a new form-check handler.
func NewFormCheckHandler(s *store.Store) *FormCheckHandler {
	return &FormCheckHandler{store: s}
}

type formCheckBody struct {
	FieldValue string `json:"fieldValue"`
	FieldType  string `json:"fieldType"`
	Parsed     string `json:"parsed,omitempty"`
}

// Handle compares an in-progress form field against the most recently
// created active travel event, flagging a mismatch when the field's value
// disagrees with what was remembered from chat.
func (h *FormCheckHandler) Handle(c *fiber.Ctx) error {
	var body formCheckBody
	if err := c.BodyParser(&body); err != nil || body.FieldValue == "" || body.FieldType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "fieldValue and fieldType are required"})
	}

	events, err := h.store.ListActiveEvents(c.Context(), formCheckCandidateLimit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	target := mostRecentTravelEvent(events)
	if target == nil {
		return c.JSON(fiber.Map{"mismatch": false})
	}

	fieldType := strings.ToLower(body.FieldType)
	switch {
	case locationFieldTypes[fieldType]:
		return c.JSON(locationMismatch(body, target))
	case dateFieldTypes[fieldType]:
		return c.JSON(dateMismatch(body, target))
	default:
		return c.JSON(fiber.Map{"mismatch": false})
	}
}

func mostRecentTravelEvent(events []models.Event) *models.Event {
	for i := range events {
		if events[i].EventType == models.EventTravel {
			return &events[i]
		}
	}
	return nil
}

func locationMismatch(body formCheckBody, target *models.Event) fiber.Map {
	remembered := target.Location
	if remembered == "" || strings.EqualFold(strings.TrimSpace(remembered), strings.TrimSpace(body.FieldValue)) {
		return fiber.Map{"mismatch": false}
	}
	return fiber.Map{
		"mismatch":   true,
		"entered":    body.FieldValue,
		"remembered": remembered,
		"suggestion": remembered,
	}
}

// dateMismatchWindowSec is how far apart (in seconds) the entered date and the
// remembered event_time may be before it's flagged as a mismatch.
const dateMismatchWindowSec = 86400

func dateMismatch(body formCheckBody, target *models.Event) fiber.Map {
	if target.EventTime == nil {
		return fiber.Map{"mismatch": false}
	}
	entered, err := strconv.ParseInt(body.Parsed, 10, 64)
	if err != nil {
		return fiber.Map{"mismatch": false}
	}

	diff := entered - *target.EventTime
	if diff < 0 {
		diff = -diff
	}
	if diff <= dateMismatchWindowSec {
		return fiber.Map{"mismatch": false}
	}

	return fiber.Map{
		"mismatch":   true,
		"entered":    body.FieldValue,
		"remembered": *target.EventTime,
		"suggestion": *target.EventTime,
	}
}
