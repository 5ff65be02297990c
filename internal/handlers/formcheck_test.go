package handlers

import (
	"testing"

	"argus/internal/models"
)

func TestMostRecentTravelEventSkipsNonTravel(t *testing.T) {
	events := []models.Event{
		{ID: 1, EventType: models.EventMeeting},
		{ID: 2, EventType: models.EventTravel, Location: "Goa"},
		{ID: 3, EventType: models.EventTravel, Location: "Delhi"},
	}

	got := mostRecentTravelEvent(events)
	if got == nil || got.ID != 2 {
		t.Fatalf("expected the first travel event in list order, got %+v", got)
	}
}

func TestMostRecentTravelEventReturnsNilWhenNoneMatch(t *testing.T) {
	events := []models.Event{{ID: 1, EventType: models.EventMeeting}}
	if got := mostRecentTravelEvent(events); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestLocationMismatchFlagsDisagreement(t *testing.T) {
	target := &models.Event{Location: "Goa"}
	body := formCheckBody{FieldValue: "Mumbai", FieldType: "destination"}

	result := locationMismatch(body, target)
	if result["mismatch"] != true {
		t.Errorf("expected mismatch, got %v", result)
	}
	if result["remembered"] != "Goa" {
		t.Errorf("expected remembered=Goa, got %v", result["remembered"])
	}
}

func TestLocationMismatchIgnoresCaseAndWhitespace(t *testing.T) {
	target := &models.Event{Location: "Goa"}
	body := formCheckBody{FieldValue: "  goa  ", FieldType: "destination"}

	result := locationMismatch(body, target)
	if result["mismatch"] != false {
		t.Errorf("expected no mismatch for case/whitespace-insensitive match, got %v", result)
	}
}

func TestLocationMismatchSkipsWhenNothingRemembered(t *testing.T) {
	target := &models.Event{}
	body := formCheckBody{FieldValue: "Goa", FieldType: "destination"}

	result := locationMismatch(body, target)
	if result["mismatch"] != false {
		t.Errorf("expected no mismatch when no location is remembered, got %v", result)
	}
}

func TestDateMismatchWithinWindowIsNotFlagged(t *testing.T) {
	eventTime := int64(1000000)
	target := &models.Event{EventTime: &eventTime}
	body := formCheckBody{FieldValue: "entered", Parsed: "1000100"}

	result := dateMismatch(body, target)
	if result["mismatch"] != false {
		t.Errorf("expected no mismatch within the window, got %v", result)
	}
}

func TestDateMismatchBeyondWindowIsFlagged(t *testing.T) {
	eventTime := int64(1000000)
	target := &models.Event{EventTime: &eventTime}
	body := formCheckBody{FieldValue: "entered", Parsed: "1100000"}

	result := dateMismatch(body, target)
	if result["mismatch"] != true {
		t.Errorf("expected mismatch beyond the window, got %v", result)
	}
}

func TestDateMismatchSkipsWhenNoEventTime(t *testing.T) {
	target := &models.Event{}
	body := formCheckBody{FieldValue: "entered", Parsed: "1000000"}

	result := dateMismatch(body, target)
	if result["mismatch"] != false {
		t.Errorf("expected no mismatch when target has no event time, got %v", result)
	}
}

func TestDateMismatchSkipsOnUnparsableInput(t *testing.T) {
	eventTime := int64(1000000)
	target := &models.Event{EventTime: &eventTime}
	body := formCheckBody{FieldValue: "entered", Parsed: "not-a-number"}

	result := dateMismatch(body, target)
	if result["mismatch"] != false {
		t.Errorf("expected no mismatch on unparsable input, got %v", result)
	}
}
