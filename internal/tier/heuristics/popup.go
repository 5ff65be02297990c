package heuristics

import (
	"fmt"

	"argus/internal/models"
)

// GeneratePopupBlueprint returns one of eight pre-defined static templates
// keyed by popupType, used when T1's LLM-generated blueprint is unavailable
// or times out (spec §4.4, §4.7, §6). eventTitle/contextNote/conflictTitle
// are the only free-text slots each template needs.
func GeneratePopupBlueprint(popupType models.PopupType, eventTitle, contextNote, conflictTitle string) *models.Popup {
	switch popupType {
	case models.PopupEventDiscovery:
		return &models.Popup{
			Icon:        "sparkles",
			HeaderClass: models.HeaderDiscovery,
			Title:       "Found something worth tracking",
			Body:        eventTitle,
			Buttons: []models.PopupButton{
				button("Set reminder", models.ActionSetReminder, "primary"),
				button("Ignore", models.ActionIgnore, ""),
			},
			PopupType: popupType,
		}

	case models.PopupEventReminder:
		return &models.Popup{
			Icon:        "bell",
			HeaderClass: models.HeaderReminder,
			Title:       "Reminder",
			Body:        eventTitle,
			Buttons: []models.PopupButton{
				button("Done", models.ActionDone, "primary"),
				button("Snooze", models.ActionSnooze, ""),
				button("Ignore", models.ActionIgnore, ""),
			},
			PopupType: popupType,
		}

	case models.PopupContextReminder:
		return &models.Popup{
			Icon:        "link",
			HeaderClass: models.HeaderContext,
			Title:       "This page relates to an open item",
			Subtitle:    eventTitle,
			Body:        contextNote,
			Buttons: []models.PopupButton{
				button("Acknowledge", models.ActionAcknowledge, "primary"),
				button("Dismiss for now", models.ActionDismissTemp, ""),
				button("Don't show again", models.ActionDismissPermanent, ""),
			},
			PopupType: popupType,
		}

	case models.PopupConflictWarning:
		return &models.Popup{
			Icon:        "alert-triangle",
			HeaderClass: models.HeaderConflict,
			Title:       "Possible scheduling conflict",
			Body:        fmt.Sprintf("%q overlaps with %q", eventTitle, conflictTitle),
			Buttons: []models.PopupButton{
				button("View day", models.ActionViewDay, "primary"),
				button("Acknowledge", models.ActionAcknowledge, ""),
			},
			PopupType: popupType,
		}

	case models.PopupInsightCard:
		return &models.Popup{
			Icon:        "lightbulb",
			HeaderClass: models.HeaderInsight,
			Title:       "Insight",
			Body:        eventTitle,
			Buttons: []models.PopupButton{
				button("Acknowledge", models.ActionAcknowledge, "primary"),
			},
			PopupType: popupType,
		}

	case models.PopupSnoozeReminder:
		return &models.Popup{
			Icon:        "clock",
			HeaderClass: models.HeaderReminder,
			Title:       "Snoozed item is back",
			Body:        eventTitle,
			Buttons: []models.PopupButton{
				button("Done", models.ActionDone, "primary"),
				button("Snooze again", models.ActionSnooze, ""),
				button("Ignore", models.ActionIgnore, ""),
			},
			PopupType: popupType,
		}

	case models.PopupUpdateConfirm:
		question := fmt.Sprintf("Update %q with the new details?", eventTitle)
		return &models.Popup{
			Icon:        "refresh-cw",
			HeaderClass: models.HeaderDiscovery,
			Title:       "Update detected",
			Question:    &question,
			Buttons: []models.PopupButton{
				button("Confirm", models.ActionAcknowledge, "primary"),
				button("Dismiss", models.ActionDismiss, ""),
			},
			PopupType: popupType,
		}

	case models.PopupFormMismatch:
		return &models.Popup{
			Icon:        "alert-circle",
			HeaderClass: models.HeaderConflict,
			Title:       "Couldn't match that response",
			Body:        "Try one of the buttons below instead.",
			Buttons: []models.PopupButton{
				button("Dismiss", models.ActionDismiss, "primary"),
			},
			PopupType: popupType,
		}

	default:
		return &models.Popup{
			Icon:        "info",
			HeaderClass: models.HeaderInsight,
			Title:       "Notification",
			Body:        eventTitle,
			Buttons: []models.PopupButton{
				button("Acknowledge", models.ActionAcknowledge, "primary"),
			},
			PopupType: popupType,
		}
	}
}

func button(text string, action models.ClientAction, style string) models.PopupButton {
	return models.PopupButton{Text: text, Action: action, Style: style}
}
