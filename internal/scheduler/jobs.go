package scheduler

import (
	"context"
	"log"
	"time"

	"argus/internal/models"
	"argus/internal/store"
	"argus/internal/tier"
)

// Broadcaster is the subset of transport.Hub the scheduler jobs depend on;
// kept as an interface so the jobs can be exercised in tests without a real
// websocket connection.
type Broadcaster interface {
	Deliver(models.WSEnvelope) error
}

const timeTriggerLookahead = 5 * time.Minute

// qualifyingStatuses are the event statuses a fired time-trigger is still
// allowed to notify against (spec §4.8: "only if status ∈ {pending,
// scheduled, discovered, reminded}").
var qualifyingStatuses = map[models.EventStatus]bool{
	models.StatusPending:    true,
	models.StatusScheduled:  true,
	models.StatusDiscovered: true,
	models.StatusReminded:   true,
}

// TimeTriggersJob implements the 60-s time-triggers scan (spec §4.8): reads
// unfired time-kind triggers due within the lookahead window and attempts
// delivery for each.
type TimeTriggersJob struct {
	store *store.Store
	tier  *tier.Service
	hub   Broadcaster
	retry *RetryQueue
}

// NewTimeTriggersJob assembles a TimeTriggersJob.
func NewTimeTriggersJob(s *store.Store, t *tier.Service, hub Broadcaster, retry *RetryQueue) *TimeTriggersJob {
	return &TimeTriggersJob{store: s, tier: t, hub: hub, retry: retry}
}

func (j *TimeTriggersJob) Run(ctx context.Context) error {
	triggers, err := j.store.ListUnfiredTimeTriggers(ctx)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(timeTriggerLookahead).Unix()
	for _, trg := range triggers {
		if trg.FireAt == nil || *trg.FireAt > deadline {
			continue
		}

		event, err := j.store.GetEvent(ctx, trg.EventID)
		if err != nil || !qualifyingStatuses[models.NormalizeStatus(event.Status)] {
			// Non-qualifying (or since-deleted) event: mark fired anyway so
			// the trigger never re-fires, per spec §4.8.
			if markErr := j.store.MarkTriggerFired(ctx, trg.ID); markErr != nil {
				log.Printf("⚠️ [SCHEDULER] mark-fired failed for trigger %d: %v", trg.ID, markErr)
			}
			continue
		}

		envelope := j.buildEnvelope(ctx, event)
		trg := trg
		mark := func() error { return j.store.MarkTriggerFired(ctx, trg.ID) }

		if err := j.hub.Deliver(envelope); err == nil {
			if markErr := mark(); markErr != nil {
				log.Printf("⚠️ [SCHEDULER] mark-fired failed for trigger %d: %v", trg.ID, markErr)
			}
		} else {
			j.retry.Enqueue(envelope, event.ID, event.Title, string(trg.TriggerType), mark)
		}
	}
	return nil
}

func (j *TimeTriggersJob) buildEnvelope(ctx context.Context, event *models.Event) models.WSEnvelope {
	popup := j.tier.GeneratePopupBlueprint(ctx, models.PopupEventReminder, event.Title, "", "")
	return models.WSEnvelope{Type: models.WSTrigger, Event: event, Popup: popup, PopupType: models.PopupEventReminder}
}

func (j *TimeTriggersJob) GetNextRunTime() time.Time {
	return time.Now().Add(60 * time.Second)
}

// DueRemindersJob implements the 30-s due-reminders scan (spec §4.8): reads
// scheduled events whose reminder_time has elapsed and attempts delivery,
// transitioning to reminded on success. It also drains the retry queue each
// tick, per spec's "the queue is drained inside the 30-s due-reminders loop."
type DueRemindersJob struct {
	store *store.Store
	tier  *tier.Service
	hub   Broadcaster
	retry *RetryQueue
}

// NewDueRemindersJob assembles a DueRemindersJob.
func NewDueRemindersJob(s *store.Store, t *tier.Service, hub Broadcaster, retry *RetryQueue) *DueRemindersJob {
	return &DueRemindersJob{store: s, tier: t, hub: hub, retry: retry}
}

func (j *DueRemindersJob) Run(ctx context.Context) error {
	j.retry.Drain(j.hub.Deliver)

	due, err := j.store.ListDueReminders(ctx, time.Now().Unix())
	if err != nil {
		return err
	}

	for i := range due {
		event := due[i]
		popup := j.tier.GeneratePopupBlueprint(ctx, models.PopupEventReminder, event.Title, "", "")
		envelope := models.WSEnvelope{Type: models.WSNotification, Event: &event, Popup: popup, PopupType: models.PopupEventReminder}

		id := event.ID
		mark := func() error {
			_, err := j.store.TransitionEvent(ctx, id, models.StatusReminded)
			return err
		}

		if err := j.hub.Deliver(envelope); err == nil {
			if markErr := mark(); markErr != nil {
				log.Printf("⚠️ [SCHEDULER] due-reminder transition failed for event %d: %v", id, markErr)
			}
		} else {
			j.retry.Enqueue(envelope, id, event.Title, "reminder_time", mark)
		}
	}
	return nil
}

func (j *DueRemindersJob) GetNextRunTime() time.Time {
	return time.Now().Add(30 * time.Second)
}

// SnoozeExpiryJob implements the 30-s snooze-expiry scan (spec §4.8): reads
// snoozed events whose reminder_time has elapsed and attempts delivery,
// transitioning back to discovered on success.
type SnoozeExpiryJob struct {
	store *store.Store
	tier  *tier.Service
	hub   Broadcaster
	retry *RetryQueue
}

// NewSnoozeExpiryJob assembles a SnoozeExpiryJob.
func NewSnoozeExpiryJob(s *store.Store, t *tier.Service, hub Broadcaster, retry *RetryQueue) *SnoozeExpiryJob {
	return &SnoozeExpiryJob{store: s, tier: t, hub: hub, retry: retry}
}

func (j *SnoozeExpiryJob) Run(ctx context.Context) error {
	expired, err := j.store.ListExpiredSnoozes(ctx, time.Now().Unix())
	if err != nil {
		return err
	}

	for i := range expired {
		event := expired[i]
		popup := j.tier.GeneratePopupBlueprint(ctx, models.PopupSnoozeReminder, event.Title, "", "")
		envelope := models.WSEnvelope{Type: models.WSNotification, Event: &event, Popup: popup, PopupType: models.PopupSnoozeReminder}

		id := event.ID
		mark := func() error {
			_, err := j.store.TransitionEvent(ctx, id, models.StatusDiscovered)
			return err
		}

		if err := j.hub.Deliver(envelope); err == nil {
			if markErr := mark(); markErr != nil {
				log.Printf("⚠️ [SCHEDULER] snooze-expiry transition failed for event %d: %v", id, markErr)
			}
		} else {
			j.retry.Enqueue(envelope, id, event.Title, "snooze_expiry", mark)
		}
	}
	return nil
}

func (j *SnoozeExpiryJob) GetNextRunTime() time.Time {
	return time.Now().Add(30 * time.Second)
}
