package scheduler

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"argus/internal/metrics"
	"argus/internal/models"
)

// retryBackoff is the fixed backoff schedule for a delivery retry item,
// indexed by attempt number (spec §4.8: "60 s, 300 s, 900 s").
var retryBackoff = []time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second}

const maxRetryAttempts = 3

// MarkFn runs once a retried delivery finally succeeds, applying whatever
// state transition the originating scan deferred (mark-fired, transition to
// reminded, etc).
type MarkFn func() error

// retryItem is one pending notification delivery awaiting its next attempt.
type retryItem struct {
	Envelope    models.WSEnvelope
	EventID     int64
	EventTitle  string
	TriggerType string
	Attempt     int
	NextRetryAt time.Time
	LastError   string
	Mark        MarkFn
}

// RetryQueue is the process-local ordered list of failed deliveries the
// due-reminders loop drains every 30 s (spec §4.8). Absolute timestamps
// (not task-local timers) mean a dropped scheduler tick only delays the
// retry by one period, per spec §5.
type RetryQueue struct {
	mu          sync.Mutex
	items       []*retryItem
	failPath    string
	failedCount atomic.Int64
}

// NewRetryQueue returns an empty RetryQueue that appends exhausted items to
// failPath ("data/failed-reminders.jsonl", spec §6, same rotation policy as
// the dead-letter — see DESIGN.md for why this is a sibling writer rather
// than a reuse of envelope.DeadLetterWriter, whose entry shape doesn't fit).
func NewRetryQueue(failPath string) *RetryQueue {
	return &RetryQueue{failPath: failPath}
}

// Enqueue adds a freshly-failed delivery at attempt 0.
func (q *RetryQueue) Enqueue(envelope models.WSEnvelope, eventID int64, eventTitle, triggerType string, mark MarkFn) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, &retryItem{
		Envelope:    envelope,
		EventID:     eventID,
		EventTitle:  eventTitle,
		TriggerType: triggerType,
		Attempt:     0,
		NextRetryAt: time.Now().Add(retryBackoff[0]),
		Mark:        mark,
	})
	q.reportDepth()
}

func (q *RetryQueue) reportDepth() {
	if m := metrics.Get(); m != nil {
		m.SetRetryQueueDepth(len(q.items))
	}
}

// Drain attempts redelivery of every item whose NextRetryAt has elapsed,
// using deliver to send the envelope. Items that succeed run their Mark
// function and are dropped; items that fail for the third time are appended
// to the failed-reminders file and dropped (their trigger/event stays
// unfired, so a later reconnection does not re-deliver, spec worked example
// S6); all others are rescheduled at the next backoff step.
func (q *RetryQueue) Drain(deliver func(models.WSEnvelope) error) {
	q.mu.Lock()
	due := make([]*retryItem, 0, len(q.items))
	var remaining []*retryItem
	now := time.Now()
	for _, item := range q.items {
		if now.After(item.NextRetryAt) || now.Equal(item.NextRetryAt) {
			due = append(due, item)
		} else {
			remaining = append(remaining, item)
		}
	}
	q.items = remaining
	q.mu.Unlock()

	for _, item := range due {
		err := deliver(item.Envelope)
		if err == nil {
			if item.Mark != nil {
				if markErr := item.Mark(); markErr != nil {
					log.Printf("⚠️ [SCHEDULER] retry mark-fn failed for event %d: %v", item.EventID, markErr)
				}
			}
			continue
		}

		item.Attempt++
		item.LastError = err.Error()
		if item.Attempt >= maxRetryAttempts {
			q.failedCount.Add(1)
			if writeErr := q.writeFailed(item); writeErr != nil {
				log.Printf("❌ [SCHEDULER] failed-reminders write failed: %v", writeErr)
			}
			if m := metrics.Get(); m != nil {
				m.RecordFailedReminder()
			}
			continue
		}

		item.NextRetryAt = now.Add(retryBackoff[item.Attempt])
		q.mu.Lock()
		q.items = append(q.items, item)
		q.mu.Unlock()
	}

	q.mu.Lock()
	q.reportDepth()
	q.mu.Unlock()
}

// Len reports the number of items currently awaiting retry, for metrics.
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// FailedCount reports how many items have been permanently dropped to the
// failed-reminders file over the process lifetime, for GET /api/health's
// scheduler.failedReminderCount (spec worked example S6).
func (q *RetryQueue) FailedCount() int64 {
	return q.failedCount.Load()
}

// failedRetryEntry is the exact shape of a failed-reminders.jsonl line
// (spec §6): {timestamp, eventId, eventTitle, triggerType, attempts, lastError}.
type failedRetryEntry struct {
	Timestamp   int64  `json:"timestamp"`
	EventID     int64  `json:"eventId"`
	EventTitle  string `json:"eventTitle"`
	TriggerType string `json:"triggerType"`
	Attempts    int    `json:"attempts"`
	LastError   string `json:"lastError"`
}

const failedFileMaxBytes = 10 * 1024 * 1024

func (q *RetryQueue) writeFailed(item *retryItem) error {
	if err := os.MkdirAll(filepath.Dir(q.failPath), 0o755); err != nil {
		return fmt.Errorf("scheduler: creating data dir: %w", err)
	}

	if info, statErr := os.Stat(q.failPath); statErr == nil && info.Size() >= failedFileMaxBytes {
		rotated := q.failPath + ".old"
		if renameErr := os.Rename(q.failPath, rotated); renameErr != nil {
			return fmt.Errorf("scheduler: rotating failed-reminders: %w", renameErr)
		}
	}

	entry := failedRetryEntry{
		Timestamp:   time.Now().Unix(),
		EventID:     item.EventID,
		EventTitle:  item.EventTitle,
		TriggerType: item.TriggerType,
		Attempts:    item.Attempt,
		LastError:   item.LastError,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("scheduler: marshaling failed entry: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(q.failPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("scheduler: opening %s: %w", q.failPath, err)
	}
	defer f.Close()

	_, err = f.Write(line)
	return err
}
