package scheduler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"argus/internal/models"
)

func TestRetryQueueSucceedsOnNextDrain(t *testing.T) {
	q := NewRetryQueue(filepath.Join(t.TempDir(), "failed-reminders.jsonl"))
	marked := false
	q.Enqueue(models.WSEnvelope{Type: models.WSTrigger}, 1, "dentist", "time_1h", func() error {
		marked = true
		return nil
	})
	if q.Len() != 1 {
		t.Fatalf("expected 1 queued item, got %d", q.Len())
	}

	// NextRetryAt is still in the future, so a drain with a succeeding
	// deliver stub must NOT deliver it yet.
	q.Drain(func(models.WSEnvelope) error { return nil })
	if q.Len() != 1 {
		t.Fatalf("expected item to still be pending before its backoff elapses, got %d", q.Len())
	}
	if marked {
		t.Fatal("mark-fn should not have run before the backoff elapsed")
	}

	// Force the item past its NextRetryAt; the next drain delivers it.
	q.mu.Lock()
	for _, it := range q.items {
		it.NextRetryAt = it.NextRetryAt.Add(-2 * retryBackoff[0])
	}
	q.mu.Unlock()
	q.Drain(func(models.WSEnvelope) error { return nil })
	if q.Len() != 0 {
		t.Fatalf("expected item delivered once its backoff elapsed, got %d", q.Len())
	}
	if !marked {
		t.Fatal("expected mark-fn to run after the successful delivery")
	}
}

func TestRetryQueueExhaustsToFailedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed-reminders.jsonl")
	q := NewRetryQueue(path)
	q.Enqueue(models.WSEnvelope{Type: models.WSTrigger}, 42, "team sync", "time_1h", func() error { return nil })

	// Force every item past its NextRetryAt by directly manipulating queue state.
	q.mu.Lock()
	for _, it := range q.items {
		it.NextRetryAt = it.NextRetryAt.Add(-2 * retryBackoff[0])
	}
	q.mu.Unlock()

	failing := func(models.WSEnvelope) error { return errors.New("no client connected") }
	q.Drain(failing)
	if q.Len() != 1 {
		t.Fatalf("expected item rescheduled after attempt 1, got %d items", q.Len())
	}

	q.mu.Lock()
	for _, it := range q.items {
		it.NextRetryAt = it.NextRetryAt.Add(-2 * retryBackoff[1])
	}
	q.mu.Unlock()
	q.Drain(failing)
	if q.Len() != 1 {
		t.Fatalf("expected item rescheduled after attempt 2, got %d items", q.Len())
	}

	q.mu.Lock()
	for _, it := range q.items {
		it.NextRetryAt = it.NextRetryAt.Add(-2 * retryBackoff[2])
	}
	q.mu.Unlock()
	q.Drain(failing)
	if q.Len() != 0 {
		t.Fatalf("expected item dropped after third failure, got %d items", q.Len())
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected failed-reminders.jsonl to exist: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("expected a written failure line")
	}
}

func TestBackupDateParsesCanonicalNames(t *testing.T) {
	date, ok := backupDate("argus-backup-2026-08-03.json")
	if !ok {
		t.Fatal("expected canonical name to parse")
	}
	if date.Year() != 2026 || date.Month() != 8 || date.Day() != 3 {
		t.Fatalf("unexpected parsed date: %v", date)
	}

	if _, ok := backupDate("not-a-backup.txt"); ok {
		t.Fatal("expected non-backup filename to be rejected")
	}
}

func TestListBackupsReturnsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"argus-backup-2026-08-01.json", "argus-backup-2026-08-03.json", "argus-backup-2026-08-02.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	names, err := ListBackups(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"argus-backup-2026-08-03.json", "argus-backup-2026-08-02.json", "argus-backup-2026-08-01.json"}
	if len(names) != len(want) {
		t.Fatalf("expected %d backups, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, names)
		}
	}
}
