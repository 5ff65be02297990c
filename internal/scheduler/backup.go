package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"argus/internal/store"
)

const backupFirstRunDelay = 60 * time.Second

// DailySnapshotJob implements the 24-h daily-snapshot task (spec §4.8):
// exports all collections to a dated JSON file and prunes backups older
// than the configured retention window.
type DailySnapshotJob struct {
	store         *store.Store
	dir           string
	retentionDays int
	firstRun      bool
}

// NewDailySnapshotJob assembles a DailySnapshotJob writing into dir
// ("data/backups", spec §6), retaining retentionDays of history (default 7).
func NewDailySnapshotJob(s *store.Store, dir string, retentionDays int) *DailySnapshotJob {
	return &DailySnapshotJob{store: s, dir: dir, retentionDays: retentionDays}
}

func (j *DailySnapshotJob) Run(ctx context.Context) error {
	j.firstRun = true

	now := time.Now().UTC()
	backup, err := j.store.Export(ctx, "daily-snapshot", now.Unix())
	if err != nil {
		return fmt.Errorf("scheduler: exporting backup: %w", err)
	}

	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("scheduler: creating backup dir: %w", err)
	}

	name := fmt.Sprintf("argus-backup-%s.json", now.Format("2006-01-02"))
	path := filepath.Join(j.dir, name)
	raw, err := json.Marshal(backup)
	if err != nil {
		return fmt.Errorf("scheduler: marshaling backup: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("scheduler: writing backup: %w", err)
	}

	return j.pruneOld(now)
}

// pruneOld deletes backups whose filename-encoded date is older than the
// retention window.
func (j *DailySnapshotJob) pruneOld(now time.Time) error {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return fmt.Errorf("scheduler: reading backup dir: %w", err)
	}

	cutoff := now.AddDate(0, 0, -j.retentionDays)
	for _, entry := range entries {
		date, ok := backupDate(entry.Name())
		if !ok || !date.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(j.dir, entry.Name())); err != nil {
			return fmt.Errorf("scheduler: pruning %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func backupDate(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, "argus-backup-") || !strings.HasSuffix(name, ".json") {
		return time.Time{}, false
	}
	dateStr := strings.TrimSuffix(strings.TrimPrefix(name, "argus-backup-"), ".json")
	t, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (j *DailySnapshotJob) GetNextRunTime() time.Time {
	if !j.firstRun {
		return time.Now().Add(backupFirstRunDelay)
	}
	return time.Now().Add(24 * time.Hour)
}

// ListBackups returns the names of all retained backup files, most recent
// first, for the /api/backup/list route.
func ListBackups(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if _, ok := backupDate(entry.Name()); ok {
			names = append(names, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}
