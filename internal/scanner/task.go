package scanner

import (
	"context"
	"time"

	"mixdeck/internal/background"
)

// RescanTask rescans one registered folder per call, cycling through them,
// so the catalogue catches changes the watcher missed.
type RescanTask struct {
	background.TaskBase

	scanner  *Scanner
	interval time.Duration
	now      func() time.Time

	next     int
	lastScan map[int64]time.Time
}

// NewRescanTask creates a task that revisits each folder at most once per
// interval.
func NewRescanTask(s *Scanner, interval time.Duration) *RescanTask {
	return &RescanTask{
		scanner:  s,
		interval: interval,
		now:      time.Now,
		lastScan: make(map[int64]time.Time),
	}
}

func (t *RescanTask) Name() string { return "rescan" }

func (t *RescanTask) ProcessWork(ctx context.Context) error {
	folders, err := t.scanner.lib.Folders.Folders()
	if err != nil {
		return err
	}
	if len(folders) == 0 {
		return nil
	}

	folder := folders[t.next%len(folders)]
	t.next = (t.next + 1) % len(folders)

	now := t.now()
	if last, ok := t.lastScan[folder.FolderID]; ok && now.Sub(last) < t.interval {
		return nil
	}
	t.lastScan[folder.FolderID] = now

	_, err = t.scanner.ScanFolder(ctx, folder, false)
	return err
}
