package recording

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/acousland/MacEaves/internal/util"
)

// startCleanupScheduler starts the daily retention sweep.
func (m *Manager) startCleanupScheduler() {
	go func() {
		for {
			// Run at 03:00 local time, when no meeting is likely.
			now := time.Now()
			next := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
			if now.After(next) {
				next = next.Add(24 * time.Hour)
			}

			select {
			case <-time.After(next.Sub(now)):
				m.runCleanup()
			case <-m.cleanupStopCh:
				return
			}
		}
	}()
}

// runCleanup removes recordings older than the retention window.
func (m *Manager) runCleanup() {
	if m.retentionDays <= 0 {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -m.retentionDays)

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		slog.Warn("cleanup: failed to read recording directory", "path", m.dir, "error", err)
		return
	}

	var deleted int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, "meeting-") || !strings.HasSuffix(name, ".wav") {
			continue
		}

		fileDate, ok := util.ExtractDateFromFilename(name)
		if !ok || !fileDate.Before(cutoff) {
			continue
		}

		path := filepath.Join(m.dir, name)
		if m.isCurrentFile(path) {
			continue
		}
		if err := os.Remove(path); err != nil {
			slog.Warn("cleanup: failed to delete recording", "path", path, "error", err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		slog.Info("cleanup: removed expired recordings", "count", deleted, "retention_days", m.retentionDays)
	}
}
