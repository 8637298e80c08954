package artifact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// RetentionPolicy controls which runs a sweep keeps.
type RetentionPolicy string

const (
	RetentionNone   RetentionPolicy = "none"
	RetentionFailed RetentionPolicy = "failed"
	RetentionAll    RetentionPolicy = "all"
)

// RetentionConfig is the sweep policy applied by Cleanup.
type RetentionConfig struct {
	Policy     RetentionPolicy
	MaxAgeDays *int
}

// Cleanup enforces the retention policy over every run under
// hydraRoot/runs/. Runs with an unreadable manifest are skipped with a
// logged warning rather than failing the whole sweep. Returns the number
// of run directories removed.
func Cleanup(hydraRoot string, cfg RetentionConfig) (int, error) {
	runsDir := filepath.Join(hydraRoot, "runs")
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read runs directory: %w", err)
	}

	now := time.Now().UTC()
	removed := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runID, err := uuid.Parse(entry.Name())
		if err != nil {
			continue
		}

		path := filepath.Join(runsDir, entry.Name())
		layout := NewRunLayout(hydraRoot, runID)
		store := NewStore(layout, nil)

		manifest, err := store.ReadManifest()
		if err != nil {
			slog.Warn("skipping run with unreadable manifest", "path", path, "error", err)
			continue
		}

		if shouldRemove(manifest, cfg, now) {
			slog.Info("removing run artifacts", "run_id", manifest.RunID, "path", path)
			if err := os.RemoveAll(path); err != nil {
				return removed, fmt.Errorf("remove run directory %s: %w", path, err)
			}
			removed++
		}
	}

	slog.Info("retention cleanup complete", "removed", removed)
	return removed, nil
}

func shouldRemove(manifest *Manifest, cfg RetentionConfig, now time.Time) bool {
	switch cfg.Policy {
	case RetentionNone:
		return true
	case RetentionFailed:
		if manifest.Status != StatusFailed {
			return true
		}
	case RetentionAll:
	}

	if cfg.MaxAgeDays != nil {
		ageDays := int(now.Sub(manifest.StartedAt).Hours() / 24)
		if ageDays > *cfg.MaxAgeDays {
			return true
		}
	}

	return false
}
