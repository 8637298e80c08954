package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func mustCreateRun(t *testing.T, root string, status RunStatus, startedAt time.Time) uuid.UUID {
	t.Helper()
	runID := uuid.New()
	layout := NewRunLayout(root, runID)
	if err := layout.CreateDirs(nil); err != nil {
		t.Fatalf("CreateDirs: %v", err)
	}
	store := NewStore(layout, nil)
	manifest := NewManifest(runID, "/repo", "main", "hash")
	manifest.StartedAt = startedAt
	manifest.Status = status
	if err := store.WriteManifest(manifest); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	return runID
}

func TestCleanupPolicyNoneRemovesAll(t *testing.T) {
	root := t.TempDir()
	mustCreateRun(t, root, StatusCompleted, time.Now().UTC())
	mustCreateRun(t, root, StatusCompleted, time.Now().UTC())

	removed, err := Cleanup(root, RetentionConfig{Policy: RetentionNone})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	entries, _ := os.ReadDir(filepath.Join(root, "runs"))
	if len(entries) != 0 {
		t.Fatalf("expected no runs left, got %d", len(entries))
	}
}

func TestCleanupPolicyFailedKeepsFailures(t *testing.T) {
	root := t.TempDir()
	okID := mustCreateRun(t, root, StatusCompleted, time.Now().UTC())
	failID := mustCreateRun(t, root, StatusFailed, time.Now().UTC())

	removed, err := Cleanup(root, RetentionConfig{Policy: RetentionFailed})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	if _, err := os.Stat(NewRunLayout(root, failID).BaseDir()); err != nil {
		t.Fatalf("expected failed run to survive: %v", err)
	}
	if _, err := os.Stat(NewRunLayout(root, okID).BaseDir()); !os.IsNotExist(err) {
		t.Fatalf("expected completed run to be removed, err=%v", err)
	}
}

func TestCleanupPolicyAllWithMaxAge(t *testing.T) {
	root := t.TempDir()
	oldID := mustCreateRun(t, root, StatusCompleted, time.Now().UTC().AddDate(0, 0, -100))
	newID := mustCreateRun(t, root, StatusCompleted, time.Now().UTC())

	maxAge := 30
	removed, err := Cleanup(root, RetentionConfig{Policy: RetentionAll, MaxAgeDays: &maxAge})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	if _, err := os.Stat(NewRunLayout(root, oldID).BaseDir()); !os.IsNotExist(err) {
		t.Fatalf("expected old run removed, err=%v", err)
	}
	if _, err := os.Stat(NewRunLayout(root, newID).BaseDir()); err != nil {
		t.Fatalf("expected new run to survive: %v", err)
	}
}

func TestCleanupNoRunsDir(t *testing.T) {
	root := t.TempDir()
	removed, err := Cleanup(root, RetentionConfig{Policy: RetentionNone})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected 0 removed, got %d", removed)
	}
}

func TestCleanupSkipsUnreadableManifest(t *testing.T) {
	root := t.TempDir()
	runID := uuid.New()
	if err := NewRunLayout(root, runID).CreateDirs(nil); err != nil {
		t.Fatalf("CreateDirs: %v", err)
	}
	// No manifest written: ReadManifest will fail, and Cleanup must skip it
	// rather than error out.

	removed, err := Cleanup(root, RetentionConfig{Policy: RetentionNone})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected 0 removed for unreadable manifest, got %d", removed)
	}
}
