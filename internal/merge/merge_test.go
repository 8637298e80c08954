package merge

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestParseDiffStatFull(t *testing.T) {
	output := " src/main.go | 10 ++++------\n src/lib.go  |  5 +++--\n 2 files changed, 7 insertions(+), 8 deletions(-)\n"
	files, ins, del := parseDiffStat(output)
	if files != 2 || ins != 7 || del != 8 {
		t.Fatalf("got %d %d %d", files, ins, del)
	}
}

func TestParseDiffStatInsertionsOnly(t *testing.T) {
	files, ins, del := parseDiffStat(" 1 file changed, 3 insertions(+)\n")
	if files != 1 || ins != 3 || del != 0 {
		t.Fatalf("got %d %d %d", files, ins, del)
	}
}

func TestParseDiffStatDeletionsOnly(t *testing.T) {
	files, ins, del := parseDiffStat(" 1 file changed, 5 deletions(-)\n")
	if files != 1 || ins != 0 || del != 5 {
		t.Fatalf("got %d %d %d", files, ins, del)
	}
}

func TestParseDiffStatEmpty(t *testing.T) {
	files, ins, del := parseDiffStat("")
	if files != 0 || ins != 0 || del != 0 {
		t.Fatalf("got %d %d %d", files, ins, del)
	}
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v (%s)", args, err, out)
	}
}

func initRepoWithDefaultBranch(t *testing.T, dir string) {
	t.Helper()
	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "test@hydra.dev")
	runGit(t, dir, "config", "user.name", "Hydra Test")
	if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte("initial\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "initial")
}

func checkoutDefaultBranch(t *testing.T, dir string) {
	t.Helper()
	cmd := exec.Command("git", "checkout", "master")
	cmd.Dir = dir
	if err := cmd.Run(); err != nil {
		runGit(t, dir, "checkout", "main")
	}
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func TestDryRunOnRealRepo(t *testing.T) {
	requireGit(t)
	root := t.TempDir()
	initRepoWithDefaultBranch(t, root)

	runGit(t, root, "checkout", "-b", "feature")
	if err := os.WriteFile(filepath.Join(root, "file.txt"), []byte("modified\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "feature change")

	checkoutDefaultBranch(t, root)

	svc := New(root)
	report, err := svc.DryRun(context.Background(), "feature", "HEAD")
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if !report.DryRun || !report.CanMerge {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %+v", report.Conflicts)
	}
	if report.FilesChanged == 0 {
		t.Fatal("expected files_changed > 0")
	}

	status, err := gitCommand(context.Background(), root, "status", "--porcelain")
	if err != nil || status != "" {
		t.Fatalf("expected clean tree after dry-run abort, status=%q err=%v", status, err)
	}
}

func TestMergeConflictDetection(t *testing.T) {
	requireGit(t)
	root := t.TempDir()
	runGit(t, root, "init")
	runGit(t, root, "config", "user.email", "test@hydra.dev")
	runGit(t, root, "config", "user.name", "Hydra Test")
	if err := os.WriteFile(filepath.Join(root, "file.txt"), []byte("line1\nline2\nline3\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "initial")

	runGit(t, root, "checkout", "-b", "feature")
	if err := os.WriteFile(filepath.Join(root, "file.txt"), []byte("feature-line1\nline2\nline3\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "feature change")

	checkoutDefaultBranch(t, root)
	if err := os.WriteFile(filepath.Join(root, "file.txt"), []byte("main-line1\nline2\nline3\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "main change")

	svc := New(root)
	report, err := svc.DryRun(context.Background(), "feature", "HEAD")
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if report.CanMerge {
		t.Fatal("expected conflict")
	}
	if len(report.Conflicts) == 0 {
		t.Fatal("expected at least one conflict")
	}
}

func TestActualMergeSucceeds(t *testing.T) {
	requireGit(t)
	root := t.TempDir()
	initRepoWithDefaultBranch(t, root)

	runGit(t, root, "checkout", "-b", "feature")
	if err := os.WriteFile(filepath.Join(root, "new_file.txt"), []byte("new content\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "add new file")

	checkoutDefaultBranch(t, root)

	svc := New(root)
	report, err := svc.Merge(context.Background(), MergeRequest{
		SourceBranch: "feature",
		TargetBranch: "HEAD",
		RunID:        uuid.New(),
		AgentKey:     "claude",
		Confirmed:    true,
		Mergeable:    true,
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if report.DryRun || !report.CanMerge {
		t.Fatalf("report = %+v", report)
	}
	if _, err := os.Stat(filepath.Join(root, "new_file.txt")); err != nil {
		t.Fatalf("expected new_file.txt to exist after merge: %v", err)
	}
}

func TestMergeWithoutConfirmationIsRejected(t *testing.T) {
	requireGit(t)
	root := t.TempDir()
	initRepoWithDefaultBranch(t, root)
	runGit(t, root, "checkout", "-b", "feature")
	checkoutDefaultBranch(t, root)

	svc := New(root)
	_, err := svc.Merge(context.Background(), MergeRequest{
		SourceBranch: "feature",
		TargetBranch: "HEAD",
		Mergeable:    true,
	})
	if err != ErrConfirmationRequired {
		t.Fatalf("err = %v, want ErrConfirmationRequired", err)
	}
}

func TestMergeOfUngateableAgentRejectedWithoutForce(t *testing.T) {
	requireGit(t)
	root := t.TempDir()
	initRepoWithDefaultBranch(t, root)
	runGit(t, root, "checkout", "-b", "feature")
	checkoutDefaultBranch(t, root)

	svc := New(root)
	_, err := svc.Merge(context.Background(), MergeRequest{
		SourceBranch: "feature",
		TargetBranch: "HEAD",
		Confirmed:    true,
		Mergeable:    false,
		GateFailures: []string{"build failed"},
	})
	if err == nil {
		t.Fatal("expected rejection")
	}
}

func TestMergeOfUngateableAgentAllowedWithForce(t *testing.T) {
	requireGit(t)
	root := t.TempDir()
	initRepoWithDefaultBranch(t, root)
	runGit(t, root, "checkout", "-b", "feature")
	checkoutDefaultBranch(t, root)

	svc := New(root)
	report, err := svc.Merge(context.Background(), MergeRequest{
		SourceBranch: "feature",
		TargetBranch: "HEAD",
		RunID:        uuid.New(),
		AgentKey:     "codex",
		Confirmed:    true,
		Mergeable:    false,
		GateFailures: []string{"build failed"},
		Force:        true,
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !report.CanMerge {
		t.Fatalf("report = %+v", report)
	}
}

func TestPreflightRefusesDirtyWorkingTree(t *testing.T) {
	requireGit(t)
	root := t.TempDir()
	initRepoWithDefaultBranch(t, root)
	runGit(t, root, "checkout", "-b", "feature")
	checkoutDefaultBranch(t, root)

	if err := os.WriteFile(filepath.Join(root, "file.txt"), []byte("dirty\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if err := Preflight(context.Background(), root, "feature"); err != ErrWorkingTreeDirty {
		t.Fatalf("err = %v, want ErrWorkingTreeDirty", err)
	}
}

func TestPreflightRefusesMissingBranch(t *testing.T) {
	requireGit(t)
	root := t.TempDir()
	initRepoWithDefaultBranch(t, root)

	err := Preflight(context.Background(), root, "does-not-exist")
	if err == nil {
		t.Fatal("expected error for missing branch")
	}
}

func TestPreflightRefusesMergeInProgress(t *testing.T) {
	requireGit(t)
	root := t.TempDir()
	initRepoWithDefaultBranch(t, root)
	runGit(t, root, "checkout", "-b", "feature")
	if err := os.WriteFile(filepath.Join(root, "file.txt"), []byte("feature change\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "feature change")

	checkoutDefaultBranch(t, root)
	if err := os.WriteFile(filepath.Join(root, "file.txt"), []byte("main change\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "main change")

	// Start a merge and leave it in progress (conflicting content).
	cmd := exec.Command("git", "merge", "feature")
	cmd.Dir = root
	_ = cmd.Run() // expected to fail with a conflict, leaving MERGE_HEAD set

	err := Preflight(context.Background(), root, "feature")
	if err != ErrMergeInProgress {
		t.Fatalf("err = %v, want ErrMergeInProgress", err)
	}

	// Clean up so TempDir removal doesn't trip over repo state.
	abortCmd := exec.Command("git", "merge", "--abort")
	abortCmd.Dir = root
	_ = abortCmd.Run()
}
