//go:build unix

package supervisor

import (
	"errors"
	"log/slog"
	"os/exec"
	"syscall"
	"time"
)

// setProcessGroup starts the child in a new session, which also makes it the
// leader of its own process group, so a timeout or cancellation can signal
// the whole subtree, not just the direct child.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

type killErrorKind int

const (
	killErrNoSuchProcess killErrorKind = iota
	killErrPermissionDenied
	killErrOther
	killErrUnknown
)

func classifyKillError(err error) killErrorKind {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return killErrUnknown
	}
	switch errno {
	case syscall.ESRCH:
		return killErrNoSuchProcess
	case syscall.EPERM:
		return killErrPermissionDenied
	default:
		return killErrOther
	}
}

// terminateProcess sends SIGTERM to the process group, waits briefly for a
// graceful exit, then escalates to SIGKILL. Every failure path falls back to
// killing the direct child so the caller's wait always unblocks.
func terminateProcess(cmd *exec.Cmd, pid int, waitCh <-chan error) {
	pgid := -pid

	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
		switch classifyKillError(err) {
		case killErrNoSuchProcess:
			return
		case killErrPermissionDenied:
			slog.Warn("permission denied sending SIGTERM to process group", "pid", pid)
			_ = cmd.Process.Kill()
			return
		default:
			slog.Warn("failed sending SIGTERM to process group, falling back", "pid", pid, "err", err)
			_ = cmd.Process.Kill()
			return
		}
	}

	select {
	case <-waitCh:
		return
	case <-time.After(300 * time.Millisecond):
	}

	if err := syscall.Kill(pgid, syscall.SIGKILL); err != nil {
		switch classifyKillError(err) {
		case killErrNoSuchProcess:
			return
		case killErrPermissionDenied:
			slog.Warn("permission denied sending SIGKILL to process group", "pid", pid)
		default:
			slog.Warn("failed sending SIGKILL to process group, falling back", "pid", pid, "err", err)
		}
	}
	_ = cmd.Process.Kill()
}
