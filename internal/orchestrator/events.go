package orchestrator

import (
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/phstella/hydra/internal/artifact"
	"github.com/phstella/hydra/internal/supervisor"
)

// appendEvent builds and appends one run event in a single call.
func appendEvent(store *artifact.Store, kind artifact.EventKind, agentKey string, data interface{}) error {
	evt, err := artifact.NewEvent(kind, agentKey, data)
	if err != nil {
		return err
	}
	return store.AppendEvent(evt)
}

// handleSupervisorEvent routes one supervisor.TaggedEvent into the run's
// event log and updates the originating agent's tracker. Supervisor events
// are always delivered in order for a given agent: Started precedes output
// events, which precede the terminal event.
func (o *Orchestrator) handleSupervisorEvent(store *artifact.Store, runID uuid.UUID, tagged supervisor.TaggedEvent, tr *agentTracker) {
	key := tagged.AgentKey
	evt := tagged.Event

	switch evt.Kind {
	case supervisor.EventStarted:
		if err := appendEvent(store, artifact.EventAgentStarted, key, map[string]any{"pid": evt.PID}); err != nil {
			slog.Warn("append agent_started failed", "run_id", runID, "agent", key, "err", err)
		}

	case supervisor.EventAgentEvent:
		// Parsed output arrives immediately before the raw EventStdout for
		// the same line; stash it so the stdout handler can emit the richer
		// payload instead of a bare {"line": ...} blob.
		agentEvt := evt.Agent
		tr.pendingParsed = &agentEvt

	case supervisor.EventStdout:
		appendAgentLog(o.layoutFor(runID).AgentStdout(key), evt.Line)

		var data interface{}
		if tr.pendingParsed != nil {
			data = tr.pendingParsed
			tr.pendingParsed = nil
		} else {
			data = map[string]any{"line": evt.Line}
		}
		if err := appendEvent(store, artifact.EventAgentStdout, key, data); err != nil {
			slog.Warn("append agent_stdout failed", "run_id", runID, "agent", key, "err", err)
		}

	case supervisor.EventStderr:
		appendAgentLog(o.layoutFor(runID).AgentStderr(key), evt.Line)
		if err := appendEvent(store, artifact.EventAgentStderr, key, map[string]any{"line": evt.Line}); err != nil {
			slog.Warn("append agent_stderr failed", "run_id", runID, "agent", key, "err", err)
		}

	case supervisor.EventCompleted:
		code := evt.ExitCode
		tr.exitCode = &code
		tr.duration = evt.Duration
		now := tr.startedAt.Add(evt.Duration)
		tr.completedAt = &now
		if code == 0 {
			tr.status = artifact.AgentStatusCompleted
		} else {
			tr.status = artifact.AgentStatusFailed
		}
		if err := appendEvent(store, artifact.EventAgentCompleted, key, map[string]any{
			"exit_code":   code,
			"duration_ms": evt.Duration.Milliseconds(),
		}); err != nil {
			slog.Warn("append agent_completed failed", "run_id", runID, "agent", key, "err", err)
		}

	case supervisor.EventFailed:
		tr.duration = evt.Duration
		now := tr.startedAt.Add(evt.Duration)
		tr.completedAt = &now
		if strings.Contains(evt.Error, "cancelled") {
			tr.status = artifact.AgentStatusCancelled
		} else {
			tr.status = artifact.AgentStatusFailed
		}
		if err := appendEvent(store, artifact.EventAgentFailed, key, map[string]any{"error": evt.Error}); err != nil {
			slog.Warn("append agent_failed failed", "run_id", runID, "agent", key, "err", err)
		}

	case supervisor.EventTimedOut:
		tr.duration = evt.Duration
		now := tr.startedAt.Add(evt.Duration)
		tr.completedAt = &now
		tr.status = artifact.AgentStatusTimedOut
		if err := appendEvent(store, artifact.EventAgentFailed, key, map[string]any{"reason": evt.TimeoutKind.String(), "error": "timed out"}); err != nil {
			slog.Warn("append agent_failed (timeout) failed", "run_id", runID, "agent", key, "err", err)
		}
	}
}

// layoutFor is a small convenience so event handling doesn't need to thread
// a *artifact.RunLayout through every call site separately from the store.
func (o *Orchestrator) layoutFor(runID uuid.UUID) *artifact.RunLayout {
	return artifact.NewRunLayout(o.hydraRoot, runID)
}

// appendAgentLog appends one raw line to an agent's stdout/stderr log file,
// creating the file (and its directory) on first write.
func appendAgentLog(path, line string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		slog.Warn("failed to create agent log directory", "path", path, "err", err)
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Warn("failed to open agent log", "path", path, "err", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		slog.Warn("failed to append agent log line", "path", path, "err", err)
	}
}

// hashPrompt returns a deterministic, non-cryptographic hex digest of a
// task prompt, used only for deduplication/display, never for security.
func hashPrompt(prompt string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(prompt))
	return toHex16(h.Sum64())
}

func toHex16(v uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(buf)
}
