package adapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// CodexAdapter drives the Codex CLI (Tier 1) via its `exec` subcommand
// in full-auto, JSON-streamed mode.
type CodexAdapter struct{}

func (CodexAdapter) BuildCommand(req SpawnRequest) AgentCommand {
	return AgentCommand{
		Program: "codex",
		Args:    []string{"exec", req.TaskPrompt, "--json", "--full-auto"},
		Cwd:     req.WorktreePath,
	}
}

func (CodexAdapter) ParseLine(line string) (AgentEvent, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return AgentEvent{}, false
	}

	var value map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
		return AgentEvent{}, false
	}

	eventType := EventUnknown
	switch kind, _ := value["type"].(string); kind {
	case "message":
		eventType = EventMessage
	case "function_call", "tool_call":
		eventType = EventToolCall
	case "function_call_output", "tool_result":
		eventType = EventToolResult
	case "completed", "done":
		eventType = EventCompleted
	case "error":
		eventType = EventFailed
	default:
		if _, hasUsage := value["usage"]; hasUsage {
			eventType = EventUsage
		}
	}

	return AgentEvent{EventType: eventType, Data: json.RawMessage(trimmed), RawLine: line}, true
}

// ParseRaw drops unparseable lines (Codex's stream is JSON-only, unlike
// Claude's plain-text fallback).
func (a CodexAdapter) ParseRaw(chunk []byte) []AgentEvent {
	var events []AgentEvent
	for _, line := range strings.Split(string(chunk), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if e, ok := a.ParseLine(line); ok {
			events = append(events, e)
		}
	}
	return events
}

// CodexProbe detects whether the codex CLI is installed and its `exec`
// subcommand supports --json.
type CodexProbe struct {
	runner CommandRunner
}

func NewCodexProbe(runner CommandRunner) CodexProbe {
	return CodexProbe{runner: runner}
}

func (CodexProbe) Key() string { return "codex" }
func (CodexProbe) Tier() Tier  { return TierOne }

func (p CodexProbe) Probe() ProbeResult {
	binaryPath, found := WhichBinary(p.runner, "codex")
	if !found {
		return MissingResult(p.Key(), p.Tier())
	}

	var version string
	if stdout, _, ok, _ := p.runner.Run("codex", "--version"); ok {
		version = strings.TrimSpace(stdout)
	}

	stdout, stderr, _, err := p.runner.Run("codex", "exec", "--help")
	if err != nil {
		slog.Warn("failed to run codex exec --help", "error", err)
		return ProbeResult{
			AdapterKey: p.Key(), Tier: p.Tier(), Status: StatusBlocked,
			BinaryPath: binaryPath, Version: version,
			Confidence: ConfidenceUnknown,
			Message:    fmt.Sprintf("failed to run exec --help: %v", err),
		}
	}
	execHelp := stdout + "\n" + stderr

	hasExec := execHelp != "\n"
	hasJSON := strings.Contains(execHelp, "--json")
	hasSandbox := strings.Contains(execHelp, "--sandbox")

	capabilities := Capabilities{
		JSONStream:      hasJSON,
		PlainText:       true,
		SandboxControls: hasSandbox,
	}

	var blocked []string
	if !hasExec {
		blocked = append(blocked, "exec subcommand not available")
	}
	if !hasJSON {
		blocked = append(blocked, "missing --json flag on exec subcommand")
	}

	if len(blocked) > 0 {
		msg := strings.Join(blocked, "; ")
		slog.Warn("codex adapter blocked", "reason", msg)
		return ProbeResult{
			AdapterKey: p.Key(), Tier: p.Tier(), Status: StatusBlocked,
			BinaryPath: binaryPath, Version: version, Capabilities: capabilities,
			Confidence: ConfidenceObserved, Message: msg,
		}
	}

	return ProbeResult{
		AdapterKey: p.Key(), Tier: p.Tier(), Status: StatusReady,
		BinaryPath: binaryPath, Version: version, Capabilities: capabilities,
		Confidence: ConfidenceVerified,
	}
}
