package adapter

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// cursorCandidates are binary names tried in priority order when
// discovering the Cursor agent CLI.
var cursorCandidates = []string{"cursor-agent", "cursor"}

// CursorAdapter drives the Cursor agent CLI. Experimental: its output
// format is not stabilized, so parsing falls back to plain text on any
// non-JSON line.
type CursorAdapter struct{}

func (CursorAdapter) BuildCommand(req SpawnRequest) AgentCommand {
	args := []string{req.TaskPrompt}
	if req.OutputJSONStream {
		args = append(args, "--json")
	}
	return AgentCommand{Program: "cursor-agent", Args: args, Cwd: req.WorktreePath}
}

func (CursorAdapter) ParseLine(line string) (AgentEvent, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return AgentEvent{}, false
	}

	var value map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &value); err == nil {
		eventType := EventUnknown
		switch kind, _ := value["type"].(string); kind {
		case "message":
			eventType = EventMessage
		case "tool_call":
			eventType = EventToolCall
		case "tool_result":
			eventType = EventToolResult
		case "completed", "done":
			eventType = EventCompleted
		case "error":
			eventType = EventFailed
		}
		return AgentEvent{EventType: eventType, Data: json.RawMessage(trimmed), RawLine: line}, true
	}

	data, _ := json.Marshal(map[string]string{"text": trimmed})
	return AgentEvent{EventType: EventMessage, Data: data, RawLine: line}, true
}

func (a CursorAdapter) ParseRaw(chunk []byte) []AgentEvent {
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

// CursorProbe detects the Cursor agent CLI. Always classifies as
// Experimental, never promoted to Tier1 regardless of capabilities.
type CursorProbe struct {
	runner         CommandRunner
	configuredPath string
}

func NewCursorProbe(runner CommandRunner) CursorProbe {
	return CursorProbe{runner: runner}
}

// WithConfiguredPath tries a user-configured binary path before falling
// back to a PATH search of cursorCandidates.
func (p CursorProbe) WithConfiguredPath(path string) CursorProbe {
	p.configuredPath = path
	return p
}

func (CursorProbe) Key() string { return "cursor-agent" }
func (CursorProbe) Tier() Tier  { return TierExperimental }

func (p CursorProbe) discoverBinary() (name, path string, found bool) {
	if p.configuredPath != "" {
		if stdout, stderr, _, err := p.runner.Run(p.configuredPath, "--help"); err == nil && (stdout != "" || stderr != "") {
			return p.configuredPath, p.configuredPath, true
		}
	}
	for _, candidate := range cursorCandidates {
		if path, ok := WhichBinary(p.runner, candidate); ok {
			return candidate, path, true
		}
	}
	return "", "", false
}

func (p CursorProbe) Probe() ProbeResult {
	binaryName, binaryPath, found := p.discoverBinary()
	if !found {
		return ProbeResult{
			AdapterKey: p.Key(), Tier: p.Tier(), Status: StatusMissing,
			Confidence: ConfidenceUnknown,
			Message:    "cursor-agent/cursor binary not found in PATH",
		}
	}

	var version string
	if stdout, _, ok, _ := p.runner.Run(binaryName, "--version"); ok {
		version = strings.TrimSpace(stdout)
	}

	stdout, stderr, _, err := p.runner.Run(binaryName, "--help")
	if err != nil {
		slog.Warn("failed to run cursor --help", "error", err)
		return ProbeResult{
			AdapterKey: p.Key(), Tier: p.Tier(), Status: StatusExperimentalBlocked,
			BinaryPath: binaryPath, Version: version,
			Confidence: ConfidenceUnknown,
			Message:    "failed to run --help: " + err.Error(),
		}
	}
	helpOutput := stdout + "\n" + stderr

	hasJSON := strings.Contains(helpOutput, "--json") || strings.Contains(helpOutput, "json")
	hasEdit := strings.Contains(helpOutput, "--edit") || strings.Contains(helpOutput, "edit mode")

	capabilities := Capabilities{
		PlainText:     true,
		JSONStream:    hasJSON,
		ForceEditMode: hasEdit,
	}

	status, confidence := StatusExperimentalReady, ConfidenceObserved
	if strings.TrimSpace(helpOutput) == "" {
		status, confidence = StatusExperimentalBlocked, ConfidenceUnknown
	}

	return ProbeResult{
		AdapterKey: p.Key(), Tier: p.Tier(), Status: status,
		BinaryPath: binaryPath, Version: version, Capabilities: capabilities,
		Confidence: confidence,
	}
}
