package adapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// ClaudeAdapter drives the Claude CLI (Tier 1): stream-json output,
// bypass-permissions mode so it never blocks on an interactive prompt.
type ClaudeAdapter struct{}

func (ClaudeAdapter) BuildCommand(req SpawnRequest) AgentCommand {
	return AgentCommand{
		Program: "claude",
		Args: []string{
			"-p", req.TaskPrompt,
			"--output-format", "stream-json",
			"--permission-mode", "bypassPermissions",
		},
		Cwd: req.WorktreePath,
	}
}

func (ClaudeAdapter) ParseLine(line string) (AgentEvent, bool) {
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
	case "assistant", "message":
		eventType = EventMessage
	case "tool_use":
		eventType = EventToolCall
	case "tool_result":
		eventType = EventToolResult
	case "result", "content_block_stop":
		eventType = EventCompleted
	case "error":
		eventType = EventFailed
	case "usage", "message_delta":
		if _, hasUsage := value["usage"]; hasUsage {
			eventType = EventUsage
		} else {
			eventType = EventProgress
		}
	}

	return AgentEvent{EventType: eventType, Data: json.RawMessage(trimmed), RawLine: line}, true
}

func (a ClaudeAdapter) ParseRaw(chunk []byte) []AgentEvent {
	var events []AgentEvent
	for _, line := range strings.Split(string(chunk), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if e, ok := a.ParseLine(line); ok {
			events = append(events, e)
		} else {
			data, _ := json.Marshal(map[string]string{"text": line})
			events = append(events, AgentEvent{EventType: EventMessage, Data: data, RawLine: line})
		}
	}
	return events
}

// ClaudeProbe detects whether the claude CLI is installed and supports
// the flags Hydra depends on (-p/--print, --output-format).
type ClaudeProbe struct {
	runner CommandRunner
}

func NewClaudeProbe(runner CommandRunner) ClaudeProbe {
	return ClaudeProbe{runner: runner}
}

func (ClaudeProbe) Key() string  { return "claude" }
func (ClaudeProbe) Tier() Tier   { return TierOne }

func (p ClaudeProbe) Probe() ProbeResult {
	binaryPath, found := WhichBinary(p.runner, "claude")
	if !found {
		return MissingResult(p.Key(), p.Tier())
	}

	var version string
	if stdout, _, ok, _ := p.runner.Run("claude", "--version"); ok {
		version = strings.TrimSpace(stdout)
	}

	stdout, stderr, _, err := p.runner.Run("claude", "--help")
	if err != nil {
		slog.Warn("failed to run claude --help", "error", err)
		return ProbeResult{
			AdapterKey: p.Key(), Tier: p.Tier(), Status: StatusBlocked,
			BinaryPath: binaryPath, Version: version,
			Confidence: ConfidenceUnknown,
			Message:    fmt.Sprintf("failed to run --help: %v", err),
		}
	}
	helpOutput := stdout + "\n" + stderr

	hasPrint := strings.Contains(helpOutput, "-p") || strings.Contains(helpOutput, "--print")
	hasOutputFormat := strings.Contains(helpOutput, "--output-format")
	hasResume := strings.Contains(helpOutput, "--resume")

	capabilities := Capabilities{
		PlainText:     hasPrint,
		JSONStream:    hasOutputFormat,
		SessionResume: hasResume,
	}

	var blocked []string
	if !hasPrint {
		blocked = append(blocked, "missing -p/--print flag")
	}
	if !hasOutputFormat {
		blocked = append(blocked, "missing --output-format flag")
	}

	if len(blocked) > 0 {
		msg := strings.Join(blocked, "; ")
		slog.Warn("claude adapter blocked", "reason", msg)
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
