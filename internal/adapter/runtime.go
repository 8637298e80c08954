package adapter

import "encoding/json"

// SpawnRequest is everything an adapter needs to build the command line
// for one race attempt.
type SpawnRequest struct {
	TaskPrompt       string
	WorktreePath     string
	TimeoutSeconds   int
	ForceEdit        bool
	OutputJSONStream bool
}

// AgentCommand is a fully-built external command ready for the
// supervisor to spawn.
type AgentCommand struct {
	Program string
	Args    []string
	Env     []string
	Cwd     string
}

// EventType classifies a single parsed line of an agent's streamed output.
type EventType string

const (
	EventMessage    EventType = "message"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventCompleted  EventType = "completed"
	EventFailed     EventType = "failed"
	EventUsage      EventType = "usage"
	EventProgress   EventType = "progress"
	EventUnknown    EventType = "unknown"
)

// AgentEvent is one parsed unit of an agent's output stream.
type AgentEvent struct {
	EventType EventType       `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	RawLine   string          `json:"raw_line,omitempty"`
}

// Runtime is implemented by each concrete adapter: it builds the command
// to spawn and parses the agent's output stream into AgentEvents.
type Runtime interface {
	BuildCommand(req SpawnRequest) AgentCommand
	ParseLine(line string) (AgentEvent, bool)
	ParseRaw(chunk []byte) []AgentEvent
}
