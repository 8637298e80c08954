package artifact

import (
	"encoding/json"
	"time"
)

// EventKind is one of the closed set of event kinds an artifact event log
// may contain.
type EventKind string

const (
	EventRunStarted     EventKind = "run_started"
	EventRunCompleted   EventKind = "run_completed"
	EventRunFailed      EventKind = "run_failed"
	EventAgentStarted   EventKind = "agent_started"
	EventAgentCompleted EventKind = "agent_completed"
	EventAgentFailed    EventKind = "agent_failed"
	EventAgentStdout    EventKind = "agent_stdout"
	EventAgentStderr    EventKind = "agent_stderr"
	EventScoreStarted   EventKind = "score_started"
	EventScoreFinished  EventKind = "score_finished"
	EventMergeReady     EventKind = "merge_ready"
	EventMergeSucceeded EventKind = "merge_succeeded"
	EventMergeConflict  EventKind = "merge_conflict"
)

// allEventKinds enumerates every EventKind.
var allEventKinds = []EventKind{
	EventRunStarted, EventRunCompleted, EventRunFailed,
	EventAgentStarted, EventAgentCompleted, EventAgentFailed,
	EventAgentStdout, EventAgentStderr,
	EventScoreStarted, EventScoreFinished,
	EventMergeReady, EventMergeSucceeded, EventMergeConflict,
}

// Event is a single line of a run's append-only event log.
type Event struct {
	Timestamp time.Time       `json:"timestamp"`
	Kind      EventKind       `json:"event_kind"`
	AgentKey  string          `json:"agent_key,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an Event, marshaling data to JSON.
func NewEvent(kind EventKind, agentKey string, data interface{}) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		AgentKey:  agentKey,
		Data:      raw,
	}, nil
}
