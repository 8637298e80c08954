package artifact

import "strings"

// HealthMetrics are run health figures computable from a run's event log —
// a supplemented feature grounded in Hydra's original
// `artifact/schema.rs` (`RunHealthMetrics`).
type HealthMetrics struct {
	TotalAgents              int     `json:"total_agents"`
	AgentsCompleted          int     `json:"agents_completed"`
	AgentsFailed             int     `json:"agents_failed"`
	SuccessRate              float64 `json:"success_rate"`
	TotalEvents              int     `json:"total_events"`
	OrchestrationOverheadMs  *int64  `json:"orchestration_overhead_ms,omitempty"`
	AdapterErrors            int     `json:"adapter_errors"`
}

// HealthFromEvents computes HealthMetrics from a run's full event list.
func HealthFromEvents(events []Event) HealthMetrics {
	var agentsStarted, agentsCompleted, agentsFailed, adapterErrors int

	for _, e := range events {
		switch e.Kind {
		case EventAgentStarted:
			agentsStarted++
		case EventAgentCompleted:
			agentsCompleted++
		case EventAgentFailed:
			agentsFailed++
			if !errorLooksLikeCancellationOrTimeout(e.Data) {
				adapterErrors++
			}
		}
	}

	successRate := 0.0
	if agentsStarted > 0 {
		successRate = float64(agentsCompleted) / float64(agentsStarted)
	}

	m := HealthMetrics{
		TotalAgents:     agentsStarted,
		AgentsCompleted: agentsCompleted,
		AgentsFailed:    agentsFailed,
		SuccessRate:     successRate,
		TotalEvents:     len(events),
		AdapterErrors:   adapterErrors,
	}

	if overhead := computeOverheadMs(events); overhead != nil {
		m.OrchestrationOverheadMs = overhead
	}

	return m
}

func errorLooksLikeCancellationOrTimeout(data []byte) bool {
	s := string(data)
	return strings.Contains(s, "cancelled") || strings.Contains(s, "timed out")
}

func computeOverheadMs(events []Event) *int64 {
	var runStarted, firstAgentStarted *Event
	for i := range events {
		e := &events[i]
		if e.Kind == EventRunStarted && runStarted == nil {
			runStarted = e
		}
		if e.Kind == EventAgentStarted && firstAgentStarted == nil {
			firstAgentStarted = e
		}
	}
	if runStarted == nil || firstAgentStarted == nil {
		return nil
	}
	diff := firstAgentStarted.Timestamp.Sub(runStarted.Timestamp).Milliseconds()
	if diff < 0 {
		diff = -diff
	}
	return &diff
}
