package artifact

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the terminal-or-in-flight status of a run.
type RunStatus string

const (
	StatusRunning     RunStatus = "running"
	StatusCompleted   RunStatus = "completed"
	StatusFailed      RunStatus = "failed"
	StatusTimedOut    RunStatus = "timed_out"
	StatusCancelled   RunStatus = "cancelled"
	StatusInterrupted RunStatus = "interrupted"
)

// Tier classifies an adapter's stability.
type Tier string

const (
	TierOne          Tier = "tier1"
	TierExperimental Tier = "experimental"
)

// AgentStatus is the per-agent lifecycle status recorded in the manifest.
type AgentStatus string

const (
	AgentStatusRunning   AgentStatus = "running"
	AgentStatusCompleted AgentStatus = "completed"
	AgentStatusFailed    AgentStatus = "failed"
	AgentStatusTimedOut  AgentStatus = "timed_out"
	AgentStatusCancelled AgentStatus = "cancelled"
)

// AgentEntry is one agent's record within a run's manifest.
type AgentEntry struct {
	AgentKey      string      `json:"agent_key"`
	Tier          Tier        `json:"tier"`
	Branch        string      `json:"branch"`
	WorktreePath  string      `json:"worktree_path,omitempty"`
	AdapterVersion string     `json:"adapter_version,omitempty"`
	StartedAt     time.Time   `json:"started_at"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
	Status        AgentStatus `json:"status"`
	TokenUsage    *int64      `json:"token_usage,omitempty"`
	CostEstimateUSD *float64  `json:"cost_estimate_usd,omitempty"`
}

// SchemaVersion is a SemVer triple; compatibility is major-match with
// reader-minor >= artifact-minor.
type SchemaVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// CurrentSchemaVersion is the schema version written by this build.
var CurrentSchemaVersion = SchemaVersion{Major: 1, Minor: 0, Patch: 0}

// ParseSchemaVersion parses a dotted "major.minor.patch" string.
func ParseSchemaVersion(s string) (SchemaVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return SchemaVersion{}, fmt.Errorf("invalid schema version %q: expected major.minor.patch", s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return SchemaVersion{}, fmt.Errorf("invalid major version %q in %q", parts[0], s)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return SchemaVersion{}, fmt.Errorf("invalid minor version %q in %q", parts[1], s)
	}
	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		return SchemaVersion{}, fmt.Errorf("invalid patch version %q in %q", parts[2], s)
	}
	return SchemaVersion{Major: major, Minor: minor, Patch: patch}, nil
}

// String formats the version as a dotted "major.minor.patch" string.
func (v SchemaVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsCompatibleWith reports whether a reader at version v can read an
// artifact written at version other: same major, and other's minor no
// newer than v's (forward-compatible reads only).
func (v SchemaVersion) IsCompatibleWith(other SchemaVersion) bool {
	return v.Major == other.Major && other.Minor <= v.Minor
}

// MarshalJSON encodes the version as its dotted string form, matching the
// wire format every manifest on disk actually uses.
func (v SchemaVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON decodes the version from its dotted string form.
func (v *SchemaVersion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSchemaVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Manifest is the single whole-file-atomic per-run descriptor.
type Manifest struct {
	SchemaVersion  SchemaVersion `json:"schema_version"`
	RunID          uuid.UUID     `json:"run_id"`
	RepoRoot       string        `json:"repo_root"`
	BaseRef        string        `json:"base_ref"`
	TaskPromptHash string        `json:"task_prompt_hash"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	Status         RunStatus     `json:"status"`
	Agents         []AgentEntry  `json:"agents"`
}

// NewManifest starts a manifest in the `running` state.
func NewManifest(runID uuid.UUID, repoRoot, baseRef, taskPromptHash string) *Manifest {
	return &Manifest{
		SchemaVersion:  CurrentSchemaVersion,
		RunID:          runID,
		RepoRoot:       repoRoot,
		BaseRef:        baseRef,
		TaskPromptHash: taskPromptHash,
		StartedAt:      time.Now().UTC(),
		Status:         StatusRunning,
		Agents:         []AgentEntry{},
	}
}

// Finish sets the manifest's terminal status; a later call overwrites it.
func (m *Manifest) Finish(status RunStatus) {
	now := time.Now().UTC()
	m.CompletedAt = &now
	m.Status = status
}
