package artifact

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/phstella/hydra/internal/redact"
)

// Store is the artifact store for a single run: owns the manifest and the
// append-only event log. Manifest rewrites are whole-file atomic; event
// appends are flushed (fsynced) before returning, matching spec.md §4.3's
// "atomic-per-line" requirement.
type Store struct {
	layout   *RunLayout
	redactor *redact.Redactor // nil disables redaction

	mu sync.Mutex
}

// NewStore returns a Store for the given layout. If redactor is non-nil,
// every appended event line is passed through it first.
func NewStore(layout *RunLayout, redactor *redact.Redactor) *Store {
	return &Store{layout: layout, redactor: redactor}
}

// Create materializes the run's directory tree.
func (s *Store) Create(agentKeys []string) error {
	return s.layout.CreateDirs(agentKeys)
}

// WriteManifest writes the manifest as pretty JSON, atomically.
func (s *Store) WriteManifest(m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	if err := renameio.WriteFile(s.layout.ManifestPath(), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest reads and parses the manifest.
func (s *Store) ReadManifest() (*Manifest, error) {
	data, err := os.ReadFile(s.layout.ManifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrManifestMissing
		}
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// AppendEvent appends one event as a single JSON line, flushed before return.
func (s *Store) AppendEvent(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	text := string(line)
	if s.redactor != nil {
		text = s.redactor.Line(text)
	}

	f, err := os.OpenFile(s.layout.EventsPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open events log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(text + "\n"); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return f.Sync()
}

// ReadEvents reads every event in the log, reporting a *ParseError (wrapping
// the line number) for any malformed line rather than aborting the read.
func (s *Store) ReadEvents() ([]Event, []error) {
	f, err := os.Open(s.layout.EventsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{err}
	}
	defer f.Close()

	var events []Event
	var parseErrors []error

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			parseErrors = append(parseErrors, &ParseError{Path: s.layout.EventsPath(), Line: lineNo, Err: err})
			continue
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, err)
	}

	return events, parseErrors
}

// WriteJSON atomically writes an arbitrary JSON-serializable value to path —
// used for score.json and merge_report.json artifacts under the run's tree.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')
	return renameio.WriteFile(path, data, 0o644)
}
