package migration

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/phstella/hydra/internal/artifact"
)

// Report summarizes one migration operation.
type Report struct {
	FromVersion   string   `json:"from_version"`
	ToVersion     string   `json:"to_version"`
	FilesMigrated uint32   `json:"files_migrated"`
	Warnings      []string `json:"warnings"`
}

// NeedsMigration reports whether the manifest at manifestPath is written
// at any schema version other than the current one (older, newer, or of
// an incompatible major). The manifest is read as raw JSON rather than unmarshaled
// into artifact.Manifest, since an incompatible future version might not
// even fit that struct.
func NeedsMigration(manifestPath string) (bool, error) {
	version, err := readSchemaVersion(manifestPath)
	if err != nil {
		return false, err
	}
	current := artifact.CurrentSchemaVersion
	return !current.IsCompatibleWith(version) || version != current, nil
}

// Migrate brings the manifest in artifactDir up to the current schema
// version. v1.0.0 is the only version that has ever existed, so this only
// rewrites the schema_version stamp; a future version bump would add its
// field transformations here, gated on `from`.
func Migrate(artifactDir string) (Report, error) {
	manifestPath := filepath.Join(artifactDir, "manifest.json")
	if _, err := os.Stat(manifestPath); err != nil {
		return Report{}, fmt.Errorf("%w: %s", ErrManifestNotFound, artifactDir)
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return Report{}, fmt.Errorf("read manifest: %w", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Report{}, fmt.Errorf("parse manifest: %w", err)
	}

	fromVersion, _ := doc["schema_version"].(string)
	if fromVersion == "" {
		fromVersion = "unknown"
	}

	current := artifact.CurrentSchemaVersion
	from, err := artifact.ParseSchemaVersion(fromVersion)
	if err != nil {
		from = artifact.SchemaVersion{}
	}

	if from == current {
		slog.Debug("artifacts already at current schema version", "version", current)
		return Report{FromVersion: fromVersion, ToVersion: current.String(), FilesMigrated: 0}, nil
	}

	doc["schema_version"] = current.String()
	migrated, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Report{}, fmt.Errorf("serialize migrated manifest: %w", err)
	}
	migrated = append(migrated, '\n')
	if err := os.WriteFile(manifestPath, migrated, 0o644); err != nil {
		return Report{}, fmt.Errorf("write migrated manifest: %w", err)
	}

	var warnings []string
	eventsPath := filepath.Join(artifactDir, "events.jsonl")
	if _, err := os.Stat(eventsPath); err != nil {
		warnings = append(warnings, "no events.jsonl found in artifact directory")
	} else {
		slog.Debug("events.jsonl found; no migration needed for events at this version")
	}

	slog.Info("migration complete", "from", fromVersion, "to", current.String(), "files_migrated", 1)
	return Report{
		FromVersion:   fromVersion,
		ToVersion:     current.String(),
		FilesMigrated: 1,
		Warnings:      warnings,
	}, nil
}

func readSchemaVersion(manifestPath string) (artifact.SchemaVersion, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return artifact.SchemaVersion{}, fmt.Errorf("read manifest %s: %w", manifestPath, err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return artifact.SchemaVersion{}, fmt.Errorf("parse manifest: %w", err)
	}
	versionStr, ok := doc["schema_version"].(string)
	if !ok {
		return artifact.SchemaVersion{}, fmt.Errorf("manifest missing 'schema_version' field")
	}
	return artifact.ParseSchemaVersion(versionStr)
}
