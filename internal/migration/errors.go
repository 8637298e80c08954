// Package migration checks and migrates run artifacts between schema
// versions. Only one version exists today (1.0.0), so migration is
// currently a version-stamp rewrite; the machinery exists so a future
// schema bump has somewhere to hang its transformation logic.
package migration

import "errors"

var ErrManifestNotFound = errors.New("migration: no manifest.json found in artifact directory")
