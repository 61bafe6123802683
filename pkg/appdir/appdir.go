// Package appdir resolves the application data directory and its three
// persistence namespaces (§6: "persistence/clusters/<context>",
// "persistence/profiles/<profile>", and the supplemented
// "persistence/pinned/<context>"). Grounded on original_source's
// dirs.rs (a per-OS app-data root) realized in the shape of
// config/config.go's configDir() — env override, then a $HOME-based
// default, create-if-missing — generalized from one flat directory to
// the three namespaces this module actually persists into.
package appdir

import (
	"os"
	"path/filepath"
	"runtime"
)

const envOverride = "CLUSTERCORE_DATA_DIR"

// Root returns the application data directory, creating it if missing.
func Root() string {
	dir := resolveRoot()
	_ = os.MkdirAll(dir, 0o770)
	return dir
}

func resolveRoot() string {
	if dir := os.Getenv(envOverride); dir != "" {
		return dir
	}

	var home string
	if runtime.GOOS == "windows" {
		home = os.Getenv("USERPROFILE")
	} else {
		home = os.Getenv("HOME")
	}

	return filepath.Join(home, ".agentkube", "clustercore")
}

// ClustersDir is where the Discovery Cache Service (C3) persists one
// document per connected cluster context.
func ClustersDir() string {
	dir := filepath.Join(Root(), "clusters")
	_ = os.MkdirAll(dir, 0o770)
	return dir
}

// PinnedDir is where the Cluster Registry's pinned-GVK supplement
// persists one document per cluster context, alongside but separate from
// the discovery cache so the two can evolve independently.
func PinnedDir() string {
	dir := filepath.Join(Root(), "pinned")
	_ = os.MkdirAll(dir, 0o770)
	return dir
}

// ProfilesDir is where higher-level "profile" services (outside this
// core, per spec.md §1) persist per-profile keys. Exposed here only so a
// single app-data layout is defined in one place.
func ProfilesDir() string {
	dir := filepath.Join(Root(), "profiles")
	_ = os.MkdirAll(dir, 0o770)
	return dir
}

// ExtensionsDir is where per-user view/context-menu scripts live
// (spec.md §6 "Extension scripts").
func ExtensionsDir() string {
	return filepath.Join(Root(), "extensions")
}
