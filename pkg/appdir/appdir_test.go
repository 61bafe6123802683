package appdir

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRootHonorsEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(envOverride, dir)

	if got := Root(); got != dir {
		t.Fatalf("Root() = %q, want %q", got, dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("Root() did not create its directory: %v", err)
	}
}

func TestNamespaceDirsAreCreatedUnderRoot(t *testing.T) {
	root := t.TempDir()
	t.Setenv(envOverride, root)

	for name, fn := range map[string]func() string{
		"clusters":   ClustersDir,
		"pinned":     PinnedDir,
		"profiles":   ProfilesDir,
		"extensions": ExtensionsDir,
	} {
		got := fn()
		want := filepath.Join(root, name)
		if got != want {
			t.Errorf("%sDir() = %q, want %q", name, got, want)
		}
	}

	if _, err := os.Stat(filepath.Join(root, "clusters")); err != nil {
		t.Errorf("ClustersDir() did not create its directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "extensions")); err == nil {
		t.Errorf("ExtensionsDir() should not create its directory eagerly")
	}
}
