package discoverycache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentkube/clustercore/pkg/discovery"
)

func pod() discovery.DiscoveredResource {
	return discovery.DiscoveredResource{Group: "", Version: "v1", Kind: "Pod", Plural: "pods", Source: discovery.Builtin, Scope: discovery.ScopeNamespaced}
}

func svc() discovery.DiscoveredResource {
	return discovery.DiscoveredResource{Group: "", Version: "v1", Kind: "Service", Plural: "services", Source: discovery.Builtin, Scope: discovery.ScopeNamespaced}
}

func foo() discovery.DiscoveredResource {
	return discovery.DiscoveredResource{Group: "example.com", Version: "v1", Kind: "Foo", Plural: "foos", Source: discovery.CustomResource, Scope: discovery.ScopeNamespaced}
}

func TestLoadMissingFileReturnsEmptySet(t *testing.T) {
	s := NewStore(t.TempDir())
	got, err := s.Load("no-such-context")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load on a missing cache = %v, want empty set", got)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := NewStore(t.TempDir())

	want := map[discovery.DiscoveredResource]struct{}{
		pod(): {}, svc(): {}, foo(): {},
	}
	if err := s.Save("my-context", want); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got, err := s.Load("my-context")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Load returned %d resources, want %d", len(got), len(want))
	}
	for r := range want {
		if _, ok := got[r]; !ok {
			t.Errorf("Load result missing %+v", r)
		}
	}
}

func TestLoadToleratesBareArrayShape(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	raw, err := json.Marshal([]discovery.DiscoveredResource{pod(), svc()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "legacy.json"), raw, 0o644); err != nil {
		t.Fatalf("writing legacy cache file: %v", err)
	}

	got, err := s.Load("legacy")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Load returned %d resources, want 2", len(got))
	}
}

func TestLoadToleratesSetShape(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	raw, err := json.Marshal(map[string]discovery.DiscoveredResource{
		"anything": pod(),
		"ignored":  svc(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "setshaped.json"), raw, 0o644); err != nil {
		t.Fatalf("writing set-shaped cache file: %v", err)
	}

	got, err := s.Load("setshaped")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Load returned %d resources, want 2", len(got))
	}
}

// TestDiffReportsOnlyVanishedResources covers §4.6's diff rule and §8
// scenario 2 (CRD uninstalled between connects).
func TestDiffReportsOnlyVanishedResources(t *testing.T) {
	previous := map[discovery.DiscoveredResource]struct{}{pod(): {}, svc(): {}, foo(): {}}
	current := map[discovery.DiscoveredResource]struct{}{pod(): {}, svc(): {}}

	removed := Diff(previous, current)
	if len(removed) != 1 {
		t.Fatalf("Diff returned %d entries, want 1", len(removed))
	}
	if removed[0] != foo() {
		t.Errorf("Diff returned %+v, want %+v", removed[0], foo())
	}
}

func TestDiffEmptyWhenNothingVanished(t *testing.T) {
	set := map[discovery.DiscoveredResource]struct{}{pod(): {}, svc(): {}}
	if removed := Diff(set, set); len(removed) != 0 {
		t.Errorf("Diff(set, set) = %v, want empty", removed)
	}
}

func TestSaveOverwritesPreviousDocument(t *testing.T) {
	s := NewStore(t.TempDir())

	if err := s.Save("ctx", map[discovery.DiscoveredResource]struct{}{pod(): {}, svc(): {}, foo(): {}}); err != nil {
		t.Fatalf("first Save returned error: %v", err)
	}
	if err := s.Save("ctx", map[discovery.DiscoveredResource]struct{}{pod(): {}, svc(): {}}); err != nil {
		t.Fatalf("second Save returned error: %v", err)
	}

	got, err := s.Load("ctx")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Load after overwrite returned %d resources, want 2", len(got))
	}
	if _, ok := got[foo()]; ok {
		t.Error("overwritten cache should not retain the previously-cached Foo")
	}
}
