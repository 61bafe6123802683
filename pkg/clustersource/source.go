// Package clustersource defines the identity of a cluster target.
package clustersource

import "fmt"

// Provider names the origin of a Source. Only "file" (a kubeconfig file on
// disk) exists today; the type is a string, not an enum, so a future
// provider doesn't require a breaking change to callers that persist it.
type Provider string

const (
	// ProviderFile identifies a context read from a kubeconfig file.
	ProviderFile Provider = "file"
)

// Source identifies a cluster target: a provider, an opaque locator within
// that provider (a file path for ProviderFile), and a context name within
// the locator. It is a plain comparable struct so it can be used directly
// as a map key (the Cluster Registry's key, the discovery cache's key) —
// Go gives structural equality and hashing for free on comparable structs.
type Source struct {
	Provider Provider `json:"provider"`
	Source   string   `json:"source"`
	Context  string   `json:"context"`
}

// New builds a Source for a kubeconfig file.
func New(path, context string) Source {
	return Source{Provider: ProviderFile, Source: path, Context: context}
}

func (s Source) String() string {
	return fmt.Sprintf("%s:%s#%s", s.Provider, s.Source, s.Context)
}

// CacheKey is the filesystem-safe identifier used to namespace persisted
// state for this source (discovery cache, pinned GVKs). Using the context
// name alone matches spec.md §6's persistence layout
// (persistence/clusters/<context_source.context>); collisions between two
// providers/sources sharing a context name are resolved at kubeconfig load
// time (pkg/kubeconfig renames on collision), not here.
func (s Source) CacheKey() string {
	return s.Context
}
