// Package discovery implements the two-phase (built-in then custom) API
// discovery engine (C2) and the data model shared with the Cluster Registry.
package discovery

import (
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
)

// ResourceSource distinguishes a built-in kind from a CRD-backed one.
type ResourceSource string

const (
	Builtin        ResourceSource = "Builtin"
	CustomResource ResourceSource = "CustomResource"
)

// Scope is the Kubernetes scoping of a kind.
type Scope string

const (
	ScopeCluster    Scope = "Cluster"
	ScopeNamespaced Scope = "Namespaced"
)

// GVK is the group/version/kind triple used as the map key throughout
// discovery. It is comparable and therefore hashable like the spec's
// "Hashable by all fields" GVK map key.
type GVK struct {
	Group   string `json:"group"`
	Version string `json:"version"`
	Kind    string `json:"kind"`
}

// DiscoveredResource is one discovered kind.
type DiscoveredResource struct {
	Group   string         `json:"group"`
	Version string         `json:"version"`
	Kind    string         `json:"kind"`
	Plural  string         `json:"plural"`
	Source  ResourceSource `json:"source"`
	Scope   Scope          `json:"scope"`
}

// GVK returns the natural key for this resource.
func (d DiscoveredResource) GVK() GVK {
	return GVK{Group: d.Group, Version: d.Version, Kind: d.Kind}
}

// NaturalKey is the deduplication key mentioned in §4.5 for a late
// fan-out subscriber that might observe the same value twice: the
// GVK/plural/scope/source tuple.
type NaturalKey struct {
	GVK    GVK
	Plural string
	Scope  Scope
	Source ResourceSource
}

func (d DiscoveredResource) NaturalKey() NaturalKey {
	return NaturalKey{GVK: d.GVK(), Plural: d.Plural, Scope: d.Scope, Source: d.Source}
}

// CompletedDiscovery is the immutable snapshot produced once a discovery
// run finishes successfully.
type CompletedDiscovery struct {
	Resources map[GVK]DiscoveredResource
	CRDs      map[GVK]*apiextensionsv1.CustomResourceDefinition
}

func newCompletedDiscovery() *CompletedDiscovery {
	return &CompletedDiscovery{
		Resources: make(map[GVK]DiscoveredResource),
		CRDs:      make(map[GVK]*apiextensionsv1.CustomResourceDefinition),
	}
}

// ResourceSet returns the discovered resources as a set, the shape the
// Discovery Cache Service persists and diffs against.
func (c *CompletedDiscovery) ResourceSet() map[DiscoveredResource]struct{} {
	out := make(map[DiscoveredResource]struct{}, len(c.Resources))
	for _, r := range c.Resources {
		out[r] = struct{}{}
	}
	return out
}
