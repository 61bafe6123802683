package discovery

import apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"

// Event is the sealed set of events the discovery pipeline produces. It is
// implemented by the concrete event types below; callers type-switch on
// the concrete type the way §4.2's InternalDiscoveryEvent union is
// consumed.
type Event interface {
	isDiscoveryEvent()
}

// ResourceDiscovered announces one newly-seen kind.
type ResourceDiscovered struct {
	Resource DiscoveredResource
}

// ResourceRemoved announces a kind that was in the cache but didn't
// reappear in this run's confirmed set (§4.6 diff rule). Emitted by the
// Cluster Registry, not the Discovery Engine itself.
type ResourceRemoved struct {
	Resource DiscoveredResource
}

// CRDDiscovered announces a CustomResourceDefinition payload, keyed by its
// latest version's GVK.
type CRDDiscovered struct {
	GVK GVK
	CRD *apiextensionsv1.CustomResourceDefinition
}

// Completed is the terminal success event.
type Completed struct {
	Discovery *CompletedDiscovery
}

// Failed is the terminal failure event — the redesign flag from spec.md's
// Open Questions, implemented here instead of left as a future revision:
// a discovery error is surfaced to the fan-out so no subscriber hangs.
type Failed struct {
	Err error
}

func (ResourceDiscovered) isDiscoveryEvent() {}
func (ResourceRemoved) isDiscoveryEvent()    {}
func (CRDDiscovered) isDiscoveryEvent()      {}
func (Completed) isDiscoveryEvent()          {}
func (Failed) isDiscoveryEvent()             {}
