package wsapi

import (
	"context"

	"github.com/agentkube/clustercore/pkg/clientbuild"
	"github.com/agentkube/clustercore/pkg/clusterregistry"
	"github.com/agentkube/clustercore/pkg/clustersource"
	"github.com/agentkube/clustercore/pkg/discovery"
	"github.com/agentkube/clustercore/pkg/kubeconfig"
)

type connectClusterPayload struct {
	ContextSource clustersource.Source `json:"contextSource"`
}

// handleConnectCluster wires a kubeconfig context to a live ClusterState
// and streams its discovery fan-out (cache replay then live, §4.5) over
// the requested channel. It is idempotent: a context already connected
// just attaches a new subscriber to the same Inflight run or its
// finished snapshot, matching §8 scenario 3.
func handleConnectCluster(c *Connection, frame ClientFrame) {
	var p connectClusterPayload
	if err := unmarshalPayload(frame, &p); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	clients, err := clientbuild.Build(p.ContextSource)
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	state := c.server.Registry.Connect(c.ctx, p.ContextSource, clients.Clientset, clients.Dynamic, clients.APIExt, clients.Config)

	err = c.sup.Submit(frame.ChannelID, func(ctx context.Context) {
		streamDiscovery(ctx, c, frame.ChannelID, state)
	})
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	c.sendResult(frame.ReqID, struct{}{})
}

type discoveredResourceEvent struct {
	Group   string `json:"group"`
	Version string `json:"version"`
	Kind    string `json:"kind"`
	Plural  string `json:"plural"`
	Source  string `json:"source"`
	Scope   string `json:"scope"`
}

func toResourceEvent(r discovery.DiscoveredResource) discoveredResourceEvent {
	return discoveredResourceEvent{
		Group: r.Group, Version: r.Version, Kind: r.Kind,
		Plural: r.Plural, Source: string(r.Source), Scope: string(r.Scope),
	}
}

type crdDiscoveredEvent struct {
	GVK discovery.GVK `json:"gvk"`
	CRD interface{}   `json:"crd"`
}

// streamDiscovery subscribes to state's Inflight fan-out and forwards
// every event to the frontend over channel, translating the sealed
// discovery.Event union into the named events §6 lists for
// connect_cluster. It runs for the lifetime of the background task the
// caller registered it under.
func streamDiscovery(ctx context.Context, c *Connection, channel uint32, state *clusterregistry.ClusterState) {
	ch, cancel := state.Fanout.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			switch v := ev.(type) {
			case discovery.ResourceDiscovered:
				c.sendEvent(channel, "DiscoveredResource", toResourceEvent(v.Resource))
			case discovery.ResourceRemoved:
				c.sendEvent(channel, "RemovedResource", toResourceEvent(v.Resource))
			case discovery.CRDDiscovered:
				c.sendEvent(channel, "CustomResourceDefinition", crdDiscoveredEvent{GVK: v.GVK, CRD: v.CRD})
			case discovery.Completed:
				c.sendEvent(channel, "DiscoveryComplete", struct{}{})
				return
			case discovery.Failed:
				c.sendEvent(channel, "DiscoveryFailed", map[string]string{"error": v.Err.Error()})
				c.sendEvent(0, "ERR_CLUSTER_DISCOVERY", map[string]string{"context": state.Source.Context, "error": v.Err.Error()})
				return
			}
		}
	}
}

type discoverContextsResult struct {
	Provider string `json:"provider"`
	Source   string `json:"source"`
	Context  string `json:"context"`
}

// handleDiscoverContexts answers §6's discover_contexts: the full merged
// list of kubeconfig contexts found on disk, with collision renaming
// already applied by pkg/kubeconfig.
func handleDiscoverContexts(c *Connection, frame ClientFrame) {
	entries := kubeconfig.LoadAll(c.server.Home, c.server.ConfigDir)

	out := make([]discoverContextsResult, 0, len(entries))
	for _, e := range entries {
		src := e.Source()
		out = append(out, discoverContextsResult{Provider: string(src.Provider), Source: src.Source, Context: src.Context})
	}

	c.sendResult(frame.ReqID, out)
}

type cleanupChannelPayload struct {
	ChannelID uint32 `json:"channelId"`
}

// handleCleanupChannel aborts whatever background task is registered
// under channel_id, whether it has started yet or not (§4.3's
// submit/abort race).
func handleCleanupChannel(c *Connection, frame ClientFrame) {
	var p cleanupChannelPayload
	if err := unmarshalPayload(frame, &p); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	c.sup.Abort(p.ChannelID)
	c.sendResult(frame.ReqID, struct{}{})
}
