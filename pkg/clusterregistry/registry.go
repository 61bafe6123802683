// Package clusterregistry implements the Cluster Registry (C4): it owns
// one ClusterState per connected cluster, runs discovery exactly once per
// connect, and is the only component allowed to finalize a discovery run
// (diff against the cache, emit ResourceRemoved events, and close out the
// fan-out with Completed or Failed). Grounded on original_source's
// app_state/kubernetes_client_registry.rs (KubernetesClientRegistry,
// ClusterState, the registered map keyed by an id) adapted to key on
// clustersource.Source instead of a freshly minted UUID, since the spec
// treats a (provider, source, context) triple as the cluster identity.
package clusterregistry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/agentkube/clustercore/pkg/appdir"
	"github.com/agentkube/clustercore/pkg/clustererr"
	"github.com/agentkube/clustercore/pkg/clustersource"
	"github.com/agentkube/clustercore/pkg/discovery"
	"github.com/agentkube/clustercore/pkg/discoverycache"
	"github.com/agentkube/clustercore/pkg/fanout"
	"github.com/agentkube/clustercore/pkg/logger"
	"github.com/agentkube/clustercore/pkg/menufacade"
	"github.com/agentkube/clustercore/pkg/viewengine"
	apiextensionsclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	k8sdiscovery "k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// ClusterState is everything the registry knows about one connected
// cluster: its clients, its discovery fan-out, and (once discovery
// finishes) the completed snapshot.
type ClusterState struct {
	Source  clustersource.Source
	Client  kubernetes.Interface
	Dynamic dynamic.Interface
	Config  *rest.Config
	Fanout  *fanout.Fanout

	// Views and Menu are the per-cluster View Renderer pipeline (C7) and
	// Context-menu scripting facade (C8). They are bound to this
	// cluster's dynamic client at Connect time, per spec.md §3's
	// ClusterState including a "scripting_facade" alongside its client.
	Views *viewengine.Registry
	Menu  *menufacade.Facade

	mu        sync.RWMutex
	completed *discovery.CompletedDiscovery
	failed    error
}

// Completed returns the finished discovery snapshot, or nil if discovery
// is still inflight or ended in error.
func (c *ClusterState) Completed() *discovery.CompletedDiscovery {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.completed
}

// Err returns the error a failed discovery run ended with, if any.
func (c *ClusterState) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failed
}

func (c *ClusterState) setCompleted(d *discovery.CompletedDiscovery) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed = d
}

func (c *ClusterState) setFailed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = err
}

// ViewLoader loads builtin and extension view/menu scripts into a
// freshly built ClusterState. Injected so clusterregistry doesn't need
// to know the frontend layer's clipboard delivery mechanism directly.
type ViewLoader struct {
	BuiltinViewsDir string
	ExtensionsDir   string

	// BuiltinMenusDir and ExtensionMenusDir hold context-menu section
	// scripts (C8), loaded the same way as views but kept in their own
	// directories so the view loader's *.yaml scan never trips over a
	// menu document's unrelated shape.
	BuiltinMenusDir   string
	ExtensionMenusDir string

	OnClipboard func(source clustersource.Source, write menufacade.ClipboardWrite)
}

// Registry holds one ClusterState per connected source and pinned GVK
// lists (the supplemented feature from cluster_profiles/gvk_service.rs).
type Registry struct {
	mu       sync.RWMutex
	clusters map[clustersource.Source]*ClusterState

	cache  *discoverycache.Store
	loader ViewLoader

	pinnedMu sync.Mutex
	pinned   map[string][]discovery.GVK
}

func New(cache *discoverycache.Store, loader ViewLoader) *Registry {
	return &Registry{
		clusters: make(map[clustersource.Source]*ClusterState),
		cache:    cache,
		loader:   loader,
		pinned:   make(map[string][]discovery.GVK),
	}
}

// Connect registers a cluster and starts its discovery run. It is
// idempotent and race-free per §4.4: a second Connect for a source that
// is already registered returns the existing ClusterState without
// starting a second discovery run or clobbering the first.
func (r *Registry) Connect(ctx context.Context, source clustersource.Source, client kubernetes.Interface, dyn dynamic.Interface, apiext apiextensionsclientset.Interface, cfg *rest.Config) *ClusterState {
	r.mu.Lock()
	if existing, ok := r.clusters[source]; ok {
		r.mu.Unlock()
		return existing
	}

	views := viewengine.NewRegistry()
	if err := views.LoadDir(r.loader.BuiltinViewsDir); err != nil {
		logger.Log(logger.LevelWarn, map[string]string{"context": source.Context}, err, "loading builtin view scripts")
	}
	if err := views.LoadDir(r.loader.ExtensionsDir); err != nil {
		logger.Log(logger.LevelWarn, map[string]string{"context": source.Context}, err, "loading extension view scripts")
	}

	onClipboard := func(menufacade.ClipboardWrite) {}
	if r.loader.OnClipboard != nil {
		onClipboard = func(w menufacade.ClipboardWrite) { r.loader.OnClipboard(source, w) }
	}
	menu, err := menufacade.New(dyn, onClipboard)
	if err != nil {
		logger.Log(logger.LevelError, map[string]string{"context": source.Context}, err, "building context-menu facade")
	} else {
		// §4.8: "At cluster connect, the facade loads builtin scripts
		// then extension scripts." Mirrors the views.LoadDir pair above.
		if err := menu.LoadDir(r.loader.BuiltinMenusDir); err != nil {
			logger.Log(logger.LevelWarn, map[string]string{"context": source.Context}, err, "loading builtin menu scripts")
		}
		if err := menu.LoadDir(r.loader.ExtensionMenusDir); err != nil {
			logger.Log(logger.LevelWarn, map[string]string{"context": source.Context}, err, "loading extension menu scripts")
		}
	}

	state := &ClusterState{
		Source:  source,
		Client:  client,
		Dynamic: dyn,
		Config:  cfg,
		Fanout:  fanout.New(),
		Views:   views,
		Menu:    menu,
	}
	r.clusters[source] = state
	r.mu.Unlock()

	go r.runDiscovery(ctx, state, client.Discovery(), apiext)

	return state
}

func (r *Registry) runDiscovery(ctx context.Context, state *ClusterState, disco k8sdiscovery.DiscoveryInterface, apiext apiextensionsclientset.Interface) {
	engine := discovery.New(disco, apiext)

	previous, cacheErr := r.cache.Load(state.Source.CacheKey())
	if cacheErr != nil {
		logger.Log(logger.LevelWarn, map[string]string{"context": state.Source.Context}, cacheErr, "loading discovery cache, treating as empty")
		previous = map[discovery.DiscoveredResource]struct{}{}
	}

	// Seed the fan-out from the durable cache before driving the live
	// engine, so a subscriber attached now (or attaching while discovery
	// is still inflight) sees last-known kinds immediately instead of
	// waiting on the full run — C3's "fast startup" purpose (§4.4 step 2,
	// §8 scenario 2). The engine's live re-confirmation of the same kinds
	// is deduplicated by Fanout.Publish's natural-key check, not here.
	for cached := range previous {
		state.Fanout.Publish(discovery.ResourceDiscovered{Resource: cached})
	}

	result, err := engine.Run(ctx, func(ev discovery.Event) error {
		state.Fanout.Publish(ev)
		return nil
	})
	if err != nil {
		logger.Log(logger.LevelError, map[string]string{"context": state.Source.Context}, err, "discovery run failed")
		state.setFailed(err)
		state.Fanout.Publish(discovery.Failed{Err: clustererr.KubeClient(err, "discovery run failed")})
		return
	}

	current := result.ResourceSet()

	for _, removed := range discoverycache.Diff(previous, current) {
		state.Fanout.Publish(discovery.ResourceRemoved{Resource: removed})
	}

	if err := r.cache.Save(state.Source.CacheKey(), current); err != nil {
		logger.Log(logger.LevelError, map[string]string{"context": state.Source.Context}, err, "saving discovery cache")
	}

	state.setCompleted(result)
	state.Fanout.Publish(discovery.Completed{Discovery: result})
}

// Get returns the ClusterState for a source, if connected.
func (r *Registry) Get(source clustersource.Source) (*ClusterState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.clusters[source]
	return s, ok
}

// Disconnect removes a cluster from the registry. It does not abort any
// inflight per-channel tasks the frontend may still have open against
// it; that is the Supervisor's responsibility via explicit channel aborts.
func (r *Registry) Disconnect(source clustersource.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clusters, source)
}

// PinnedGVKs returns the pinned kind list for a context (supplemented
// feature, grounded on cluster_profiles/gvk_service.rs). The in-memory
// map is lazily filled from its persisted document on first access for
// that context.
func (r *Registry) PinnedGVKs(contextName string) []discovery.GVK {
	r.pinnedMu.Lock()
	defer r.pinnedMu.Unlock()

	if gvks, ok := r.pinned[contextName]; ok {
		return append([]discovery.GVK(nil), gvks...)
	}

	gvks := loadPinned(contextName)
	r.pinned[contextName] = gvks
	return append([]discovery.GVK(nil), gvks...)
}

// SetPinnedGVKs replaces the pinned kind list for a context and persists
// it alongside the discovery cache, matching the supplemented feature's
// "persisted alongside the discovery cache" requirement.
func (r *Registry) SetPinnedGVKs(contextName string, gvks []discovery.GVK) error {
	r.pinnedMu.Lock()
	defer r.pinnedMu.Unlock()

	cp := append([]discovery.GVK(nil), gvks...)
	r.pinned[contextName] = cp

	if err := savePinned(contextName, cp); err != nil {
		logger.Log(logger.LevelError, map[string]string{"context": contextName}, err, "persisting pinned GVKs")
		return clustererr.Persistence(err, "saving pinned GVKs")
	}
	return nil
}

func pinnedPath(contextName string) string {
	return filepath.Join(appdir.PinnedDir(), contextName+".json")
}

func loadPinned(contextName string) []discovery.GVK {
	raw, err := os.ReadFile(pinnedPath(contextName))
	if err != nil {
		return nil
	}
	var gvks []discovery.GVK
	if err := json.Unmarshal(raw, &gvks); err != nil {
		logger.Log(logger.LevelWarn, map[string]string{"context": contextName}, err, "pinned GVKs file unreadable, treating as empty")
		return nil
	}
	return gvks
}

func savePinned(contextName string, gvks []discovery.GVK) error {
	data, err := json.MarshalIndent(gvks, "", "  ")
	if err != nil {
		return err
	}
	path := pinnedPath(contextName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
