package clusterregistry

import (
	"context"
	"testing"
	"time"

	"github.com/agentkube/clustercore/pkg/clustersource"
	"github.com/agentkube/clustercore/pkg/discovery"
	"github.com/agentkube/clustercore/pkg/discoverycache"
	apiextensionsfake "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset/fake"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	kubefake "k8s.io/client-go/kubernetes/fake"
)

// TestConnectSeedsFanoutFromCacheBeforeLiveDiscovery covers §4.4 step 2's
// "seed it from the Discovery Cache" fast-path and §8 scenario 2: a
// previously-seen kind must reach a subscriber via the cache replay, not
// only once the live discovery run confirms it.
func TestConnectSeedsFanoutFromCacheBeforeLiveDiscovery(t *testing.T) {
	cache := discoverycache.NewStore(t.TempDir())
	source := clustersource.Source{Provider: clustersource.ProviderFile, Source: "/kubeconfig", Context: "test"}

	cachedPod := discovery.DiscoveredResource{
		Version: "v1", Kind: "Pod", Plural: "pods",
		Source: discovery.Builtin, Scope: discovery.ScopeNamespaced,
	}
	if err := cache.Save(source.CacheKey(), map[discovery.DiscoveredResource]struct{}{cachedPod: {}}); err != nil {
		t.Fatalf("seeding cache: %v", err)
	}

	r := New(cache, ViewLoader{})

	cs := kubefake.NewSimpleClientset()
	cs.Resources = []*metav1.APIResourceList{
		{
			GroupVersion: "v1",
			APIResources: []metav1.APIResource{
				{Name: "pods", Kind: "Pod", Namespaced: true, Verbs: metav1.Verbs{"list", "watch"}},
			},
		},
	}
	apiext := apiextensionsfake.NewSimpleClientset()
	dyn := dynamicfake.NewSimpleDynamicClient(runtime.NewScheme())

	state := r.Connect(context.Background(), source, cs, dyn, apiext, nil)

	ch, cancel := state.Fanout.Subscribe()
	defer cancel()

	select {
	case ev := <-ch:
		rd, ok := ev.(discovery.ResourceDiscovered)
		if !ok || rd.Resource.Kind != "Pod" {
			t.Fatalf("first fan-out event = %+v, want the cache-seeded Pod ResourceDiscovered", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the cache-seeded fan-out event")
	}
}
