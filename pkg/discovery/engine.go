package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agentkube/clustercore/pkg/logger"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apiextensionsclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/discovery"
)

// Engine runs the two-phase discovery algorithm against one cluster.
type Engine struct {
	Discovery discovery.DiscoveryInterface
	APIExt    apiextensionsclientset.Interface
}

func New(disco discovery.DiscoveryInterface, apiext apiextensionsclientset.Interface) *Engine {
	return &Engine{Discovery: disco, APIExt: apiext}
}

// Emit is called once per event in emission order: all builtin
// DiscoveredResource events, then all custom-resource DiscoveredResource
// events, then all CRDDiscovered events. Run itself returns the aggregated
// CompletedDiscovery (the terminal event's payload) or an error — callers
// that need a literal Completed/Failed Event on their stream construct it
// from the return value, which is how the Cluster Registry (§4.4) wires
// the engine into the fan-out: it needs to intercept completion anyway to
// diff against the Discovery Cache before forwarding the terminal event.
func (e *Engine) Run(ctx context.Context, emit func(Event) error) (*CompletedDiscovery, error) {
	_, groups, resourceLists, err := discoverAll(e.Discovery)
	if err != nil {
		return nil, fmt.Errorf("listing server groups/resources: %w", err)
	}

	builtinGroups := builtinGroupSet(groups)

	builtin, custom := classifyResources(resourceLists, builtinGroups)

	result := newCompletedDiscovery()

	for _, r := range builtin {
		result.Resources[r.GVK()] = r
		if err := emit(ResourceDiscovered{Resource: r}); err != nil {
			return nil, err
		}
	}
	for _, r := range custom {
		result.Resources[r.GVK()] = r
		if err := emit(ResourceDiscovered{Resource: r}); err != nil {
			return nil, err
		}
	}

	crds, err := e.listCRDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing CRDs: %w", err)
	}

	for _, crd := range crds {
		if len(crd.Spec.Versions) == 0 {
			logger.Log(logger.LevelWarn, map[string]string{"crd": crd.Name}, nil, "skipping CRD with zero versions")
			continue
		}
		gvk := GVK{Group: crd.Spec.Group, Version: crd.Spec.Versions[0].Name, Kind: crd.Spec.Names.Kind}
		crdCopy := crd
		result.CRDs[gvk] = crdCopy
		if err := emit(CRDDiscovered{GVK: gvk, CRD: crdCopy}); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func discoverAll(d discovery.DiscoveryInterface) (*metav1.APIVersions, []*metav1.APIGroup, []*metav1.APIResourceList, error) {
	groups, resourceLists, err := d.ServerGroupsAndResources()
	if err != nil && len(resourceLists) == 0 {
		return nil, nil, nil, err
	}
	// Partial discovery failures (a single broken aggregated API service)
	// surface as a non-nil err alongside a partial resourceLists; the
	// stream continues on what was discovered rather than failing whole.
	if err != nil {
		logger.Log(logger.LevelWarn, nil, err, "partial API discovery failure, continuing with what was returned")
	}
	return nil, groups, resourceLists, nil
}

// builtinGroupSet implements §4.2's ordering rule: a group is "built-in"
// when its name ends in ".k8s.io" or contains no dot (the core group,
// whose Name is the empty string).
func builtinGroupSet(groups []*metav1.APIGroup) map[string]bool {
	set := make(map[string]bool, len(groups))
	for _, g := range groups {
		name := g.Name
		if strings.HasSuffix(name, ".k8s.io") || !strings.Contains(name, ".") {
			set[name] = true
		}
	}
	// The core group always reports as "" from discovery, which contains
	// no dot and is already covered by the condition above; call out the
	// invariant name anyway for callers reading this as documentation.
	set[""] = true
	return set
}

func classifyResources(lists []*metav1.APIResourceList, builtinGroups map[string]bool) (builtin, custom []DiscoveredResource) {
	seen := make(map[GVK]bool)

	for _, list := range lists {
		gv, err := parseGroupVersion(list.GroupVersion)
		if err != nil {
			continue
		}
		for _, ar := range list.APIResources {
			if !supportsWatch(ar.Verbs) {
				continue
			}
			gvk := GVK{Group: gv.group, Version: gv.version, Kind: ar.Kind}
			if seen[gvk] {
				continue
			}
			seen[gvk] = true

			scope := ScopeNamespaced
			if !ar.Namespaced {
				scope = ScopeCluster
			}

			r := DiscoveredResource{
				Group:   gv.group,
				Version: gv.version,
				Kind:    ar.Kind,
				Plural:  ar.Name,
				Scope:   scope,
			}

			if builtinGroups[gv.group] {
				r.Source = Builtin
				builtin = append(builtin, r)
			} else {
				r.Source = CustomResource
				custom = append(custom, r)
			}
		}
	}

	sort.Slice(builtin, func(i, j int) bool { return gvkLess(builtin[i].GVK(), builtin[j].GVK()) })
	sort.Slice(custom, func(i, j int) bool { return gvkLess(custom[i].GVK(), custom[j].GVK()) })

	return builtin, custom
}

func gvkLess(a, b GVK) bool {
	if a.Group != b.Group {
		return a.Group < b.Group
	}
	if a.Version != b.Version {
		return a.Version < b.Version
	}
	return a.Kind < b.Kind
}

func supportsWatch(verbs metav1.Verbs) bool {
	for _, v := range verbs {
		if v == "watch" {
			return true
		}
	}
	return false
}

type groupVersion struct{ group, version string }

func parseGroupVersion(gv string) (groupVersion, error) {
	if !strings.Contains(gv, "/") {
		return groupVersion{group: "", version: gv}, nil
	}
	parts := strings.SplitN(gv, "/", 2)
	return groupVersion{group: parts[0], version: parts[1]}, nil
}

func (e *Engine) listCRDs(ctx context.Context) ([]*apiextensionsv1.CustomResourceDefinition, error) {
	if e.APIExt == nil {
		return nil, nil
	}
	var out []*apiextensionsv1.CustomResourceDefinition
	continueToken := ""
	for {
		list, err := e.APIExt.ApiextensionsV1().CustomResourceDefinitions().List(ctx, metav1.ListOptions{
			Limit:    100,
			Continue: continueToken,
		})
		if err != nil {
			return nil, err
		}
		for i := range list.Items {
			item := list.Items[i]
			out = append(out, &item)
		}
		continueToken = list.Continue
		if continueToken == "" {
			break
		}
	}
	return out, nil
}
