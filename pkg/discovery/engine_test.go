package discovery

import (
	"context"
	"testing"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apiextensionsfake "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset/fake"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	kubefake "k8s.io/client-go/kubernetes/fake"
)

func newFakeDiscoveryClients(t *testing.T, resourceLists []*metav1.APIResourceList, crds ...*apiextensionsv1.CustomResourceDefinition) (*kubefake.Clientset, *apiextensionsfake.Clientset) {
	t.Helper()

	cs := kubefake.NewSimpleClientset()
	cs.Resources = resourceLists

	objs := make([]runtime.Object, 0, len(crds))
	for _, c := range crds {
		objs = append(objs, c)
	}
	apiext := apiextensionsfake.NewSimpleClientset(objs...)

	return cs, apiext
}

// TestRunClassifiesBuiltinBeforeCustomThenCRDs covers §8 scenario 1: a
// cluster with builtin Pod/Service and one CRD-backed Foo kind emits
// builtin resources first, then custom ones, then the CRD payload.
func TestRunClassifiesBuiltinBeforeCustomThenCRDs(t *testing.T) {
	resourceLists := []*metav1.APIResourceList{
		{
			GroupVersion: "v1",
			APIResources: []metav1.APIResource{
				{Name: "pods", Kind: "Pod", Namespaced: true, Verbs: metav1.Verbs{"list", "watch"}},
				{Name: "services", Kind: "Service", Namespaced: true, Verbs: metav1.Verbs{"list", "watch"}},
			},
		},
		{
			GroupVersion: "example.com/v1",
			APIResources: []metav1.APIResource{
				{Name: "foos", Kind: "Foo", Namespaced: true, Verbs: metav1.Verbs{"list", "watch"}},
			},
		},
	}

	crd := &apiextensionsv1.CustomResourceDefinition{
		ObjectMeta: metav1.ObjectMeta{Name: "foos.example.com"},
		Spec: apiextensionsv1.CustomResourceDefinitionSpec{
			Group: "example.com",
			Names: apiextensionsv1.CustomResourceDefinitionNames{Kind: "Foo", Plural: "foos"},
			Scope: apiextensionsv1.NamespaceScoped,
			Versions: []apiextensionsv1.CustomResourceDefinitionVersion{
				{Name: "v1", Served: true, Storage: true},
			},
		},
	}

	cs, apiext := newFakeDiscoveryClients(t, resourceLists, crd)

	engine := New(cs.Discovery(), apiext)

	var order []string
	result, err := engine.Run(context.Background(), func(ev Event) error {
		switch v := ev.(type) {
		case ResourceDiscovered:
			order = append(order, "resource:"+v.Resource.Kind)
		case CRDDiscovered:
			order = append(order, "crd:"+v.GVK.Kind)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(order) != 4 {
		t.Fatalf("emitted %d events, want 4: %v", len(order), order)
	}

	builtinKinds := map[string]bool{order[0]: true, order[1]: true}
	if !builtinKinds["resource:Pod"] || !builtinKinds["resource:Service"] {
		t.Errorf("first two events = %v, want Pod and Service (builtins first)", order[:2])
	}
	if order[2] != "resource:Foo" {
		t.Errorf("third event = %q, want resource:Foo after the builtins", order[2])
	}
	if order[3] != "crd:Foo" {
		t.Errorf("fourth event = %q, want crd:Foo last", order[3])
	}

	podGVK := GVK{Group: "", Version: "v1", Kind: "Pod"}
	fooGVK := GVK{Group: "example.com", Version: "v1", Kind: "Foo"}

	if res, ok := result.Resources[podGVK]; !ok || res.Source != Builtin {
		t.Errorf("Pod resource = %+v, want Source=Builtin", res)
	}
	if res, ok := result.Resources[fooGVK]; !ok || res.Source != CustomResource {
		t.Errorf("Foo resource = %+v, want Source=CustomResource", res)
	}
	if _, ok := result.CRDs[fooGVK]; !ok {
		t.Error("result.CRDs missing the Foo CRD entry")
	}
}

// TestRunSkipsCRDWithZeroVersions covers §8's boundary behaviour: a CRD
// with no versions is skipped with a warning, discovery continues.
func TestRunSkipsCRDWithZeroVersions(t *testing.T) {
	emptyVersionsCRD := &apiextensionsv1.CustomResourceDefinition{
		ObjectMeta: metav1.ObjectMeta{Name: "bars.example.com"},
		Spec: apiextensionsv1.CustomResourceDefinitionSpec{
			Group:    "example.com",
			Names:    apiextensionsv1.CustomResourceDefinitionNames{Kind: "Bar", Plural: "bars"},
			Scope:    apiextensionsv1.NamespaceScoped,
			Versions: nil,
		},
	}

	cs, apiext := newFakeDiscoveryClients(t, nil, emptyVersionsCRD)
	engine := New(cs.Discovery(), apiext)

	var crdEvents int
	result, err := engine.Run(context.Background(), func(ev Event) error {
		if _, ok := ev.(CRDDiscovered); ok {
			crdEvents++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if crdEvents != 0 {
		t.Errorf("got %d CRD events, want 0 (zero-version CRD should be skipped)", crdEvents)
	}
	if len(result.CRDs) != 0 {
		t.Errorf("result.CRDs = %v, want empty", result.CRDs)
	}
}

// TestRunSkipsResourceWithoutWatchVerb covers §4.2's "supports WATCH"
// filter.
func TestRunSkipsResourceWithoutWatchVerb(t *testing.T) {
	resourceLists := []*metav1.APIResourceList{
		{
			GroupVersion: "v1",
			APIResources: []metav1.APIResource{
				{Name: "pods", Kind: "Pod", Namespaced: true, Verbs: metav1.Verbs{"list", "watch"}},
				{Name: "bindings", Kind: "Binding", Namespaced: true, Verbs: metav1.Verbs{"create"}},
			},
		},
	}

	cs, apiext := newFakeDiscoveryClients(t, resourceLists)
	engine := New(cs.Discovery(), apiext)

	result, err := engine.Run(context.Background(), func(Event) error { return nil })
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if _, ok := result.Resources[GVK{Version: "v1", Kind: "Binding"}]; ok {
		t.Error("Binding (no watch verb) should not appear in the discovered set")
	}
	if _, ok := result.Resources[GVK{Version: "v1", Kind: "Pod"}]; !ok {
		t.Error("Pod should appear in the discovered set")
	}
}
