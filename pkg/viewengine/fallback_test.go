package viewengine

import (
	"testing"
	"time"

	"github.com/agentkube/clustercore/pkg/discovery"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func podGVK() discovery.GVK { return discovery.GVK{Group: "", Version: "v1", Kind: "Pod"} }

func podObject(name, namespace string, created time.Time) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Pod",
		"metadata": map[string]interface{}{
			"name":              name,
			"namespace":         namespace,
			"uid":               "abc-123",
			"creationTimestamp": metav1.NewTime(created).UTC().Format("2006-01-02T15:04:05Z"),
		},
	}}
}

func TestFallbackRendererColumnDefinitions(t *testing.T) {
	r := NewFallbackRenderer()
	cols, err := r.ColumnDefinitions(podGVK(), nil)
	if err != nil {
		t.Fatalf("ColumnDefinitions returned error: %v", err)
	}
	want := []string{"Namespace", "Name", "Age"}
	if len(cols) != len(want) {
		t.Fatalf("got %d columns, want %d", len(cols), len(want))
	}
	for i, c := range cols {
		if c.Title != want[i] {
			t.Errorf("column %d title = %q, want %q", i, c.Title, want[i])
		}
	}
}

func TestFallbackRendererRenderProducesThreeCells(t *testing.T) {
	r := NewFallbackRenderer()
	obj := podObject("my-pod", "default", time.Now())

	cells, err := r.Render(podGVK(), nil, obj)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if len(cells) != 3 {
		t.Fatalf("got %d cells, want 3", len(cells))
	}

	ns, ok := cells[0].Components[0].(Text)
	if !ok || ns.Content != "default" {
		t.Errorf("cell 0 = %+v, want Text{\"default\"}", cells[0])
	}
	name, ok := cells[1].Components[0].(Text)
	if !ok || name.Content != "my-pod" {
		t.Errorf("cell 1 = %+v, want Text{\"my-pod\"}", cells[1])
	}
	if _, ok := cells[2].Components[0].(RelativeTime); !ok {
		t.Errorf("cell 2 = %+v, want RelativeTime", cells[2])
	}
}
