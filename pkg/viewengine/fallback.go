package viewengine

import (
	"github.com/agentkube/clustercore/pkg/discovery"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// FallbackRenderer is the unconditional three-column view (Namespace,
// Name, Age) every kind can fall back to. Grounded on original_source's
// resource_rendering/fallback_resource_renderer.rs, unchanged in shape.
type FallbackRenderer struct{}

func NewFallbackRenderer() *FallbackRenderer { return &FallbackRenderer{} }

func (r *FallbackRenderer) DisplayName() string { return "Simple list" }

func (r *FallbackRenderer) ColumnDefinitions(discovery.GVK, *apiextensionsv1.CustomResourceDefinition) ([]ColumnDefinition, error) {
	return []ColumnDefinition{
		{Title: "Namespace", Filterable: true},
		{Title: "Name", Filterable: true},
		{Title: "Age", Filterable: true},
	}, nil
}

func (r *FallbackRenderer) Render(_ discovery.GVK, _ *apiextensionsv1.CustomResourceDefinition, obj *unstructured.Unstructured) ([]Cell, error) {
	return []Cell{
		{Components: []Component{Text{Content: obj.GetNamespace()}}},
		{Components: []Component{Text{Content: obj.GetName()}}},
		{Components: []Component{RelativeTime{Timestamp: creationTimestampRFC3339(obj)}}},
	}, nil
}

func creationTimestampRFC3339(obj *unstructured.Unstructured) string {
	ts := obj.GetCreationTimestamp()
	if ts.IsZero() {
		return ""
	}
	return ts.Time.UTC().Format("2006-01-02T15:04:05Z07:00")
}
