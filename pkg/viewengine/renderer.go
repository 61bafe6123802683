package viewengine

import (
	"github.com/agentkube/clustercore/pkg/discovery"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Renderer is one way of turning an object of a given kind into a row.
// Matches original_source's ResourceRenderer trait (display_name,
// column_definitions, render).
type Renderer interface {
	DisplayName() string
	ColumnDefinitions(gvk discovery.GVK, crd *apiextensionsv1.CustomResourceDefinition) ([]ColumnDefinition, error)
	Render(gvk discovery.GVK, crd *apiextensionsv1.CustomResourceDefinition, obj *unstructured.Unstructured) ([]Cell, error)
}
