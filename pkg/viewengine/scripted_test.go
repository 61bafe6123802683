package viewengine

import (
	"testing"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func phaseObject(name string, restarts int64) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Pod",
		"metadata":   map[string]interface{}{"name": name, "namespace": "default"},
		"status": map[string]interface{}{
			"phase":    "Running",
			"restarts": restarts,
		},
	}}
}

func TestScriptedRendererPlainStringCoercesToText(t *testing.T) {
	def := Definition{
		Name: "test-view", MatchAPIVersion: "v1", MatchKind: "Pod",
		Columns: []ColumnScript{{Title: "Phase", Expr: `obj.status.phase`}},
	}
	renderer, err := NewScripted(def)
	if err != nil {
		t.Fatalf("NewScripted returned error: %v", err)
	}

	cells, err := renderer.Render(def.GVK(), nil, phaseObject("pod-a", 2))
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("got %d cells, want 1", len(cells))
	}
	text, ok := cells[0].Components[0].(Text)
	if !ok {
		t.Fatalf("cell component type = %T, want Text", cells[0].Components[0])
	}
	if text.Content != "Running" {
		t.Errorf("cell content = %q, want %q", text.Content, "Running")
	}
}

// TestScriptedRendererBrokenAccessorYieldsPerCellError covers §8 scenario
// 6: a division-by-zero on one column surfaces as that cell's error
// while the rest of the row still renders.
func TestScriptedRendererBrokenAccessorYieldsPerCellError(t *testing.T) {
	def := Definition{
		Name: "test-view", MatchAPIVersion: "v1", MatchKind: "Pod",
		Columns: []ColumnScript{
			{Title: "Phase", Expr: `obj.status.phase`},
			{Title: "Ratio", Expr: `100 / (int(obj.status.restarts) - int(obj.status.restarts))`},
		},
	}
	renderer, err := NewScripted(def)
	if err != nil {
		t.Fatalf("NewScripted returned error: %v", err)
	}

	cells, err := renderer.Render(def.GVK(), nil, phaseObject("pod-a", 2))
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if len(cells) != 2 {
		t.Fatalf("got %d cells, want 2", len(cells))
	}
	if cells[0].Err != "" {
		t.Errorf("first cell unexpectedly errored: %q", cells[0].Err)
	}
	if cells[1].Err == "" {
		t.Error("second cell (division by zero) should carry a per-cell error")
	}
}

func TestScriptedRendererMapResultRendersAsColoredBox(t *testing.T) {
	def := Definition{
		Name: "test-view", MatchAPIVersion: "v1", MatchKind: "Pod",
		Columns: []ColumnScript{
			{Title: "Phase", Expr: `{"kind": "coloredBox", "text": obj.status.phase, "color": "green"}`},
		},
	}
	renderer, err := NewScripted(def)
	if err != nil {
		t.Fatalf("NewScripted returned error: %v", err)
	}

	cells, err := renderer.Render(def.GVK(), nil, phaseObject("pod-a", 0))
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	box, ok := cells[0].Components[0].(ColoredBox)
	if !ok {
		t.Fatalf("cell component type = %T, want ColoredBox", cells[0].Components[0])
	}
	if box.Text != "Running" || box.Color != "green" {
		t.Errorf("cell = %+v, want Text=Running Color=green", box)
	}
}

// TestScriptedRendererMapResultCarriesProperties covers §3's optional
// display properties riding along a script-returned component.
func TestScriptedRendererMapResultCarriesProperties(t *testing.T) {
	def := Definition{
		Name: "test-view", MatchAPIVersion: "v1", MatchKind: "Pod",
		Columns: []ColumnScript{
			{Title: "Phase", Expr: `{"kind": "coloredBox", "text": obj.status.phase, "color": "green", "properties": {"color": "green", "title": "healthy"}}`},
		},
	}
	renderer, err := NewScripted(def)
	if err != nil {
		t.Fatalf("NewScripted returned error: %v", err)
	}

	cells, err := renderer.Render(def.GVK(), nil, phaseObject("pod-a", 0))
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	box, ok := cells[0].Components[0].(ColoredBox)
	if !ok {
		t.Fatalf("cell component type = %T, want ColoredBox", cells[0].Components[0])
	}
	if box.Properties == nil {
		t.Fatal("box.Properties should not be nil")
	}
	if box.Properties.Color == nil || *box.Properties.Color != "green" {
		t.Errorf("box.Properties.Color = %v, want green", box.Properties.Color)
	}
	if box.Properties.Title == nil || *box.Properties.Title != "healthy" {
		t.Errorf("box.Properties.Title = %v, want healthy", box.Properties.Title)
	}
}

func TestParseDefinitionRejectsMissingFields(t *testing.T) {
	cases := []string{
		`name: x`,
		`name: x
matchApiVersion: v1`,
		`name: x
matchApiVersion: v1
matchKind: Pod`,
	}
	for _, src := range cases {
		if _, err := ParseDefinition([]byte(src)); err == nil {
			t.Errorf("ParseDefinition(%q) should have failed validation", src)
		}
	}
}

func TestDefinitionGVKSplitsGroupFromAPIVersion(t *testing.T) {
	d := Definition{MatchAPIVersion: "apps/v1", MatchKind: "Deployment"}
	gvk := d.GVK()
	if gvk.Group != "apps" || gvk.Version != "v1" || gvk.Kind != "Deployment" {
		t.Errorf("GVK() = %+v, want {apps v1 Deployment}", gvk)
	}

	core := Definition{MatchAPIVersion: "v1", MatchKind: "Pod"}
	coreGVK := core.GVK()
	if coreGVK.Group != "" || coreGVK.Version != "v1" {
		t.Errorf("core GVK() = %+v, want empty group, version v1", coreGVK)
	}
}
