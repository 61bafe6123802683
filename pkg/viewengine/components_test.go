package viewengine

import (
	"encoding/json"
	"testing"
)

// TestTextMarshalsWithKindAndSortableValue covers §3/§9's requirement
// that every cell carry a kind discriminator and a sortable_value,
// mirroring original_source's scripting::types::DisplayValue.
func TestTextMarshalsWithKindAndSortableValue(t *testing.T) {
	raw, err := json.Marshal(Text{Content: "hello"})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}

	if got["kind"] != "Text" {
		t.Errorf("kind = %v, want Text", got["kind"])
	}
	if got["sortableValue"] != "hello" {
		t.Errorf("sortableValue = %v, want hello", got["sortableValue"])
	}
	args, ok := got["args"].(map[string]interface{})
	if !ok || args["content"] != "hello" {
		t.Errorf("args = %v, want {content: hello}", got["args"])
	}
	if _, ok := got["properties"]; ok {
		t.Errorf("properties should be omitted when nil, got %v", got["properties"])
	}
}

// TestRelativeTimeSortsByEpochSeconds covers §9's "RelativeTime -> epoch
// seconds" sortable_value derivation, the way types.rs's DisplayValue
// does, so relative-time columns order chronologically.
func TestRelativeTimeSortsByEpochSeconds(t *testing.T) {
	raw, err := json.Marshal(RelativeTime{Timestamp: "2024-01-01T00:00:00Z"})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}

	if got["kind"] != "RelativeTime" {
		t.Errorf("kind = %v, want RelativeTime", got["kind"])
	}
	if got["sortableValue"] != "1704067200" {
		t.Errorf("sortableValue = %v, want 1704067200", got["sortableValue"])
	}
}

// TestColoredBoxesSortsByBoxCount covers §9's "ColoredBoxes -> box count"
// sortable_value derivation.
func TestColoredBoxesSortsByBoxCount(t *testing.T) {
	raw, err := json.Marshal(ColoredBoxes{Boxes: []ColoredBox{{Color: "red"}, {Color: "green"}}})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}

	if got["kind"] != "ColoredBoxes" {
		t.Errorf("kind = %v, want ColoredBoxes", got["kind"])
	}
	if got["sortableValue"] != "2" {
		t.Errorf("sortableValue = %v, want 2 (box count)", got["sortableValue"])
	}
}

// TestComponentMarshalsWithProperties covers §3's optional display
// properties (color, tooltip) riding alongside the kind-tagged shape.
func TestComponentMarshalsWithProperties(t *testing.T) {
	color := "red"
	title := "unhealthy"
	raw, err := json.Marshal(ColoredBox{Text: "CrashLoopBackOff", Color: color, Properties: &Properties{Color: &color, Title: &title}})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}

	props, ok := got["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("properties missing or wrong shape: %v", got["properties"])
	}
	if props["color"] != "red" || props["title"] != "unhealthy" {
		t.Errorf("properties = %v, want {color: red, title: unhealthy}", props)
	}
}
