// Package viewengine implements the View Renderer pipeline (C7): it
// turns a discovered kind plus one watched object into a row of
// frontend-displayable cells, choosing among a scripted view (CEL), the
// CRD-generic view (additionalPrinterColumns + JSONPath), or the
// unconditional simple-list fallback. Grounded on original_source's
// resource_rendering/ tree (ResourceRenderer trait, ScriptedResourceView,
// CrdRenderer, FallbackRenderer) and its RendererRegistry matching rules.
package viewengine

import (
	"encoding/json"
	"strconv"
	"time"
)

// Component is the sealed set of cell value shapes the frontend knows how
// to render, matching original_source's FrontendValue enum. Every variant
// marshals to the kind-tagged wire shape produced by wireComponent.
type Component interface {
	isComponent()
	json.Marshaler
}

// Properties carries the optional display hints a component may attach —
// a CSS-compatible color and a tooltip title — mirroring original_source's
// scripting::types::Properties.
type Properties struct {
	Color *string `json:"color,omitempty"`
	Title *string `json:"title,omitempty"`
}

// wireComponent is the shape every Component marshals to: a kind
// discriminator, its kind-specific args, optional display properties, and
// a sortable_value the frontend uses for column ordering. Grounded on
// original_source's scripting::types::DisplayValue.
type wireComponent struct {
	Kind          string      `json:"kind"`
	Args          interface{} `json:"args"`
	Properties    *Properties `json:"properties,omitempty"`
	SortableValue string      `json:"sortableValue"`
}

// Text is a plain string cell.
type Text struct {
	Content    string      `json:"content"`
	Properties *Properties `json:"-"`
}

// RelativeTime is rendered by the frontend as a relative timestamp
// ("3 minutes ago") from an RFC3339 instant.
type RelativeTime struct {
	Timestamp  string      `json:"timestamp"`
	Properties *Properties `json:"-"`
}

// Hyperlink renders as clickable text pointing at a URL.
type Hyperlink struct {
	Text       string      `json:"text"`
	URL        string      `json:"url"`
	Properties *Properties `json:"-"`
}

// ColoredBox renders as a single colored badge.
type ColoredBox struct {
	Text       string      `json:"text"`
	Color      string      `json:"color"`
	Properties *Properties `json:"-"`
}

// ColoredBoxes renders as a row of colored badges — used for columns like
// Pod status where several condition badges appear in one cell.
type ColoredBoxes struct {
	Boxes      []ColoredBox `json:"boxes"`
	Properties *Properties  `json:"-"`
}

func (Text) isComponent()         {}
func (RelativeTime) isComponent() {}
func (Hyperlink) isComponent()    {}
func (ColoredBox) isComponent()   {}
func (ColoredBoxes) isComponent() {}

// MarshalJSON tags the cell with kind "Text" and sorts by its content.
func (t Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireComponent{
		Kind:          "Text",
		Args:          map[string]string{"content": t.Content},
		Properties:    t.Properties,
		SortableValue: t.Content,
	})
}

// MarshalJSON tags the cell with kind "RelativeTime" and sorts by the
// instant's Unix epoch seconds, the way types.rs's DisplayValue does, so
// relative-time columns order chronologically rather than lexically. An
// unparseable timestamp sorts by its raw string instead of panicking.
func (rt RelativeTime) MarshalJSON() ([]byte, error) {
	sortable := rt.Timestamp
	if parsed, err := time.Parse(time.RFC3339, rt.Timestamp); err == nil {
		sortable = strconv.FormatInt(parsed.Unix(), 10)
	}
	return json.Marshal(wireComponent{
		Kind:          "RelativeTime",
		Args:          map[string]string{"timestamp": rt.Timestamp},
		Properties:    rt.Properties,
		SortableValue: sortable,
	})
}

// MarshalJSON tags the cell with kind "Hyperlink" and sorts by its link
// text.
func (h Hyperlink) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireComponent{
		Kind:          "Hyperlink",
		Args:          map[string]string{"url": h.URL, "content": h.Text},
		Properties:    h.Properties,
		SortableValue: h.Text,
	})
}

// MarshalJSON tags the cell with kind "ColoredBox" and sorts by its color.
func (cb ColoredBox) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireComponent{
		Kind:          "ColoredBox",
		Args:          map[string]string{"text": cb.Text, "color": cb.Color},
		Properties:    cb.Properties,
		SortableValue: cb.Color,
	})
}

// MarshalJSON tags the cell with kind "ColoredBoxes" and sorts by the
// number of boxes, the way types.rs's DisplayValue uses boxes.len().
func (cbs ColoredBoxes) MarshalJSON() ([]byte, error) {
	boxes := make([]map[string]string, 0, len(cbs.Boxes))
	for _, b := range cbs.Boxes {
		boxes = append(boxes, map[string]string{"text": b.Text, "color": b.Color})
	}
	return json.Marshal(wireComponent{
		Kind:          "ColoredBoxes",
		Args:          map[string]interface{}{"boxes": boxes},
		Properties:    cbs.Properties,
		SortableValue: strconv.Itoa(len(cbs.Boxes)),
	})
}

// ColumnDefinition describes one column a renderer produces.
type ColumnDefinition struct {
	Title      string `json:"title"`
	Filterable bool   `json:"filterable"`
}

// Cell is one row's value for one column: either a list of components
// (a column can render more than one badge) or a per-cell error, mirroring
// original_source's Result<Vec<FrontendValue>, String> per column.
type Cell struct {
	Components []Component
	Err        string
}
