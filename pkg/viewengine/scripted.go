package viewengine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/agentkube/clustercore/pkg/clustererr"
	"github.com/agentkube/clustercore/pkg/discovery"
	"github.com/google/cel-go/cel"
	"google.golang.org/protobuf/types/known/structpb"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"
)

// ColumnScript is one column of a scripted view: a title plus a CEL
// expression over the variable `obj` (the watched object as a dynamic
// map). This is the Go-idiomatic replacement for original_source's
// per-column rhai::FnPtr accessor: CEL compiles one program per column
// instead of one script exposing a map of callable function pointers,
// since cel-go has no equivalent to calling a named function extracted
// from a larger script.
type ColumnScript struct {
	Title string `json:"title"`
	Expr  string `json:"accessor"`
}

// Definition is the parsed shape of a view script file, grounded on
// original_source's ResourceViewDefinition (name/matchApiVersion/matchKind
// plus ordered columns).
type Definition struct {
	Name            string         `json:"name"`
	MatchAPIVersion string         `json:"matchApiVersion"`
	MatchKind       string         `json:"matchKind"`
	Columns         []ColumnScript `json:"columns"`
}

func (d Definition) GVK() discovery.GVK {
	group, version := "", d.MatchAPIVersion
	if idx := strings.IndexByte(d.MatchAPIVersion, '/'); idx >= 0 {
		group, version = d.MatchAPIVersion[:idx], d.MatchAPIVersion[idx+1:]
	}
	return discovery.GVK{Group: group, Version: version, Kind: d.MatchKind}
}

// ScriptedRenderer evaluates a Definition's column expressions against
// each watched object via CEL.
type ScriptedRenderer struct {
	def      Definition
	programs []cel.Program
}

// ParseDefinition decodes a view script document (YAML or JSON; sigs.k8s.io/yaml
// accepts both, matching how the rest of this module round-trips
// manifests).
func ParseDefinition(source []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(source, &def); err != nil {
		return Definition{}, clustererr.ResourceView(err, "parsing view definition")
	}
	if def.Name == "" {
		return Definition{}, clustererr.ResourceView(nil, "view definition missing name")
	}
	if def.MatchKind == "" {
		return Definition{}, clustererr.ResourceView(nil, "view definition missing matchKind")
	}
	if def.MatchAPIVersion == "" {
		return Definition{}, clustererr.ResourceView(nil, "view definition missing matchApiVersion")
	}
	if len(def.Columns) == 0 {
		return Definition{}, clustererr.ResourceView(nil, "view definition has no columns")
	}
	return def, nil
}

// NewScripted compiles every column expression in def against a shared
// CEL environment exposing `obj` as a dynamic value.
func NewScripted(def Definition) (*ScriptedRenderer, error) {
	env, err := cel.NewEnv(cel.Variable("obj", cel.DynType))
	if err != nil {
		return nil, clustererr.ResourceView(err, "building CEL environment")
	}

	programs := make([]cel.Program, 0, len(def.Columns))
	for _, col := range def.Columns {
		ast, issues := env.Compile(col.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, clustererr.ResourceView(issues.Err(), fmt.Sprintf("compiling column %q", col.Title))
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, clustererr.ResourceView(err, fmt.Sprintf("building program for column %q", col.Title))
		}
		programs = append(programs, prg)
	}

	return &ScriptedRenderer{def: def, programs: programs}, nil
}

func (r *ScriptedRenderer) DisplayName() string { return r.def.Name }

func (r *ScriptedRenderer) ColumnDefinitions(discovery.GVK, *apiextensionsv1.CustomResourceDefinition) ([]ColumnDefinition, error) {
	defs := make([]ColumnDefinition, 0, len(r.def.Columns))
	for _, col := range r.def.Columns {
		defs = append(defs, ColumnDefinition{Title: col.Title, Filterable: true})
	}
	return defs, nil
}

func (r *ScriptedRenderer) Render(_ discovery.GVK, _ *apiextensionsv1.CustomResourceDefinition, obj *unstructured.Unstructured) ([]Cell, error) {
	raw, err := json.Marshal(obj.Object)
	if err != nil {
		return nil, clustererr.ResourceView(err, "marshaling object for script evaluation")
	}
	var asNative interface{}
	if err := json.Unmarshal(raw, &asNative); err != nil {
		return nil, clustererr.ResourceView(err, "unmarshaling object for script evaluation")
	}

	cells := make([]Cell, 0, len(r.programs))
	for _, prg := range r.programs {
		out, _, err := prg.Eval(map[string]interface{}{"obj": asNative})
		if err != nil {
			cells = append(cells, Cell{Err: err.Error()})
			continue
		}
		cells = append(cells, Cell{Components: toComponents(asGoValue(out))})
	}
	return cells, nil
}

// asGoValue normalizes a CEL evaluation result into plain Go values
// (map[string]interface{}, []interface{}, string, float64, bool, nil)
// regardless of whether the result came back as a scalar, a list
// literal, or a map literal: CEL's internal ref.Val map/list types don't
// guarantee Value() returns map[string]interface{}/[]interface{}
// directly, so every result is round-tripped through structpb.Value,
// whose AsInterface() does that normalization reliably.
func asGoValue(out interface{ ConvertToNative(reflect.Type) (interface{}, error) }) interface{} {
	native, err := out.ConvertToNative(reflect.TypeOf((*structpb.Value)(nil)))
	if err != nil {
		return fmt.Sprintf("%v", out)
	}
	sv, ok := native.(*structpb.Value)
	if !ok || sv == nil {
		return nil
	}
	return sv.AsInterface()
}

// toComponents interprets a CEL expression's result. A bare scalar
// renders as Text. A map with a "kind" discriminator renders as the
// matching component (the poor-man's tagged union original_source used
// for its rhai ColoredString/ColoredBox/Hyperlink/RelativeTime results).
// A list of either is rendered as multiple components in one cell.
func toComponents(v interface{}) []Component {
	switch val := v.(type) {
	case []interface{}:
		var out []Component
		for _, elem := range val {
			out = append(out, toComponents(elem)...)
		}
		return out
	case map[string]interface{}:
		return []Component{componentFromMap(val)}
	case nil:
		return []Component{Text{Content: ""}}
	default:
		return []Component{Text{Content: fmt.Sprintf("%v", val)}}
	}
}

func componentFromMap(m map[string]interface{}) Component {
	kind, _ := m["kind"].(string)
	props := propertiesFromMap(m)
	switch kind {
	case "relativeTime":
		return RelativeTime{Timestamp: str(m["timestamp"]), Properties: props}
	case "hyperlink":
		return Hyperlink{Text: str(m["text"]), URL: str(m["url"]), Properties: props}
	case "coloredBox":
		return ColoredBox{Text: str(m["text"]), Color: str(m["color"]), Properties: props}
	case "coloredBoxes":
		boxes, _ := m["boxes"].([]interface{})
		var cbs []ColoredBox
		for _, b := range boxes {
			if bm, ok := b.(map[string]interface{}); ok {
				cbs = append(cbs, ColoredBox{Text: str(bm["text"]), Color: str(bm["color"])})
			}
		}
		return ColoredBoxes{Boxes: cbs, Properties: props}
	default:
		return Text{Content: str(m["text"]), Properties: props}
	}
}

// propertiesFromMap reads an optional "properties" sub-map ({color, title}
// strings) off a script-returned component map, mirroring original_source's
// From<rhai::Map> for Properties. Returns nil when absent so the wire
// shape omits an empty properties object.
func propertiesFromMap(m map[string]interface{}) *Properties {
	raw, ok := m["properties"].(map[string]interface{})
	if !ok {
		return nil
	}
	var p Properties
	if v, ok := raw["color"].(string); ok {
		p.Color = &v
	}
	if v, ok := raw["title"].(string); ok {
		p.Title = &v
	}
	if p.Color == nil && p.Title == nil {
		return nil
	}
	return &p
}

func str(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
