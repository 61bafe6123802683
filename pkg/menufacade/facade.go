// Package menufacade implements the Context-menu scripting facade (C8):
// extension scripts register menu sections (a matcher plus an item
// builder) that run against a selected resource, and the resulting menu
// items carry opaque action references the frontend calls back into.
// Grounded on original_source's
// scripting/resource_context_menu_facade.rs (ResourceContextMenuFacade,
// MenuStack, FrontendMenuItem/FrontendMenuSection/MenuBlueprint) and
// resource_menu/basic_resource_menu.rs + pod_resource_menu.rs for the
// builtin menu shape (edit/delete/pick-namespace, per-container
// logs/exec submenus). rhai's FnPtr-per-section matcher/items/action is
// replaced by one compiled CEL program per section, the same
// substitution made in pkg/viewengine.
package menufacade

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/agentkube/clustercore/pkg/clustererr"
	"github.com/agentkube/clustercore/pkg/internal/randid"
	"github.com/agentkube/clustercore/pkg/logger"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"google.golang.org/protobuf/types/known/structpb"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"sigs.k8s.io/yaml"
)

// asGoValue normalizes a CEL list/map literal result into plain
// map[string]interface{}/[]interface{} regardless of the concrete
// ref.Val aggregate type the interpreter produced: ref.Val's own Value()
// is only guaranteed to round-trip a native Go value for scalars, so
// every aggregate result is routed through structpb.Value, whose
// AsInterface() normalizes it reliably.
func asGoValue(v ref.Val) interface{} {
	native, err := v.ConvertToNative(reflect.TypeOf((*structpb.Value)(nil)))
	if err != nil {
		return v.Value()
	}
	sv, ok := native.(*structpb.Value)
	if !ok || sv == nil {
		return nil
	}
	return sv.AsInterface()
}

// Item is one rendered menu entry.
type Item interface{ isItem() }

// ActionButton is a clickable entry; ActionRef is opaque to the frontend
// and is only meaningful passed back into CallAction.
type ActionButton struct {
	Title     string `json:"title"`
	Dangerous bool   `json:"dangerous"`
	ActionRef string `json:"actionRef"`
}

// Separator is a visual divider between sections.
type Separator struct{}

func (ActionButton) isItem() {}
func (Separator) isItem()    {}

// Section is a rendered group of items with an optional title.
type Section struct {
	Title string `json:"title,omitempty"`
	Items []Item `json:"items"`
}

// Blueprint is what create_resource_menustack returns: an opaque stack id
// plus the rendered sections, matching original_source's MenuBlueprint.
type Blueprint struct {
	ID       string    `json:"id"`
	Sections []Section `json:"sections"`
}

// sectionScript is one compiled extension-registered section: a matcher
// expression over `kind` (empty matches everything) and an items
// expression over `obj` that must evaluate to a list of maps shaped like
// {title, dangerous, action}, where action is itself a CEL expression
// string compiled lazily into an action program when the button is
// actually clicked.
type sectionScript struct {
	title   string
	matcher cel.Program
	items   cel.Program
}

type stack struct {
	actions map[string]string // action ref -> CEL action source

	// obj and kind are curried into every action's evaluation, mirroring
	// original_source's item.action.add_curry(obj.clone()): an action
	// script is compiled to take no arguments from the frontend's
	// perspective but still needs the resource it was built against.
	obj  map[string]interface{}
	kind string
}

// Facade owns every registered section and every live menu stack. One
// Facade is created per connected cluster, since action scripts need a
// live dynamic client to act against.
type Facade struct {
	env *cel.Env

	mu       sync.RWMutex
	sections []sectionScript

	stacksMu sync.Mutex
	stacks   map[string]*stack
}

// ClipboardWrite is emitted when an action script calls
// clipboard.write_text. A headless backend has no direct OS clipboard
// access the way the original desktop app's Tauri host does, so writing
// to the clipboard is delegated to the frontend via this event instead
// of touched directly here.
type ClipboardWrite struct {
	Text string
}

// New builds a Facade bound to one cluster's dynamic client. onClipboard
// is called synchronously whenever a script requests a clipboard write.
func New(dyn dynamic.Interface, onClipboard func(ClipboardWrite)) (*Facade, error) {
	if onClipboard == nil {
		onClipboard = func(ClipboardWrite) {}
	}

	env, err := buildEnv(dyn, onClipboard)
	if err != nil {
		return nil, clustererr.Generic(err, "building context-menu CEL environment")
	}

	return &Facade{
		env:    env,
		stacks: make(map[string]*stack),
	}, nil
}

func buildEnv(dyn dynamic.Interface, onClipboard func(ClipboardWrite)) (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("kind", cel.StringType),
		cel.Variable("obj", cel.DynType),
		cel.Function("kube.get",
			cel.Overload("kube_get_string_string_string_string",
				[]*cel.Type{cel.StringType, cel.StringType, cel.StringType, cel.StringType},
				cel.DynType,
				cel.FunctionBinding(kubeGetBinding(dyn)),
			),
		),
		cel.Function("kube.delete",
			cel.Overload("kube_delete_string_string_string_string",
				[]*cel.Type{cel.StringType, cel.StringType, cel.StringType, cel.StringType},
				cel.BoolType,
				cel.FunctionBinding(kubeDeleteBinding(dyn)),
			),
		),
		cel.Function("base64.decode",
			cel.Overload("base64_decode_string",
				[]*cel.Type{cel.StringType},
				cel.StringType,
				cel.UnaryBinding(base64DecodeBinding),
			),
		),
		cel.Function("clipboard.write_text",
			cel.Overload("clipboard_write_text_string",
				[]*cel.Type{cel.StringType},
				cel.BoolType,
				cel.UnaryBinding(clipboardWriteBinding(onClipboard)),
			),
		),
	)
}

func gvr(apiVersion, kind string) schema.GroupVersionResource {
	gv, _ := schema.ParseGroupVersion(apiVersion)
	// Pluralization here is a best effort (lowercase + "s"), applied to
	// whatever kind is passed: a kind whose plural is not formed that way
	// (Ingress, NetworkPolicy) maps to a resource name the server does not
	// serve, and an already-plural name gets a second "s".
	return gv.WithResource(pluralize(kind))
}

func pluralize(kind string) string {
	lower := []rune(kind)
	for i, r := range lower {
		if r >= 'A' && r <= 'Z' {
			lower[i] = r + ('a' - 'A')
		}
	}
	return string(lower) + "s"
}

func kubeGetBinding(dyn dynamic.Interface) func(args ...ref.Val) ref.Val {
	return func(args ...ref.Val) ref.Val {
		apiVersion := args[0].Value().(string)
		kind := args[1].Value().(string)
		namespace := args[2].Value().(string)
		name := args[3].Value().(string)

		resource := dyn.Resource(gvr(apiVersion, kind))
		var client dynamic.ResourceInterface = resource
		if namespace != "" {
			client = resource.Namespace(namespace)
		}

		obj, err := client.Get(context.Background(), name, metav1.GetOptions{})
		if err != nil {
			return types.NewErr("kube.get: %v", err)
		}
		return types.DefaultTypeAdapter.NativeToValue(obj.Object)
	}
}

func kubeDeleteBinding(dyn dynamic.Interface) func(args ...ref.Val) ref.Val {
	return func(args ...ref.Val) ref.Val {
		apiVersion := args[0].Value().(string)
		kind := args[1].Value().(string)
		namespace := args[2].Value().(string)
		name := args[3].Value().(string)

		resource := dyn.Resource(gvr(apiVersion, kind))
		var client dynamic.ResourceInterface = resource
		if namespace != "" {
			client = resource.Namespace(namespace)
		}

		if err := client.Delete(context.Background(), name, metav1.DeleteOptions{}); err != nil {
			return types.NewErr("kube.delete: %v", err)
		}
		return types.Bool(true)
	}
}

func base64DecodeBinding(arg ref.Val) ref.Val {
	s, ok := arg.Value().(string)
	if !ok {
		return types.NewErr("base64.decode: expected string")
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return types.NewErr("base64.decode: %v", err)
	}
	return types.String(decoded)
}

func clipboardWriteBinding(onClipboard func(ClipboardWrite)) func(ref.Val) ref.Val {
	return func(arg ref.Val) ref.Val {
		s, ok := arg.Value().(string)
		if !ok {
			return types.NewErr("clipboard.write_text: expected string")
		}
		onClipboard(ClipboardWrite{Text: s})
		return types.Bool(true)
	}
}

// RegisterSection compiles and registers one extension-provided menu
// section. matcherExpr may be empty, meaning the section applies to every
// kind.
func (f *Facade) RegisterSection(title, matcherExpr, itemsExpr string) error {
	var matcherPrg cel.Program
	if matcherExpr != "" {
		prg, err := f.compile(matcherExpr)
		if err != nil {
			return clustererr.ResourceView(err, "compiling menu section matcher")
		}
		matcherPrg = prg
	}

	itemsPrg, err := f.compile(itemsExpr)
	if err != nil {
		return clustererr.ResourceView(err, "compiling menu section items")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sections = append(f.sections, sectionScript{title: title, matcher: matcherPrg, items: itemsPrg})

	return nil
}

func (f *Facade) compile(expr string) (cel.Program, error) {
	ast, issues := f.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return f.env.Program(ast)
}

// sectionDocument is the parsed shape of one menu script file: an
// optional title, an optional matcher expression over `kind` (empty
// matches every kind), and an items expression over `obj` yielding the
// section's action buttons. Grounded on original_source's
// register_resource_contextmenu_section host API
// (resource_context_menu_facade.rs), with the rhai item-builder closure
// replaced by one CEL expression the same way view column accessors are.
type sectionDocument struct {
	Title   string `json:"title"`
	Matcher string `json:"matcher"`
	Items   string `json:"items"`
}

// LoadDir walks dir for *.yaml/*.yml menu scripts and registers each
// section they declare. A missing directory is not an error (§6:
// "Missing directories are ignored").
func (f *Facade) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Log(logger.LevelWarn, map[string]string{"file": name}, err, "reading menu script")
			continue
		}

		if err := f.LoadScript(raw); err != nil {
			logger.Log(logger.LevelWarn, map[string]string{"file": name}, err, "loading menu script")
		}
	}

	return nil
}

// LoadScript parses and registers one menu script document.
func (f *Facade) LoadScript(source []byte) error {
	var doc sectionDocument
	if err := yaml.Unmarshal(source, &doc); err != nil {
		return clustererr.ResourceView(err, "parsing menu script")
	}
	if doc.Items == "" {
		return clustererr.ResourceView(nil, "menu script missing items")
	}
	return f.RegisterSection(doc.Title, doc.Matcher, doc.Items)
}

// CreateMenuStack evaluates every registered section against obj and
// returns a Blueprint plus the opaque stack id backing its action refs.
func (f *Facade) CreateMenuStack(obj *unstructured.Unstructured) (Blueprint, error) {
	kind := obj.GetKind()

	f.mu.RLock()
	sections := append([]sectionScript(nil), f.sections...)
	f.mu.RUnlock()

	st := &stack{actions: make(map[string]string), obj: obj.Object, kind: kind}
	var rendered []Section

	for _, s := range sections {
		if s.matcher != nil {
			matched, _, err := s.matcher.Eval(map[string]interface{}{"kind": kind, "obj": obj.Object})
			if err != nil {
				continue
			}
			if b, ok := matched.Value().(bool); !ok || !b {
				continue
			}
		}

		out, _, err := s.items.Eval(map[string]interface{}{"kind": kind, "obj": obj.Object})
		if err != nil {
			continue
		}

		list, ok := asGoValue(out).([]interface{})
		if !ok {
			continue
		}

		section := Section{Title: s.title}
		for _, entry := range list {
			m, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			title, _ := m["title"].(string)
			dangerous, _ := m["dangerous"].(bool)
			actionExpr, _ := m["action"].(string)

			ref := randid.New(5)
			st.actions[ref] = actionExpr

			section.Items = append(section.Items, ActionButton{
				Title:     title,
				Dangerous: dangerous,
				ActionRef: ref,
			})
		}
		section.Items = append(section.Items, Separator{})

		rendered = append(rendered, section)
	}

	id := randid.New(5)

	f.stacksMu.Lock()
	f.stacks[id] = st
	f.stacksMu.Unlock()

	return Blueprint{ID: id, Sections: rendered}, nil
}

// DropMenuStack discards a stack id and its action refs once the
// frontend closes the menu.
func (f *Facade) DropMenuStack(id string) {
	f.stacksMu.Lock()
	defer f.stacksMu.Unlock()
	delete(f.stacks, id)
}

// CallAction runs the action script bound to actionRef within stack id.
func (f *Facade) CallAction(id, actionRef string) error {
	f.stacksMu.Lock()
	st, ok := f.stacks[id]
	f.stacksMu.Unlock()
	if !ok {
		return clustererr.Generic(nil, fmt.Sprintf("unknown menu stack %q", id))
	}

	expr, ok := st.actions[actionRef]
	if !ok {
		return clustererr.Generic(nil, fmt.Sprintf("unknown action ref %q", actionRef))
	}

	prg, err := f.compile(expr)
	if err != nil {
		return clustererr.ResourceView(err, "compiling menu action")
	}

	if _, _, err := prg.Eval(map[string]interface{}{"obj": st.obj, "kind": st.kind}); err != nil {
		return clustererr.ResourceView(err, "running menu action")
	}

	return nil
}

