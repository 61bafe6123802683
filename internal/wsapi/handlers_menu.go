package wsapi

import (
	"context"

	"github.com/agentkube/clustercore/pkg/clustererr"
	"github.com/agentkube/clustercore/pkg/clustersource"
	"github.com/agentkube/clustercore/pkg/discovery"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type createMenuStackPayload struct {
	ContextSource clustersource.Source `json:"contextSource"`
	GVK           discovery.GVK        `json:"gvk"`
	Namespace     string               `json:"namespace"`
	Name          string               `json:"name"`
}

// handleCreateMenuStack fetches the selected object and evaluates every
// registered context-menu section (C8) against it, returning the
// rendered Blueprint the frontend shows as a context menu.
func handleCreateMenuStack(c *Connection, frame ClientFrame) {
	var p createMenuStackPayload
	if err := unmarshalPayload(frame, &p); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	state, err := c.clusterState(p.ContextSource)
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}
	gvr, scope, err := resolveGVR(state, p.GVK)
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	obj, err := resourceClient(state.Dynamic, gvr, scope, p.Namespace).Get(context.Background(), p.Name, metav1.GetOptions{})
	if err != nil {
		c.sendErr(frame.ReqID, clustererr.KubeClient(err, "fetching resource for context menu"))
		return
	}

	blueprint, err := state.Menu.CreateMenuStack(obj)
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	c.sendResult(frame.ReqID, blueprint)
}

type menuStackIDPayload struct {
	ContextSource clustersource.Source `json:"contextSource"`
	MenuID        string               `json:"menuId"`
}

// handleDropMenuStack discards a stack once the frontend closes the
// menu; unknown ids are a no-op per §8's boundary behaviour.
func handleDropMenuStack(c *Connection, frame ClientFrame) {
	var p menuStackIDPayload
	if err := unmarshalPayload(frame, &p); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	state, err := c.clusterState(p.ContextSource)
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	state.Menu.DropMenuStack(p.MenuID)
	c.sendResult(frame.ReqID, struct{}{})
}

type callMenuStackActionPayload struct {
	ContextSource clustersource.Source `json:"contextSource"`
	MenuID        string               `json:"menuId"`
	ActionRef     string               `json:"actionRef"`
}

// handleCallMenuStackAction runs the action script bound to an action
// ref within a still-open stack.
func handleCallMenuStackAction(c *Connection, frame ClientFrame) {
	var p callMenuStackActionPayload
	if err := unmarshalPayload(frame, &p); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	state, err := c.clusterState(p.ContextSource)
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	if err := state.Menu.CallAction(p.MenuID, p.ActionRef); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}
	c.sendResult(frame.ReqID, struct{}{})
}
