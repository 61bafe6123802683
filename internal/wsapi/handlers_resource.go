package wsapi

import (
	"context"
	"fmt"
	"time"

	"github.com/agentkube/clustercore/pkg/clustererr"
	"github.com/agentkube/clustercore/pkg/clusterregistry"
	"github.com/agentkube/clustercore/pkg/clustersource"
	"github.com/agentkube/clustercore/pkg/discovery"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
	"sigs.k8s.io/yaml"
)

// resolveGVR looks the GVK up in the cluster's completed discovery
// snapshot for its plural/scope, the same lookup watch_gvk_with_view
// needs, so every resource-mutating command shares one source of truth
// for how to address a kind via the dynamic client.
func resolveGVR(state *clusterregistry.ClusterState, gvk discovery.GVK) (schema.GroupVersionResource, discovery.Scope, error) {
	completed := state.Completed()
	if completed == nil {
		return schema.GroupVersionResource{}, "", errDiscoveryNotReady(state.Source)
	}
	resource, ok := completed.Resources[gvk]
	if !ok {
		return schema.GroupVersionResource{}, "", errUnknownGVK(gvk)
	}
	return schema.GroupVersionResource{Group: gvk.Group, Version: gvk.Version, Resource: resource.Plural}, resource.Scope, nil
}

func resourceClient(dyn dynamic.Interface, gvr schema.GroupVersionResource, scope discovery.Scope, namespace string) dynamic.ResourceInterface {
	if scope == discovery.ScopeCluster || namespace == "" {
		return dyn.Resource(gvr)
	}
	return dyn.Resource(gvr).Namespace(namespace)
}

type resourceRefPayload struct {
	ContextSource clustersource.Source `json:"contextSource"`
	GVK           discovery.GVK        `json:"gvk"`
	Namespace     string               `json:"namespace"`
	Name          string               `json:"name"`
}

// handleGetResourceYAML fetches one object and renders it as YAML, the
// read side of the get/apply round-trip §8 requires to preserve .spec.
func handleGetResourceYAML(c *Connection, frame ClientFrame) {
	var p resourceRefPayload
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
		c.sendErr(frame.ReqID, clustererr.KubeClient(err, "fetching resource"))
		return
	}

	out, err := yaml.Marshal(obj.Object)
	if err != nil {
		c.sendErr(frame.ReqID, clustererr.Generic(err, "marshaling resource to YAML"))
		return
	}

	c.sendResult(frame.ReqID, string(out))
}

type applyResourceYAMLPayload struct {
	ContextSource clustersource.Source `json:"contextSource"`
	GVK           discovery.GVK        `json:"gvk"`
	Namespace     string               `json:"namespace"`
	Name          string               `json:"name"`
	YAML          string               `json:"yaml"`
	DryRun        bool                 `json:"dryRun"`
}

// handleApplyResourceYAML updates an object from YAML, preserving
// whatever resourceVersion the cluster currently has when the submitted
// document doesn't carry one, since client-go's Update rejects a write
// without one.
func handleApplyResourceYAML(c *Connection, frame ClientFrame) {
	var p applyResourceYAMLPayload
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

	jsonBytes, err := yaml.YAMLToJSON([]byte(p.YAML))
	if err != nil {
		c.sendErr(frame.ReqID, clustererr.Generic(err, "parsing submitted YAML"))
		return
	}

	obj := &unstructured.Unstructured{}
	if err := obj.UnmarshalJSON(jsonBytes); err != nil {
		c.sendErr(frame.ReqID, clustererr.Generic(err, "parsing submitted YAML"))
		return
	}

	client := resourceClient(state.Dynamic, gvr, scope, p.Namespace)

	if obj.GetResourceVersion() == "" {
		current, err := client.Get(context.Background(), p.Name, metav1.GetOptions{})
		if err != nil {
			c.sendErr(frame.ReqID, clustererr.KubeClient(err, "fetching current resourceVersion"))
			return
		}
		obj.SetResourceVersion(current.GetResourceVersion())
	}

	updateOpts := metav1.UpdateOptions{}
	if p.DryRun {
		updateOpts.DryRun = []string{metav1.DryRunAll}
	}

	if _, err := client.Update(context.Background(), obj, updateOpts); err != nil {
		c.sendErr(frame.ReqID, clustererr.KubeClient(err, "applying resource"))
		return
	}

	c.sendResult(frame.ReqID, struct{}{})
}

// handleDeleteResource deletes one object.
func handleDeleteResource(c *Connection, frame ClientFrame) {
	var p resourceRefPayload
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

	if err := resourceClient(state.Dynamic, gvr, scope, p.Namespace).Delete(context.Background(), p.Name, metav1.DeleteOptions{}); err != nil {
		c.sendErr(frame.ReqID, clustererr.KubeClient(err, "deleting resource"))
		return
	}

	c.sendResult(frame.ReqID, struct{}{})
}

var restartAnnotationPatch = `{"spec":{"template":{"metadata":{"annotations":{"kubectl.kubernetes.io/restartedAt":%q}}}}}`

func handleRestart(c *Connection, frame ClientFrame, group, version, resource string) {
	var p resourceRefPayload
	if err := unmarshalPayload(frame, &p); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	state, err := c.clusterState(p.ContextSource)
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	gvr := schema.GroupVersionResource{Group: group, Version: version, Resource: resource}
	patch := []byte(fmt.Sprintf(restartAnnotationPatch, time.Now().UTC().Format(time.RFC3339)))

	_, err = state.Dynamic.Resource(gvr).Namespace(p.Namespace).Patch(context.Background(), p.Name, types.MergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		c.sendErr(frame.ReqID, clustererr.KubeClient(err, "restarting resource"))
		return
	}

	c.sendResult(frame.ReqID, struct{}{})
}

func handleRestartDeployment(c *Connection, frame ClientFrame) {
	handleRestart(c, frame, "apps", "v1", "deployments")
}

func handleRestartStatefulSet(c *Connection, frame ClientFrame) {
	handleRestart(c, frame, "apps", "v1", "statefulsets")
}

type listResourceViewsPayload struct {
	ContextSource clustersource.Source `json:"contextSource"`
	Group         string               `json:"group"`
	Version       string               `json:"version"`
	Kind          string               `json:"kind"`
}

// handleListResourceViews answers list_resource_views: every renderer
// name available for a kind, scripted views first.
func handleListResourceViews(c *Connection, frame ClientFrame) {
	var p listResourceViewsPayload
	if err := unmarshalPayload(frame, &p); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	state, err := c.clusterState(p.ContextSource)
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	gvk := discovery.GVK{Group: p.Group, Version: p.Version, Kind: p.Kind}
	isCRD := false
	if completed := state.Completed(); completed != nil {
		if r, ok := completed.Resources[gvk]; ok {
			isCRD = r.Source == discovery.CustomResource
		}
	}

	c.sendResult(frame.ReqID, state.Views.Names(gvk, isCRD))
}
