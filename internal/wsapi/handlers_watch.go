package wsapi

import (
	"bufio"
	"context"
	"io"

	"github.com/agentkube/clustercore/pkg/clusterregistry"
	"github.com/agentkube/clustercore/pkg/clustersource"
	"github.com/agentkube/clustercore/pkg/discovery"
	"github.com/agentkube/clustercore/pkg/kubewatch"
	"github.com/agentkube/clustercore/pkg/logger"
	"github.com/agentkube/clustercore/pkg/viewengine"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

type watchGVKPayload struct {
	ContextSource clustersource.Source `json:"contextSource"`
	GVK           discovery.GVK        `json:"gvk"`
	ViewName      string               `json:"viewName"`
	Namespace     string               `json:"namespace"`
}

type announceColumnsEvent struct {
	Columns []viewengine.ColumnDefinition `json:"columns"`
}

type appliedRowEvent struct {
	UID       string        `json:"uid"`
	Namespace string        `json:"namespace"`
	Name      string        `json:"name"`
	Columns   []rowCellJSON `json:"columns"`
}

type rowCellJSON struct {
	Components []viewengine.Component `json:"components,omitempty"`
	Err        string                 `json:"err,omitempty"`
}

type deletedRowEvent struct {
	UID       string `json:"uid"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleWatchGVKWithView renders and streams one discovered kind through
// the View Renderer pipeline (C7), picking the renderer named by
// view_name or falling back per viewengine.Registry.Get's rules.
func handleWatchGVKWithView(c *Connection, frame ClientFrame) {
	var p watchGVKPayload
	if err := unmarshalPayload(frame, &p); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	state, err := c.clusterState(p.ContextSource)
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	completed := state.Completed()
	if completed == nil {
		c.sendErr(frame.ReqID, errDiscoveryNotReady(p.ContextSource))
		return
	}

	resource, ok := completed.Resources[p.GVK]
	if !ok {
		c.sendErr(frame.ReqID, errUnknownGVK(p.GVK))
		return
	}
	crd := completed.CRDs[p.GVK]

	renderer := state.Views.Get(p.GVK, crd, p.ViewName)

	columns, err := renderer.ColumnDefinitions(p.GVK, crd)
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	namespace := p.Namespace
	if resource.Scope == discovery.ScopeCluster {
		namespace = ""
	}

	gitVersion := serverGitVersion(state)
	gvr := schema.GroupVersionResource{Group: p.GVK.Group, Version: p.GVK.Version, Resource: resource.Plural}
	watcher := kubewatch.New(state.Dynamic, gvr, namespace, gitVersion)

	err = c.sup.Submit(frame.ChannelID, func(ctx context.Context) {
		c.sendEvent(frame.ChannelID, "AnnounceColumns", announceColumnsEvent{Columns: columns})

		runErr := watcher.Run(ctx, func(ev kubewatch.Event) {
			emitWatchEvent(c, frame.ChannelID, renderer, p.GVK, crd, ev)
		})
		if runErr != nil && ctx.Err() == nil {
			logger.Log(logger.LevelWarn, map[string]string{"kind": p.GVK.Kind}, runErr, "view watch ended")
		}
	})
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	c.sendResult(frame.ReqID, struct{}{})
}

func emitWatchEvent(c *Connection, channel uint32, renderer viewengine.Renderer, gvk discovery.GVK, crd *apiextensionsv1.CustomResourceDefinition, ev kubewatch.Event) {
	switch v := ev.(type) {
	case kubewatch.Applied:
		cells, err := renderer.Render(gvk, crd, v.Object)
		row := appliedRowEvent{
			UID:       string(v.Object.GetUID()),
			Namespace: v.Object.GetNamespace(),
			Name:      v.Object.GetName(),
		}
		if err != nil {
			row.Columns = []rowCellJSON{{Err: err.Error()}}
		} else {
			row.Columns = make([]rowCellJSON, len(cells))
			for i, cell := range cells {
				row.Columns[i] = rowCellJSON{Components: cell.Components, Err: cell.Err}
			}
		}
		c.sendEvent(channel, "Applied", row)
	case kubewatch.Deleted:
		c.sendEvent(channel, "Deleted", deletedRowEvent{UID: v.UID, Namespace: v.Namespace, Name: v.Name})
	case kubewatch.StreamError:
		c.sendEvent(channel, "Error", map[string]string{"msg": v.Err.Error()})
	}
}

func serverGitVersion(state *clusterregistry.ClusterState) string {
	info, err := state.Client.Discovery().ServerVersion()
	if err != nil {
		logger.Log(logger.LevelWarn, nil, err, "fetching server version, assuming no streaming-list support")
		return ""
	}
	return info.GitVersion
}

type namespaceEvent struct {
	Name string `json:"name"`
}

var namespaceGVR = schema.GroupVersionResource{Group: "", Version: "v1", Resource: "namespaces"}

// handleWatchNamespaces streams the cluster's namespace list, the
// fast-path cluster-scoped watch the frontend uses for namespace
// pickers, independent of the full discovery/view pipeline.
func handleWatchNamespaces(c *Connection, frame ClientFrame) {
	var p struct {
		ContextSource clustersource.Source `json:"contextSource"`
	}
	if err := unmarshalPayload(frame, &p); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	state, err := c.clusterState(p.ContextSource)
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	gitVersion := serverGitVersion(state)
	watcher := kubewatch.New(state.Dynamic, namespaceGVR, "", gitVersion)

	err = c.sup.Submit(frame.ChannelID, func(ctx context.Context) {
		runErr := watcher.Run(ctx, func(ev kubewatch.Event) {
			switch v := ev.(type) {
			case kubewatch.Applied:
				c.sendEvent(frame.ChannelID, "Applied", namespaceEvent{Name: v.Object.GetName()})
			case kubewatch.Deleted:
				c.sendEvent(frame.ChannelID, "Deleted", namespaceEvent{Name: v.Name})
			case kubewatch.StreamError:
				c.sendEvent(frame.ChannelID, "Error", map[string]string{"msg": v.Err.Error()})
			}
		})
		if runErr != nil && ctx.Err() == nil {
			logger.Log(logger.LevelWarn, nil, runErr, "namespace watch ended")
		}
	})
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	c.sendResult(frame.ReqID, struct{}{})
}

type streamPodLogsPayload struct {
	ContextSource clustersource.Source `json:"contextSource"`
	Namespace     string               `json:"namespace"`
	Pod           string               `json:"pod"`
	Container     string               `json:"container"`
}

// handleStreamPodLogs follows one container's log stream, emitting lines
// as they arrive and a terminal EndOfStream or Error event, per §6.
func handleStreamPodLogs(c *Connection, frame ClientFrame) {
	var p streamPodLogsPayload
	if err := unmarshalPayload(frame, &p); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	state, err := c.clusterState(p.ContextSource)
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	err = c.sup.Submit(frame.ChannelID, func(ctx context.Context) {
		opts := &corev1.PodLogOptions{Container: p.Container, Follow: true}
		stream, err := state.Client.CoreV1().Pods(p.Namespace).GetLogs(p.Pod, opts).Stream(ctx)
		if err != nil {
			c.sendEvent(frame.ChannelID, "Error", map[string]string{"msg": err.Error()})
			return
		}
		defer stream.Close()

		scanner := bufio.NewScanner(stream)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			c.sendEvent(frame.ChannelID, "NewLine", map[string][]string{"lines": {scanner.Text()}})
		}
		if err := scanner.Err(); err != nil && err != io.EOF && ctx.Err() == nil {
			c.sendEvent(frame.ChannelID, "Error", map[string]string{"msg": err.Error()})
			return
		}
		c.sendEvent(frame.ChannelID, "EndOfStream", struct{}{})
	})
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	c.sendResult(frame.ReqID, struct{}{})
}
