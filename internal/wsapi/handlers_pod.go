package wsapi

import (
	"context"

	"github.com/agentkube/clustercore/pkg/clustererr"
	"github.com/agentkube/clustercore/pkg/clustersource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type namedResourcePayload struct {
	ContextSource clustersource.Source `json:"contextSource"`
	Namespace     string               `json:"namespace"`
	Name          string               `json:"name"`
}

// handleListPodContainerNames lists every container name on a pod,
// including init containers, for the frontend's container picker (the
// exec/log commands both need one).
func handleListPodContainerNames(c *Connection, frame ClientFrame) {
	var p namedResourcePayload
	if err := unmarshalPayload(frame, &p); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	state, err := c.clusterState(p.ContextSource)
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	pod, err := state.Client.CoreV1().Pods(p.Namespace).Get(context.Background(), p.Name, metav1.GetOptions{})
	if err != nil {
		c.sendErr(frame.ReqID, clustererr.KubeClient(err, "fetching pod"))
		return
	}

	names := make([]string, 0, len(pod.Spec.InitContainers)+len(pod.Spec.Containers))
	for _, ct := range pod.Spec.InitContainers {
		names = append(names, ct.Name)
	}
	for _, ct := range pod.Spec.Containers {
		names = append(names, ct.Name)
	}

	c.sendResult(frame.ReqID, names)
}

// handleListSecretKeys lists a Secret's data keys without exposing values.
func handleListSecretKeys(c *Connection, frame ClientFrame) {
	var p namedResourcePayload
	if err := unmarshalPayload(frame, &p); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	state, err := c.clusterState(p.ContextSource)
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	secret, err := state.Client.CoreV1().Secrets(p.Namespace).Get(context.Background(), p.Name, metav1.GetOptions{})
	if err != nil {
		c.sendErr(frame.ReqID, clustererr.KubeClient(err, "fetching secret"))
		return
	}

	keys := make([]string, 0, len(secret.Data))
	for k := range secret.Data {
		keys = append(keys, k)
	}

	c.sendResult(frame.ReqID, keys)
}

type decodeSecretKeyPayload struct {
	ContextSource clustersource.Source `json:"contextSource"`
	Namespace     string               `json:"namespace"`
	Name          string               `json:"name"`
	Key           string               `json:"key"`
}

// handleDecodeSecretKey returns one Secret key's decoded value.
// client-go's typed Secret already base64-decodes .data into raw bytes,
// so this is a plain map lookup, not a decode step itself.
func handleDecodeSecretKey(c *Connection, frame ClientFrame) {
	var p decodeSecretKeyPayload
	if err := unmarshalPayload(frame, &p); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	state, err := c.clusterState(p.ContextSource)
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	secret, err := state.Client.CoreV1().Secrets(p.Namespace).Get(context.Background(), p.Name, metav1.GetOptions{})
	if err != nil {
		c.sendErr(frame.ReqID, clustererr.KubeClient(err, "fetching secret"))
		return
	}

	value, ok := secret.Data[p.Key]
	if !ok {
		c.sendErr(frame.ReqID, clustererr.Generic(nil, "unknown secret key"))
		return
	}

	c.sendResult(frame.ReqID, string(value))
}
