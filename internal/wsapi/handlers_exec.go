package wsapi

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/agentkube/clustercore/pkg/clustererr"
	"github.com/agentkube/clustercore/pkg/clustersource"
	"github.com/agentkube/clustercore/pkg/execsession"
)

type execStartPayload struct {
	ContextSource clustersource.Source `json:"contextSource"`
	Namespace     string               `json:"namespace"`
	Pod           string               `json:"pod"`
	Container     string               `json:"container"`
}

const execReadyTimeout = 15 * time.Second

// handleExecStart opens an interactive session (C9) under this
// connection's exec multiplexer and supervisor, replying with the
// session id once the session is registered and has emitted its Ready
// event (emitted as soon as the exec stream is started, before the remote
// process is known to be attached), matching §6's "Result: SessionId"
// for this command.
func handleExecStart(c *Connection, frame ClientFrame) {
	var p execStartPayload
	if err := unmarshalPayload(frame, &p); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	state, err := c.clusterState(p.ContextSource)
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	ready := make(chan execsession.SessionID, 1)

	err = c.sup.Submit(frame.ChannelID, func(ctx context.Context) {
		_, _ = c.execMux.Start(ctx, state.Client, state.Config, p.Namespace, p.Pod, p.Container, func(ev execsession.Event) {
			emitExecEvent(c, frame.ChannelID, ready, ev)
		})
	})
	if err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	select {
	case id := <-ready:
		c.sendResult(frame.ReqID, map[string]string{"sessionId": string(id)})
	case <-time.After(execReadyTimeout):
		c.sendErr(frame.ReqID, clustererr.KubeClient(nil, "exec session did not attach in time"))
	case <-c.ctx.Done():
	}
}

func emitExecEvent(c *Connection, channel uint32, ready chan<- execsession.SessionID, ev execsession.Event) {
	switch v := ev.(type) {
	case execsession.Ready:
		select {
		case ready <- v.ID:
		default:
		}
		c.sendEvent(channel, "Ready", map[string]string{"sessionId": string(v.ID)})
	case execsession.Bytes:
		c.sendEvent(channel, "Bytes", map[string]string{"data": base64.StdEncoding.EncodeToString(v.Data)})
	case execsession.End:
		msg := ""
		if v.Err != nil {
			msg = v.Err.Error()
		}
		c.sendEvent(channel, "End", map[string]string{"error": msg})
	}
}

type execWriteStdinPayload struct {
	SessionID string `json:"sessionId"`
	Data      string `json:"data"`
}

// handleExecWriteStdin writes base64-encoded stdin bytes to a live session.
func handleExecWriteStdin(c *Connection, frame ClientFrame) {
	var p execWriteStdinPayload
	if err := unmarshalPayload(frame, &p); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	data, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		c.sendErr(frame.ReqID, clustererr.Generic(err, "decoding stdin bytes"))
		return
	}

	if err := c.execMux.Input(execsession.SessionID(p.SessionID), data); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}
	c.sendResult(frame.ReqID, struct{}{})
}

type execResizePayload struct {
	SessionID string `json:"sessionId"`
	Cols      uint16 `json:"cols"`
	Rows      uint16 `json:"rows"`
}

// handleExecResize forwards a terminal resize to a live session.
func handleExecResize(c *Connection, frame ClientFrame) {
	var p execResizePayload
	if err := unmarshalPayload(frame, &p); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	if err := c.execMux.Resize(execsession.SessionID(p.SessionID), p.Cols, p.Rows); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}
	c.sendResult(frame.ReqID, struct{}{})
}

type execAbortPayload struct {
	SessionID string `json:"sessionId"`
}

// handleExecAbort tears a live session down; the session's own End event
// follows asynchronously once the remote process is actually killed.
func handleExecAbort(c *Connection, frame ClientFrame) {
	var p execAbortPayload
	if err := unmarshalPayload(frame, &p); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}

	if err := c.execMux.AbortSession(execsession.SessionID(p.SessionID)); err != nil {
		c.sendErr(frame.ReqID, err)
		return
	}
	c.sendResult(frame.ReqID, struct{}{})
}
