package wsapi

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/agentkube/clustercore/pkg/clusterregistry"
	"github.com/agentkube/clustercore/pkg/clustersource"
	"github.com/agentkube/clustercore/pkg/execsession"
	"github.com/agentkube/clustercore/pkg/logger"
	"github.com/agentkube/clustercore/pkg/supervisor"
	"github.com/gorilla/websocket"
)

// Connection is one frontend client's live state: its own Supervisor and
// exec session multiplexer, so closing this socket tears down every
// background task and exec session it opened without touching any other
// client's. The Registry and Cache are shared, process-wide.
type Connection struct {
	server *Server
	ws     *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	sup      *supervisor.Supervisor
	execMux  *execsession.Mux
	lastTask int
}

func newConnection(s *Server, ws *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		server:  s,
		ws:      ws,
		ctx:     ctx,
		cancel:  cancel,
		execMux: execsession.New(),
	}
	c.sup = supervisor.New(c.onStats)
	return c
}

func (c *Connection) onStats(active int) {
	delta := active - c.lastTask
	c.lastTask = active
	c.server.reportTaskCount(delta)
	c.sendEvent(0, "join_handle_store_stats", map[string]int{"handles": active})
}

func (c *Connection) run() {
	defer c.teardown()

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logger.Log(logger.LevelWarn, nil, err, "unreadable client frame, ignoring")
			continue
		}

		// Dispatched off the read goroutine so a slow single-shot command
		// (e.g. waiting for an exec session to attach) never stalls
		// delivery of concurrently-issued commands on the same socket.
		go c.dispatch(frame)
	}
}

func (c *Connection) teardown() {
	c.cancel()
	c.sup.AbortAll()
	c.sup.Stop()
	c.ws.Close()
}

func (c *Connection) send(frame ServerFrame) {
	raw, err := json.Marshal(frame)
	if err != nil {
		logger.Log(logger.LevelError, nil, err, "marshaling server frame")
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
		logger.Log(logger.LevelDebug, nil, err, "writing to websocket, client likely disconnected")
	}
}

func (c *Connection) sendResult(reqID string, v interface{}) { c.send(resultFrame(reqID, v)) }
func (c *Connection) sendErr(reqID string, err error)        { c.send(errFrame(reqID, err)) }
func (c *Connection) sendEvent(channelID uint32, event string, v interface{}) {
	c.send(eventFrame(channelID, event, v))
}

// dispatch routes one client frame to its command handler. Single-shot
// commands run inline (they're fast: map lookups, one API call);
// channel-bearing commands that stream register their work with the
// connection's Supervisor and return immediately, per §7's propagation
// policy ("requests that produce a stream return Ok(()) after they
// register a task").
func (c *Connection) dispatch(frame ClientFrame) {
	handler, ok := commandTable[frame.Command]
	if !ok {
		c.sendErr(frame.ReqID, unknownCommand(frame.Command))
		return
	}
	handler(c, frame)
}

// clusterState resolves a context_source payload field to its
// ClusterState, the precondition almost every command after
// connect_cluster shares.
func (c *Connection) clusterState(source clustersource.Source) (*clusterregistry.ClusterState, error) {
	state, ok := c.server.Registry.Get(source)
	if !ok {
		return nil, errNotConnected(source)
	}
	return state, nil
}
