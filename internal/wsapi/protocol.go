// Package wsapi implements the Frontend API/IPC surface (C10): one
// gorilla/websocket connection per desktop client, carrying JSON-framed
// commands and the events they produce. Grounded on
// internal/operator/internal/multiplexer/multiplexer.go's single-message-
// type framing (one struct shape carries every command/response/event)
// and internal/handlers/term_handler.go's per-connection goroutine/mutex
// pairing for writes.
package wsapi

import "encoding/json"

// ClientFrame is one message the frontend sends over the socket. Command
// requests carry a ReqID the server echoes back on the matching Result;
// ChannelID is nonzero only for commands that register a streamed task
// with the Background Task Supervisor (§6's "channel" column).
type ClientFrame struct {
	ReqID     string          `json:"reqId"`
	ChannelID uint32          `json:"channelId,omitempty"`
	Command   string          `json:"command"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ServerFrame is one message the server sends. Exactly one of Result/Err
// is set on a "result" frame; "event" frames carry Event/Data instead and
// either echo ChannelID (a per-channel stream) or omit it (a broadcast).
type ServerFrame struct {
	Kind      string          `json:"kind"` // "result" | "event"
	ReqID     string          `json:"reqId,omitempty"`
	ChannelID uint32          `json:"channelId,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Err       string          `json:"error,omitempty"`
	Event     string          `json:"event,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func resultFrame(reqID string, v interface{}) ServerFrame {
	raw, err := json.Marshal(v)
	if err != nil {
		return ServerFrame{Kind: "result", ReqID: reqID, Err: err.Error()}
	}
	return ServerFrame{Kind: "result", ReqID: reqID, Result: raw}
}

func errFrame(reqID string, err error) ServerFrame {
	return ServerFrame{Kind: "result", ReqID: reqID, Err: err.Error()}
}

func eventFrame(channelID uint32, event string, v interface{}) ServerFrame {
	raw, err := json.Marshal(v)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"marshalError": err.Error()})
	}
	return ServerFrame{Kind: "event", ChannelID: channelID, Event: event, Data: raw}
}
