// Package transport implements the Tool Server Transport (C5): a
// request/response/notify JSON-RPC-shaped protocol carried over either
// stdio framing or a WebSocket connection, dispatching into a
// tools.Registry.
package transport

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Envelope is the wire shape every message round-trips through. Request
// carries a non-empty ID; Notify omits it (§4.5).
type Envelope struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *WireError      `json:"error,omitempty"`
}

// WireError is the Response.error shape.
type WireError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

const (
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodToolsProgress = "tools/progress"
	MethodCancel        = "$/cancel"
)

// setField patches a raw JSON param blob by key, used when assembling
// progress notifications without round-tripping through a Go struct.
func setField(raw json.RawMessage, path string, value any) json.RawMessage {
	out, err := sjson.SetBytes(raw, path, value)
	if err != nil {
		return raw
	}
	return out
}

func getField(raw json.RawMessage, path string) gjson.Result {
	return gjson.GetBytes(raw, path)
}
