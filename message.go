package mcp

import (
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
)

// wireJSON is the codec used for every frame that crosses the wire. It is
// configured to match encoding/json's semantics (field tags, omitempty,
// sorted map keys on encode) so callers never see a behavioral difference,
// while avoiding the reflection overhead encoding/json pays on the hot
// read/write loop.
var wireJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonrpcVersion is the protocol version string for JSON-RPC 2.0.
const jsonrpcVersion = "2.0"

// JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700 // Invalid JSON was received
	ErrCodeInvalidRequest = -32600 // The JSON sent is not a valid Request object
	ErrCodeMethodNotFound = -32601 // The method does not exist / is not available
	ErrCodeInvalidParams  = -32602 // Invalid method parameter(s)
	ErrCodeInternalError  = -32603 // Internal JSON-RPC error
)

// RequestID is a union of string | integer | nil, matching the JSON-RPC 2.0
// id member. JSON numbers decode as float64; Value may also hold an int64
// or uint64 when constructed directly by this package (e.g. from the
// peer's id counter).
type RequestID struct {
	Value interface{}
}

// MarshalJSON implements json.Marshaler for RequestID.
func (r RequestID) MarshalJSON() ([]byte, error) {
	return wireJSON.Marshal(r.Value)
}

// UnmarshalJSON implements json.Unmarshaler for RequestID.
func (r *RequestID) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := wireJSON.Unmarshal(data, &v); err != nil {
		return err
	}
	r.Value = v
	return nil
}

// Meta is the open `_meta` member carried by requests, responses, and
// notifications. ProgressToken is promoted to a typed accessor because
// the peer and progress machinery read it constantly; every other key
// round-trips through the open map so forward-compatible fields survive
// a decode/re-encode cycle untouched.
type Meta struct {
	ProgressToken interface{}    `json:"progressToken,omitempty"`
	Extra         map[string]any `json:"-"`
}

// MarshalJSON flattens ProgressToken and Extra into a single JSON object.
func (m Meta) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+1)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.ProgressToken != nil {
		out["progressToken"] = m.ProgressToken
	}
	return wireJSON.Marshal(out)
}

// UnmarshalJSON splits the JSON object back into ProgressToken and Extra.
func (m *Meta) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := wireJSON.Unmarshal(data, &raw); err != nil {
		return err
	}
	if pt, ok := raw["progressToken"]; ok {
		m.ProgressToken = pt
		delete(raw, "progressToken")
	}
	m.Extra = raw
	return nil
}

// IsEmpty reports whether the meta object carries no information at all,
// used to decide whether `_meta` should be omitted on encode.
func (m *Meta) IsEmpty() bool {
	return m == nil || (m.ProgressToken == nil && len(m.Extra) == 0)
}

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Notification represents a JSON-RPC 2.0 notification (no id).
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// requestMeta extracts the `_meta` member from a request's params, if
// present, without requiring callers to know the concrete params type.
func requestMeta(params json.RawMessage) *Meta {
	if len(params) == 0 {
		return nil
	}
	var carrier struct {
		Meta *Meta `json:"_meta"`
	}
	if err := wireJSON.Unmarshal(params, &carrier); err != nil {
		return nil
	}
	return carrier.Meta
}

// progressTokenOf returns the progress token attached to params, if any.
func progressTokenOf(params json.RawMessage) (interface{}, bool) {
	m := requestMeta(params)
	if m == nil || m.ProgressToken == nil {
		return nil, false
	}
	return m.ProgressToken, true
}
