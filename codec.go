package mcp

import "encoding/json"

// MessageKind classifies a decoded JSON-RPC line by the presence of its
// `id` and `method` members. Either side of a connection may originate
// any kind, so classification runs the same way for inbound traffic
// arriving at a client or a server.
type MessageKind int

const (
	// MessageKindUnknown is either malformed JSON or a well-formed object
	// with neither id nor method; the reader reports it as a parse error.
	MessageKindUnknown MessageKind = iota
	MessageKindRequest
	MessageKindResponse
	MessageKindNotification
)

// classifyLine inspects a raw JSON-RPC line's `id`/`method` members and
// reports which kind of message it is without fully decoding the payload.
func classifyLine(line []byte) MessageKind {
	var head struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := wireJSON.Unmarshal(line, &head); err != nil {
		return MessageKindUnknown
	}
	hasID := len(head.ID) > 0 && string(head.ID) != "null"
	switch {
	case hasID && head.Method == "":
		return MessageKindResponse
	case hasID && head.Method != "":
		return MessageKindRequest
	case head.Method != "":
		return MessageKindNotification
	default:
		return MessageKindUnknown
	}
}
