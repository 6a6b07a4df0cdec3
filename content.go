package mcp

import "encoding/json"

// Content is the open union carried by tool/prompt results: text, an
// inline image, or an embedded resource. Exactly one variant is
// populated per value. Content has no custom decoder: a wire object is
// decoded field by field, and Type names which variant it holds.
type Content struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	Data     string            `json:"data,omitempty"`     // base64, for image/audio
	MIMEType string            `json:"mimeType,omitempty"`
	Resource *EmbeddedResource `json:"resource,omitempty"`
}

// TextContent constructs a Content value of type "text".
func TextContent(text string) Content {
	return Content{Type: "text", Text: text}
}

// ImageContent constructs a Content value of type "image".
func ImageContent(base64Data, mimeType string) Content {
	return Content{Type: "image", Data: base64Data, MIMEType: mimeType}
}

// EmbeddedResourceContent constructs a Content value of type "resource".
func EmbeddedResourceContent(res EmbeddedResource) Content {
	return Content{Type: "resource", Resource: &res}
}

// EmbeddedResource carries a resource's contents inline inside a Content
// value (as opposed to being read separately via resources/read).
type EmbeddedResource struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"` // base64
}

// ResourceContents is the per-item shape returned by resources/read:
// either text or a base64 blob, never both.
type ResourceContents struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ContentList is the field type for every wire member that carries
// Content: CallToolResult.Content, PromptMessage.Content, and
// SamplingMessage.Content. Its UnmarshalJSON accepts either a list or a
// single bare object, since some peers still send a lone object for a
// single-content reply; it always marshals back out as a list.
type ContentList []Content

func (c *ContentList) UnmarshalJSON(raw []byte) error {
	list, err := normalizeContentList(raw)
	if err != nil {
		return err
	}
	*c = list
	return nil
}

// normalizeContentList accepts either a single Content object or a list
// on decode.
func normalizeContentList(raw json.RawMessage) (ContentList, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []Content
	if err := wireJSON.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single Content
	if err := wireJSON.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return ContentList{single}, nil
}
