package mcp

import (
	"context"
	"encoding/json"
	"sync"
)

// RootsFallbackModule exposes add_roots/remove_roots tools for clients
// that connect without the roots capability, so a server can still learn
// about filesystem roots by having the operator (or the client's own
// tool-calling model) call a tool instead of answering roots/list. It
// keeps its own in-process store and pushes every change into a
// RootsTracker via the callback supplied at construction.
type RootsFallbackModule struct {
	onChange func(roots []Root)

	mu    sync.Mutex
	order []string
	byURI map[string]Root
}

func newRootsFallbackModule(onChange func(roots []Root)) *RootsFallbackModule {
	return &RootsFallbackModule{onChange: onChange, byURI: make(map[string]Root)}
}

// registerOn installs this module's tools onto tools, deliberately
// separate from newRootsFallbackModule so a server can construct the
// module before its ToolsModule exists and wire the two together once
// both are ready (see Server.activateRootsFallbackIfNeeded).
func (m *RootsFallbackModule) registerOn(tools *ToolsModule) error {
	description := "Register one or more filesystem/URI roots for this session, for clients that cannot advertise the roots capability natively."
	if err := tools.RegisterTool(Tool{
		Name:        "add_roots",
		Description: &description,
		InputSchema: addRootsSchema,
	}, m.handleAddRoots); err != nil {
		return err
	}

	removeDescription := "Remove a previously registered root by URI."
	return tools.RegisterTool(Tool{
		Name:        "remove_roots",
		Description: &removeDescription,
		InputSchema: removeRootsSchema,
	}, m.handleRemoveRoots)
}

var addRootsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"roots": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"uri": {"type": "string"},
					"name": {"type": "string"}
				},
				"required": ["uri"]
			}
		}
	},
	"required": ["roots"]
}`)

var removeRootsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"uris": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["uris"]
}`)

func (m *RootsFallbackModule) handleAddRoots(ctx context.Context, arguments json.RawMessage) (CallToolResult, error) {
	var params struct {
		Roots []Root `json:"roots"`
	}
	if err := wireJSON.Unmarshal(arguments, &params); err != nil {
		return CallToolResult{
			Content: []Content{TextContent("invalid arguments: " + err.Error())},
			IsError: true,
		}, nil
	}

	for _, r := range params.Roots {
		if err := validateStruct(r); err != nil {
			return CallToolResult{
				Content: []Content{TextContent("invalid root: " + err.Error())},
				IsError: true,
			}, nil
		}
	}

	m.mu.Lock()
	for _, r := range params.Roots {
		if _, exists := m.byURI[r.URI]; !exists {
			m.order = append(m.order, r.URI)
		}
		m.byURI[r.URI] = r
	}
	snapshot := m.snapshot()
	m.mu.Unlock()

	m.onChange(snapshot)
	return CallToolResult{Content: []Content{TextContent("roots updated")}}, nil
}

func (m *RootsFallbackModule) handleRemoveRoots(ctx context.Context, arguments json.RawMessage) (CallToolResult, error) {
	var params struct {
		URIs []string `json:"uris"`
	}
	if err := wireJSON.Unmarshal(arguments, &params); err != nil {
		return CallToolResult{
			Content: []Content{TextContent("invalid arguments: " + err.Error())},
			IsError: true,
		}, nil
	}

	m.mu.Lock()
	for _, uri := range params.URIs {
		delete(m.byURI, uri)
		for i, u := range m.order {
			if u == uri {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	snapshot := m.snapshot()
	m.mu.Unlock()

	m.onChange(snapshot)
	return CallToolResult{Content: []Content{TextContent("roots updated")}}, nil
}

// snapshot must be called with m.mu held.
func (m *RootsFallbackModule) snapshot() []Root {
	out := make([]Root, 0, len(m.order))
	for _, uri := range m.order {
		out = append(out, m.byURI[uri])
	}
	return out
}
