package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
)

// Tool describes one callable tool as advertised by tools/list.
type Tool struct {
	Name        string          `json:"name" validate:"required"`
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// CallToolRequest is the params of tools/call.
type CallToolRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolResult is the result of tools/call. IsError distinguishes a
// tool-level failure (still a successful RPC) from a protocol error.
type CallToolResult struct {
	Content ContentList `json:"content"`
	IsError bool        `json:"isError,omitempty"`
}

// ToolHandlerFunc implements a tool's behavior. A non-nil error is
// converted into a CallToolResult with IsError set rather than
// propagated as an RPC error.
type ToolHandlerFunc func(ctx context.Context, arguments json.RawMessage) (CallToolResult, error)

type registeredTool struct {
	tool    Tool
	handler ToolHandlerFunc
}

// ToolsModule implements the tools/* methods and owns the server's tool
// registry: a map plus an insertion-ordered slice of names, guarded by a
// single mutex.
type ToolsModule struct {
	peer *Peer

	mu    sync.RWMutex
	tools map[string]registeredTool
	order []string
}

func newToolsModule(peer *Peer) *ToolsModule {
	m := &ToolsModule{peer: peer, tools: make(map[string]registeredTool)}
	peer.RegisterRequestHandler("tools/list", m.handleList)
	peer.RegisterRequestHandler("tools/call", m.handleCall)
	return m
}

// install advertises the tools capability, listChanged always true since
// RegisterTool/UnregisterTool may run at any point in the server's life.
func (m *ToolsModule) install(result *InitializeResult) {
	result.Capabilities.Tools = &ToolsCapability{ListChanged: true}
}

// RegisterTool adds a new tool definition and emits
// notifications/tools/list_changed if the peer is ready. A name already
// in use is a *StateError rather than a silent overwrite.
func (m *ToolsModule) RegisterTool(tool Tool, handler ToolHandlerFunc) error {
	if err := validateStruct(tool); err != nil {
		return err
	}
	m.mu.Lock()
	if _, exists := m.tools[tool.Name]; exists {
		m.mu.Unlock()
		return NewStateError(fmt.Sprintf("tool already registered: %s", tool.Name))
	}
	m.order = append(m.order, tool.Name)
	m.tools[tool.Name] = registeredTool{tool: tool, handler: handler}
	m.mu.Unlock()
	m.notifyListChanged()
	return nil
}

// UnregisterTool removes a tool by name without emitting list_changed:
// a tool disappearing mid-session is usually a local, expected
// transition (a sandbox closing) rather than a change a connected
// client needs to react to.
func (m *ToolsModule) UnregisterTool(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tools[name]; !exists {
		return
	}
	delete(m.tools, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *ToolsModule) notifyListChanged() {
	if !m.peer.Ready() {
		return
	}
	_ = m.peer.SendNotification(context.Background(), "notifications/tools/list_changed", struct{}{})
}

func (m *ToolsModule) handleList(ctx context.Context, req Request) (Response, error) {
	m.mu.RLock()
	tools := make([]Tool, 0, len(m.order))
	for _, name := range m.order {
		tools = append(tools, m.tools[name].tool)
	}
	m.mu.RUnlock()

	result, err := wireJSON.Marshal(struct {
		Tools []Tool `json:"tools"`
	}{Tools: tools})
	if err != nil {
		return Response{}, err
	}
	return Response{Result: result}, nil
}

func (m *ToolsModule) handleCall(ctx context.Context, req Request) (Response, error) {
	var params CallToolRequest
	if err := wireJSON.Unmarshal(req.Params, &params); err != nil {
		return Response{}, NewArgumentError("invalid tools/call params", err)
	}

	m.mu.RLock()
	entry, ok := m.tools[params.Name]
	m.mu.RUnlock()
	if !ok {
		return marshalCallToolResult(CallToolResult{
			Content: ContentList{TextContent(fmt.Sprintf("No tool registered with the name %s", params.Name))},
			IsError: true,
		})
	}

	result, err := m.invoke(ctx, entry.handler, params.Arguments)
	if err != nil {
		return marshalCallToolResult(CallToolResult{
			Content: []Content{TextContent(err.Error())},
			IsError: true,
		})
	}
	return marshalCallToolResult(result)
}

// invoke runs handler with panic recovery: a tool panicking becomes a
// domain-level failure (isError result), not a crashed connection.
func (m *ToolsModule) invoke(ctx context.Context, handler ToolHandlerFunc, args json.RawMessage) (result CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.peer.diag.Printf("mcp: tool handler panicked: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("tool handler panicked: %v", r)
		}
	}()
	return handler(ctx, args)
}

func marshalCallToolResult(result CallToolResult) (Response, error) {
	data, err := wireJSON.Marshal(result)
	if err != nil {
		return Response{}, err
	}
	return Response{Result: data}, nil
}
