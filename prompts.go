package mcp

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// PromptArgument describes one named argument a prompt accepts.
type PromptArgument struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Required    bool    `json:"required,omitempty"`
}

// Prompt describes one prompt template as advertised by prompts/list.
type Prompt struct {
	Name        string           `json:"name"`
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptMessage is one message in a rendered prompt, carrying a role and
// content normalized to a list on the wire (see content.go).
type PromptMessage struct {
	Role    string      `json:"role"`
	Content ContentList `json:"content"`
}

// GetPromptResult is the result of prompts/get.
type GetPromptResult struct {
	Description *string         `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// PromptHandlerFunc renders a prompt given its string-typed arguments.
type PromptHandlerFunc func(ctx context.Context, arguments map[string]string) (GetPromptResult, error)

type registeredPrompt struct {
	prompt  Prompt
	handler PromptHandlerFunc
}

// PromptsModule implements the prompts/* methods.
type PromptsModule struct {
	peer *Peer

	mu      sync.RWMutex
	prompts map[string]registeredPrompt
	order   []string
}

func newPromptsModule(peer *Peer) *PromptsModule {
	m := &PromptsModule{peer: peer, prompts: make(map[string]registeredPrompt)}
	peer.RegisterRequestHandler("prompts/list", m.handleList)
	peer.RegisterRequestHandler("prompts/get", m.handleGet)
	return m
}

func (m *PromptsModule) install(result *InitializeResult) {
	result.Capabilities.Prompts = &PromptsCapability{ListChanged: true}
}

// RegisterPrompt adds a new prompt and notifies list_changed. A name
// already in use is a *StateError rather than a silent overwrite.
func (m *PromptsModule) RegisterPrompt(prompt Prompt, handler PromptHandlerFunc) error {
	m.mu.Lock()
	if _, exists := m.prompts[prompt.Name]; exists {
		m.mu.Unlock()
		return NewStateError(fmt.Sprintf("prompt already registered: %s", prompt.Name))
	}
	m.order = append(m.order, prompt.Name)
	m.prompts[prompt.Name] = registeredPrompt{prompt: prompt, handler: handler}
	m.mu.Unlock()
	m.notifyListChanged()
	return nil
}

// UnregisterPrompt removes a prompt by name, silently, matching
// ToolsModule.UnregisterTool's rationale.
func (m *PromptsModule) UnregisterPrompt(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.prompts[name]; !exists {
		return
	}
	delete(m.prompts, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *PromptsModule) notifyListChanged() {
	if !m.peer.Ready() {
		return
	}
	_ = m.peer.SendNotification(context.Background(), "notifications/prompts/list_changed", struct{}{})
}

func (m *PromptsModule) handleList(ctx context.Context, req Request) (Response, error) {
	m.mu.RLock()
	prompts := make([]Prompt, 0, len(m.order))
	for _, name := range m.order {
		prompts = append(prompts, m.prompts[name].prompt)
	}
	m.mu.RUnlock()

	data, err := wireJSON.Marshal(struct {
		Prompts []Prompt `json:"prompts"`
	}{Prompts: prompts})
	if err != nil {
		return Response{}, err
	}
	return Response{Result: data}, nil
}

// handleGet fails with an *ArgumentError (wire code InvalidParams) for
// an unknown prompt name, unlike tools/call's domain-level isError
// result — a prompt name the caller got from a stale prompts/list is a
// protocol-level mistake, not a prompt-author-defined failure mode.
func (m *PromptsModule) handleGet(ctx context.Context, req Request) (Response, error) {
	var params struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments,omitempty"`
	}
	if err := wireJSON.Unmarshal(req.Params, &params); err != nil {
		return Response{}, NewArgumentError("invalid prompts/get params", err)
	}

	m.mu.RLock()
	entry, ok := m.prompts[params.Name]
	m.mu.RUnlock()
	if !ok {
		return Response{}, NewArgumentError(fmt.Sprintf("unknown prompt: %s", params.Name), nil)
	}

	result, err := m.invoke(ctx, entry.handler, params.Arguments)
	if err != nil {
		return Response{}, err
	}
	data, err := wireJSON.Marshal(result)
	if err != nil {
		return Response{}, err
	}
	return Response{Result: data}, nil
}

func (m *PromptsModule) invoke(ctx context.Context, handler PromptHandlerFunc, args map[string]string) (result GetPromptResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.peer.diag.Printf("mcp: prompt handler panicked: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("prompt handler panicked: %v", r)
		}
	}()
	return handler(ctx, args)
}
