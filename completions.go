package mcp

import (
	"context"
	"runtime/debug"
	"sync"
)

// maxCompletionValues is the wire-mandated cap on values returned per
// completion/complete call.
const maxCompletionValues = 100

// CompleteRequestRef identifies what is being completed against: a
// prompt name or a resource template URI.
type CompleteRequestRef struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	URI  string `json:"uri,omitempty"`
}

// CompleteArgument is the argument whose value is being completed.
type CompleteArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CompleteRequest is the params of completion/complete.
type CompleteRequest struct {
	Ref      CompleteRequestRef `json:"ref"`
	Argument CompleteArgument   `json:"argument"`
}

// CompletionValues is the completion field of CompleteResult.
type CompletionValues struct {
	Values  []string `json:"values"`
	Total   *int     `json:"total,omitempty"`
	HasMore bool     `json:"hasMore,omitempty"`
}

// CompleteResult is the result of completion/complete.
type CompleteResult struct {
	Completion CompletionValues `json:"completion"`
}

// CompletionHandlerFunc produces completion values for one (ref,
// argument) pair. It may return more than maxCompletionValues; the
// module truncates and sets hasMore/total accordingly.
type CompletionHandlerFunc func(ctx context.Context, ref CompleteRequestRef, arg CompleteArgument) ([]string, error)

// CompletionsModule implements completion/complete, dispatching by the
// ref's type ("ref/prompt" or "ref/resource") to whichever handler was
// registered for that name/URI.
type CompletionsModule struct {
	peer *Peer

	mu            sync.RWMutex
	promptHandlers   map[string]CompletionHandlerFunc
	resourceHandlers map[string]CompletionHandlerFunc
}

func newCompletionsModule(peer *Peer) *CompletionsModule {
	m := &CompletionsModule{
		peer:             peer,
		promptHandlers:   make(map[string]CompletionHandlerFunc),
		resourceHandlers: make(map[string]CompletionHandlerFunc),
	}
	peer.RegisterRequestHandler("completion/complete", m.handleComplete)
	return m
}

func (m *CompletionsModule) install(result *InitializeResult) {
	result.Capabilities.Completions = &struct{}{}
}

// RegisterPromptCompletions registers a completion handler for the named
// prompt's arguments.
func (m *CompletionsModule) RegisterPromptCompletions(name string, handler CompletionHandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptHandlers[name] = handler
}

// RegisterResourceCompletions registers a completion handler for a
// resource template's arguments, keyed by its URI template.
func (m *CompletionsModule) RegisterResourceCompletions(uriTemplate string, handler CompletionHandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resourceHandlers[uriTemplate] = handler
}

func (m *CompletionsModule) handleComplete(ctx context.Context, req Request) (Response, error) {
	var params CompleteRequest
	if err := wireJSON.Unmarshal(req.Params, &params); err != nil {
		return Response{}, NewArgumentError("invalid completion/complete params", err)
	}

	var (
		handler CompletionHandlerFunc
		ok      bool
	)
	m.mu.RLock()
	switch params.Ref.Type {
	case "ref/prompt":
		handler, ok = m.promptHandlers[params.Ref.Name]
	case "ref/resource":
		handler, ok = m.resourceHandlers[params.Ref.URI]
	}
	m.mu.RUnlock()

	if !ok {
		data, err := wireJSON.Marshal(CompleteResult{Completion: CompletionValues{Values: []string{}}})
		if err != nil {
			return Response{}, err
		}
		return Response{Result: data}, nil
	}

	values, err := m.invoke(ctx, handler, params.Ref, params.Argument)
	if err != nil {
		return Response{}, err
	}

	hasMore := len(values) > maxCompletionValues
	total := len(values)
	truncated := values
	if hasMore {
		truncated = values[:maxCompletionValues]
	}

	data, err := wireJSON.Marshal(CompleteResult{Completion: CompletionValues{
		Values:  truncated,
		Total:   &total,
		HasMore: hasMore,
	}})
	if err != nil {
		return Response{}, err
	}
	return Response{Result: data}, nil
}

func (m *CompletionsModule) invoke(ctx context.Context, handler CompletionHandlerFunc, ref CompleteRequestRef, arg CompleteArgument) (values []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.peer.diag.Printf("mcp: completion handler panicked: %v\n%s", r, debug.Stack())
			err = NewStateError("completion handler panicked")
		}
	}()
	return handler(ctx, ref, arg)
}
