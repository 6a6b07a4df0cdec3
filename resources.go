package mcp

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Resource describes one statically addressable resource as advertised
// by resources/list.
type Resource struct {
	URI         string  `json:"uri"`
	Name        string  `json:"name"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	MIMEType    *string `json:"mimeType,omitempty"`
}

// ResourceTemplate describes a URI-templated family of resources, as
// advertised by resources/templates/list.
type ResourceTemplate struct {
	URITemplate string  `json:"uriTemplate"`
	Name        string  `json:"name"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	MIMEType    *string `json:"mimeType,omitempty"`
}

// ResourceHandlerFunc resolves a resource URI. matched is false when the
// handler's template does not apply to uri at all (try the next
// registration); err signals the template matched but the read failed.
type ResourceHandlerFunc func(ctx context.Context, uri string) (contents []ResourceContents, matched bool, err error)

type registeredResource struct {
	resource Resource
	handler  ResourceHandlerFunc
}

type registeredTemplate struct {
	template ResourceTemplate
	handler  ResourceHandlerFunc
}

// ResourcesModule implements the resources/* methods: static resources
// are matched first by exact URI, then template handlers are tried in
// registration order as a fallback.
type ResourcesModule struct {
	peer *Peer

	mu            sync.RWMutex
	resources     map[string]registeredResource
	resourceOrder []string
	templates     []registeredTemplate
	subscribers   map[string]bool
}

func newResourcesModule(peer *Peer) *ResourcesModule {
	m := &ResourcesModule{
		peer:        peer,
		resources:   make(map[string]registeredResource),
		subscribers: make(map[string]bool),
	}
	peer.RegisterRequestHandler("resources/list", m.handleList)
	peer.RegisterRequestHandler("resources/templates/list", m.handleListTemplates)
	peer.RegisterRequestHandler("resources/read", m.handleRead)
	peer.RegisterRequestHandler("resources/subscribe", m.handleSubscribe)
	peer.RegisterRequestHandler("resources/unsubscribe", m.handleUnsubscribe)
	return m
}

func (m *ResourcesModule) install(result *InitializeResult) {
	result.Capabilities.Resources = &ResourcesCapability{ListChanged: true, Subscribe: true}
}

// RegisterResource adds a new static resource. A URI already in use is
// a *StateError rather than a silent overwrite; use UpdateResource to
// change an already-registered resource.
func (m *ResourcesModule) RegisterResource(resource Resource, handler ResourceHandlerFunc) error {
	m.mu.Lock()
	if _, exists := m.resources[resource.URI]; exists {
		m.mu.Unlock()
		return NewStateError(fmt.Sprintf("resource already registered: %s", resource.URI))
	}
	m.resourceOrder = append(m.resourceOrder, resource.URI)
	m.resources[resource.URI] = registeredResource{resource: resource, handler: handler}
	m.mu.Unlock()
	m.notifyListChanged()
	return nil
}

// UpdateResource changes an already-registered resource's definition,
// optionally replacing its handler, and emits
// notifications/resources/updated if a client is currently subscribed
// to its URI. A URI with no prior RegisterResource call is a
// *StateError — there is nothing to update.
func (m *ResourcesModule) UpdateResource(resource Resource, handler ResourceHandlerFunc) error {
	m.mu.Lock()
	existing, ok := m.resources[resource.URI]
	if !ok {
		m.mu.Unlock()
		return NewStateError(fmt.Sprintf("resource not registered: %s", resource.URI))
	}
	if handler == nil {
		handler = existing.handler
	}
	m.resources[resource.URI] = registeredResource{resource: resource, handler: handler}
	m.mu.Unlock()
	m.NotifyUpdated(resource.URI)
	return nil
}

// RegisterTemplate adds a resource template. Templates are tried in
// registration order when a URI does not match any static resource.
func (m *ResourcesModule) RegisterTemplate(template ResourceTemplate, handler ResourceHandlerFunc) {
	m.mu.Lock()
	m.templates = append(m.templates, registeredTemplate{template: template, handler: handler})
	m.mu.Unlock()
	m.notifyListChanged()
}

// RemoveResource removes a static resource by URI, silently, and drops
// any subscription to it.
func (m *ResourcesModule) RemoveResource(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.resources[uri]; !exists {
		return
	}
	delete(m.resources, uri)
	delete(m.subscribers, uri)
	for i, u := range m.resourceOrder {
		if u == uri {
			m.resourceOrder = append(m.resourceOrder[:i], m.resourceOrder[i+1:]...)
			break
		}
	}
}

// NotifyUpdated emits notifications/resources/updated for uri if at
// least one client is subscribed to it and the peer is ready.
func (m *ResourcesModule) NotifyUpdated(uri string) {
	m.mu.RLock()
	subscribed := m.subscribers[uri]
	m.mu.RUnlock()
	if !subscribed || !m.peer.Ready() {
		return
	}
	_ = m.peer.SendNotification(context.Background(), "notifications/resources/updated", struct {
		URI string `json:"uri"`
	}{URI: uri})
}

func (m *ResourcesModule) notifyListChanged() {
	if !m.peer.Ready() {
		return
	}
	_ = m.peer.SendNotification(context.Background(), "notifications/resources/list_changed", struct{}{})
}

func (m *ResourcesModule) handleList(ctx context.Context, req Request) (Response, error) {
	m.mu.RLock()
	resources := make([]Resource, 0, len(m.resourceOrder))
	for _, uri := range m.resourceOrder {
		resources = append(resources, m.resources[uri].resource)
	}
	m.mu.RUnlock()

	data, err := wireJSON.Marshal(struct {
		Resources []Resource `json:"resources"`
	}{Resources: resources})
	if err != nil {
		return Response{}, err
	}
	return Response{Result: data}, nil
}

func (m *ResourcesModule) handleListTemplates(ctx context.Context, req Request) (Response, error) {
	m.mu.RLock()
	templates := make([]ResourceTemplate, 0, len(m.templates))
	for _, t := range m.templates {
		templates = append(templates, t.template)
	}
	m.mu.RUnlock()

	data, err := wireJSON.Marshal(struct {
		ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
	}{ResourceTemplates: templates})
	if err != nil {
		return Response{}, err
	}
	return Response{Result: data}, nil
}

func (m *ResourcesModule) handleRead(ctx context.Context, req Request) (Response, error) {
	var params struct {
		URI string `json:"uri"`
	}
	if err := wireJSON.Unmarshal(req.Params, &params); err != nil {
		return Response{}, NewArgumentError("invalid resources/read params", err)
	}

	m.mu.RLock()
	static, ok := m.resources[params.URI]
	templates := append([]registeredTemplate(nil), m.templates...)
	m.mu.RUnlock()

	var (
		contents []ResourceContents
		matched  bool
		err      error
	)
	if ok {
		contents, matched, err = m.invoke(ctx, static.handler, params.URI)
	}
	if !matched {
		for _, t := range templates {
			contents, matched, err = m.invoke(ctx, t.handler, params.URI)
			if matched {
				break
			}
		}
	}
	if err != nil {
		return Response{}, err
	}
	if !matched {
		return Response{}, NewArgumentError(fmt.Sprintf("unknown resource: %s", params.URI), nil)
	}

	data, err := wireJSON.Marshal(struct {
		Contents []ResourceContents `json:"contents"`
	}{Contents: contents})
	if err != nil {
		return Response{}, err
	}
	return Response{Result: data}, nil
}

func (m *ResourcesModule) invoke(ctx context.Context, handler ResourceHandlerFunc, uri string) (contents []ResourceContents, matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.peer.diag.Printf("mcp: resource handler panicked: %v\n%s", r, debug.Stack())
			matched, err = true, fmt.Errorf("resource handler panicked: %v", r)
		}
	}()
	return handler(ctx, uri)
}

func (m *ResourcesModule) handleSubscribe(ctx context.Context, req Request) (Response, error) {
	var params struct {
		URI string `json:"uri"`
	}
	if err := wireJSON.Unmarshal(req.Params, &params); err != nil {
		return Response{}, NewArgumentError("invalid resources/subscribe params", err)
	}
	m.mu.Lock()
	m.subscribers[params.URI] = true
	m.mu.Unlock()
	return Response{Result: []byte("{}")}, nil
}

func (m *ResourcesModule) handleUnsubscribe(ctx context.Context, req Request) (Response, error) {
	var params struct {
		URI string `json:"uri"`
	}
	if err := wireJSON.Unmarshal(req.Params, &params); err != nil {
		return Response{}, NewArgumentError("invalid resources/unsubscribe params", err)
	}
	m.mu.Lock()
	delete(m.subscribers, params.URI)
	m.mu.Unlock()
	return Response{Result: []byte("{}")}, nil
}
