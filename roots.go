package mcp

import (
	"context"
	"sync"
)

// Root is one filesystem or URI root a client exposes to the server.
type Root struct {
	URI  string  `json:"uri" validate:"required,startswith=file:"`
	Name *string `json:"name,omitempty"`
}

// RootsModule owns a Client's root set: an ordered, deduplicated list
// the client advertises via roots/list and can change at runtime,
// emitting notifications/roots/list_changed when it declared that
// capability.
type RootsModule struct {
	client *Client

	mu    sync.RWMutex
	order []string
	byURI map[string]Root
}

func newRootsModule(client *Client) *RootsModule {
	return &RootsModule{client: client, byURI: make(map[string]Root)}
}

// AddRoot adds root if its URI is not already present. Returns whether
// the set changed; a root failing validation (e.g. a non-file: URI) is
// rejected the same as a duplicate.
func (m *RootsModule) AddRoot(root Root) bool {
	if err := validateStruct(root); err != nil {
		return false
	}
	m.mu.Lock()
	if _, exists := m.byURI[root.URI]; exists {
		m.mu.Unlock()
		return false
	}
	m.byURI[root.URI] = root
	m.order = append(m.order, root.URI)
	m.mu.Unlock()
	m.notifyListChanged()
	return true
}

// RemoveRoot removes the root with the given URI. Returns whether the
// set changed.
func (m *RootsModule) RemoveRoot(uri string) bool {
	m.mu.Lock()
	if _, exists := m.byURI[uri]; !exists {
		m.mu.Unlock()
		return false
	}
	delete(m.byURI, uri)
	for i, u := range m.order {
		if u == uri {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
	m.notifyListChanged()
	return true
}

// Snapshot returns the current root set in insertion order.
func (m *RootsModule) Snapshot() []Root {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Root, 0, len(m.order))
	for _, uri := range m.order {
		out = append(out, m.byURI[uri])
	}
	return out
}

func (m *RootsModule) notifyListChanged() {
	m.client.mu.RLock()
	declared := m.client.capabilities.Roots != nil && m.client.capabilities.Roots.ListChanged
	m.client.mu.RUnlock()
	if !declared || !m.client.peer.Ready() {
		return
	}
	_ = m.client.peer.SendNotification(context.Background(), "notifications/roots/list_changed", struct{}{})
}

func (m *RootsModule) handleList(ctx context.Context, req Request) (Response, error) {
	data, err := wireJSON.Marshal(struct {
		Roots []Root `json:"roots"`
	}{Roots: m.Snapshot()})
	if err != nil {
		return Response{}, err
	}
	return Response{Result: data}, nil
}
