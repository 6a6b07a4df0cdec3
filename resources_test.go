package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResourcesModule(t *testing.T) (*ResourcesModule, *MockTransport) {
	t.Helper()
	transport := NewMockTransport()
	peer := NewPeer(transport, WithDiagLogger(nopDiagLogger{}))
	peer.MarkReady()
	return newResourcesModule(peer), transport
}

func TestResourcesReadStaticMatch(t *testing.T) {
	m, _ := newTestResourcesModule(t)
	require.NoError(t, m.RegisterResource(Resource{URI: "file:///a.txt", Name: "a"}, func(ctx context.Context, uri string) ([]ResourceContents, bool, error) {
		return []ResourceContents{{URI: uri, Text: "hello"}}, true, nil
	}))

	req := Request{Params: json.RawMessage(`{"uri":"file:///a.txt"}`)}
	resp, err := m.handleRead(context.Background(), req)
	require.NoError(t, err)

	var result struct {
		Contents []ResourceContents `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "hello", result.Contents[0].Text)
}

func TestResourcesReadFallsBackToTemplate(t *testing.T) {
	m, _ := newTestResourcesModule(t)
	m.RegisterTemplate(ResourceTemplate{URITemplate: "file:///{name}.txt", Name: "named"}, func(ctx context.Context, uri string) ([]ResourceContents, bool, error) {
		if uri != "file:///b.txt" {
			return nil, false, nil
		}
		return []ResourceContents{{URI: uri, Text: "templated"}}, true, nil
	})

	req := Request{Params: json.RawMessage(`{"uri":"file:///b.txt"}`)}
	resp, err := m.handleRead(context.Background(), req)
	require.NoError(t, err)

	var result struct {
		Contents []ResourceContents `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "templated", result.Contents[0].Text)
}

func TestResourcesReadUnknownURIReturnsArgumentError(t *testing.T) {
	m, _ := newTestResourcesModule(t)
	req := Request{Params: json.RawMessage(`{"uri":"file:///missing.txt"}`)}

	_, err := m.handleRead(context.Background(), req)
	require.Error(t, err)
	var argErr *ArgumentError
	assert.ErrorAs(t, err, &argErr)
}

func TestResourcesSubscribeGatesUpdateNotification(t *testing.T) {
	m, transport := newTestResourcesModule(t)

	m.NotifyUpdated("file:///a.txt")
	assert.Empty(t, transport.SentNotifications)

	_, err := m.handleSubscribe(context.Background(), Request{Params: json.RawMessage(`{"uri":"file:///a.txt"}`)})
	require.NoError(t, err)

	m.NotifyUpdated("file:///a.txt")
	require.Len(t, transport.SentNotifications, 1)
	assert.Equal(t, "notifications/resources/updated", transport.SentNotifications[0].Method)
}

func TestResourcesUnsubscribeStopsUpdateNotification(t *testing.T) {
	m, transport := newTestResourcesModule(t)
	_, err := m.handleSubscribe(context.Background(), Request{Params: json.RawMessage(`{"uri":"file:///a.txt"}`)})
	require.NoError(t, err)

	_, err = m.handleUnsubscribe(context.Background(), Request{Params: json.RawMessage(`{"uri":"file:///a.txt"}`)})
	require.NoError(t, err)

	m.NotifyUpdated("file:///a.txt")
	assert.Empty(t, transport.SentNotifications)
}

func TestResourcesReadRecoversFromPanic(t *testing.T) {
	m, _ := newTestResourcesModule(t)
	require.NoError(t, m.RegisterResource(Resource{URI: "file:///boom.txt", Name: "boom"}, func(ctx context.Context, uri string) ([]ResourceContents, bool, error) {
		panic("kaboom")
	}))

	req := Request{Params: json.RawMessage(`{"uri":"file:///boom.txt"}`)}
	_, err := m.handleRead(context.Background(), req)
	require.Error(t, err)
}

func TestRegisterResourceRejectsDuplicateURI(t *testing.T) {
	m, _ := newTestResourcesModule(t)
	handler := func(ctx context.Context, uri string) ([]ResourceContents, bool, error) {
		return []ResourceContents{{URI: uri}}, true, nil
	}
	require.NoError(t, m.RegisterResource(Resource{URI: "file:///a.txt", Name: "a"}, handler))

	err := m.RegisterResource(Resource{URI: "file:///a.txt", Name: "a-again"}, handler)
	require.Error(t, err)
	var stateErr *StateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestUpdateResourceRequiresPriorRegistration(t *testing.T) {
	m, _ := newTestResourcesModule(t)
	err := m.UpdateResource(Resource{URI: "file:///missing.txt", Name: "missing"}, nil)
	require.Error(t, err)
	var stateErr *StateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestUpdateResourceSwapsHandlerAndNotifiesSubscriber(t *testing.T) {
	m, transport := newTestResourcesModule(t)
	require.NoError(t, m.RegisterResource(Resource{URI: "file:///a.txt", Name: "a"}, func(ctx context.Context, uri string) ([]ResourceContents, bool, error) {
		return []ResourceContents{{URI: uri, Text: "old"}}, true, nil
	}))
	_, err := m.handleSubscribe(context.Background(), Request{Params: json.RawMessage(`{"uri":"file:///a.txt"}`)})
	require.NoError(t, err)
	transport.Reset()

	require.NoError(t, m.UpdateResource(Resource{URI: "file:///a.txt", Name: "a"}, func(ctx context.Context, uri string) ([]ResourceContents, bool, error) {
		return []ResourceContents{{URI: uri, Text: "new"}}, true, nil
	}))

	require.Len(t, transport.SentNotifications, 1)
	assert.Equal(t, "notifications/resources/updated", transport.SentNotifications[0].Method)

	resp, err := m.handleRead(context.Background(), Request{Params: json.RawMessage(`{"uri":"file:///a.txt"}`)})
	require.NoError(t, err)
	var result struct {
		Contents []ResourceContents `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "new", result.Contents[0].Text)
}

func TestUpdateResourceWithNilHandlerKeepsExisting(t *testing.T) {
	m, _ := newTestResourcesModule(t)
	require.NoError(t, m.RegisterResource(Resource{URI: "file:///a.txt", Name: "a"}, func(ctx context.Context, uri string) ([]ResourceContents, bool, error) {
		return []ResourceContents{{URI: uri, Text: "stays"}}, true, nil
	}))

	require.NoError(t, m.UpdateResource(Resource{URI: "file:///a.txt", Name: "a-renamed-title"}, nil))

	resp, err := m.handleRead(context.Background(), Request{Params: json.RawMessage(`{"uri":"file:///a.txt"}`)})
	require.NoError(t, err)
	var result struct {
		Contents []ResourceContents `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "stays", result.Contents[0].Text)
}
