package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	transport := NewMockTransport()
	return NewClient(transport, Implementation{Name: "c", Version: "0"}, WithClientDiagLogger(nopDiagLogger{}))
}

func TestHandleCreateMessageRequestWithoutHandlerReturnsMethodNotFound(t *testing.T) {
	c := newTestClient(t)
	req := Request{ID: RequestID{Value: float64(1)}, Params: json.RawMessage(`{"messages":[]}`)}

	resp, err := c.handleCreateMessageRequest(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
}

func TestHandleCreateMessageRequestInvokesRegisteredHandler(t *testing.T) {
	c := newTestClient(t)
	c.OnCreateMessage(func(ctx context.Context, params CreateMessageParams) (CreateMessageResult, error) {
		return CreateMessageResult{Role: "assistant", Content: TextContent("ok"), Model: "test-model"}, nil
	})

	req := Request{ID: RequestID{Value: float64(1)}, Params: json.RawMessage(`{"messages":[],"maxTokens":10}`)}
	resp, err := c.handleCreateMessageRequest(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, resp.Error)

	var result CreateMessageResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "test-model", result.Model)
}

func TestHandleCreateMessageRequestRejectsInvalidMaxTokens(t *testing.T) {
	c := newTestClient(t)
	c.OnCreateMessage(func(ctx context.Context, params CreateMessageParams) (CreateMessageResult, error) {
		return CreateMessageResult{}, nil
	})

	req := Request{ID: RequestID{Value: float64(1)}, Params: json.RawMessage(`{"messages":[],"maxTokens":-5}`)}
	_, err := c.handleCreateMessageRequest(context.Background(), req)
	require.Error(t, err)
	var argErr *ArgumentError
	assert.ErrorAs(t, err, &argErr)
}

func TestHandleElicitRequestWithoutHandlerReturnsMethodNotFound(t *testing.T) {
	c := newTestClient(t)
	req := Request{ID: RequestID{Value: float64(1)}, Params: json.RawMessage(`{"message":"confirm?","requestedSchema":{}}`)}

	resp, err := c.handleElicitRequest(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
}

func TestHandleElicitRequestInvokesRegisteredHandler(t *testing.T) {
	c := newTestClient(t)
	c.OnElicit(func(ctx context.Context, params ElicitParams) (ElicitResult, error) {
		return ElicitResult{Action: ElicitActionAccept}, nil
	})

	req := Request{ID: RequestID{Value: float64(1)}, Params: json.RawMessage(`{"message":"confirm?","requestedSchema":{}}`)}
	resp, err := c.handleElicitRequest(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, resp.Error)

	var result ElicitResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, ElicitActionAccept, result.Action)
}

func TestHandleCreateMessageRequestRecoversFromPanic(t *testing.T) {
	c := newTestClient(t)
	c.OnCreateMessage(func(ctx context.Context, params CreateMessageParams) (CreateMessageResult, error) {
		panic("kaboom")
	})

	req := Request{ID: RequestID{Value: float64(1)}, Params: json.RawMessage(`{"messages":[]}`)}
	_, err := c.handleCreateMessageRequest(context.Background(), req)
	require.Error(t, err)
	var stateErr *StateError
	assert.ErrorAs(t, err, &stateErr)
}
