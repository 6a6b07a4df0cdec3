package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerGateBlocksBeforeReady(t *testing.T) {
	transport := NewMockTransport()
	peer := NewPeer(transport, WithDiagLogger(nopDiagLogger{}))

	err := peer.SendRequest(context.Background(), "tools/list", struct{}{}, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, &StateError{})
}

func TestPeerAlwaysAllowedMethodsBypassGate(t *testing.T) {
	transport := NewMockTransport()
	transport.SetResponse("ping", Response{Result: []byte(`{}`)})
	peer := NewPeer(transport, WithDiagLogger(nopDiagLogger{}))

	err := peer.SendRequest(context.Background(), "ping", struct{}{}, nil, nil)
	assert.NoError(t, err)
}

func TestPeerSendRequestUnmarshalsResult(t *testing.T) {
	transport := NewMockTransport()
	require.NoError(t, transport.SetResponseData("ping", map[string]string{"ok": "yes"}))
	peer := NewPeer(transport, WithDiagLogger(nopDiagLogger{}))

	var result struct {
		OK string `json:"ok"`
	}
	require.NoError(t, peer.SendRequest(context.Background(), "ping", struct{}{}, nil, &result))
	assert.Equal(t, "yes", result.OK)
}

func TestPeerSendRequestTranslatesRPCError(t *testing.T) {
	transport := NewMockTransport()
	transport.SetResponse("ping", Response{Error: &Error{Code: ErrCodeInvalidParams, Message: "bad input"}})
	peer := NewPeer(transport, WithDiagLogger(nopDiagLogger{}))

	err := peer.SendRequest(context.Background(), "ping", struct{}{}, nil, nil)
	require.Error(t, err)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrCodeInvalidParams, rpcErr.Code())
}

func TestRegisterRequestHandlerPanicsOnDuplicate(t *testing.T) {
	transport := NewMockTransport()
	peer := NewPeer(transport, WithDiagLogger(nopDiagLogger{}))
	peer.RegisterRequestHandler("tools/list", func(ctx context.Context, req Request) (Response, error) {
		return Response{}, nil
	})
	assert.Panics(t, func() {
		peer.RegisterRequestHandler("tools/list", func(ctx context.Context, req Request) (Response, error) {
			return Response{}, nil
		})
	})
}

func TestAddNotificationHandlerFansOutToAllListeners(t *testing.T) {
	transport := NewMockTransport()
	peer := NewPeer(transport, WithDiagLogger(nopDiagLogger{}))
	peer.MarkReady()

	var firstCalled, secondCalled bool
	peer.AddNotificationHandler("notifications/message", func(ctx context.Context, notif Notification) {
		firstCalled = true
	})
	peer.AddNotificationHandler("notifications/message", func(ctx context.Context, notif Notification) {
		secondCalled = true
	})

	transport.InjectServerNotification(context.Background(), Notification{Method: "notifications/message"})
	assert.True(t, firstCalled)
	assert.True(t, secondCalled)
}

func TestPeerPingTimesOutAgainstSlowTransport(t *testing.T) {
	transport := NewSlowMockTransport(100 * time.Millisecond)
	peer := NewPeer(transport, WithDiagLogger(nopDiagLogger{}))
	peer.MarkReady()

	ok := peer.Ping(context.Background(), 10*time.Millisecond)
	assert.False(t, ok)
}

func TestPeerShutdownIsIdempotent(t *testing.T) {
	transport := NewMockTransport()
	peer := NewPeer(transport, WithDiagLogger(nopDiagLogger{}))
	require.NoError(t, peer.Shutdown())
	require.NoError(t, peer.Shutdown())
	assert.Equal(t, LifecycleClosed, peer.State())
}

func TestProgressOnProgressRequiresToken(t *testing.T) {
	transport := NewMockTransport()
	peer := NewPeer(transport, WithDiagLogger(nopDiagLogger{}))

	_, err := peer.OnProgress(nil)
	require.Error(t, err)
	var argErr *ArgumentError
	assert.ErrorAs(t, err, &argErr)
}

func TestProgressDeliveryToSubscriber(t *testing.T) {
	transport := NewMockTransport()
	peer := NewPeer(transport, WithDiagLogger(nopDiagLogger{}))
	peer.MarkReady()

	events, err := peer.OnProgress("tok-1")
	require.NoError(t, err)

	transport.InjectServerNotification(context.Background(), Notification{
		Method: "notifications/progress",
		Params: []byte(`{"progressToken":"tok-1","progress":50}`),
	})

	select {
	case ev := <-events:
		assert.Equal(t, float64(50), ev.Progress)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for progress event")
	}
}

func TestProgressNegativeValueIsDropped(t *testing.T) {
	transport := NewMockTransport()
	peer := NewPeer(transport, WithDiagLogger(nopDiagLogger{}))
	peer.MarkReady()

	events, err := peer.OnProgress("tok-2")
	require.NoError(t, err)

	transport.InjectServerNotification(context.Background(), Notification{
		Method: "notifications/progress",
		Params: []byte(`{"progressToken":"tok-2","progress":-5}`),
	})

	select {
	case <-events:
		t.Fatal("expected no event for a negative progress value")
	case <-time.After(50 * time.Millisecond):
	}
}
