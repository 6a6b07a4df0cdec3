package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoggingModule(t *testing.T) (*LoggingModule, *MockTransport) {
	t.Helper()
	transport := NewMockTransport()
	peer := NewPeer(transport, WithDiagLogger(nopDiagLogger{}))
	peer.MarkReady()
	return newLoggingModule(peer), transport
}

func TestLoggingDefaultLevelIsWarning(t *testing.T) {
	m, transport := newTestLoggingModule(t)

	require.NoError(t, m.Log(LogLevelNotice, "test", "should not be sent"))
	assert.Empty(t, transport.SentNotifications)

	require.NoError(t, m.Log(LogLevelWarning, "test", "should be sent"))
	require.Len(t, transport.SentNotifications, 1)
}

func TestLoggingSetLevelRejectsUnknownLevel(t *testing.T) {
	m, _ := newTestLoggingModule(t)
	req := Request{Params: json.RawMessage(`{"level":"verbose"}`)}

	_, err := m.handleSetLevel(context.Background(), req)
	require.Error(t, err)
	var argErr *ArgumentError
	assert.ErrorAs(t, err, &argErr)
}

func TestLoggingSuppressesBelowThreshold(t *testing.T) {
	m, transport := newTestLoggingModule(t)
	_, err := m.handleSetLevel(context.Background(), Request{Params: json.RawMessage(`{"level":"warning"}`)})
	require.NoError(t, err)

	require.NoError(t, m.Log(LogLevelInfo, "test", "should not be sent"))
	assert.Empty(t, transport.SentNotifications)

	require.NoError(t, m.Log(LogLevelError, "test", "should be sent"))
	require.Len(t, transport.SentNotifications, 1)
	assert.Equal(t, "notifications/message", transport.SentNotifications[0].Method)
}

func TestLoggingLazyProducerFalseSuppressesEmission(t *testing.T) {
	m, transport := newTestLoggingModule(t)
	called := false
	producer := func() (any, bool) {
		called = true
		return nil, false
	}

	require.NoError(t, m.Log(LogLevelError, "test", producer))
	assert.True(t, called)
	assert.Empty(t, transport.SentNotifications)
}

func TestLoggingLazyProducerEmitsValue(t *testing.T) {
	m, transport := newTestLoggingModule(t)
	producer := func() (any, bool) {
		return map[string]string{"msg": "hi"}, true
	}

	require.NoError(t, m.Log(LogLevelError, "test", producer))
	require.Len(t, transport.SentNotifications, 1)
}

func TestLoggingMalformedFuncProducerIsRejected(t *testing.T) {
	m, _ := newTestLoggingModule(t)
	err := m.Log(LogLevelError, "test", func() string { return "wrong shape" })
	require.Error(t, err)
	var argErr *ArgumentError
	assert.ErrorAs(t, err, &argErr)
}
