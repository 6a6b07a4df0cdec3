package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// MockTransport is a test implementation of Transport that records sent
// messages and allows injecting responses and notifications.
type MockTransport struct {
	mu sync.Mutex

	SentRequests      []Request
	SentNotifications []Notification
	sentResponses     []Response

	requestHandler      RequestHandler
	notificationHandler NotificationHandler

	responses map[string]Response

	expectedCalls map[string]int
	actualCalls   map[string]int

	sendErr   error
	notifyErr error

	closed bool
}

// NewMockTransport creates a new MockTransport with empty state.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		responses:     make(map[string]Response),
		expectedCalls: make(map[string]int),
		actualCalls:   make(map[string]int),
	}
}

// Send implements Transport.Send by recording the request and returning an injected response.
func (m *MockTransport) Send(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	if m.closed {
		return Response{}, fmt.Errorf("transport closed")
	}
	if m.sendErr != nil {
		return Response{}, m.sendErr
	}

	m.SentRequests = append(m.SentRequests, req)
	m.actualCalls[req.Method]++

	resp, ok := m.responses[req.Method]
	if !ok {
		return Response{
			JSONRPC: jsonrpcVersion,
			ID:      req.ID,
			Result:  json.RawMessage(`{}`),
		}, nil
	}

	resp.ID = req.ID
	return resp, nil
}

// Notify implements Transport.Notify by recording the notification.
func (m *MockTransport) Notify(ctx context.Context, notif Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("transport closed")
	}
	if m.notifyErr != nil {
		return m.notifyErr
	}

	m.SentNotifications = append(m.SentNotifications, notif)
	m.actualCalls[notif.Method]++
	return nil
}

// OnRequest implements Transport.OnRequest by storing the handler.
func (m *MockTransport) OnRequest(handler RequestHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestHandler = handler
}

// OnNotify implements Transport.OnNotify by storing the handler.
func (m *MockTransport) OnNotify(handler NotificationHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notificationHandler = handler
}

// Close implements Transport.Close by marking the transport as closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetResponse configures the mock to return a specific response for a given method.
func (m *MockTransport) SetResponse(method string, resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[method] = resp
}

// SetResponseData marshals data to JSON and sets it as the response result for method.
func (m *MockTransport) SetResponseData(method string, data interface{}) error {
	jsonData, err := wireJSON.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal response data: %w", err)
	}
	m.SetResponse(method, Response{JSONRPC: jsonrpcVersion, Result: jsonData})
	return nil
}

// SetSendError configures the mock to return an error on Send calls.
func (m *MockTransport) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SetNotifyError configures the mock to return an error on Notify calls.
func (m *MockTransport) SetNotifyError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifyErr = err
}

// ExpectCall configures the mock to expect a certain number of calls to a method.
func (m *MockTransport) ExpectCall(method string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expectedCalls[method] = count
}

// VerifyCalls checks that all expected calls were made.
func (m *MockTransport) VerifyCalls() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for method, expected := range m.expectedCalls {
		if actual := m.actualCalls[method]; actual != expected {
			return fmt.Errorf("method %s: expected %d calls, got %d", method, expected, actual)
		}
	}
	return nil
}

// GetSentRequest returns the nth sent request (0-indexed), or nil if not found.
func (m *MockTransport) GetSentRequest(index int) *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.SentRequests) {
		return nil
	}
	return &m.SentRequests[index]
}

// GetSentNotification returns the nth sent notification (0-indexed), or nil if not found.
func (m *MockTransport) GetSentNotification(index int) *Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.SentNotifications) {
		return nil
	}
	return &m.SentNotifications[index]
}

// InjectServerRequest simulates the remote side sending a request to
// whichever Peer registered a handler via OnRequest.
func (m *MockTransport) InjectServerRequest(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	handler := m.requestHandler
	m.mu.Unlock()

	if handler == nil {
		return Response{}, fmt.Errorf("no request handler registered")
	}

	resp, err := handler(ctx, req)
	m.mu.Lock()
	m.sentResponses = append(m.sentResponses, resp)
	m.mu.Unlock()
	return resp, err
}

// InjectServerNotification simulates the remote side sending a
// notification to whichever Peer registered a handler via OnNotify.
func (m *MockTransport) InjectServerNotification(ctx context.Context, notif Notification) {
	m.mu.Lock()
	handler := m.notificationHandler
	m.mu.Unlock()
	if handler != nil {
		handler(ctx, notif)
	}
}

// Reset clears all recorded messages and state.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentRequests = nil
	m.SentNotifications = nil
	m.sentResponses = nil
	m.responses = make(map[string]Response)
	m.expectedCalls = make(map[string]int)
	m.actualCalls = make(map[string]int)
	m.sendErr = nil
	m.notifyErr = nil
	m.closed = false
}

// SlowMockTransport delays every Send by a fixed duration, useful for
// exercising timeout behavior.
type SlowMockTransport struct {
	delay time.Duration
}

// NewSlowMockTransport creates a SlowMockTransport with the given response delay.
func NewSlowMockTransport(delay time.Duration) *SlowMockTransport {
	return &SlowMockTransport{delay: delay}
}

func (s *SlowMockTransport) Send(ctx context.Context, req Request) (Response, error) {
	select {
	case <-time.After(s.delay):
		return Response{JSONRPC: jsonrpcVersion, ID: req.ID, Result: json.RawMessage(`{}`)}, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

func (s *SlowMockTransport) Notify(_ context.Context, _ Notification) error { return nil }
func (s *SlowMockTransport) OnRequest(_ RequestHandler)                     {}
func (s *SlowMockTransport) OnNotify(_ NotificationHandler)                 {}
func (s *SlowMockTransport) Close() error                                  { return nil }

// newDuplexLineTransports pairs two in-process LineTransports over an
// io.Pipe in each direction, letting tests run a real Client and Server
// against each other without a subprocess or network socket.
func newDuplexLineTransports() (client *LineTransport, server *LineTransport) {
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()
	client = NewLineTransport(cr, cw)
	server = NewLineTransport(sr, sw)
	return client, server
}
