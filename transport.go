package mcp

import "context"

// RequestHandler processes an incoming JSON-RPC request and returns the
// response to send back. Both Client and Server register one of these
// per method name with their Peer, which installs a single routing
// RequestHandler on the underlying Transport.
type RequestHandler func(ctx context.Context, req Request) (Response, error)

// NotificationHandler processes an incoming JSON-RPC notification.
// Notifications are fire-and-forget; the handler has no reply channel.
type NotificationHandler func(ctx context.Context, notif Notification)

// Transport abstracts the underlying bidirectional message stream. A
// concrete transport owns framing and delivery; it never owns protocol
// semantics (handshake state, capability gating) — that lives in Peer.
//
// This package ships exactly one concrete Transport, LineTransport, which
// wraps any injected io.Reader/io.Writer pair. Spawning and supervising a
// child process, or any other concrete process transport, is an external
// collaborator's concern and out of scope here.
type Transport interface {
	// Send transmits a request and blocks until the matching response
	// arrives, ctx is done, or the transport closes.
	Send(ctx context.Context, req Request) (Response, error)

	// Notify transmits a notification. Best-effort: it does not wait for
	// any acknowledgement because none exists in JSON-RPC 2.0.
	Notify(ctx context.Context, notif Notification) error

	// OnRequest registers the handler for inbound requests from the
	// remote side. Only one handler may be registered; later calls
	// replace the previous handler.
	OnRequest(handler RequestHandler)

	// OnNotify registers the handler for inbound notifications from the
	// remote side. Only one handler may be registered; later calls
	// replace the previous handler.
	OnNotify(handler NotificationHandler)

	// Close shuts the transport down, releasing any resources. Safe to
	// call more than once. After Close returns, Send and Notify fail.
	Close() error
}
