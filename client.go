package mcp

import (
	"context"
	"sync"
	"time"
)

// Client is one endpoint of an MCP session playing the client role: it
// performs the handshake, owns its roots set, and answers server-
// initiated sampling/elicitation requests if it chooses to handle them.
// It holds a *Peer for the underlying bidirectional dispatch and keeps
// its own roots and sampling-handler state alongside it.
type Client struct {
	peer     *Peer
	peerOpts []PeerOption
	info     Implementation

	mu                 sync.RWMutex
	capabilities       ClientCapabilities
	negotiatedVersion  ProtocolVersion
	serverCapabilities ServerCapabilities

	samplingMu      sync.RWMutex
	onCreateMessage CreateMessageHandlerFunc
	onElicit        ElicitHandlerFunc

	Roots *RootsModule
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithClientRequestTimeout sets the default per-request timeout applied
// to requests this client sends.
func WithClientRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.peerOpts = append(c.peerOpts, WithRequestTimeout(d)) }
}

// WithClientDiagLogger overrides the client's internal diagnostic logger.
func WithClientDiagLogger(l DiagLogger) ClientOption {
	return func(c *Client) { c.peerOpts = append(c.peerOpts, WithDiagLogger(l)) }
}

// NewClient creates a Client backed by transport. info identifies this
// client application in the handshake.
func NewClient(transport Transport, info Implementation, opts ...ClientOption) *Client {
	c := &Client{info: info}
	for _, opt := range opts {
		opt(c)
	}
	c.peer = NewPeer(transport, c.peerOpts...)
	c.Roots = newRootsModule(c)

	c.peer.RegisterRequestHandler("sampling/createMessage", c.handleCreateMessageRequest)
	c.peer.RegisterRequestHandler("elicitation/create", c.handleElicitRequest)
	c.peer.RegisterRequestHandler("roots/list", c.Roots.handleList)

	return c
}

// OnCreateMessage registers the handler for server-initiated
// sampling/createMessage requests. Call this before Initialize and pass
// a ClientCapabilities with Sampling set so the server knows to use it.
func (c *Client) OnCreateMessage(fn CreateMessageHandlerFunc) {
	c.samplingMu.Lock()
	defer c.samplingMu.Unlock()
	c.onCreateMessage = fn
}

// OnElicit registers the handler for server-initiated elicitation/create
// requests.
func (c *Client) OnElicit(fn ElicitHandlerFunc) {
	c.samplingMu.Lock()
	defer c.samplingMu.Unlock()
	c.onElicit = fn
}

// Peer exposes the underlying Peer for callers that need ping/shutdown
// or progress subscription directly.
func (c *Client) Peer() *Peer { return c.peer }

// Close shuts the client's peer down.
func (c *Client) Close() error { return c.peer.Shutdown() }

// CallTool invokes a remote tool via tools/call.
func (c *Client) CallTool(ctx context.Context, name string, arguments any) (CallToolResult, error) {
	var result CallToolResult
	params := map[string]any{"name": name}
	if arguments != nil {
		params["arguments"] = arguments
	}
	if err := c.peer.SendRequest(ctx, "tools/call", params, nil, &result); err != nil {
		return CallToolResult{}, err
	}
	return result, nil
}

// ListTools lists the remote server's registered tools.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var result struct {
		Tools []Tool `json:"tools"`
	}
	if err := c.peer.SendRequest(ctx, "tools/list", struct{}{}, nil, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// ReadResource reads a remote resource via resources/read.
func (c *Client) ReadResource(ctx context.Context, uri string) ([]ResourceContents, error) {
	var result struct {
		Contents []ResourceContents `json:"contents"`
	}
	if err := c.peer.SendRequest(ctx, "resources/read", map[string]any{"uri": uri}, nil, &result); err != nil {
		return nil, err
	}
	return result.Contents, nil
}

// SubscribeResource subscribes this client to update notifications for uri.
func (c *Client) SubscribeResource(ctx context.Context, uri string) error {
	return c.peer.SendRequest(ctx, "resources/subscribe", map[string]any{"uri": uri}, nil, nil)
}

// SetLogLevel sets the remote server's minimum logging level.
func (c *Client) SetLogLevel(ctx context.Context, level LogLevel) error {
	return c.peer.SendRequest(ctx, "logging/setLevel", map[string]any{"level": level}, nil, nil)
}
