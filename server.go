package mcp

import (
	"context"
	"sync"
	"time"
)

// Server is one endpoint of an MCP session playing the server role: it
// answers the handshake, composes whichever capability modules it needs
// (tools, prompts, resources, completions, logging, roots-tracking), and
// may issue server-initiated sampling/elicitation requests. It holds a
// *Peer for the underlying bidirectional dispatch.
type Server struct {
	peer         *Peer
	peerOpts     []PeerOption
	info         Implementation
	instructions *string

	mu                 sync.RWMutex
	negotiatedVersion  ProtocolVersion
	clientCapabilities ClientCapabilities

	installers []ModuleInstaller
	onReady    func()

	rootsFallbackEnabled bool

	Tools         *ToolsModule
	Prompts       *PromptsModule
	Resources     *ResourcesModule
	Completions   *CompletionsModule
	Logging       *LoggingModule
	RootsTracking *RootsTracker
	rootsFallback *RootsFallbackModule
}

// ServerOption configures a Server at construction time.
type ServerOption func(*Server)

// WithServerRequestTimeout sets the default per-request timeout applied
// to requests this server sends (e.g. sampling/createMessage).
func WithServerRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.peerOpts = append(s.peerOpts, WithRequestTimeout(d)) }
}

// WithServerDiagLogger overrides the server's internal diagnostic logger.
func WithServerDiagLogger(l DiagLogger) ServerOption {
	return func(s *Server) { s.peerOpts = append(s.peerOpts, WithDiagLogger(l)) }
}

// WithInstructions sets the free-text instructions returned in
// InitializeResult.
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) { s.instructions = &instructions }
}

// WithRootsFallback enables the roots-fallback tools (add_roots,
// remove_roots) for clients that connect without the roots capability.
func WithRootsFallback() ServerOption {
	return func(s *Server) { s.rootsFallbackEnabled = true }
}

// WithOnReady registers a callback invoked once the handshake completes
// (the server has received notifications/initialized).
func WithOnReady(fn func()) ServerOption {
	return func(s *Server) { s.onReady = fn }
}

// NewServer creates a Server backed by transport, composing the tools,
// prompts, resources, completions, logging, and roots-tracking modules.
// info identifies this server application in the handshake.
func NewServer(transport Transport, info Implementation, opts ...ServerOption) *Server {
	s := &Server{info: info}
	for _, opt := range opts {
		opt(s)
	}
	s.peer = NewPeer(transport, s.peerOpts...)

	s.Tools = newToolsModule(s.peer)
	s.Prompts = newPromptsModule(s.peer)
	s.Resources = newResourcesModule(s.peer)
	s.Completions = newCompletionsModule(s.peer)
	s.Logging = newLoggingModule(s.peer)
	s.RootsTracking = newRootsTracker(s.peer)

	s.installers = append(s.installers,
		s.Tools.install,
		s.Prompts.install,
		s.Resources.install,
		s.Completions.install,
		s.Logging.install,
	)

	s.peer.RegisterRequestHandler("initialize", s.handleInitializeRequest)
	s.peer.AddNotificationHandler("notifications/initialized", s.handleInitializedNotification)
	s.peer.AddNotificationHandler("notifications/roots/list_changed", s.handleRootsListChanged)

	return s
}

// Peer exposes the underlying Peer for callers that need ping/shutdown
// or progress subscription directly.
func (s *Server) Peer() *Peer { return s.peer }

// Close shuts the server's peer down.
func (s *Server) Close() error { return s.peer.Shutdown() }

// NegotiatedVersion returns the protocol version agreed on during the
// handshake. Empty until initialize completes.
func (s *Server) NegotiatedVersion() ProtocolVersion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.negotiatedVersion
}

// ClientCapabilities returns the capabilities the connected client
// advertised during initialize.
func (s *Server) ClientCapabilities() ClientCapabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientCapabilities
}

// handleRootsListChanged forwards notifications/roots/list_changed to
// the roots tracker only if the client declared roots.listChanged
// during initialize; a client that never declared the capability gets
// ignored rather than having its notification acted on.
func (s *Server) handleRootsListChanged(ctx context.Context, notif Notification) {
	s.mu.RLock()
	declared := s.clientCapabilities.Roots != nil && s.clientCapabilities.Roots.ListChanged
	s.mu.RUnlock()
	if !declared {
		return
	}
	s.RootsTracking.onChanged(ctx, notif)
}

// activateRootsFallbackIfNeeded installs the add_roots/remove_roots
// tools the first time a client connects without the roots capability.
func (s *Server) activateRootsFallbackIfNeeded(caps ClientCapabilities) error {
	if !s.rootsFallbackEnabled || caps.Roots != nil {
		return nil
	}
	s.mu.Lock()
	if s.rootsFallback != nil {
		s.mu.Unlock()
		return nil
	}
	fallback := newRootsFallbackModule(s.RootsTracking.applyExternal)
	s.rootsFallback = fallback
	s.mu.Unlock()
	return fallback.registerOn(s.Tools)
}

// CreateMessage issues a server-initiated sampling/createMessage
// request. Fails with MethodNotFound if the client did not register a
// handler for it.
func (s *Server) CreateMessage(ctx context.Context, params CreateMessageParams) (CreateMessageResult, error) {
	var result CreateMessageResult
	if err := s.peer.SendRequest(ctx, "sampling/createMessage", params, nil, &result); err != nil {
		return CreateMessageResult{}, err
	}
	return result, nil
}

// Elicit issues a server-initiated elicitation/create request.
func (s *Server) Elicit(ctx context.Context, params ElicitParams) (ElicitResult, error) {
	var result ElicitResult
	if err := s.peer.SendRequest(ctx, "elicitation/create", params, nil, &result); err != nil {
		return ElicitResult{}, err
	}
	return result, nil
}

// ListRoots issues a direct roots/list request, bypassing the cache. Most
// callers should prefer s.RootsTracking.Roots() instead.
func (s *Server) ListRoots(ctx context.Context) ([]Root, error) {
	var result struct {
		Roots []Root `json:"roots"`
	}
	if err := s.peer.SendRequest(ctx, "roots/list", struct{}{}, nil, &result); err != nil {
		return nil, err
	}
	return result.Roots, nil
}
