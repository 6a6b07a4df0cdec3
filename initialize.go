package mcp

import (
	"context"
	"fmt"
)

// Implementation identifies the client or server application taking part
// in the handshake (the wire's clientInfo/serverInfo member).
type Implementation struct {
	Name    string  `json:"name"`
	Version string  `json:"version"`
	Title   *string `json:"title,omitempty"`
}

// InitializeParams are the parameters of the initialize request.
type InitializeParams struct {
	ProtocolVersion ProtocolVersion    `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

// InitializeResult is the response to the initialize request. Capability
// modules contribute to it via the installer list run while the server
// handles the incoming initialize request — the statically typed
// replacement for an `initialize` override chain wrapping `super`.
type InitializeResult struct {
	ProtocolVersion ProtocolVersion    `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    *string            `json:"instructions,omitempty"`
}

// ModuleInstaller contributes to an in-progress InitializeResult. Every
// capability module a Server composes registers one of these; they run,
// in registration order, against an accumulating result so a later
// module can observe what an earlier one already advertised.
type ModuleInstaller func(result *InitializeResult)

// HandshakeState names the states of the initialization state machine.
// No Peer, Client or Server stores a HandshakeState; handshake progress
// is recorded only through the Peer's Lifecycle (see Peer.Ready).
type HandshakeState int

const (
	HandshakeCreated HandshakeState = iota
	HandshakeAwaitingInitializeResult
	HandshakeAwaitingInitializedNotification
	HandshakeReady
	HandshakeShutDown
)

// negotiateServerVersion echoes the client's version if supported,
// otherwise replies with the latest version this server understands.
func negotiateServerVersion(clientVersion ProtocolVersion) ProtocolVersion {
	if IsSupportedProtocolVersion(clientVersion) {
		return clientVersion
	}
	return LatestProtocolVersion()
}

// handleInitializeRequest is the Server's registered handler for the
// "initialize" method. It negotiates the protocol version and runs every
// installed ModuleInstaller against an accumulating InitializeResult.
func (s *Server) handleInitializeRequest(ctx context.Context, req Request) (Response, error) {
	var params InitializeParams
	if err := wireJSON.Unmarshal(req.Params, &params); err != nil {
		return Response{}, NewArgumentError("invalid initialize params", err)
	}

	negotiated := negotiateServerVersion(params.ProtocolVersion)

	s.mu.Lock()
	s.negotiatedVersion = negotiated
	s.clientCapabilities = params.Capabilities
	s.mu.Unlock()

	if err := s.activateRootsFallbackIfNeeded(params.Capabilities); err != nil {
		return Response{}, err
	}

	result := InitializeResult{
		ProtocolVersion: negotiated,
		ServerInfo:      s.info,
		Instructions:    s.instructions,
	}
	for _, install := range s.installers {
		install(&result)
	}

	resultJSON, err := wireJSON.Marshal(result)
	if err != nil {
		return Response{}, err
	}
	return Response{Result: resultJSON}, nil
}

// handleInitializedNotification marks the server's peer ready once the
// client confirms the handshake, which is the point at which the roots
// tracker (if installed) is allowed to issue its first roots/list.
func (s *Server) handleInitializedNotification(ctx context.Context, notif Notification) {
	s.peer.MarkReady()
	if s.onReady != nil {
		s.onReady()
	}
}

// Initialize performs the client side of the handshake: send initialize,
// validate the negotiated version, send notifications/initialized, and
// mark the peer ready. The initialize call itself must never be
// cancelled partway through; callers that need a deadline should put it
// on ctx before calling rather than cancelling concurrently.
func (c *Client) Initialize(ctx context.Context, capabilities ClientCapabilities) (InitializeResult, error) {
	c.mu.Lock()
	c.capabilities = capabilities
	c.mu.Unlock()

	params := InitializeParams{
		ProtocolVersion: LatestProtocolVersion(),
		Capabilities:    capabilities,
		ClientInfo:      c.info,
	}

	var result InitializeResult
	if err := c.peer.SendRequest(ctx, "initialize", params, nil, &result); err != nil {
		return InitializeResult{}, err
	}

	if !IsSupportedProtocolVersion(result.ProtocolVersion) {
		_ = c.peer.Shutdown()
		return InitializeResult{}, NewStateError(fmt.Sprintf("server negotiated unsupported protocol version %q", result.ProtocolVersion))
	}

	c.mu.Lock()
	c.negotiatedVersion = result.ProtocolVersion
	c.serverCapabilities = result.Capabilities
	c.mu.Unlock()

	if err := c.peer.SendNotification(ctx, "notifications/initialized", struct{}{}); err != nil {
		return InitializeResult{}, err
	}
	c.peer.MarkReady()

	return result, nil
}
