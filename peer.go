package mcp

// Package-level documentation for the bidirectional dispatch this file
// implements: inbound requests and notifications are routed by method
// name to handlers registered by capability modules; outbound requests
// are matched to their response by id through the transport's pending
// table (see linestream.go); notifications carry no reply channel.
// Either side of a connection may originate or receive either message
// kind — Client and Server both hold a *Peer and differ only in which
// modules they install and which side of the handshake they play.

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Lifecycle enumerates a Peer's position in the
// created → listening → initialized → active → shutting-down → closed
// progression described by the data model.
type Lifecycle int

const (
	LifecycleCreated Lifecycle = iota
	LifecycleListening
	LifecycleInitialized
	LifecycleActive
	LifecycleShuttingDown
	LifecycleClosed
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleCreated:
		return "created"
	case LifecycleListening:
		return "listening"
	case LifecycleInitialized:
		return "initialized"
	case LifecycleActive:
		return "active"
	case LifecycleShuttingDown:
		return "shutting-down"
	case LifecycleClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// alwaysAllowedMethods may be sent or handled at any lifecycle stage,
// since they are the handshake itself or a liveness probe.
var alwaysAllowedMethods = map[string]bool{
	"initialize":                true,
	"notifications/initialized": true,
	"ping":                      true,
}

// Peer implements JSON-RPC 2.0 as a symmetric endpoint over a Transport:
// method/notification registries, request id allocation, the
// pending-response table (delegated to the transport), progress
// dispatch, ping, and shutdown. Client and Server both hold one.
type Peer struct {
	transport Transport
	diag      DiagLogger

	requestIDCounter uint64

	reqMu    sync.RWMutex
	reqHandlers map[string]RequestHandler

	notifMu       sync.RWMutex
	notifHandlers map[string][]NotificationHandler

	progress *progressRegistry

	cancelMu    sync.Mutex
	cancelFuncs map[string]context.CancelFunc

	stateMu sync.RWMutex
	state   Lifecycle

	requestTimeout time.Duration
}

// PeerOption configures a Peer at construction time.
type PeerOption func(*Peer)

// WithRequestTimeout sets the default timeout applied to outbound
// requests whose context carries no deadline of its own.
func WithRequestTimeout(d time.Duration) PeerOption {
	return func(p *Peer) { p.requestTimeout = d }
}

// WithDiagLogger overrides the default standard-library DiagLogger.
func WithDiagLogger(l DiagLogger) PeerOption {
	return func(p *Peer) { p.diag = l }
}

// NewPeer wraps transport in a Peer and wires its inbound dispatch.
func NewPeer(transport Transport, opts ...PeerOption) *Peer {
	p := &Peer{
		transport:     transport,
		diag:          defaultDiagLogger(),
		reqHandlers:   make(map[string]RequestHandler),
		notifHandlers: make(map[string][]NotificationHandler),
		progress:      newProgressRegistry(),
		cancelFuncs:   make(map[string]context.CancelFunc),
		state:         LifecycleCreated,
	}
	for _, opt := range opts {
		opt(p)
	}

	transport.OnRequest(p.routeRequest)
	transport.OnNotify(p.routeNotification)

	p.setState(LifecycleListening)
	return p
}

func (p *Peer) setState(s Lifecycle) {
	p.stateMu.Lock()
	p.state = s
	p.stateMu.Unlock()
}

// State returns the peer's current lifecycle stage.
func (p *Peer) State() Lifecycle {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

// Ready reports whether the handshake has completed on this peer.
func (p *Peer) Ready() bool {
	return p.State() == LifecycleActive
}

// MarkReady transitions the peer to LifecycleActive. Called by Client
// once it has both received InitializeResult and sent the initialized
// notification, and by Server once it has received that notification.
func (p *Peer) MarkReady() {
	p.setState(LifecycleActive)
}

func (p *Peer) gate(method string) error {
	if s := p.State(); s == LifecycleShuttingDown || s == LifecycleClosed {
		return NewTransportError(fmt.Sprintf("method %q called on a closed peer", method), nil)
	}
	if alwaysAllowedMethods[method] {
		return nil
	}
	if !p.Ready() {
		return NewStateError(fmt.Sprintf("method %q called before peer is ready (state=%s)", method, p.State()))
	}
	return nil
}

// RegisterRequestHandler installs fn as the handler for method. It is a
// programmer error to register the same method twice; the reference
// client treats override-style re-registration as a bug, not a runtime
// condition, so this panics rather than silently replacing the handler.
func (p *Peer) RegisterRequestHandler(method string, fn RequestHandler) {
	p.reqMu.Lock()
	defer p.reqMu.Unlock()
	if _, exists := p.reqHandlers[method]; exists {
		panic(fmt.Sprintf("mcp: request handler already registered for method %q", method))
	}
	p.reqHandlers[method] = fn
}

// ReplaceRequestHandler installs fn for method regardless of whether one
// is already registered; unlike RegisterRequestHandler it does not panic
// on an existing registration.
func (p *Peer) ReplaceRequestHandler(method string, fn RequestHandler) {
	p.reqMu.Lock()
	defer p.reqMu.Unlock()
	p.reqHandlers[method] = fn
}

// AddNotificationHandler registers an additional listener for method.
// Multiple independent modules may each listen for the same
// notification; every registered listener runs on delivery, in
// registration order. Returns an unsubscribe function.
func (p *Peer) AddNotificationHandler(method string, fn NotificationHandler) (unsubscribe func()) {
	p.notifMu.Lock()
	defer p.notifMu.Unlock()
	p.notifHandlers[method] = append(p.notifHandlers[method], fn)
	idx := len(p.notifHandlers[method]) - 1
	return func() {
		p.notifMu.Lock()
		defer p.notifMu.Unlock()
		handlers := p.notifHandlers[method]
		if idx < len(handlers) {
			handlers[idx] = nil
		}
	}
}

// nextRequestID returns a process-unique id for an outbound request.
func (p *Peer) nextRequestID() interface{} {
	return atomic.AddUint64(&p.requestIDCounter, 1)
}

// NewProgressToken mints a collision-resistant default progress token
// for a caller that does not supply its own, via google/uuid rather than
// the bare request-id counter (which is unique-per-peer but not suited
// as an externally meaningful correlation token).
func NewProgressToken() string {
	return uuid.NewString()
}

// SendRequest marshals params, sends method as a request, and unmarshals
// the result into result (which may be nil). meta, if non-nil, is
// attached as the request's `_meta` member (commonly to carry a
// progress token).
func (p *Peer) SendRequest(ctx context.Context, method string, params interface{}, meta *Meta, result interface{}) error {
	if err := p.gate(method); err != nil {
		return err
	}

	paramsJSON, err := mergeMeta(params, meta)
	if err != nil {
		return fmt.Errorf("marshal request params for %s: %w", method, err)
	}

	if p.requestTimeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.requestTimeout)
			defer cancel()
		}
	}

	req := Request{
		JSONRPC: jsonrpcVersion,
		Method:  method,
		Params:  paramsJSON,
		ID:      RequestID{Value: p.nextRequestID()},
	}

	if meta != nil && meta.ProgressToken != nil {
		defer p.progress.close(meta.ProgressToken)
	}

	resp, err := p.transport.Send(ctx, req)
	if err != nil {
		switch ctx.Err() {
		case context.DeadlineExceeded:
			return NewTimeoutError("request timeout exceeded", err)
		case context.Canceled:
			return NewCanceledError("request cancelled", err)
		}
		return NewTransportError("failed to send request", err)
	}

	if resp.Error != nil {
		return NewRPCError(resp.Error)
	}

	if result != nil {
		if resp.Result == nil {
			return fmt.Errorf("%s: remote returned empty result", method)
		}
		if err := wireJSON.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("unmarshal response result for %s: %w", method, err)
		}
	}
	return nil
}

// SendRequestRaw behaves like SendRequest but returns the raw result
// payload, useful for union-shaped results that need custom decoding.
func (p *Peer) SendRequestRaw(ctx context.Context, method string, params interface{}, meta *Meta) (json.RawMessage, error) {
	if err := p.gate(method); err != nil {
		return nil, err
	}

	paramsJSON, err := mergeMeta(params, meta)
	if err != nil {
		return nil, fmt.Errorf("marshal request params for %s: %w", method, err)
	}

	if p.requestTimeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.requestTimeout)
			defer cancel()
		}
	}

	req := Request{
		JSONRPC: jsonrpcVersion,
		Method:  method,
		Params:  paramsJSON,
		ID:      RequestID{Value: p.nextRequestID()},
	}

	if meta != nil && meta.ProgressToken != nil {
		defer p.progress.close(meta.ProgressToken)
	}

	resp, err := p.transport.Send(ctx, req)
	if err != nil {
		switch ctx.Err() {
		case context.DeadlineExceeded:
			return nil, NewTimeoutError("request timeout exceeded", err)
		case context.Canceled:
			return nil, NewCanceledError("request cancelled", err)
		}
		return nil, NewTransportError("failed to send request", err)
	}
	if resp.Error != nil {
		return nil, NewRPCError(resp.Error)
	}
	return resp.Result, nil
}

// SendNotification marshals params and sends method as a notification.
// Best-effort: it silently no-ops if the peer is shut down, matching the
// spec's "best-effort; silently no-ops if the peer is closed".
func (p *Peer) SendNotification(ctx context.Context, method string, params interface{}) error {
	if p.State() == LifecycleClosed || p.State() == LifecycleShuttingDown {
		return nil
	}
	if err := p.gate(method); err != nil {
		return nil
	}

	paramsJSON, err := mergeMeta(params, nil)
	if err != nil {
		return fmt.Errorf("marshal notification params for %s: %w", method, err)
	}

	notif := Notification{
		JSONRPC: jsonrpcVersion,
		Method:  method,
		Params:  paramsJSON,
	}
	if err := p.transport.Notify(ctx, notif); err != nil {
		return NewTransportError("failed to send notification", err)
	}
	return nil
}

// Ping sends a ping request and reports whether a reply arrived within
// timeout. A late reply after expiry is discarded by the transport's
// pending-request bookkeeping, never delivered here.
func (p *Peer) Ping(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := p.SendRequest(ctx, "ping", struct{}{}, nil, nil)
	return err == nil
}

// OnProgress opens (or joins) the broadcast stream for token, returning
// a channel of progress events tied to the lifetime of the request that
// token is attached to. Call this before issuing the request that
// carries the same token in its `_meta`.
func (p *Peer) OnProgress(token interface{}) (<-chan ProgressEvent, error) {
	return p.progress.open(token)
}

// Shutdown closes the transport, cancels pending requests with
// TransportClosed (handled inside the transport itself), closes every
// progress stream, and cancels every in-flight inbound request's
// context. Idempotent.
func (p *Peer) Shutdown() error {
	if p.State() == LifecycleClosed {
		return nil
	}
	p.setState(LifecycleShuttingDown)

	p.cancelMu.Lock()
	for id, cancel := range p.cancelFuncs {
		cancel()
		delete(p.cancelFuncs, id)
	}
	p.cancelMu.Unlock()

	p.progress.closeAll()
	err := p.transport.Close()
	p.setState(LifecycleClosed)
	return err
}

// routeRequest is installed as the transport's single RequestHandler and
// fans inbound requests out to the method registry, giving each inbound
// request its own cancelable context so notifications/cancelled can
// actually interrupt in-progress handlers.
func (p *Peer) routeRequest(ctx context.Context, req Request) (Response, error) {
	p.reqMu.RLock()
	handler, ok := p.reqHandlers[req.Method]
	p.reqMu.RUnlock()

	if !ok {
		return Response{
			JSONRPC: jsonrpcVersion,
			ID:      req.ID,
			Error: &Error{
				Code:    ErrCodeMethodNotFound,
				Message: fmt.Sprintf("method not found: %s", req.Method),
			},
		}, nil
	}

	reqCtx, cancel := context.WithCancel(ctx)
	key := normalizeID(req.ID.Value)
	p.cancelMu.Lock()
	p.cancelFuncs[key] = cancel
	p.cancelMu.Unlock()
	defer func() {
		p.cancelMu.Lock()
		delete(p.cancelFuncs, key)
		p.cancelMu.Unlock()
		cancel()
	}()

	return handler(reqCtx, req)
}

// routeNotification is installed as the transport's single
// NotificationHandler. notifications/progress and notifications/cancelled
// are handled internally; everything else fans out to every listener
// registered for that method.
func (p *Peer) routeNotification(ctx context.Context, notif Notification) {
	switch notif.Method {
	case "notifications/progress":
		var pn ProgressNotification
		if err := wireJSON.Unmarshal(notif.Params, &pn); err != nil {
			p.diag.Printf("mcp: malformed notifications/progress: %v", err)
			return
		}
		if err := validateStruct(pn); err != nil {
			p.diag.Printf("mcp: invalid notifications/progress: %v", err)
			return
		}
		p.progress.deliver(pn.ProgressToken, ProgressEvent{Progress: pn.Progress, Total: pn.Total, Message: pn.Message})
		return
	case "notifications/cancelled":
		var cn struct {
			RequestID RequestID `json:"requestId"`
			Reason    *string   `json:"reason,omitempty"`
		}
		if err := wireJSON.Unmarshal(notif.Params, &cn); err != nil {
			return
		}
		key := normalizeID(cn.RequestID.Value)
		p.cancelMu.Lock()
		cancel, ok := p.cancelFuncs[key]
		p.cancelMu.Unlock()
		if ok {
			cancel()
		}
		return
	}

	p.notifMu.RLock()
	handlers := append([]NotificationHandler(nil), p.notifHandlers[notif.Method]...)
	p.notifMu.RUnlock()

	for _, h := range handlers {
		if h == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.diag.Printf("mcp: notification handler for %q panicked: %v", notif.Method, r)
				}
			}()
			h(ctx, notif)
		}()
	}
}

// Cancel sends notifications/cancelled for an outbound request this peer
// originated. Initialize itself must never be cancelled this way.
func (p *Peer) Cancel(ctx context.Context, id RequestID, reason string) error {
	params := map[string]any{"requestId": id.Value}
	if reason != "" {
		params["reason"] = reason
	}
	return p.SendNotification(ctx, "notifications/cancelled", params)
}

// mergeMeta marshals params and, if meta is non-nil and non-empty,
// splices a `_meta` member into the resulting JSON object.
func mergeMeta(params interface{}, meta *Meta) (json.RawMessage, error) {
	base, err := wireJSON.Marshal(params)
	if err != nil {
		return nil, err
	}
	if meta.IsEmpty() {
		return base, nil
	}

	var obj map[string]json.RawMessage
	if err := wireJSON.Unmarshal(base, &obj); err != nil {
		// params did not marshal to a JSON object (e.g. struct{}{} → {}
		// is fine, but a bare scalar can't carry _meta); fall back to
		// sending params unchanged.
		return base, nil
	}
	metaJSON, err := wireJSON.Marshal(meta)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		obj = make(map[string]json.RawMessage)
	}
	obj["_meta"] = metaJSON
	return wireJSON.Marshal(obj)
}
