package mcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
)

// pendingReq holds a pending request's response channel and original ID.
type pendingReq struct {
	ch chan Response
	id RequestID
}

// LineTransport implements Transport over any injected bidirectional
// character stream (an io.Reader paired with an io.Writer), framing each
// JSON-RPC message as a single newline-terminated line. It is the one
// concrete Transport this package ships; a managed subprocess transport
// is an external collaborator's concern.
//
// LineTransport supports full bidirectional JSON-RPC 2.0: either side may
// originate requests and notifications, and either side may receive them,
// which is what lets the same type back both Client and Server.
type LineTransport struct {
	reader io.Reader
	writer io.Writer

	mu            sync.Mutex
	closed        bool
	writeMu       sync.Mutex // separate mutex for write operations
	pendingReqs   map[string]pendingReq
	reqHandler    RequestHandler
	notifHandler  NotificationHandler
	readerStopped chan struct{}
	once          sync.Once
	scanErr       error
	panicHandler  func(v any)
	logSink       func(direction byte, line []byte)
	ctx           context.Context
	cancelCtx     context.CancelFunc
}

// normalizeID normalizes request IDs to a string key for map matching.
// JSON unmarshals all numbers as float64, so non-negative integer-valued
// floats are formatted without decimals for consistent lookups against
// ids this process minted as integers.
func normalizeID(id interface{}) string {
	switch v := id.(type) {
	case float64:
		u := uint64(v)
		if v >= 0 && v == float64(u) {
			return fmt.Sprintf("%d", u)
		}
		return fmt.Sprintf("%v", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case int:
		return fmt.Sprintf("%d", v)
	case uint64:
		return fmt.Sprintf("%d", v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", id)
	}
}

// NewLineTransport wraps reader/writer as a LineTransport and starts a
// background goroutine that reads incoming messages until the reader is
// closed or returns an error.
func NewLineTransport(reader io.Reader, writer io.Writer) *LineTransport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &LineTransport{
		reader:        reader,
		writer:        writer,
		pendingReqs:   make(map[string]pendingReq),
		readerStopped: make(chan struct{}),
		ctx:           ctx,
		cancelCtx:     cancel,
	}
	go t.readLoop()
	return t
}

// SetLogSink attaches a protocol log sink: every raw line flowing in
// either direction is passed to fn, tagged 'i' (inbound) or 'o'
// (outbound), before being delivered or written. A nil fn disables
// logging.
func (t *LineTransport) SetLogSink(fn func(direction byte, line []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logSink = fn
}

func (t *LineTransport) logLine(direction byte, line []byte) {
	t.mu.Lock()
	sink := t.logSink
	t.mu.Unlock()
	if sink != nil {
		sink(direction, line)
	}
}

// Send transmits a request and waits for the matching response.
func (t *LineTransport) Send(ctx context.Context, req Request) (Response, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return Response{}, NewTransportError("send failed", errors.New("transport closed"))
	}

	normalizedID := normalizeID(req.ID.Value)
	if _, exists := t.pendingReqs[normalizedID]; exists {
		t.mu.Unlock()
		return Response{}, NewTransportError("send failed", fmt.Errorf("duplicate request ID: %v", req.ID.Value))
	}
	respChan := make(chan Response, 1)
	t.pendingReqs[normalizedID] = pendingReq{ch: respChan, id: req.ID}
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pendingReqs, normalizedID)
		t.mu.Unlock()
	}()

	writeDone := make(chan error, 1)
	go func() {
		writeDone <- t.writeMessage(req)
	}()

	select {
	case err := <-writeDone:
		if err != nil {
			return Response{}, err
		}
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-t.readerStopped:
		return Response{}, NewTransportError("send failed", errors.New("transport reader stopped"))
	}

	select {
	case resp := <-respChan:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-t.readerStopped:
		return Response{}, NewTransportError("send failed", errors.New("transport reader stopped"))
	}
}

// Notify transmits a notification (fire-and-forget).
func (t *LineTransport) Notify(ctx context.Context, notif Notification) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return NewTransportError("notify failed", errors.New("transport closed"))
	}
	t.mu.Unlock()

	writeDone := make(chan error, 1)
	go func() {
		writeDone <- t.writeMessage(notif)
	}()

	select {
	case err := <-writeDone:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-t.readerStopped:
		return NewTransportError("notify failed", errors.New("transport reader stopped"))
	}
}

// OnRequest registers the handler for inbound requests.
func (t *LineTransport) OnRequest(handler RequestHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reqHandler = handler
}

// OnNotify registers the handler for inbound notifications.
func (t *LineTransport) OnNotify(handler NotificationHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notifHandler = handler
}

// OnPanic registers a handler called when an inbound request or
// notification handler panics. The transport recovers the panic and
// keeps running; this callback is the only observability into that event
// short of attaching a DiagLogger at the Peer level.
func (t *LineTransport) OnPanic(handler func(v any)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.panicHandler = handler
}

// Close shuts the transport down. Safe to call multiple times.
func (t *LineTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true
	t.cancelCtx()

	for key, pending := range t.pendingReqs {
		resp := Response{
			JSONRPC: jsonrpcVersion,
			ID:      pending.id,
			Error: &Error{
				Code:    ErrCodeInternalError,
				Message: "transport closed",
			},
		}
		select {
		case pending.ch <- resp:
		default:
		}
		delete(t.pendingReqs, key)
	}

	return nil
}

// ScanErr returns the error (if any) from the reader goroutine's scanner.
func (t *LineTransport) ScanErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scanErr
}

// writeMessage writes a JSON-RPC message as a single newline-terminated line.
func (t *LineTransport) writeMessage(msg interface{}) error {
	data, err := wireJSON.Marshal(msg)
	if err != nil {
		return NewTransportError("marshal message", err)
	}

	t.logLine('o', data)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	for len(data) > 0 {
		n, err := t.writer.Write(data)
		if err != nil {
			return NewTransportError("write message", err)
		}
		if n == 0 {
			return NewTransportError("write message", errors.New("writer returned zero bytes written without error"))
		}
		data = data[n:]
	}

	if _, err := t.writer.Write([]byte{'\n'}); err != nil {
		return NewTransportError("write message", err)
	}

	return nil
}

// readLoop continuously reads newline-delimited JSON messages and
// classifies each into response / request / notification by presence of
// `id` and `method`.
func (t *LineTransport) readLoop() {
	defer t.once.Do(func() { close(t.readerStopped) })

	const initialBufferSize = 64 * 1024
	const maxMessageSize = 10 * 1024 * 1024 // large tool results/embedded resources exceed the scanner default
	scanner := bufio.NewScanner(t.reader)
	scanner.Buffer(make([]byte, 0, initialBufferSize), maxMessageSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		t.logLine('i', line)

		switch classifyLine(line) {
		case MessageKindResponse:
			t.handleResponse(append([]byte(nil), line...))
		case MessageKindRequest:
			t.handleRequest(append([]byte(nil), line...))
		case MessageKindNotification:
			t.handleNotification(append([]byte(nil), line...))
		case MessageKindUnknown:
			t.handleMalformed(append([]byte(nil), line...))
		}
	}

	if err := scanner.Err(); err != nil {
		t.mu.Lock()
		t.scanErr = err
		t.mu.Unlock()
	}
}

func (t *LineTransport) handleResponse(data []byte) {
	var resp Response
	if err := wireJSON.Unmarshal(data, &resp); err != nil {
		var idOnly struct {
			ID RequestID `json:"id"`
		}
		if wireJSON.Unmarshal(data, &idOnly) != nil {
			return
		}
		normalizedID := normalizeID(idOnly.ID.Value)
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return
		}
		pending, ok := t.pendingReqs[normalizedID]
		if ok {
			delete(t.pendingReqs, normalizedID)
		}
		t.mu.Unlock()
		if ok {
			errDetail, _ := wireJSON.Marshal(err.Error())
			pending.ch <- Response{
				JSONRPC: jsonrpcVersion,
				ID:      pending.id,
				Error: &Error{
					Code:    ErrCodeParseError,
					Message: "failed to parse remote response",
					Data:    errDetail,
				},
			}
		}
		return
	}

	normalizedID := normalizeID(resp.ID.Value)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	pending, ok := t.pendingReqs[normalizedID]
	if ok {
		delete(t.pendingReqs, normalizedID)
	}
	t.mu.Unlock()

	if ok {
		pending.ch <- resp // safe: buffer 1, only one sender claims via delete
	}
}

// handleMalformed reports a line that is neither valid JSON nor a
// recognizable request/response/notification shape as a JSON-RPC parse
// error. The id is best-effort: whatever id member the decoder recovers
// from the line is carried back; a line that yields none gets a null id
// per JSON-RPC 2.0.
func (t *LineTransport) handleMalformed(data []byte) {
	var idOnly struct {
		ID RequestID `json:"id"`
	}
	_ = wireJSON.Unmarshal(data, &idOnly)

	errorResp := Response{
		JSONRPC: jsonrpcVersion,
		ID:      idOnly.ID,
		Error: &Error{
			Code:    ErrCodeParseError,
			Message: "failed to parse message",
		},
	}
	_ = t.writeMessage(errorResp)
}

func (t *LineTransport) handleRequest(data []byte) {
	var req Request
	if err := wireJSON.Unmarshal(data, &req); err != nil {
		return
	}

	t.mu.Lock()
	handler := t.reqHandler
	t.mu.Unlock()

	if handler == nil {
		errorResp := Response{
			JSONRPC: jsonrpcVersion,
			ID:      req.ID,
			Error: &Error{
				Code:    ErrCodeMethodNotFound,
				Message: "method not found",
			},
		}
		_ = t.writeMessage(errorResp)
		return
	}

	go func() {
		t.mu.Lock()
		panicFn := t.panicHandler
		t.mu.Unlock()

		defer func() {
			if r := recover(); r != nil {
				errorResp := Response{
					JSONRPC: jsonrpcVersion,
					ID:      req.ID,
					Error: &Error{
						Code:    ErrCodeInternalError,
						Message: "internal handler error",
					},
				}
				_ = t.writeMessage(errorResp)
				if panicFn != nil {
					panicFn(r)
				}
			}
		}()

		resp, err := handler(t.ctx, req)
		if err != nil {
			code := ErrCodeInternalError
			var argErr *ArgumentError
			if errors.As(err, &argErr) {
				code = ErrCodeInvalidParams
			}
			errorResp := Response{
				JSONRPC: jsonrpcVersion,
				ID:      req.ID,
				Error: &Error{
					Code:    code,
					Message: "internal handler error",
				},
			}
			_ = t.writeMessage(errorResp)
			return
		}

		resp.JSONRPC = jsonrpcVersion
		resp.ID = req.ID
		_ = t.writeMessage(resp)
	}()
}

func (t *LineTransport) handleNotification(data []byte) {
	var notif Notification
	if err := wireJSON.Unmarshal(data, &notif); err != nil {
		return
	}

	t.mu.Lock()
	handler := t.notifHandler
	panicFn := t.panicHandler
	t.mu.Unlock()

	if handler == nil {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				if panicFn != nil {
					panicFn(r)
				} else {
					defaultDiagLogger().Printf("mcp: notification handler panicked: %v\n%s", r, debug.Stack())
				}
			}
		}()
		handler(t.ctx, notif)
	}()
}
