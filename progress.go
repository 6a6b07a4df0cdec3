package mcp

import (
	"sync"
)

// ProgressNotification is the payload of notifications/progress.
type ProgressNotification struct {
	ProgressToken interface{} `json:"progressToken"`
	Progress      float64     `json:"progress" validate:"gte=0"`
	Total         *float64    `json:"total,omitempty"`
	Message       *string     `json:"message,omitempty"`
}

// ProgressEvent is one value delivered to a progress stream's subscriber.
type ProgressEvent struct {
	Progress float64
	Total    *float64
	Message  *string
}

// progressGuardedChan wraps a channel with an RWMutex so that sends and
// close are mutually exclusive, directly grounded on the reference
// client's guardedChan: senders hold a read lock (concurrent sends are
// fine), the closer takes a write lock so no send is in flight when the
// channel closes. Generalized here from a single-subscriber stream to a
// small broadcast fan-out, since multiple callers may independently
// watch the same progress token.
type progressGuardedChan struct {
	mu     sync.RWMutex
	subs   []chan ProgressEvent
	closed bool
}

func newProgressGuardedChan() *progressGuardedChan {
	return &progressGuardedChan{}
}

// subscribe registers a new subscriber channel. If the stream is
// already closed, it returns an already-closed channel: a late
// subscription observes nothing rather than replaying history.
func (g *progressGuardedChan) subscribe(buffer int) <-chan ProgressEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		ch := make(chan ProgressEvent)
		close(ch)
		return ch
	}
	ch := make(chan ProgressEvent, buffer)
	g.subs = append(g.subs, ch)
	return ch
}

// broadcast delivers ev to every current subscriber without blocking
// indefinitely on a slow one; a full subscriber channel drops the event
// for that subscriber rather than stalling the others.
func (g *progressGuardedChan) broadcast(ev ProgressEvent) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return
	}
	for _, ch := range g.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// closeOnce closes every subscriber channel exactly once.
func (g *progressGuardedChan) closeOnce() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	for _, ch := range g.subs {
		close(ch)
	}
}

// progressRegistry owns the set of live progress streams for one peer,
// keyed by the progress token carried in `_meta.progressToken`.
type progressRegistry struct {
	mu      sync.Mutex
	streams map[string]*progressGuardedChan
}

func newProgressRegistry() *progressRegistry {
	return &progressRegistry{streams: make(map[string]*progressGuardedChan)}
}

func progressKey(token interface{}) string {
	return normalizeID(token)
}

// open creates (or reuses) the broadcast stream for token and returns a
// subscriber channel on it. Returns an *ArgumentError synchronously if
// token is nil — there is no stream to subscribe to without one.
func (r *progressRegistry) open(token interface{}) (<-chan ProgressEvent, error) {
	if token == nil {
		return nil, NewArgumentError("onProgress requires a progress token", nil)
	}
	key := progressKey(token)
	r.mu.Lock()
	g, ok := r.streams[key]
	if !ok {
		g = newProgressGuardedChan()
		r.streams[key] = g
	}
	r.mu.Unlock()
	return g.subscribe(16), nil
}

// deliver routes an inbound progress notification to its stream, if one
// is registered. Notifications for unknown tokens are dropped silently.
func (r *progressRegistry) deliver(token interface{}, ev ProgressEvent) {
	key := progressKey(token)
	r.mu.Lock()
	g, ok := r.streams[key]
	r.mu.Unlock()
	if !ok {
		return
	}
	g.broadcast(ev)
}

// close closes and removes the stream for token. Called when the
// originating request completes (success or failure).
func (r *progressRegistry) close(token interface{}) {
	if token == nil {
		return
	}
	key := progressKey(token)
	r.mu.Lock()
	g, ok := r.streams[key]
	if ok {
		delete(r.streams, key)
	}
	r.mu.Unlock()
	if ok {
		g.closeOnce()
	}
}

// closeAll closes every live stream, used on peer shutdown.
func (r *progressRegistry) closeAll() {
	r.mu.Lock()
	streams := r.streams
	r.streams = make(map[string]*progressGuardedChan)
	r.mu.Unlock()
	for _, g := range streams {
		g.closeOnce()
	}
}
