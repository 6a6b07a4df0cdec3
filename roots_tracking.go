package mcp

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// rootsCacheState names the two states a RootsTracker's cache can be
// in: the last known list is still current (UpToDate), or a change
// notification has invalidated it and the next Roots call refreshes it
// (Pending).
type rootsCacheState int

const (
	rootsUpToDate rootsCacheState = iota
	rootsPending
)

// RootsTracker caches a connected client's root set on the server side,
// refreshing it by issuing roots/list. Concurrent callers that ask for a
// refresh while one is already in flight share its result rather than
// each issuing their own roots/list, via a singleflight.Group.
type RootsTracker struct {
	peer *Peer

	group singleflight.Group

	mu        sync.RWMutex
	state     rootsCacheState
	roots     []Root
	hasRoots  bool
	generation uint64
}

func newRootsTracker(peer *Peer) *RootsTracker {
	return &RootsTracker{peer: peer}
}

// Roots returns the cached root set, refreshing it first if the cache is
// empty or has been invalidated since the last successful fetch.
func (t *RootsTracker) Roots(ctx context.Context) ([]Root, error) {
	t.mu.RLock()
	if t.state == rootsUpToDate && t.hasRoots {
		roots := t.roots
		t.mu.RUnlock()
		return roots, nil
	}
	t.mu.RUnlock()
	return t.refresh(ctx)
}

// refresh issues roots/list, coalescing concurrent callers onto a single
// in-flight request. A generation counter, bumped by onChanged/
// applyExternal while the request is outstanding, lets a result
// that's already stale by the time it lands be dropped instead of
// clobbering newer data. Callers only share a flight started in the
// same generation, so a caller arriving after a change never joins a
// request issued before it.
func (t *RootsTracker) refresh(ctx context.Context) ([]Root, error) {
	startGen := atomic.LoadUint64(&t.generation)

	result, err, _ := t.group.Do(strconv.FormatUint(startGen, 10), func() (interface{}, error) {
		var resp struct {
			Roots []Root `json:"roots"`
		}
		if err := t.peer.SendRequest(ctx, "roots/list", struct{}{}, nil, &resp); err != nil {
			return nil, err
		}
		return resp.Roots, nil
	})
	if err != nil {
		return nil, err
	}

	roots := result.([]Root)
	t.mu.Lock()
	if atomic.LoadUint64(&t.generation) == startGen {
		t.roots = roots
		t.hasRoots = true
		t.state = rootsUpToDate
	}
	t.mu.Unlock()
	return roots, nil
}

// onChanged handles notifications/roots/list_changed: it invalidates the
// cache so the next Roots call refreshes, without eagerly fetching.
func (t *RootsTracker) onChanged(ctx context.Context, notif Notification) {
	atomic.AddUint64(&t.generation, 1)
	t.mu.Lock()
	t.state = rootsPending
	t.mu.Unlock()
}

// applyExternal installs an externally-sourced root set directly into
// the cache, bypassing roots/list entirely. Used by RootsFallbackModule
// for clients that never declared the roots capability and so will
// never answer a roots/list request at all.
func (t *RootsTracker) applyExternal(roots []Root) {
	atomic.AddUint64(&t.generation, 1)
	t.mu.Lock()
	t.roots = roots
	t.hasRoots = true
	t.state = rootsUpToDate
	t.mu.Unlock()
}
