// Package notify fans out content-free change signals to list subscribers.
// The channel is a wake-up call, not a data channel: subscribers react by
// pulling a delta sync, so the delta endpoint stays the single source of
// truth.
package notify

import (
	"sync"
)

// Hub tracks active subscribers per list.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe registers a new subscriber for the list and returns its signal
// channel. The channel holds at most one pending wake-up; further signals
// coalesce with it.
func (h *Hub) Subscribe(listID string) chan struct{} {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[listID] == nil {
		h.subs[listID] = make(map[chan struct{}]struct{})
	}
	h.subs[listID][ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber. Safe to call for channels already
// removed.
func (h *Hub) Unsubscribe(listID string, ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[listID]
	if !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(h.subs, listID)
	}
}

// Notify delivers a wake-up to every current subscriber of the list.
// Delivery is fire-and-forget and never blocks: a subscriber with a signal
// already pending simply keeps that one.
func (h *Hub) Notify(listID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[listID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the current subscriber count for a list.
func (h *Hub) Subscribers(listID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[listID])
}
