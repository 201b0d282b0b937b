package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/marcus/doable/internal/syncclient"
)

// syncState implements single-flight delta sync with at-most-one queued
// repeat: while a fetch is in flight, any number of additional callers
// coalesce into a single trailing re-run.
type syncState struct {
	mu       sync.Mutex
	inFlight bool
	queued   bool
}

// SyncOnce fetches todos newer than the stored cursor for the scope's list
// and merges them. Concurrent callers coalesce: the second caller returns
// immediately and the in-flight call repeats once after finishing. The new
// cursor is stored unconditionally, even for an empty batch, so the
// server's monotonic-timestamp guarantee is fully banked.
func (e *Engine) SyncOnce(ctx context.Context) error {
	e.sync.mu.Lock()
	if e.sync.inFlight {
		e.sync.queued = true
		e.sync.mu.Unlock()
		return nil
	}
	e.sync.inFlight = true
	e.sync.mu.Unlock()

	var err error
	for {
		err = e.syncOnce(ctx)

		e.sync.mu.Lock()
		if e.sync.queued {
			e.sync.queued = false
			e.sync.mu.Unlock()
			continue
		}
		e.sync.inFlight = false
		e.sync.mu.Unlock()
		return err
	}
}

func (e *Engine) syncOnce(ctx context.Context) error {
	gen := e.scope.Generation()

	todos, cursor, err := e.api.ListTodos(ctx, e.scope.ListID(), e.scope.Cursor())
	if err != nil {
		if errors.Is(err, syncclient.ErrUnauthorized) {
			e.expire()
		}
		return err
	}
	if !e.scope.active(gen) {
		return nil // scope reset mid-flight; discard
	}

	e.scope.Merge(todos)
	e.scope.setCursor(cursor)
	e.changed()
	return nil
}

// OnChanged reacts to a content-free change notification by pulling exactly
// one delta sync.
func (e *Engine) OnChanged(ctx context.Context) error {
	return e.SyncOnce(ctx)
}

// OnConnected runs on every transition into the connected state, first
// connect and reconnect alike: resync, then restart a processor run for
// every todo with queued mutations, recovering runs that exhausted their
// backoff or were cancelled.
func (e *Engine) OnConnected(ctx context.Context) error {
	err := e.SyncOnce(ctx)
	for _, id := range e.scope.QueuedIDs() {
		if e.scope.startRun(id) {
			go e.run(ctx, id)
		}
	}
	return err
}
