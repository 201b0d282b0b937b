package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/marcus/doable/internal/models"
	"github.com/marcus/doable/internal/syncclient"
)

// run drains one todo's pending-mutation queue against the server. At most
// one run exists per todo id, so a todo never has more than one request
// outstanding and mutations apply in strict FIFO order. The captured
// generation is re-checked at the top of every iteration and after every
// suspension; once it is stale the run exits without further side effects
// (an in-flight response is simply discarded).
func (e *Engine) run(ctx context.Context, todoID string) {
	gen := e.scope.Generation()
	retries := 0

	for {
		if ctx.Err() != nil || !e.scope.active(gen) {
			e.scope.abandonRun(todoID, gen)
			return
		}

		m, ok := e.scope.peek(todoID)
		if !ok {
			if e.scope.finishRun(todoID, gen) {
				return
			}
			continue // enqueued between peek and finish
		}

		// Validate against the cached authoritative todo. A mutation whose
		// target is gone, already satisfied, or no longer reachable is moot:
		// drop it and move to the next.
		cached, ok := e.scope.Cached(todoID)
		if !ok || cached.Deleted {
			e.scope.remove(todoID, m.ID)
			e.changed()
			continue
		}
		if cached.Version == 0 {
			// Creation unconfirmed; the state mutation has no version to
			// swap against yet. Recover the confirmed copy first.
			if err := e.SyncOnce(ctx); err != nil {
				e.scope.abandonRun(todoID, gen)
				return
			}
			if cached, ok = e.scope.Cached(todoID); !ok || cached.Version == 0 {
				e.scope.remove(todoID, m.ID)
				e.changed()
				continue
			}
		}
		if cached.State == m.NextState {
			e.scope.remove(todoID, m.ID)
			e.changed()
			continue
		}
		if !models.CanTransition(cached.State, m.NextState) {
			slog.Debug("dropping invalid mutation", "todo", todoID,
				"from", cached.State, "to", m.NextState)
			e.scope.remove(todoID, m.ID)
			e.changed()
			continue
		}

		// Execute with the cached version as the optimistic lock.
		todo, err := e.api.UpdateState(ctx, todoID, m.NextState, cached.Version)
		if !e.scope.active(gen) {
			return // result discarded; generation moved on mid-flight
		}

		var conflict *syncclient.ConflictError
		switch {
		case err == nil:
			e.scope.remove(todoID, m.ID)
			e.scope.Merge([]models.Todo{todo})
			e.changed()
			retries = 0

		case errors.As(err, &conflict):
			// Optimistic lock lost. Refresh the cache from the conflict
			// payload and loop immediately: the next validate pass retries
			// with the fresh version, or finds the mutation moot or invalid.
			e.scope.Merge([]models.Todo{conflict.CurrentTodo})
			e.changed()

		case errors.Is(err, syncclient.ErrNotFound):
			// The server has no such todo. One recovery sync decides: a
			// batch that changes the cached copy means our picture was
			// stale, so revalidate; an unchanged cache means the todo is
			// genuinely gone and not-found is terminal for this mutation.
			if serr := e.SyncOnce(ctx); serr != nil {
				slog.Warn("recovery sync failed", "todo", todoID, "err", serr)
				e.scope.abandonRun(todoID, gen)
				return
			}
			if !e.scope.active(gen) {
				return
			}
			if refreshed, ok := e.scope.Cached(todoID); !ok || refreshed.Version == cached.Version {
				slog.Warn("todo gone on server, dropping mutation", "todo", todoID)
				e.scope.remove(todoID, m.ID)
				e.changed()
			}

		case errors.Is(err, syncclient.ErrInvalidTransition):
			// State moved between our read and the server's check. Recover
			// the full authoritative picture and revalidate, bounded so a
			// cache the sync cannot repair does not retry forever.
			if serr := e.SyncOnce(ctx); serr != nil {
				slog.Warn("recovery sync failed", "todo", todoID, "err", serr)
				e.scope.abandonRun(todoID, gen)
				return
			}
			retries++
			if retries > e.MaxRetries {
				slog.Warn("server keeps rejecting transition, dropping mutation", "todo", todoID)
				e.scope.remove(todoID, m.ID)
				e.changed()
				retries = 0
				continue
			}
			select {
			case <-ctx.Done():
				e.scope.abandonRun(todoID, gen)
				return
			case <-time.After(e.BackoffBase << (retries - 1)):
			}

		case errors.Is(err, syncclient.ErrRejected):
			// The server flatly refused the request; retrying the same
			// bytes cannot help.
			slog.Warn("request rejected, dropping mutation", "todo", todoID, "err", err)
			e.scope.remove(todoID, m.ID)
			e.changed()

		case errors.Is(err, syncclient.ErrUnauthorized):
			e.expire()
			e.scope.abandonRun(todoID, gen)
			return

		default:
			// Transport failure: back off, bounded. Exhausting the budget
			// leaves the mutation queued; reconnect restarts the run.
			retries++
			if retries > e.MaxRetries {
				slog.Warn("retries exhausted, leaving mutation queued", "todo", todoID)
				e.scope.abandonRun(todoID, gen)
				return
			}
			delay := e.BackoffBase << (retries - 1)
			slog.Debug("network failure, backing off", "todo", todoID, "attempt", retries, "delay", delay)
			select {
			case <-ctx.Done():
				e.scope.abandonRun(todoID, gen)
				return
			case <-time.After(delay):
			}
		}
	}
}
