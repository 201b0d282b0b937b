// Package engine implements the client side of optimistic sync: the
// session-scoped state container, the merge algorithm reconciling server
// echoes with local intent, the per-todo mutation processor, and the
// delta-sync orchestration.
package engine

import (
	"sync"
	"time"

	"github.com/marcus/doable/internal/models"
)

// PendingMutation is a queued, not-yet-applied change of intent for one
// todo. It lives in the scope's per-todo FIFO queue from the moment the
// user issues intent until the processor finds it satisfied, superseded, or
// permanently failed.
type PendingMutation struct {
	ID        string
	TodoID    string
	NextState models.State
	AppliedAt time.Time
}

// Scope is the session-lifetime sync state: the server-confirmed cache
// (todos at version >= 1), locally created optimistic todos (version 0),
// per-todo pending-mutation queues, the active-run registry, and a
// generation counter for cooperative cancellation. A scope is constructed
// per session and thrown away wholesale on logout or list switch; nothing
// here is a package-level singleton.
type Scope struct {
	mu         sync.Mutex
	listID     string
	userID     string
	todos      map[string]models.Todo
	queues     map[string][]PendingMutation
	running    map[string]bool
	generation uint64
	cursor     string
	expired    bool
}

// NewScope creates an empty scope bound to a list and user identity.
func NewScope(listID, userID string) *Scope {
	return &Scope{
		listID:  listID,
		userID:  userID,
		todos:   make(map[string]models.Todo),
		queues:  make(map[string][]PendingMutation),
		running: make(map[string]bool),
	}
}

// ListID returns the list this scope is bound to.
func (s *Scope) ListID() string { return s.listID }

// UserID returns the identity this scope acts as.
func (s *Scope) UserID() string { return s.userID }

// Generation returns the current cancellation generation. Runs capture it
// at start and re-check it after every suspension point; a mismatch means
// the run must exit without further side effects.
func (s *Scope) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// active reports whether a run started at generation gen may still act.
func (s *Scope) active(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen && !s.expired
}

// Expired reports whether the session has been marked expired.
func (s *Scope) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}

// expire marks the session expired and cancels every run in flight.
func (s *Scope) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = true
	s.generation++
}

// Reset bumps the generation and empties every map in one step. Any
// concurrently scheduled continuation sees the new generation at its next
// checkpoint and exits without touching the fresh state.
func (s *Scope) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.todos = make(map[string]models.Todo)
	s.queues = make(map[string][]PendingMutation)
	s.running = make(map[string]bool)
	s.cursor = ""
	s.expired = false
}

// Cached returns the locally known copy of a todo.
func (s *Scope) Cached(todoID string) (models.Todo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[todoID]
	return t, ok
}

// addOptimistic records a locally created, unconfirmed todo at version 0.
func (s *Scope) addOptimistic(t models.Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.Version = 0
	s.todos[t.ID] = t
}

// Cursor returns the last stored delta-sync position.
func (s *Scope) Cursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// setCursor stores a new delta-sync position unconditionally.
func (s *Scope) setCursor(cursor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = cursor
}

// enqueue appends a mutation to its todo's FIFO queue. Returns true when no
// run is active for the todo, in which case the caller must start one; the
// running flag is set here, atomically with the append, so two enqueues
// cannot both start runs.
func (s *Scope) enqueue(m PendingMutation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[m.TodoID] = append(s.queues[m.TodoID], m)
	if s.running[m.TodoID] {
		return false
	}
	s.running[m.TodoID] = true
	return true
}

// peek returns the oldest pending mutation for a todo without removing it.
func (s *Scope) peek(todoID string) (PendingMutation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[todoID]
	if len(q) == 0 {
		return PendingMutation{}, false
	}
	return q[0], true
}

// remove drops the identified mutation from its queue, if still present.
func (s *Scope) remove(todoID, mutationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[todoID]
	for i, m := range q {
		if m.ID == mutationID {
			s.queues[todoID] = append(q[:i:i], q[i+1:]...)
			break
		}
	}
	if len(s.queues[todoID]) == 0 {
		delete(s.queues, todoID)
	}
}

// finishRun is the run-exit check. Returns true when the run may stop: the
// queue is drained (flag cleared, atomically with the emptiness check so a
// concurrent enqueue cannot be missed) or the generation has moved on. A
// false return means new work arrived and the loop must continue.
func (s *Scope) finishRun(todoID string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return true
	}
	if len(s.queues[todoID]) > 0 {
		return false
	}
	delete(s.running, todoID)
	return true
}

// abandonRun clears the running flag while leaving the queue intact, used
// when a run gives up (backoff exhausted, auth failure). Guarded by gen so
// a stale run cannot clobber a successor started after a Reset.
func (s *Scope) abandonRun(todoID string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return
	}
	delete(s.running, todoID)
}

// startRun claims a run for a todo with queued work, used by reconnect
// recovery. Returns false when nothing is queued or a run is already
// active.
func (s *Scope) startRun(todoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[todoID] || len(s.queues[todoID]) == 0 {
		return false
	}
	s.running[todoID] = true
	return true
}

// QueuedIDs returns every todo id with a non-empty pending queue.
func (s *Scope) QueuedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.queues))
	for id, q := range s.queues {
		if len(q) > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// PendingCount returns the queue length for a todo.
func (s *Scope) PendingCount(todoID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[todoID])
}
