package engine

import (
	"sort"

	"github.com/marcus/doable/internal/models"
)

// Merge reconciles a batch of authoritative todos with the local cache.
// Called after every server interaction: initial sync, delta sync, mutation
// responses, and conflict responses. Pure with respect to its inputs and
// the cache it updates; no I/O.
func (s *Scope) Merge(incoming []models.Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range incoming {
		cached, ok := s.todos[in.ID]
		if ok {
			if !supersedes(in, cached) {
				continue
			}
			// The server's creation echo is not authoritative for display
			// ordering: keep the locally perceived creation time so the
			// optimistic->confirmed transition does not reorder the list.
			if cached.Version == 0 {
				in.CreatedAt = cached.CreatedAt
			}
		}
		s.todos[in.ID] = in
	}
}

// supersedes decides whether an incoming todo replaces the cached copy: a
// strictly greater version always wins; on a version tie the incoming copy
// wins when its update time is greater or equal. The tie-break favors the
// incoming value so exact duplicates never stall the merge (last write
// wins, intentionally).
func supersedes(in, cached models.Todo) bool {
	if in.Version != cached.Version {
		return in.Version > cached.Version
	}
	return !in.UpdatedAt.Before(cached.UpdatedAt)
}

// Display derives the display-ready sequence: every cached todo with its
// pending-mutation queue applied in order (last mutation wins per field),
// unioned with still-unconfirmed optimistic todos, minus soft-deleted ones,
// sorted ascending by (CreatedAt, ID). Creation time is the sole ordering
// key; the id tie-break keeps the order deterministic.
func (s *Scope) Display() []models.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Todo, 0, len(s.todos))
	for id, t := range s.todos {
		if t.Deleted {
			continue
		}
		for _, m := range s.queues[id] {
			t.State = m.NextState
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
