package store

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/marcus/doable/internal/models"
)

// Sentinel errors for store operations.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrVersionConflict   = errors.New("version conflict")
	ErrInvalidTransition = errors.New("invalid transition")
)

// ConflictError reports a failed compare-and-swap. Current is the
// authoritative todo at the moment the swap was refused, captured
// atomically with the failure so the caller can retry without a
// second round-trip.
type ConflictError struct {
	Current models.Todo
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: current version %d", e.Current.Version)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}

// Update holds the field changes applied by a successful compare-and-swap.
// Nil fields are left untouched.
type Update struct {
	State   *models.State
	Title   *string
	Deleted *bool
}

// Store is the in-memory authoritative state for todos, lists, and users.
// All access goes through its methods; the mutex makes every operation a
// single non-interleaved step, which is the seam that would let a durable
// backend replace this without touching callers.
type Store struct {
	mu     sync.Mutex
	todos  map[string]models.Todo
	lists  map[string]models.List
	users  map[string]models.User
	lastTS time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		todos: make(map[string]models.Todo),
		lists: make(map[string]models.List),
		users: make(map[string]models.User),
	}
}

// nextTimestamp returns a timestamp strictly greater than every timestamp
// previously returned by this store. When the wall clock has not advanced
// past the last value (sub-tick writes), it advances by one nanosecond so
// every accepted write moves the sync cursor. Callers must hold mu.
func (s *Store) nextTimestamp() time.Time {
	now := time.Now().UTC()
	if !now.After(s.lastTS) {
		now = s.lastTS.Add(time.Nanosecond)
	}
	s.lastTS = now
	return now
}

// NextTimestamp exposes the monotonic timestamp generator.
func (s *Store) NextTimestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextTimestamp()
}

// GetTodo returns the todo with the given id.
func (s *Store) GetTodo(id string) (models.Todo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	return t, ok
}

// CreateTodo stores a new todo at version 1 with a server-assigned
// UpdatedAt. Fails with ErrAlreadyExists when the id is taken.
func (s *Store) CreateTodo(t models.Todo) (models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.todos[t.ID]; ok {
		return models.Todo{}, fmt.Errorf("todo %s: %w", t.ID, ErrAlreadyExists)
	}
	t.Version = 1
	t.Deleted = false
	t.UpdatedAt = s.nextTimestamp()
	s.todos[t.ID] = t
	return t, nil
}

// CompareAndSwap atomically compares expectedVersion against the stored
// version; on match it applies the update, increments the version by one,
// stamps a fresh monotonic UpdatedAt, and returns the new todo. On mismatch
// it returns a ConflictError carrying the unchanged authoritative todo.
// A state change the machine forbids reports ErrInvalidTransition.
// Missing and soft-deleted todos report ErrNotFound.
func (s *Store) CompareAndSwap(id string, expectedVersion int64, up Update) (models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.todos[id]
	if !ok || t.Deleted {
		return models.Todo{}, fmt.Errorf("todo %s: %w", id, ErrNotFound)
	}
	if t.Version != expectedVersion {
		return models.Todo{}, &ConflictError{Current: t}
	}
	if up.State != nil && !models.CanTransition(t.State, *up.State) {
		// Checked here, under the lock, against the same copy the swap
		// reads. A pre-check outside the lock can race a concurrent write.
		return models.Todo{}, fmt.Errorf("todo %s: %s to %s: %w", id, t.State, *up.State, ErrInvalidTransition)
	}

	if up.State != nil {
		t.State = *up.State
	}
	if up.Title != nil {
		t.Title = *up.Title
	}
	if up.Deleted != nil {
		t.Deleted = *up.Deleted
	}
	t.Version++
	t.UpdatedAt = s.nextTimestamp()
	s.todos[id] = t
	return t, nil
}

// ListTodos returns every todo in the list whose (UpdatedAt, ID) strictly
// exceeds the cursor, ordered ascending by that composite key. A nil cursor
// returns the full list. Soft-deleted todos are included so clients can
// reconcile removals.
func (s *Store) ListTodos(listID string, cur *Cursor) []models.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Todo
	for _, t := range s.todos {
		if t.ListID != listID {
			continue
		}
		if cur != nil && !cur.Before(t) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CreateList creates a list with a random join code.
func (s *Store) CreateList() models.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := models.List{
		ID:        newID(),
		JoinCode:  newJoinCode(),
		CreatedAt: time.Now().UTC(),
	}
	s.lists[l.ID] = l
	return l
}

// GetList returns the list with the given id.
func (s *Store) GetList(id string) (models.List, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[id]
	return l, ok
}

// GetListByJoinCode looks up a list by its shareable join code.
func (s *Store) GetListByJoinCode(code string) (models.List, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lists {
		if l.JoinCode == code {
			return l, true
		}
	}
	return models.List{}, false
}

// CreateUser creates a user with a server-assigned id.
func (s *Store) CreateUser(name string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := models.User{
		ID:        newID(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	s.users[u.ID] = u
	return u
}

// GetUser returns the user with the given id.
func (s *Store) GetUser(id string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

// newJoinCode generates a short shareable code.
func newJoinCode() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}
