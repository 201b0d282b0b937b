package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/marcus/doable/internal/models"
)

func newTestTodo(id, listID string) models.Todo {
	return models.Todo{
		ID:        id,
		ListID:    listID,
		Title:     "test todo",
		State:     models.StateTodo,
		CreatedBy: "u1",
		CreatedAt: time.Now().UTC(),
	}
}

func mustCreate(t *testing.T, s *Store, todo models.Todo) models.Todo {
	t.Helper()
	created, err := s.CreateTodo(todo)
	if err != nil {
		t.Fatalf("create %s: %v", todo.ID, err)
	}
	return created
}

func statePtr(st models.State) *models.State { return &st }

func TestCreateTodo(t *testing.T) {
	s := New()
	created := mustCreate(t, s, newTestTodo("t1", "l1"))

	if created.Version != 1 {
		t.Errorf("version: got %d, want 1", created.Version)
	}
	if created.UpdatedAt.IsZero() {
		t.Error("updated_at should be server-assigned")
	}

	if _, err := s.CreateTodo(newTestTodo("t1", "l1")); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate create: got %v, want ErrAlreadyExists", err)
	}
}

func TestCompareAndSwap(t *testing.T) {
	s := New()
	created := mustCreate(t, s, newTestTodo("t1", "l1"))

	updated, err := s.CompareAndSwap("t1", created.Version, Update{State: statePtr(models.StateOngoing)})
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("version: got %d, want 2", updated.Version)
	}
	if updated.State != models.StateOngoing {
		t.Errorf("state: got %s, want ongoing", updated.State)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Error("updated_at should advance on every accepted write")
	}

	// Stale version loses and learns the authoritative todo with the failure.
	_, err = s.CompareAndSwap("t1", created.Version, Update{State: statePtr(models.StateDone)})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale cas: got %v, want ErrVersionConflict", err)
	}
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatal("stale cas error should carry the current todo")
	}
	if conflict.Current.Version != 2 || conflict.Current.State != models.StateOngoing {
		t.Errorf("conflict current: got v%d %s, want v2 ongoing", conflict.Current.Version, conflict.Current.State)
	}

	if _, err := s.CompareAndSwap("missing", 1, Update{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing cas: got %v, want ErrNotFound", err)
	}
}

func TestCompareAndSwapDeleted(t *testing.T) {
	s := New()
	created := mustCreate(t, s, newTestTodo("t1", "l1"))

	deleted := true
	if _, err := s.CompareAndSwap("t1", created.Version, Update{Deleted: &deleted}); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	_, err := s.CompareAndSwap("t1", 2, Update{State: statePtr(models.StateOngoing)})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("cas on deleted: got %v, want ErrNotFound", err)
	}
}

// The transition rule is enforced by the swap itself, under the same lock
// that reads the current state. A writer racing the version forward to the
// expected value must not smuggle a forbidden transition past a pre-check.
func TestCompareAndSwapRejectsInvalidTransition(t *testing.T) {
	s := New()
	created := mustCreate(t, s, newTestTodo("t1", "l1"))

	_, err := s.CompareAndSwap("t1", created.Version, Update{State: statePtr(models.StateDone)})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("todo->done: got %v, want ErrInvalidTransition", err)
	}
	same := created.State
	if _, err := s.CompareAndSwap("t1", created.Version, Update{State: &same}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("self transition: got %v, want ErrInvalidTransition", err)
	}

	got, _ := s.GetTodo("t1")
	if got.Version != created.Version || got.State != created.State {
		t.Errorf("rejected swap must not mutate: got v%d %s, want v%d %s",
			got.Version, got.State, created.Version, created.State)
	}
}

// N racing swaps with the same expected version must yield exactly one
// success; every loser must see the winner's new version in its conflict.
func TestCompareAndSwapLinearizable(t *testing.T) {
	s := New()
	mustCreate(t, s, newTestTodo("t1", "l1"))

	const n = 50
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CompareAndSwap("t1", 1, Update{State: statePtr(models.StateOngoing)})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrVersionConflict):
			var conflict *ConflictError
			if !errors.As(err, &conflict) {
				t.Fatal("conflict without current todo")
			}
			if conflict.Current.Version != 2 {
				t.Errorf("loser saw version %d, want 2", conflict.Current.Version)
			}
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("successes: got %d, want exactly 1", successes)
	}
}

func TestNextTimestampMonotonic(t *testing.T) {
	s := New()
	prev := s.NextTimestamp()
	for i := 0; i < 10000; i++ {
		ts := s.NextTimestamp()
		if !ts.After(prev) {
			t.Fatalf("timestamp %d not strictly increasing: %v then %v", i, prev, ts)
		}
		prev = ts
	}
}

func TestListTodosOrdering(t *testing.T) {
	s := New()
	mustCreate(t, s, newTestTodo("b", "l1"))
	mustCreate(t, s, newTestTodo("a", "l1"))
	mustCreate(t, s, newTestTodo("c", "l2"))

	todos := s.ListTodos("l1", nil)
	if len(todos) != 2 {
		t.Fatalf("todos: got %d, want 2", len(todos))
	}
	// Creation order, not id order: UpdatedAt is the primary key.
	if todos[0].ID != "b" || todos[1].ID != "a" {
		t.Errorf("order: got %s,%s, want b,a", todos[0].ID, todos[1].ID)
	}
}

func TestListTodosIncludesDeleted(t *testing.T) {
	s := New()
	created := mustCreate(t, s, newTestTodo("t1", "l1"))
	deleted := true
	if _, err := s.CompareAndSwap("t1", created.Version, Update{Deleted: &deleted}); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	todos := s.ListTodos("l1", nil)
	if len(todos) != 1 || !todos[0].Deleted {
		t.Fatal("soft-deleted todos must stay visible to sync")
	}
}

// A write after a sync must appear in the next delta exactly once, even when
// earlier writes share a timestamp with the cursor boundary.
func TestDeltaSyncCompleteness(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		mustCreate(t, s, newTestTodo(fmt.Sprintf("t%d", i), "l1"))
	}

	first := s.ListTodos("l1", nil)
	if len(first) != 5 {
		t.Fatalf("first sync: got %d todos, want 5", len(first))
	}
	last := first[len(first)-1]
	cur := Cursor{UpdatedAt: last.UpdatedAt, ID: last.ID}

	// No writes: empty delta.
	if delta := s.ListTodos("l1", &cur); len(delta) != 0 {
		t.Fatalf("empty delta: got %d todos, want 0", len(delta))
	}

	// One more write: delta contains it exactly once.
	if _, err := s.CompareAndSwap("t2", 1, Update{State: statePtr(models.StateOngoing)}); err != nil {
		t.Fatalf("cas: %v", err)
	}
	delta := s.ListTodos("l1", &cur)
	if len(delta) != 1 {
		t.Fatalf("delta: got %d todos, want 1", len(delta))
	}
	if delta[0].ID != "t2" || delta[0].Version != 2 {
		t.Errorf("delta: got %s v%d, want t2 v2", delta[0].ID, delta[0].Version)
	}
}

func TestListsAndUsers(t *testing.T) {
	s := New()
	l := s.CreateList()
	if l.ID == "" || l.JoinCode == "" {
		t.Fatal("list should have id and join code")
	}
	got, ok := s.GetListByJoinCode(l.JoinCode)
	if !ok || got.ID != l.ID {
		t.Errorf("join code lookup: got %v %v, want %s", got.ID, ok, l.ID)
	}
	if _, ok := s.GetListByJoinCode("nope"); ok {
		t.Error("unknown join code should not resolve")
	}

	u := s.CreateUser("alice")
	if u.ID == "" {
		t.Fatal("user should have id")
	}
	if _, ok := s.GetUser(u.ID); !ok {
		t.Error("created user should exist")
	}
	if _, ok := s.GetUser("nope"); ok {
		t.Error("unknown user should not exist")
	}
}
