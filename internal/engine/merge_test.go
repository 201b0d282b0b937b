package engine

import (
	"testing"
	"time"

	"github.com/marcus/doable/internal/models"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func confirmedTodo(id string, version int64, state models.State, updatedAt time.Time) models.Todo {
	return models.Todo{
		ID:        id,
		ListID:    "l1",
		Title:     "todo " + id,
		State:     state,
		CreatedBy: "u1",
		CreatedAt: baseTime,
		UpdatedAt: updatedAt,
		Version:   version,
	}
}

func TestMergeNewTodoWins(t *testing.T) {
	s := NewScope("l1", "u1")
	in := confirmedTodo("t1", 1, models.StateTodo, baseTime)
	s.Merge([]models.Todo{in})

	got, ok := s.Cached("t1")
	if !ok || got.Version != 1 {
		t.Fatalf("cached: got %+v %v, want version 1", got, ok)
	}
}

func TestMergeHigherVersionWins(t *testing.T) {
	s := NewScope("l1", "u1")
	s.Merge([]models.Todo{confirmedTodo("t1", 2, models.StateOngoing, baseTime.Add(time.Second))})

	// Stale batch loses.
	s.Merge([]models.Todo{confirmedTodo("t1", 1, models.StateTodo, baseTime)})
	got, _ := s.Cached("t1")
	if got.Version != 2 || got.State != models.StateOngoing {
		t.Errorf("stale merge overwrote cache: got v%d %s", got.Version, got.State)
	}

	// Newer batch wins.
	s.Merge([]models.Todo{confirmedTodo("t1", 3, models.StateDone, baseTime.Add(2 * time.Second))})
	got, _ = s.Cached("t1")
	if got.Version != 3 || got.State != models.StateDone {
		t.Errorf("newer merge lost: got v%d %s", got.Version, got.State)
	}
}

func TestMergeVersionTieFavorsIncoming(t *testing.T) {
	s := NewScope("l1", "u1")
	cached := confirmedTodo("t1", 2, models.StateOngoing, baseTime)
	s.Merge([]models.Todo{cached})

	// Same version, same updatedAt, differing field: incoming wins (LWW).
	in := cached
	in.Title = "renamed"
	s.Merge([]models.Todo{in})
	got, _ := s.Cached("t1")
	if got.Title != "renamed" {
		t.Errorf("tie-break should favor incoming: got title %q", got.Title)
	}

	// Same version, older updatedAt: incoming discarded.
	older := cached
	older.Title = "stale"
	older.UpdatedAt = baseTime.Add(-time.Second)
	s.Merge([]models.Todo{older})
	got, _ = s.Cached("t1")
	if got.Title != "renamed" {
		t.Errorf("older tie should lose: got title %q", got.Title)
	}
}

func TestMergePreservesLocalCreationTime(t *testing.T) {
	s := NewScope("l1", "u1")
	local := confirmedTodo("t1", 0, models.StateTodo, time.Time{})
	local.CreatedAt = baseTime
	s.addOptimistic(local)

	echo := confirmedTodo("t1", 1, models.StateTodo, baseTime.Add(time.Second))
	echo.CreatedAt = baseTime.Add(5 * time.Second) // server echo disagrees
	s.Merge([]models.Todo{echo})

	got, _ := s.Cached("t1")
	if got.Version != 1 {
		t.Fatalf("version: got %d, want 1", got.Version)
	}
	if !got.CreatedAt.Equal(baseTime) {
		t.Errorf("creation time: got %v, want locally perceived %v", got.CreatedAt, baseTime)
	}
}

func TestMergeKeepsUnmatchedOptimistic(t *testing.T) {
	s := NewScope("l1", "u1")
	s.addOptimistic(confirmedTodo("local", 0, models.StateTodo, time.Time{}))
	s.Merge([]models.Todo{confirmedTodo("remote", 1, models.StateTodo, baseTime)})

	display := s.Display()
	if len(display) != 2 {
		t.Fatalf("display: got %d todos, want 2 (optimistic must stay visible)", len(display))
	}
}

func TestMergeIdempotent(t *testing.T) {
	s := NewScope("l1", "u1")
	batch := []models.Todo{
		confirmedTodo("t1", 1, models.StateTodo, baseTime),
		confirmedTodo("t2", 3, models.StateOngoing, baseTime.Add(time.Second)),
	}
	s.Merge(batch)
	first := s.Display()

	s.Merge(batch)
	second := s.Display()

	if len(first) != len(second) {
		t.Fatalf("display length changed: %d then %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("display[%d] changed: %+v then %+v", i, first[i], second[i])
		}
	}
}

func TestDisplayAppliesPendingQueue(t *testing.T) {
	s := NewScope("l1", "u1")
	s.Merge([]models.Todo{confirmedTodo("t1", 1, models.StateTodo, baseTime)})
	s.enqueue(PendingMutation{ID: "m1", TodoID: "t1", NextState: models.StateOngoing})
	s.enqueue(PendingMutation{ID: "m2", TodoID: "t1", NextState: models.StateDone})

	display := s.Display()
	if len(display) != 1 {
		t.Fatalf("display: got %d todos, want 1", len(display))
	}
	// Last queued mutation wins for the displayed state.
	if display[0].State != models.StateDone {
		t.Errorf("display state: got %s, want done", display[0].State)
	}
}

func TestDisplayOrderAndDeleted(t *testing.T) {
	s := NewScope("l1", "u1")
	a := confirmedTodo("a", 1, models.StateTodo, baseTime.Add(3*time.Second))
	a.CreatedAt = baseTime.Add(2 * time.Second)
	b := confirmedTodo("b", 1, models.StateTodo, baseTime)
	b.CreatedAt = baseTime
	tie := confirmedTodo("0tie", 1, models.StateTodo, baseTime.Add(time.Second))
	tie.CreatedAt = baseTime
	gone := confirmedTodo("gone", 2, models.StateDone, baseTime.Add(4*time.Second))
	gone.Deleted = true
	s.Merge([]models.Todo{a, b, tie, gone})

	display := s.Display()
	if len(display) != 3 {
		t.Fatalf("display: got %d todos, want 3 (deleted hidden)", len(display))
	}
	// (CreatedAt, ID) ascending: 0tie and b share a creation time.
	want := []string{"0tie", "b", "a"}
	for i, id := range want {
		if display[i].ID != id {
			t.Errorf("display[%d]: got %s, want %s", i, display[i].ID, id)
		}
	}
}

func TestResetClearsEverything(t *testing.T) {
	s := NewScope("l1", "u1")
	s.Merge([]models.Todo{confirmedTodo("t1", 1, models.StateTodo, baseTime)})
	s.enqueue(PendingMutation{ID: "m1", TodoID: "t1", NextState: models.StateOngoing})
	s.setCursor("pos")
	gen := s.Generation()

	s.Reset()

	if s.Generation() == gen {
		t.Error("reset should bump the generation")
	}
	if _, ok := s.Cached("t1"); ok {
		t.Error("reset should clear the cache")
	}
	if n := s.PendingCount("t1"); n != 0 {
		t.Errorf("reset should clear queues: got %d", n)
	}
	if s.Cursor() != "" {
		t.Error("reset should clear the cursor")
	}
}
