package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/marcus/doable/internal/models"
	"github.com/marcus/doable/internal/syncclient"
)

// updateCall records one UpdateState invocation.
type updateCall struct {
	TodoID          string
	Next            models.State
	ExpectedVersion int64
}

// fakeAPI is a scriptable transport for engine tests.
type fakeAPI struct {
	mu       sync.Mutex
	updates  []updateCall
	lists    int
	updateFn func(call updateCall) (models.Todo, error)
	listFn   func(listID, cursor string) ([]models.Todo, string, error)
	createFn func(listID, todoID, title string, createdAt time.Time) (models.Todo, error)
}

func (f *fakeAPI) CreateTodo(ctx context.Context, listID, todoID, title string, createdAt time.Time) (models.Todo, error) {
	f.mu.Lock()
	fn := f.createFn
	f.mu.Unlock()
	if fn == nil {
		return models.Todo{}, errors.New("createFn not set")
	}
	return fn(listID, todoID, title, createdAt)
}

func (f *fakeAPI) UpdateState(ctx context.Context, todoID string, next models.State, expectedVersion int64) (models.Todo, error) {
	call := updateCall{TodoID: todoID, Next: next, ExpectedVersion: expectedVersion}
	f.mu.Lock()
	f.updates = append(f.updates, call)
	fn := f.updateFn
	f.mu.Unlock()
	if fn == nil {
		return models.Todo{}, errors.New("updateFn not set")
	}
	return fn(call)
}

func (f *fakeAPI) ListTodos(ctx context.Context, listID, cursor string) ([]models.Todo, string, error) {
	f.mu.Lock()
	f.lists++
	fn := f.listFn
	f.mu.Unlock()
	if fn == nil {
		return nil, cursor, nil
	}
	return fn(listID, cursor)
}

func (f *fakeAPI) updateCalls() []updateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]updateCall, len(f.updates))
	copy(out, f.updates)
	return out
}

func (f *fakeAPI) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func newTestEngine(api *fakeAPI) *Engine {
	e := New(api, NewScope("l1", "u1"))
	e.BackoffBase = time.Millisecond
	e.MaxRetries = 2
	return e
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// Two mutations enqueued before either is sent apply in order, with
// expected versions N and N+1.
func TestProcessorFIFO(t *testing.T) {
	api := &fakeAPI{}
	api.updateFn = func(call updateCall) (models.Todo, error) {
		return confirmedTodo("t1", call.ExpectedVersion+1, call.Next,
			baseTime.Add(time.Duration(call.ExpectedVersion)*time.Second)), nil
	}
	e := newTestEngine(api)
	e.scope.Merge([]models.Todo{confirmedTodo("t1", 3, models.StateTodo, baseTime)})

	ctx := context.Background()
	e.EnqueueState(ctx, "t1", models.StateOngoing)
	e.EnqueueState(ctx, "t1", models.StateDone)

	waitFor(t, "queue drain", func() bool { return e.scope.PendingCount("t1") == 0 })

	calls := api.updateCalls()
	if len(calls) != 2 {
		t.Fatalf("update calls: got %d, want 2", len(calls))
	}
	if calls[0].Next != models.StateOngoing || calls[0].ExpectedVersion != 3 {
		t.Errorf("call[0]: got %s v%d, want ongoing v3", calls[0].Next, calls[0].ExpectedVersion)
	}
	if calls[1].Next != models.StateDone || calls[1].ExpectedVersion != 4 {
		t.Errorf("call[1]: got %s v%d, want done v4", calls[1].Next, calls[1].ExpectedVersion)
	}

	got, _ := e.scope.Cached("t1")
	if got.Version != 5 || got.State != models.StateDone {
		t.Errorf("cached: got v%d %s, want v5 done", got.Version, got.State)
	}
}

// A version conflict refreshes the cache from the conflict payload and
// retries immediately with the fresh version, without dequeuing.
func TestProcessorConflictRetry(t *testing.T) {
	api := &fakeAPI{}
	api.updateFn = func(call updateCall) (models.Todo, error) {
		if call.ExpectedVersion == 3 {
			return models.Todo{}, &syncclient.ConflictError{
				CurrentTodo: confirmedTodo("t1", 4, models.StateOngoing, baseTime.Add(time.Second)),
			}
		}
		return confirmedTodo("t1", call.ExpectedVersion+1, call.Next,
			baseTime.Add(2*time.Second)), nil
	}
	e := newTestEngine(api)
	e.scope.Merge([]models.Todo{confirmedTodo("t1", 3, models.StateOngoing, baseTime)})

	e.EnqueueState(context.Background(), "t1", models.StateDone)
	waitFor(t, "queue drain", func() bool { return e.scope.PendingCount("t1") == 0 })

	calls := api.updateCalls()
	if len(calls) != 2 {
		t.Fatalf("update calls: got %d, want 2 (conflict then retry)", len(calls))
	}
	if calls[1].ExpectedVersion != 4 {
		t.Errorf("retry expected version: got %d, want 4", calls[1].ExpectedVersion)
	}
	got, _ := e.scope.Cached("t1")
	if got.Version != 5 || got.State != models.StateDone {
		t.Errorf("cached: got v%d %s, want v5 done", got.Version, got.State)
	}
}

// A conflict that makes the mutation moot drops it without another request.
func TestProcessorConflictMakesMutationMoot(t *testing.T) {
	api := &fakeAPI{}
	api.updateFn = func(call updateCall) (models.Todo, error) {
		// Someone else already moved it to done.
		return models.Todo{}, &syncclient.ConflictError{
			CurrentTodo: confirmedTodo("t1", 4, models.StateDone, baseTime.Add(time.Second)),
		}
	}
	e := newTestEngine(api)
	e.scope.Merge([]models.Todo{confirmedTodo("t1", 3, models.StateOngoing, baseTime)})

	e.EnqueueState(context.Background(), "t1", models.StateDone)
	waitFor(t, "queue drain", func() bool { return e.scope.PendingCount("t1") == 0 })

	if calls := api.updateCalls(); len(calls) != 1 {
		t.Errorf("update calls: got %d, want 1 (moot after conflict)", len(calls))
	}
}

// Mutations that are moot or invalid against the cache are dropped without
// any request.
func TestProcessorDropsMootAndInvalid(t *testing.T) {
	api := &fakeAPI{}
	e := newTestEngine(api)
	e.scope.Merge([]models.Todo{confirmedTodo("t1", 1, models.StateTodo, baseTime)})

	ctx := context.Background()
	e.EnqueueState(ctx, "t1", models.StateTodo) // already satisfied
	waitFor(t, "moot drain", func() bool { return e.scope.PendingCount("t1") == 0 })

	e.EnqueueState(ctx, "t1", models.StateDone) // todo->done skip is invalid
	waitFor(t, "invalid drain", func() bool { return e.scope.PendingCount("t1") == 0 })

	e.EnqueueState(ctx, "missing", models.StateOngoing) // no cached todo
	waitFor(t, "missing drain", func() bool { return e.scope.PendingCount("missing") == 0 })

	if calls := api.updateCalls(); len(calls) != 0 {
		t.Errorf("update calls: got %d, want 0", len(calls))
	}
}

func TestProcessorAuthFailureExpiresSession(t *testing.T) {
	api := &fakeAPI{}
	api.updateFn = func(call updateCall) (models.Todo, error) {
		return models.Todo{}, fmt.Errorf("%w: unknown user", syncclient.ErrUnauthorized)
	}
	e := newTestEngine(api)
	e.scope.Merge([]models.Todo{confirmedTodo("t1", 1, models.StateTodo, baseTime)})

	expired := make(chan struct{})
	e.OnExpired = func() { close(expired) }

	e.EnqueueState(context.Background(), "t1", models.StateOngoing)

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("OnExpired not called")
	}
	if !e.scope.Expired() {
		t.Error("scope should be expired")
	}
	if calls := api.updateCalls(); len(calls) != 1 {
		t.Errorf("update calls: got %d, want 1 (no retry on auth failure)", len(calls))
	}
}

// Network failures back off and, once the budget is exhausted, leave the
// mutation queued; a reconnect restarts the run and drains it.
func TestProcessorBackoffExhaustionThenReconnect(t *testing.T) {
	api := &fakeAPI{}
	var failing sync.Mutex
	fail := true
	api.updateFn = func(call updateCall) (models.Todo, error) {
		failing.Lock()
		defer failing.Unlock()
		if fail {
			return models.Todo{}, errors.New("connection refused")
		}
		return confirmedTodo("t1", call.ExpectedVersion+1, call.Next, baseTime.Add(time.Second)), nil
	}
	e := newTestEngine(api)
	e.scope.Merge([]models.Todo{confirmedTodo("t1", 1, models.StateTodo, baseTime)})

	ctx := context.Background()
	e.EnqueueState(ctx, "t1", models.StateOngoing)

	// MaxRetries+1 attempts, then the run gives up with the mutation queued.
	waitFor(t, "retries exhausted", func() bool { return len(api.updateCalls()) == e.MaxRetries+1 })
	time.Sleep(20 * time.Millisecond)
	if n := e.scope.PendingCount("t1"); n != 1 {
		t.Fatalf("pending after exhaustion: got %d, want 1", n)
	}
	if len(e.scope.QueuedIDs()) != 1 {
		t.Fatal("queued ids should report the stalled todo")
	}

	failing.Lock()
	fail = false
	failing.Unlock()

	if err := e.OnConnected(ctx); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	waitFor(t, "queue drain after reconnect", func() bool { return e.scope.PendingCount("t1") == 0 })

	got, _ := e.scope.Cached("t1")
	if got.State != models.StateOngoing {
		t.Errorf("state after reconnect: got %s, want ongoing", got.State)
	}
}

// Bumping the generation mid-flight discards the in-flight result.
func TestProcessorGenerationCancels(t *testing.T) {
	api := &fakeAPI{}
	inCall := make(chan struct{})
	release := make(chan struct{})
	api.updateFn = func(call updateCall) (models.Todo, error) {
		close(inCall)
		<-release
		return confirmedTodo("t1", call.ExpectedVersion+1, call.Next, baseTime.Add(time.Second)), nil
	}
	e := newTestEngine(api)
	e.scope.Merge([]models.Todo{confirmedTodo("t1", 1, models.StateTodo, baseTime)})

	e.EnqueueState(context.Background(), "t1", models.StateOngoing)
	<-inCall
	e.scope.Reset()
	close(release)

	time.Sleep(20 * time.Millisecond)
	if _, ok := e.scope.Cached("t1"); ok {
		t.Error("discarded result must not repopulate a reset scope")
	}
	if calls := api.updateCalls(); len(calls) != 1 {
		t.Errorf("update calls: got %d, want 1 (run exits after cancel)", len(calls))
	}
}

func TestCreateTodoOptimistic(t *testing.T) {
	api := &fakeAPI{}
	var localCreatedAt time.Time
	api.createFn = func(listID, todoID, title string, createdAt time.Time) (models.Todo, error) {
		localCreatedAt = createdAt
		return models.Todo{
			ID:        todoID,
			ListID:    listID,
			Title:     title,
			State:     models.StateTodo,
			CreatedAt: createdAt.Add(3 * time.Second), // server echo disagrees
			UpdatedAt: createdAt.Add(3 * time.Second),
			Version:   1,
		}, nil
	}
	e := newTestEngine(api)

	id, err := e.CreateTodo(context.Background(), "buy milk")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, ok := e.scope.Cached(id)
	if !ok || got.Version != 1 {
		t.Fatalf("cached: got %+v %v, want confirmed v1", got, ok)
	}
	if !got.CreatedAt.Equal(localCreatedAt) {
		t.Errorf("creation time: got %v, want local %v", got.CreatedAt, localCreatedAt)
	}
}

func TestCreateTodoNetworkFailureKeepsOptimistic(t *testing.T) {
	api := &fakeAPI{}
	api.createFn = func(listID, todoID, title string, createdAt time.Time) (models.Todo, error) {
		return models.Todo{}, errors.New("connection refused")
	}
	e := newTestEngine(api)

	id, err := e.CreateTodo(context.Background(), "buy milk")
	if err == nil {
		t.Fatal("create should surface the transport error")
	}
	got, ok := e.scope.Cached(id)
	if !ok || got.Version != 0 {
		t.Errorf("optimistic copy should remain visible: got %+v %v", got, ok)
	}
}

// A todo the server has lost entirely gets exactly one recovery sync. When
// the sync brings nothing new the mutation is dropped, not retried forever.
func TestProcessorNotFoundTerminalAfterRecoverySync(t *testing.T) {
	api := &fakeAPI{}
	api.updateFn = func(call updateCall) (models.Todo, error) {
		return models.Todo{}, fmt.Errorf("todo %s: %w", call.TodoID, syncclient.ErrNotFound)
	}
	e := newTestEngine(api)
	e.scope.Merge([]models.Todo{confirmedTodo("t1", 2, models.StateTodo, baseTime)})

	e.EnqueueState(context.Background(), "t1", models.StateOngoing)
	waitFor(t, "queue drain", func() bool { return e.scope.PendingCount("t1") == 0 })

	if calls := api.updateCalls(); len(calls) != 1 {
		t.Errorf("update calls: got %d, want 1", len(calls))
	}
	if lists := api.listCalls(); lists != 1 {
		t.Errorf("list calls: got %d, want 1", lists)
	}
}

// A not-found caused by a stale cache is repaired by the recovery sync: the
// fresh copy carries a new version and the mutation retries against it.
func TestProcessorNotFoundStaleCacheRetries(t *testing.T) {
	api := &fakeAPI{}
	api.updateFn = func(call updateCall) (models.Todo, error) {
		if call.ExpectedVersion == 2 {
			return models.Todo{}, fmt.Errorf("todo %s: %w", call.TodoID, syncclient.ErrNotFound)
		}
		return confirmedTodo("t1", call.ExpectedVersion+1, call.Next, baseTime.Add(2*time.Second)), nil
	}
	api.listFn = func(listID, cursor string) ([]models.Todo, string, error) {
		return []models.Todo{confirmedTodo("t1", 3, models.StateTodo, baseTime.Add(time.Second))}, "c1", nil
	}
	e := newTestEngine(api)
	e.scope.Merge([]models.Todo{confirmedTodo("t1", 2, models.StateTodo, baseTime)})

	e.EnqueueState(context.Background(), "t1", models.StateOngoing)
	waitFor(t, "queue drain", func() bool { return e.scope.PendingCount("t1") == 0 })

	calls := api.updateCalls()
	if len(calls) != 2 {
		t.Fatalf("update calls: got %d, want 2", len(calls))
	}
	if calls[1].ExpectedVersion != 3 {
		t.Errorf("retry version: got %d, want 3", calls[1].ExpectedVersion)
	}
	got, _ := e.scope.Cached("t1")
	if got.State != models.StateOngoing || got.Version != 4 {
		t.Errorf("cached after retry: got v%d %s, want v4 ongoing", got.Version, got.State)
	}
}

// Repeated invalid-transition rejections are bounded: after the retry budget
// the mutation is dropped instead of looping against an unrepairable cache.
func TestProcessorInvalidTransitionBounded(t *testing.T) {
	api := &fakeAPI{}
	api.updateFn = func(call updateCall) (models.Todo, error) {
		return models.Todo{}, fmt.Errorf("%w: ongoing to ongoing", syncclient.ErrInvalidTransition)
	}
	e := newTestEngine(api)
	e.scope.Merge([]models.Todo{confirmedTodo("t1", 1, models.StateTodo, baseTime)})

	e.EnqueueState(context.Background(), "t1", models.StateOngoing)
	waitFor(t, "queue drain", func() bool { return e.scope.PendingCount("t1") == 0 })

	if calls := api.updateCalls(); len(calls) != e.MaxRetries+1 {
		t.Errorf("update calls: got %d, want %d", len(calls), e.MaxRetries+1)
	}
}

// A flat rejection is terminal: the server refused the request itself, so
// resending it cannot help.
func TestProcessorRejectedRequestDropsMutation(t *testing.T) {
	api := &fakeAPI{}
	api.updateFn = func(call updateCall) (models.Todo, error) {
		return models.Todo{}, fmt.Errorf("%w: bad_request: malformed body", syncclient.ErrRejected)
	}
	e := newTestEngine(api)
	e.scope.Merge([]models.Todo{confirmedTodo("t1", 1, models.StateTodo, baseTime)})

	e.EnqueueState(context.Background(), "t1", models.StateOngoing)
	waitFor(t, "queue drain", func() bool { return e.scope.PendingCount("t1") == 0 })

	if calls := api.updateCalls(); len(calls) != 1 {
		t.Errorf("update calls: got %d, want 1", len(calls))
	}
}
