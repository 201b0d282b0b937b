package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/doable/internal/models"
	"github.com/marcus/doable/internal/syncclient"
)

// API is the transport surface the engine consumes. syncclient.Client
// implements it; tests substitute fakes.
type API interface {
	CreateTodo(ctx context.Context, listID, todoID, title string, createdAt time.Time) (models.Todo, error)
	UpdateState(ctx context.Context, todoID string, next models.State, expectedVersion int64) (models.Todo, error)
	ListTodos(ctx context.Context, listID, cursor string) ([]models.Todo, string, error)
}

// Default retry behavior for network failures.
const (
	DefaultBackoffBase = 500 * time.Millisecond
	DefaultMaxRetries  = 5
)

// Engine drives one session's sync: it owns the mutation processors and the
// delta-sync orchestration over a single Scope.
type Engine struct {
	api   API
	scope *Scope

	// BackoffBase is the first network-failure retry delay; it doubles per
	// attempt up to MaxRetries, after which the mutation stays queued for
	// the next reconnect.
	BackoffBase time.Duration
	MaxRetries  int

	// OnExpired is called once when the server rejects the session
	// identity; the owner tears the scope down.
	OnExpired func()

	sync       syncState // single-flight state, see sync.go
	displayGen func()    // optional redraw hook, called after state changes
}

// New creates an engine over the given transport and scope.
func New(api API, scope *Scope) *Engine {
	return &Engine{
		api:         api,
		scope:       scope,
		BackoffBase: DefaultBackoffBase,
		MaxRetries:  DefaultMaxRetries,
	}
}

// Scope returns the engine's session scope.
func (e *Engine) Scope() *Scope { return e.scope }

// SetOnChange registers a hook invoked after every local state change
// (optimistic update, merge, queue change). Display layers use it to
// redraw.
func (e *Engine) SetOnChange(fn func()) { e.displayGen = fn }

func (e *Engine) changed() {
	if e.displayGen != nil {
		e.displayGen()
	}
}

// CreateTodo records an optimistic version-0 todo immediately and confirms
// it with the server. The optimistic copy stays visible until the server
// echo merges in (preserving the local creation time for display order).
// On failure the optimistic copy remains so the caller can retry with the
// same id; AlreadyExists on retry resolves through the next delta sync.
func (e *Engine) CreateTodo(ctx context.Context, title string) (string, error) {
	gen := e.scope.Generation()
	now := time.Now().UTC()
	todo := models.Todo{
		ID:        uuid.NewString(),
		ListID:    e.scope.ListID(),
		Title:     title,
		State:     models.StateTodo,
		CreatedBy: e.scope.UserID(),
		CreatedAt: now,
	}
	e.scope.addOptimistic(todo)
	e.changed()

	created, err := e.api.CreateTodo(ctx, todo.ListID, todo.ID, title, now)
	if !e.scope.active(gen) {
		return todo.ID, nil
	}
	if err != nil {
		if errors.Is(err, syncclient.ErrUnauthorized) {
			e.expire()
		}
		return todo.ID, err
	}

	e.scope.Merge([]models.Todo{created})
	e.changed()
	return todo.ID, nil
}

// EnqueueState records intent to move a todo to the given state. The
// optimistic effect is visible through Display immediately; a processor run
// is started for the todo unless one is already draining its queue.
func (e *Engine) EnqueueState(ctx context.Context, todoID string, next models.State) {
	m := PendingMutation{
		ID:        uuid.NewString(),
		TodoID:    todoID,
		NextState: next,
		AppliedAt: time.Now().UTC(),
	}
	start := e.scope.enqueue(m)
	e.changed()
	if start {
		go e.run(ctx, todoID)
	}
}

// expire marks the session expired and notifies the owner once.
func (e *Engine) expire() {
	if e.scope.Expired() {
		return
	}
	e.scope.expire()
	slog.Warn("session expired")
	if e.OnExpired != nil {
		e.OnExpired()
	}
}
