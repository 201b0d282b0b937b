package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/doable/internal/models"
	"github.com/marcus/doable/internal/store"
)

// CreateTodoRequest is the JSON body for POST /v1/lists/{id}/todos.
// The id is client-chosen so the optimistic copy and the confirmed copy
// share an identity.
type CreateTodoRequest struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

// UpdateStateRequest is the JSON body for POST /v1/todos/{id}/state.
type UpdateStateRequest struct {
	NextState       models.State `json:"next_state"`
	ExpectedVersion int64        `json:"expected_version"`
}

const maxTitleLen = 500

// handleCreateTodo handles POST /v1/lists/{id}/todos.
func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	listID := r.PathValue("id")
	if _, ok := s.store.GetList(listID); !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown list")
		return
	}

	var req CreateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}

	if _, err := uuid.Parse(req.ID); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "id must be a uuid")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "title is required")
		return
	}
	if len(title) > maxTitleLen {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "title too long")
		return
	}
	createdAt, err := time.Parse(time.RFC3339Nano, req.CreatedAt)
	if err != nil {
		createdAt, err = time.Parse(time.RFC3339, req.CreatedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid created_at timestamp")
			return
		}
	}

	user := getUserFromContext(r.Context())
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = user.UserID
	}

	// Duplicate check before the store call keeps AlreadyExists a route
	// concern; the store re-checks under its lock.
	if _, ok := s.store.GetTodo(req.ID); ok {
		writeError(w, http.StatusConflict, ErrCodeAlreadyExists, "todo id already exists")
		return
	}

	todo, err := s.store.CreateTodo(models.Todo{
		ID:        req.ID,
		ListID:    listID,
		Title:     title,
		State:     models.StateTodo,
		CreatedBy: createdBy,
		CreatedAt: createdAt.UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, ErrCodeAlreadyExists, "todo id already exists")
			return
		}
		logFor(r.Context()).Error("create todo", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to create todo")
		return
	}

	s.metrics.RecordTodoWrite()
	s.notifyList(listID)
	writeJSON(w, http.StatusCreated, todo)
}

// handleUpdateTodoState handles POST /v1/todos/{id}/state. The expected
// version makes the update an optimistic-lock compare-and-swap; exactly one
// of any set of racing updates with the same expected version wins.
func (s *Server) handleUpdateTodoState(w http.ResponseWriter, r *http.Request) {
	todoID := r.PathValue("id")

	var req UpdateStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}
	if !models.IsValidState(req.NextState) {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid next_state")
		return
	}
	if req.ExpectedVersion < 1 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "expected_version must be positive")
		return
	}

	current, ok := s.store.GetTodo(todoID)
	if !ok || current.Deleted {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown todo")
		return
	}

	// State-machine check against the version the client claims to hold.
	// A version mismatch is reported as a conflict below, so only validate
	// the transition when the claimed and stored versions agree.
	if current.Version == req.ExpectedVersion && !models.CanTransition(current.State, req.NextState) {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidTransition,
			"cannot transition from "+string(current.State)+" to "+string(req.NextState))
		return
	}

	next := req.NextState
	updated, err := s.store.CompareAndSwap(todoID, req.ExpectedVersion, store.Update{State: &next})
	if err != nil {
		var conflict *store.ConflictError
		switch {
		case errors.As(err, &conflict):
			writeConflict(w, conflict.Current)
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown todo")
		case errors.Is(err, store.ErrInvalidTransition):
			writeError(w, http.StatusBadRequest, ErrCodeInvalidTransition,
				"cannot transition from "+string(current.State)+" to "+string(req.NextState))
		default:
			logFor(r.Context()).Error("update todo state", "err", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to update todo")
		}
		return
	}

	s.metrics.RecordTodoWrite()
	s.notifyList(updated.ListID)
	writeJSON(w, http.StatusOK, updated)
}

// notifyList wakes every subscriber of the list.
func (s *Server) notifyList(listID string) {
	s.metrics.RecordNotify()
	s.hub.Notify(listID)
}
