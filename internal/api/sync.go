package api

import (
	"net/http"

	"github.com/marcus/doable/internal/models"
	"github.com/marcus/doable/internal/store"
)

// SyncResponse is the JSON response for GET /v1/lists/{id}/todos. Cursor is
// an opaque token covering the returned batch; on an empty batch it echoes
// the caller's position.
type SyncResponse struct {
	Todos  []models.Todo `json:"todos"`
	Cursor string        `json:"cursor,omitempty"`
}

// handleSyncTodos handles GET /v1/lists/{id}/todos. Returns every todo in
// the list strictly after the cursor, ordered by (updated_at, id). A
// malformed or absent cursor means a full sync, never an error.
func (s *Server) handleSyncTodos(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordSyncRequest()
	listID := r.PathValue("id")

	if _, ok := s.store.GetList(listID); !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown list")
		return
	}

	token := r.URL.Query().Get("cursor")
	var cur *store.Cursor
	if c, ok := store.DecodeCursor(token); ok {
		cur = &c
	}

	todos := s.store.ListTodos(listID, cur)

	resp := SyncResponse{Todos: todos, Cursor: token}
	if len(todos) > 0 {
		last := todos[len(todos)-1]
		resp.Cursor = store.EncodeCursor(store.Cursor{UpdatedAt: last.UpdatedAt, ID: last.ID})
	}

	writeJSON(w, http.StatusOK, resp)
}
