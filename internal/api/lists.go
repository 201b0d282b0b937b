package api

import (
	"encoding/json"
	"net/http"
)

// JoinListRequest is the JSON body for POST /v1/lists/join.
type JoinListRequest struct {
	JoinCode string `json:"join_code"`
}

// handleCreateList handles POST /v1/lists.
func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	list := s.store.CreateList()
	logFor(r.Context()).Info("list created", "lid", list.ID)
	writeJSON(w, http.StatusCreated, list)
}

// handleJoinList handles POST /v1/lists/join. Holding the join code is the
// whole membership check; the response hands back the list identity.
func (s *Server) handleJoinList(w http.ResponseWriter, r *http.Request) {
	var req JoinListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}
	if req.JoinCode == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "join_code is required")
		return
	}

	list, ok := s.store.GetListByJoinCode(req.JoinCode)
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown join code")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetList handles GET /v1/lists/{id}.
func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	list, ok := s.store.GetList(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown list")
		return
	}
	writeJSON(w, http.StatusOK, list)
}
