package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// CreateUserRequest is the JSON body for POST /v1/users.
type CreateUserRequest struct {
	Name string `json:"name"`
}

const maxUserNameLen = 100

// handleCreateUser handles POST /v1/users.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}
	if len(name) > maxUserNameLen {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "name too long")
		return
	}

	user := s.store.CreateUser(name)
	logFor(r.Context()).Info("user created", "uid", user.ID)
	writeJSON(w, http.StatusCreated, user)
}
