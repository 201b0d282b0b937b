package models

import (
	"time"
)

// State represents todo state
type State string

const (
	StateTodo    State = "todo"
	StateOngoing State = "ongoing"
	StateDone    State = "done"
)

// IsValidState checks if a state is valid
func IsValidState(s State) bool {
	switch s {
	case StateTodo, StateOngoing, StateDone:
		return true
	}
	return false
}

// CanTransition reports whether moving from one state to the next is allowed.
// The only legal edges are todo<->ongoing and ongoing<->done; self-transitions
// and the todo<->done skip are rejected. The server re-validates every request
// with this same function regardless of client-side pre-checks.
func CanTransition(from, to State) bool {
	switch from {
	case StateTodo:
		return to == StateOngoing
	case StateOngoing:
		return to == StateTodo || to == StateDone
	case StateDone:
		return to == StateOngoing
	}
	return false
}

// NextStates returns the valid successor states for a given state.
// Used to drive available actions and to detect already-satisfied mutations.
func NextStates(from State) []State {
	switch from {
	case StateTodo:
		return []State{StateOngoing}
	case StateOngoing:
		return []State{StateTodo, StateDone}
	case StateDone:
		return []State{StateOngoing}
	}
	return nil
}

// Todo represents a tracked item in a shared list
type Todo struct {
	ID        string    `json:"id"`
	ListID    string    `json:"list_id"`
	Title     string    `json:"title"`
	State     State     `json:"state"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"` // client-assigned, display ordering only
	UpdatedAt time.Time `json:"updated_at"` // server-assigned, strictly monotonic
	Version   int64     `json:"version"`    // 1 on create, +1 per accepted update; 0 = optimistic
	Deleted   bool      `json:"deleted,omitempty"`
}

// List represents a shared todo list
type List struct {
	ID        string    `json:"id"`
	JoinCode  string    `json:"join_code"`
	CreatedAt time.Time `json:"created_at"`
}

// User represents an account; existence is the only authorization check
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
