package store

import "github.com/google/uuid"

// newID generates a server-assigned identifier.
func newID() string {
	return uuid.NewString()
}
