package store

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/marcus/doable/internal/models"
)

// Cursor marks a delta-sync position as the composite key (UpdatedAt, ID).
// Todos are ordered ascending by this key, so a cursor splits the history
// into "already seen" and "strictly newer" with no gaps or duplicates.
type Cursor struct {
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id,omitempty"`
}

// Before reports whether the cursor position is strictly before the todo's
// (UpdatedAt, ID) key, i.e. whether the todo belongs in the next delta batch.
func (c Cursor) Before(t models.Todo) bool {
	if t.UpdatedAt.After(c.UpdatedAt) {
		return true
	}
	if t.UpdatedAt.Equal(c.UpdatedAt) {
		return t.ID > c.ID
	}
	return false
}

// EncodeCursor renders a cursor as an opaque token for the wire.
func EncodeCursor(c Cursor) string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses an opaque cursor token. Malformed or undecodable
// tokens are treated as "no cursor" (full resync), never as an error.
func DecodeCursor(token string) (Cursor, bool) {
	if token == "" {
		return Cursor{}, false
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, false
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, false
	}
	if c.UpdatedAt.IsZero() && c.ID == "" {
		return Cursor{}, false
	}
	return c, true
}
