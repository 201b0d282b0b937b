// Package localstate persists the CLI's session identity between
// invocations: which server, which user, which list. It is a small
// key-value table in a per-user sqlite file so concurrent invocations
// (a watch in one terminal, an add in another) see consistent state.
package localstate

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNotFound means the key has never been set.
var ErrNotFound = errors.New("localstate: key not found")

const schema = `
CREATE TABLE IF NOT EXISTS state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Well-known keys.
const (
	KeyServerURL = "server_url"
	KeyUserID    = "user_id"
	KeyUserName  = "user_name"
	KeyListID    = "list_id"
	KeyJoinCode  = "join_code"
)

// Store wraps the local state database.
type Store struct {
	conn *sql.DB
	path string
}

// DefaultPath returns the per-user state database path,
// typically ~/.config/doable/state.db.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "doable", "state.db"), nil
}

// Open opens the state database, creating the file and schema as needed.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{conn: conn, path: dbPath}, nil
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.conn.Close()
}

// Get returns the value for key, or ErrNotFound.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.conn.QueryRow(`SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set stores key=value, replacing any previous value.
func (s *Store) Set(key, value string) error {
	_, err := s.conn.Exec(`
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.conn.Exec(`DELETE FROM state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Session is the identity the CLI operates as.
type Session struct {
	ServerURL string
	UserID    string
	UserName  string
	ListID    string // empty until a list is created or joined
}

// LoadSession reads the stored session. A missing user means no one has
// signed up yet; that is returned as ErrNotFound. A missing list id is
// fine and left empty.
func (s *Store) LoadSession() (Session, error) {
	var sess Session
	var err error
	if sess.ServerURL, err = s.Get(KeyServerURL); err != nil {
		return Session{}, err
	}
	if sess.UserID, err = s.Get(KeyUserID); err != nil {
		return Session{}, err
	}
	if sess.UserName, err = s.Get(KeyUserName); err != nil {
		return Session{}, err
	}
	sess.ListID, err = s.Get(KeyListID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Session{}, err
	}
	return sess, nil
}

// SaveSession stores the session, overwriting any previous one.
func (s *Store) SaveSession(sess Session) error {
	pairs := []struct{ k, v string }{
		{KeyServerURL, sess.ServerURL},
		{KeyUserID, sess.UserID},
		{KeyUserName, sess.UserName},
	}
	for _, p := range pairs {
		if err := s.Set(p.k, p.v); err != nil {
			return err
		}
	}
	if sess.ListID == "" {
		return s.Delete(KeyListID)
	}
	return s.Set(KeyListID, sess.ListID)
}

// ClearSession wipes the stored identity, e.g. after the server stops
// recognizing the user.
func (s *Store) ClearSession() error {
	if _, err := s.conn.Exec(`DELETE FROM state`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
