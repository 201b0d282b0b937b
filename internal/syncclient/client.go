// Package syncclient is the HTTP client for the doable sync server.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/marcus/doable/internal/models"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("version conflict")
	ErrRejected          = errors.New("request rejected")
)

// ConflictError is returned on a 409 state update. CurrentTodo is the
// authoritative todo, so the caller can refresh its cache and retry without
// another round-trip.
type ConflictError struct {
	CurrentTodo models.Todo
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: current version %d", e.CurrentTodo.Version)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Client is an HTTP client for the doable server.
type Client struct {
	BaseURL string
	UserID  string
	HTTP    *http.Client
}

// New creates a new sync client authenticated as the given user.
func New(baseURL, userID string) *Client {
	return &Client{
		BaseURL: baseURL,
		UserID:  userID,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// --- Request/response types (mirrors internal/api, independently defined) ---

// CreateUserRequest is the body for POST /v1/users.
type CreateUserRequest struct {
	Name string `json:"name"`
}

// JoinListRequest is the body for POST /v1/lists/join.
type JoinListRequest struct {
	JoinCode string `json:"join_code"`
}

// CreateTodoRequest is the body for POST /v1/lists/{id}/todos.
type CreateTodoRequest struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

// UpdateStateRequest is the body for POST /v1/todos/{id}/state.
type UpdateStateRequest struct {
	NextState       models.State `json:"next_state"`
	ExpectedVersion int64        `json:"expected_version"`
}

// SyncResponse is the response from GET /v1/lists/{id}/todos.
type SyncResponse struct {
	Todos  []models.Todo `json:"todos"`
	Cursor string        `json:"cursor"`
}

// conflictBody is the structured 409 payload for state updates.
type conflictBody struct {
	Error       apiError    `json:"error"`
	CurrentTodo models.Todo `json:"current_todo"`
}

// --- API methods ---

// Signup creates a new user identity. No auth required.
func (c *Client) Signup(ctx context.Context, name string) (models.User, error) {
	var user models.User
	err := c.do(ctx, "POST", "/v1/users", CreateUserRequest{Name: name}, &user)
	return user, err
}

// CreateList creates a new shared list.
func (c *Client) CreateList(ctx context.Context) (models.List, error) {
	var list models.List
	err := c.do(ctx, "POST", "/v1/lists", nil, &list)
	return list, err
}

// JoinList resolves a join code to a list.
func (c *Client) JoinList(ctx context.Context, joinCode string) (models.List, error) {
	var list models.List
	err := c.do(ctx, "POST", "/v1/lists/join", JoinListRequest{JoinCode: joinCode}, &list)
	return list, err
}

// CreateTodo creates a todo with a client-chosen id.
func (c *Client) CreateTodo(ctx context.Context, listID, todoID, title string, createdAt time.Time) (models.Todo, error) {
	var todo models.Todo
	err := c.do(ctx, "POST", fmt.Sprintf("/v1/lists/%s/todos", listID), CreateTodoRequest{
		ID:        todoID,
		Title:     title,
		CreatedBy: c.UserID,
		CreatedAt: createdAt.UTC().Format(time.RFC3339Nano),
	}, &todo)
	return todo, err
}

// UpdateState requests a state transition guarded by the expected version.
// A 409 comes back as a *ConflictError carrying the authoritative todo.
func (c *Client) UpdateState(ctx context.Context, todoID string, next models.State, expectedVersion int64) (models.Todo, error) {
	var todo models.Todo
	err := c.do(ctx, "POST", fmt.Sprintf("/v1/todos/%s/state", todoID), UpdateStateRequest{
		NextState:       next,
		ExpectedVersion: expectedVersion,
	}, &todo)
	return todo, err
}

// ListTodos fetches todos strictly after the cursor. An empty cursor means
// a full sync. Returns the batch and the new cursor position.
func (c *Client) ListTodos(ctx context.Context, listID, cursor string) ([]models.Todo, string, error) {
	path := fmt.Sprintf("/v1/lists/%s/todos", listID)
	if cursor != "" {
		path += "?cursor=" + url.QueryEscape(cursor)
	}
	var resp SyncResponse
	if err := c.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, "", err
	}
	return resp.Todos, resp.Cursor, nil
}

// --- HTTP helpers ---

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// do executes an HTTP request and maps error statuses to sentinel errors.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserID != "" {
		req.Header.Set("Authorization", "Bearer "+c.UserID)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return c.mapError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// mapError converts an error response into the matching sentinel or typed error.
func (c *Client) mapError(status int, body []byte) error {
	var errResp struct {
		Error apiError `json:"error"`
	}
	code := ""
	if json.Unmarshal(body, &errResp) == nil {
		code = errResp.Error.Code
	}

	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, errResp.Error.Message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, errResp.Error.Message)
	case http.StatusConflict:
		if code == "version_conflict" {
			var conflict conflictBody
			if err := json.Unmarshal(body, &conflict); err == nil {
				return &ConflictError{CurrentTodo: conflict.CurrentTodo}
			}
		}
		return fmt.Errorf("%w: %s", ErrAlreadyExists, errResp.Error.Message)
	case http.StatusBadRequest:
		if code == "invalid_transition" {
			return fmt.Errorf("%w: %s", ErrInvalidTransition, errResp.Error.Message)
		}
	}
	if status >= 400 && status < 500 {
		// Any other client error is the server refusing the request
		// outright; resending the same bytes cannot succeed.
		if code != "" {
			return fmt.Errorf("%w: %s: %s", ErrRejected, code, errResp.Error.Message)
		}
		return fmt.Errorf("%w: HTTP %d: %s", ErrRejected, status, string(body))
	}
	if code != "" {
		return &errResp.Error
	}
	return fmt.Errorf("HTTP %d: %s", status, string(body))
}
