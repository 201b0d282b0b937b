package syncclient

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Event names delivered by Events.
const (
	EventConnected = "connected"
	EventChanged   = "changed"
)

// Events opens the server-sent event stream for a list and delivers event
// names on the returned channel. The server sends "connected" once right
// after subscribing and a content-free "changed" whenever any todo in the
// list is created or updated. The channel closes when the stream ends for
// any reason (server gone, context cancelled); reconnecting is the
// caller's job.
func (c *Client) Events(ctx context.Context, listID string) (<-chan string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/v1/lists/%s/events", c.BaseURL, listID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.UserID)
	req.Header.Set("Accept", "text/event-stream")

	// The stream stays open indefinitely, so it must not inherit the
	// request timeout of the regular client.
	stream := &http.Client{Transport: c.HTTP.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.mapError(resp.StatusCode, nil)
	}

	events := make(chan string, 8)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		var name string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case line == "" && name != "":
				select {
				case events <- name:
				case <-ctx.Done():
					return
				}
				name = ""
			}
		}
	}()

	return events, nil
}
