package api

import (
	"fmt"
	"net/http"
)

// SSE event names on the list event stream.
const (
	EventConnected = "connected"
	EventChanged   = "changed"
)

// handleListEvents handles GET /v1/lists/{id}/events. It holds the
// connection open as a server-sent event stream, emitting a connection
// confirmation immediately and a content-free "changed" event whenever any
// todo in the list is created or updated. The events carry no data on
// purpose: subscribers react by pulling a delta sync, so there is no second
// source of truth to drift from.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	listID := r.PathValue("id")

	if _, ok := s.store.GetList(listID); !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown list")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "streaming unsupported")
		return
	}

	ch := s.hub.Subscribe(listID)
	defer s.hub.Unsubscribe(listID, ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, EventConnected); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch:
			// A failed write silently drops this subscriber.
			if err := writeEvent(w, EventChanged); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent writes a single named SSE event with an empty payload.
func writeEvent(w http.ResponseWriter, name string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: {}\n\n", name)
	return err
}
