package api

import (
	"sync/atomic"
	"time"
)

// Metrics collects in-memory server metrics using atomic counters.
type Metrics struct {
	startTime    time.Time
	requests     atomic.Int64
	serverErrors atomic.Int64
	clientErrors atomic.Int64
	todoWrites   atomic.Int64
	syncRequests atomic.Int64
	notifies     atomic.Int64
}

// MetricsSnapshot is a point-in-time view of server metrics.
type MetricsSnapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Requests      int64   `json:"requests"`
	ServerErrors  int64   `json:"server_errors"`
	ClientErrors  int64   `json:"client_errors"`
	TodoWrites    int64   `json:"todo_writes"`
	SyncRequests  int64   `json:"sync_requests"`
	Notifies      int64   `json:"notifies"`
}

// NewMetrics creates a new Metrics instance with the current time as start.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordRequest increments the total request counter.
func (m *Metrics) RecordRequest() {
	m.requests.Add(1)
}

// RecordError increments the server error (5xx) counter.
func (m *Metrics) RecordError() {
	m.serverErrors.Add(1)
}

// RecordClientError increments the client error (4xx) counter.
func (m *Metrics) RecordClientError() {
	m.clientErrors.Add(1)
}

// RecordTodoWrite increments the accepted write counter.
func (m *Metrics) RecordTodoWrite() {
	m.todoWrites.Add(1)
}

// RecordSyncRequest increments the delta-sync request counter.
func (m *Metrics) RecordSyncRequest() {
	m.syncRequests.Add(1)
}

// RecordNotify increments the change-notification counter.
func (m *Metrics) RecordNotify() {
	m.notifies.Add(1)
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		UptimeSeconds: time.Since(m.startTime).Seconds(),
		Requests:      m.requests.Load(),
		ServerErrors:  m.serverErrors.Load(),
		ClientErrors:  m.clientErrors.Load(),
		TodoWrites:    m.todoWrites.Load(),
		SyncRequests:  m.syncRequests.Load(),
		Notifies:      m.notifies.Load(),
	}
}
