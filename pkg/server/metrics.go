package server

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks relay runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime connections accepted (TCP + WebSocket)
	ActiveConnections atomic.Int64 // currently open connections, identified or not
	IdentifySuccess   atomic.Int64
	IdentifyFailed    atomic.Int64 // rejected or malformed handshakes
	TotalDisconnects  atomic.Int64 // teardowns of identified sessions

	// Traffic counters
	PublicMessages atomic.Int64 // PUBLIC_TEXT relayed
	StatusChanges  atomic.Int64
	RoomJoins      atomic.Int64
	RoomLeaves     atomic.Int64 // explicit LEAVE_ROOM and teardown leaves
	DecodeErrors   atomic.Int64 // malformed frames dropped in the active loop
	RateLimited    atomic.Int64 // PUBLIC_TEXT dropped by the per-session limiter

	// Fan-out counters
	Broadcasts   atomic.Int64
	Deliveries   atomic.Int64 // individual successful sends
	SendFailures atomic.Int64
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	TotalConnections  int64 `json:"total_connections"`
	ActiveConnections int64 `json:"active_connections"`
	IdentifySuccess   int64 `json:"identify_success"`
	IdentifyFailed    int64 `json:"identify_failed"`
	TotalDisconnects  int64 `json:"total_disconnects"`

	PublicMessages int64 `json:"public_messages"`
	StatusChanges  int64 `json:"status_changes"`
	RoomJoins      int64 `json:"room_joins"`
	RoomLeaves     int64 `json:"room_leaves"`
	DecodeErrors   int64 `json:"decode_errors"`
	RateLimited    int64 `json:"rate_limited"`

	Broadcasts   int64 `json:"broadcasts"`
	Deliveries   int64 `json:"deliveries"`
	SendFailures int64 `json:"send_failures"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		TotalConnections:  m.TotalConnections.Load(),
		ActiveConnections: m.ActiveConnections.Load(),
		IdentifySuccess:   m.IdentifySuccess.Load(),
		IdentifyFailed:    m.IdentifyFailed.Load(),
		TotalDisconnects:  m.TotalDisconnects.Load(),
		PublicMessages:    m.PublicMessages.Load(),
		StatusChanges:     m.StatusChanges.Load(),
		RoomJoins:         m.RoomJoins.Load(),
		RoomLeaves:        m.RoomLeaves.Load(),
		DecodeErrors:      m.DecodeErrors.Load(),
		RateLimited:       m.RateLimited.Load(),
		Broadcasts:        m.Broadcasts.Load(),
		Deliveries:        m.Deliveries.Load(),
		SendFailures:      m.SendFailures.Load(),
	}
}

// LogSummary writes a metrics summary to log.
func (m *Metrics) LogSummary(log *slog.Logger) {
	s := m.Snapshot()
	log.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"public_msgs", s.PublicMessages,
		"broadcasts", s.Broadcasts,
		"send_failures", s.SendFailures,
	)
}

// RunPeriodicLog logs a summary every interval until ctx is done.
func (m *Metrics) RunPeriodicLog(ctx context.Context, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.LogSummary(log)
		}
	}
}
