package server

import (
	"fmt"
	"net/http"
	"time"
)

// metricsHandler serves /metrics in Prometheus text exposition format and a
// /healthz probe.
func (s *Server) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}

	_, _ = fmt.Fprintf(w, "# HELP chatrelay_uptime_seconds Relay uptime in seconds.\n")
	_, _ = fmt.Fprintf(w, "# TYPE chatrelay_uptime_seconds gauge\n")
	_, _ = fmt.Fprintf(w, "chatrelay_uptime_seconds %f\n", uptime)

	write("chatrelay_sessions", "Identified clients currently registered.", "gauge",
		int64(s.registry.Len()))
	write("chatrelay_connections_active", "Open connections, identified or not.", "gauge",
		m.ActiveConnections.Load())
	write("chatrelay_connections_total", "Lifetime connections accepted.", "counter",
		m.TotalConnections.Load())
	write("chatrelay_identify_success_total", "Successful IDENTIFY handshakes.", "counter",
		m.IdentifySuccess.Load())
	write("chatrelay_identify_failed_total", "Rejected or malformed handshakes.", "counter",
		m.IdentifyFailed.Load())
	write("chatrelay_disconnects_total", "Session teardowns.", "counter",
		m.TotalDisconnects.Load())

	write("chatrelay_public_messages_total", "Public messages relayed.", "counter",
		m.PublicMessages.Load())
	write("chatrelay_status_changes_total", "Accepted status changes.", "counter",
		m.StatusChanges.Load())
	write("chatrelay_room_joins_total", "Room joins.", "counter",
		m.RoomJoins.Load())
	write("chatrelay_room_leaves_total", "Room leaves.", "counter",
		m.RoomLeaves.Load())
	write("chatrelay_decode_errors_total", "Malformed messages dropped.", "counter",
		m.DecodeErrors.Load())
	write("chatrelay_rate_limited_total", "Public messages dropped by rate limiting.", "counter",
		m.RateLimited.Load())

	write("chatrelay_broadcasts_total", "Broadcast fan-outs started.", "counter",
		m.Broadcasts.Load())
	write("chatrelay_deliveries_total", "Messages written to a client.", "counter",
		m.Deliveries.Load())
	write("chatrelay_send_failures_total", "Failed writes to a client.", "counter",
		m.SendFailures.Load())
}
