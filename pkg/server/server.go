// Package server implements the chat relay: the client registry, the
// per-connection session state machine and the broadcast fan-out.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
)

// Server is the chat relay server.
type Server struct {
	cfg         Config
	log         *slog.Logger
	registry    *Registry
	broadcaster *Broadcaster
	metrics     *Metrics

	listener   net.Listener
	wsListener net.Listener
	wsServer   *http.Server
	mxListener net.Listener
	mxServer   *http.Server

	ctx    context.Context
	cancel context.CancelFunc

	// Every open connection, identified or not, so shutdown can close them.
	connMu   sync.Mutex
	conns    map[*Peer]struct{}
	sessions sync.WaitGroup
}

// New creates a new Server instance. A nil logger uses slog.Default().
func New(cfg Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	reg := NewRegistry()
	metrics := NewMetrics()
	return &Server{
		cfg:         cfg,
		log:         log,
		registry:    reg,
		broadcaster: NewBroadcaster(reg, metrics, cfg.FanoutWorkers, log),
		metrics:     metrics,
		ctx:         ctx,
		cancel:      cancel,
		conns:       make(map[*Peer]struct{}),
	}
}

// Registry returns the client registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Addr returns the TCP listen address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// WebSocketAddr returns the WebSocket gateway address, or nil if disabled.
func (s *Server) WebSocketAddr() net.Addr {
	if s.wsListener == nil {
		return nil
	}
	return s.wsListener.Addr()
}

// MetricsAddr returns the metrics HTTP address, or nil if disabled.
func (s *Server) MetricsAddr() net.Addr {
	if s.mxListener == nil {
		return nil
	}
	return s.mxListener.Addr()
}

func (s *Server) trackConn(p *Peer) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conns[p] = struct{}{}
	s.sessions.Add(1)
	return true
}

func (s *Server) untrackConn(p *Peer) {
	s.connMu.Lock()
	delete(s.conns, p)
	s.connMu.Unlock()
	s.sessions.Done()
}

func (s *Server) closeConns() {
	s.connMu.Lock()
	peers := make([]*Peer, 0, len(s.conns))
	for p := range s.conns {
		peers = append(peers, p)
	}
	s.connMu.Unlock()

	for _, p := range peers {
		_ = p.Close()
	}
}
