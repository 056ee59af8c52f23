package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Listen binds every configured listener. Bind failures are returned before
// any connection is accepted.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln

	if s.cfg.WebSocketAddr != "" {
		wln, err := net.Listen("tcp", s.cfg.WebSocketAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("server: listen websocket: %w", err)
		}
		s.wsListener = wln
		s.wsServer = &http.Server{
			Handler:           s.websocketHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	if s.cfg.MetricsAddr != "" {
		mln, err := net.Listen("tcp", s.cfg.MetricsAddr)
		if err != nil {
			_ = ln.Close()
			if s.wsListener != nil {
				_ = s.wsListener.Close()
			}
			return fmt.Errorf("server: listen metrics: %w", err)
		}
		s.mxListener = mln
		s.mxServer = &http.Server{
			Handler:           s.metricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return nil
}

// Serve accepts connections until ctx is cancelled or Shutdown is called,
// then closes every connection and waits for their sessions to finish.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server: Serve called before Listen")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.acceptLoop()
		return nil
	})
	if s.wsServer != nil {
		g.Go(func() error {
			s.log.Info("websocket gateway listening", "addr", s.wsListener.Addr().String())
			if err := s.wsServer.Serve(s.wsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server: websocket: %w", err)
			}
			return nil
		})
	}
	if s.mxServer != nil {
		g.Go(func() error {
			s.log.Info("metrics HTTP listening", "addr", s.mxListener.Addr().String())
			if err := s.mxServer.Serve(s.mxListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server: metrics: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		s.metrics.RunPeriodicLog(s.ctx, s.cfg.MetricsLogInterval, s.log)
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.ctx.Done():
		}
		s.Shutdown()
		return nil
	})

	s.log.Info("chat relay running",
		"addr", s.listener.Addr().String(),
		"local_ip", localIPv4(),
	)

	err := g.Wait()
	s.sessions.Wait()
	s.log.Info("chat relay stopped")
	return err
}

// Run binds the listeners and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Shutdown stops accepting and closes every open connection. Sessions tear
// down on their own goroutines; Serve returns once they are all gone.
func (s *Server) Shutdown() {
	if s.ctx.Err() != nil {
		return
	}
	s.cancel()
	s.log.Info("shutting down...")

	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.wsServer != nil {
		_ = s.wsServer.Close()
	}
	if s.mxServer != nil {
		_ = s.mxServer.Close()
	}
	s.closeConns()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Error("accept error", "err", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		go s.serveConn(newTCPTransport(conn))
	}
}

// localIPv4 returns the first non-loopback IPv4 address of the host, or an
// empty string.
func localIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}
