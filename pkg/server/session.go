package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/NicolasHaas/chatrelay/pkg/protocol"
	"golang.org/x/time/rate"
)

type sessionState int

const (
	stateAwaitingIdentify sessionState = iota
	stateActive
	stateTerminated
)

func (st sessionState) String() string {
	switch st {
	case stateAwaitingIdentify:
		return "awaiting_identify"
	case stateActive:
		return "active"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// session owns one connection from accept to close. All of its state is
// touched only by the goroutine running serveConn.
type session struct {
	srv      *Server
	peer     *Peer
	state    sessionState
	username string
	limiter  *rate.Limiter
	log      *slog.Logger
}

// serveConn runs the whole lifecycle of one connection: handshake, active
// loop, teardown. It returns once the connection is closed.
func (s *Server) serveConn(t Transport) {
	peer := newPeer(t, s.cfg.WriteTimeout)
	if !s.trackConn(peer) {
		_ = peer.Close()
		return
	}
	defer s.untrackConn(peer)

	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)
	defer s.metrics.ActiveConnections.Add(-1)

	sess := &session{
		srv:   s,
		peer:  peer,
		state: stateAwaitingIdentify,
		log:   s.log.With("conn", peer.ID(), "remote", peer.RemoteAddr()),
	}
	if rl := s.cfg.RateLimit; rl.PerSecond > 0 {
		sess.limiter = rate.NewLimiter(rate.Limit(rl.PerSecond), rl.Burst)
	}
	defer sess.close()

	sess.log.Debug("new connection")
	if !sess.identify() {
		return
	}
	sess.run()
}

// identify handles the AwaitingIdentify state. It reads exactly one message
// and returns true only if the session is now Active.
func (sess *session) identify() bool {
	srv := sess.srv
	if d := srv.cfg.IdentifyTimeout; d > 0 {
		_ = sess.peer.SetReadDeadline(time.Now().Add(d))
	}

	payload, err := sess.peer.Read()
	if err != nil {
		srv.metrics.IdentifyFailed.Add(1)
		if isClosedErr(err) {
			sess.log.Debug("closed before identifying")
		} else {
			sess.log.Warn("handshake read failed", "err", err)
		}
		return false
	}
	_ = sess.peer.SetReadDeadline(time.Time{})

	username, err := protocol.DecodeIdentify(payload)
	if err != nil {
		srv.metrics.IdentifyFailed.Add(1)
		detail := "first message must be IDENTIFY with a username"
		if protocol.IsDecodeError(err) {
			detail = "malformed message"
		}
		sess.log.Warn("bad handshake", "err", err)
		sess.reply(invalidResponse(detail))
		return false
	}

	// Register and acknowledge under the peer's write lock so no broadcast
	// reaches the client ahead of its SUCCESS response.
	var regErr error
	sendErr := sess.peer.exclusive(func(send func(*protocol.Message) error) error {
		if regErr = srv.registry.Register(username, sess.peer); regErr != nil {
			return nil
		}
		resp := protocol.Response(protocol.OpIdentify, protocol.ResultSuccess)
		resp.Username = username
		return send(resp)
	})

	if regErr != nil {
		srv.metrics.IdentifyFailed.Add(1)
		resp := protocol.Response(protocol.OpIdentify, protocol.ResultInvalidUsername)
		switch {
		case errors.Is(regErr, ErrUsernameTaken):
			resp.Result = protocol.ResultUserAlreadyExists
			resp.Username = username
		default:
			resp.Detail = regErr.Error()
		}
		sess.log.Info("identify rejected", "user", username, "result", resp.Result)
		sess.reply(resp)
		return false
	}

	sess.username = username
	sess.state = stateActive
	sess.log = sess.log.With("user", sess.username)
	srv.metrics.IdentifySuccess.Add(1)
	if sendErr != nil {
		// The peer is already closed; the first read in run fails and the
		// session tears down normally.
		sess.log.Warn("identify response write failed", "err", sendErr)
	}
	sess.log.Info("client identified")
	return true
}

// run is the Active state loop.
func (sess *session) run() {
	for sess.state == stateActive {
		payload, err := sess.peer.Read()
		if err != nil {
			if isClosedErr(err) {
				sess.log.Debug("connection closed by peer")
			} else {
				sess.log.Warn("read error", "err", err)
			}
			return
		}
		msg, err := protocol.Decode(payload)
		if err != nil {
			sess.srv.metrics.DecodeErrors.Add(1)
			sess.log.Warn("dropping malformed message", "err", err)
			continue
		}
		sess.handleMessage(msg)
	}
}

// teardown leaves every room, unregisters and announces the disconnect, in
// that order. It runs at most once per session.
func (sess *session) teardown() {
	if sess.state != stateActive {
		return
	}
	sess.state = stateTerminated

	srv := sess.srv
	for _, room := range srv.registry.ClearRooms(sess.username) {
		srv.metrics.RoomLeaves.Add(1)
		srv.broadcaster.Broadcast(protocol.LeftRoom(room, sess.username))
	}
	srv.registry.Unregister(sess.username, sess.peer)
	srv.broadcaster.Broadcast(protocol.Disconnected(sess.username))
	srv.metrics.TotalDisconnects.Add(1)
	sess.log.Info("client disconnected")
}

// close moves the session to Terminated from any state and releases the
// connection.
func (sess *session) close() {
	sess.log.Debug("closing session", "state", sess.state)
	sess.teardown()
	sess.state = stateTerminated
	if err := sess.peer.Close(); err != nil && !isClosedErr(err) {
		sess.log.Debug("close error", "err", err)
	}
}

// reply sends msg to this session's client only.
func (sess *session) reply(msg *protocol.Message) {
	_ = sess.srv.broadcaster.Send(sess.peer, msg)
}

func invalidResponse(detail string) *protocol.Message {
	resp := protocol.Response(protocol.OpInvalid, protocol.ResultError)
	resp.Detail = detail
	return resp
}
