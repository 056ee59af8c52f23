package server

import (
	"errors"

	"github.com/NicolasHaas/chatrelay/pkg/model"
	"github.com/NicolasHaas/chatrelay/pkg/protocol"
)

// handleMessage dispatches one message received in the Active state.
// Unknown types are ignored without a reply, unlike during the handshake.
func (sess *session) handleMessage(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypePublicText:
		sess.handlePublicText(msg)

	case protocol.TypeStatus:
		sess.handleStatus(msg)

	case protocol.TypeUserList:
		sess.reply(protocol.UserList(sess.srv.registry.Users()))

	case protocol.TypeJoinRoom:
		sess.handleJoinRoom(msg)

	case protocol.TypeLeaveRoom:
		sess.handleLeaveRoom(msg)

	case protocol.TypeDisconnect:
		sess.teardown()

	default:
		sess.log.Debug("ignoring message", "type", msg.Type)
	}
}

func (sess *session) handlePublicText(msg *protocol.Message) {
	if sess.limiter != nil && !sess.limiter.Allow() {
		sess.srv.metrics.RateLimited.Add(1)
		sess.log.Warn("rate limit exceeded; discarding message")
		return
	}
	sess.srv.metrics.PublicMessages.Add(1)
	sess.srv.broadcaster.Broadcast(protocol.PublicTextFrom(sess.username, msg.Text))
}

func (sess *session) handleStatus(msg *protocol.Message) {
	srv := sess.srv
	status, err := model.ParseStatus(msg.Status)
	if err == nil {
		err = srv.registry.SetStatus(sess.username, status)
	}
	if err != nil {
		sess.log.Debug("status rejected", "status", msg.Status, "err", err)
		sess.reply(protocol.Response(protocol.OpStatus, protocol.ResultInvalidStatus))
		return
	}
	srv.metrics.StatusChanges.Add(1)
	srv.broadcaster.Broadcast(protocol.NewStatus(sess.username, status))
}

func (sess *session) handleJoinRoom(msg *protocol.Message) {
	srv := sess.srv
	room := msg.RoomName
	if model.ValidateRoomName(room) != nil || !srv.cfg.roomAllowed(room) {
		sess.replyRoom(protocol.OpJoinRoom, protocol.ResultInvalidRoom, room)
		return
	}

	if err := srv.registry.JoinRoom(sess.username, room); err != nil {
		result := protocol.ResultError
		if errors.Is(err, ErrAlreadyInRoom) {
			result = protocol.ResultAlreadyInRoom
		}
		sess.replyRoom(protocol.OpJoinRoom, result, room)
		return
	}

	srv.metrics.RoomJoins.Add(1)
	sess.log.Debug("joined room", "room", room)
	srv.broadcaster.Broadcast(protocol.JoinedRoom(room, sess.username))
}

func (sess *session) handleLeaveRoom(msg *protocol.Message) {
	srv := sess.srv
	room := msg.RoomName
	if err := srv.registry.LeaveRoom(sess.username, room); err != nil {
		result := protocol.ResultError
		if errors.Is(err, ErrNotInRoom) {
			result = protocol.ResultNotInRoom
		}
		sess.replyRoom(protocol.OpLeaveRoom, result, room)
		return
	}

	srv.metrics.RoomLeaves.Add(1)
	sess.log.Debug("left room", "room", room)
	srv.broadcaster.Broadcast(protocol.LeftRoom(room, sess.username))
}

func (sess *session) replyRoom(op, result, room string) {
	resp := protocol.Response(op, result)
	resp.RoomName = room
	sess.reply(resp)
}
