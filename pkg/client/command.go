package client

import (
	"errors"
	"strings"

	"github.com/NicolasHaas/chatrelay/pkg/model"
	"github.com/NicolasHaas/chatrelay/pkg/protocol"
)

// ErrQuit is returned by ParseCommand for /quit.
var ErrQuit = errors.New("quit")

// Usage lists the commands ParseCommand understands.
const Usage = `commands:
  /status ACTIVE|AWAY|BUSY   change presence
  /users                     list connected users
  /join ROOM                 join a room
  /leave ROOM                leave a room
  /quit                      disconnect
anything else is sent to everyone`

// ParseCommand turns one input line into the message to send. Lines not
// starting with "/" are public text. A nil message with a nil error means
// there is nothing to send.
func ParseCommand(line string) (*protocol.Message, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	if !strings.HasPrefix(line, "/") {
		return &protocol.Message{Type: protocol.TypePublicText, Text: line}, nil
	}

	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/status":
		status, err := model.ParseStatus(strings.ToUpper(arg))
		if err != nil {
			return nil, err
		}
		return &protocol.Message{Type: protocol.TypeStatus, Status: string(status)}, nil
	case "/users":
		return &protocol.Message{Type: protocol.TypeUserList}, nil
	case "/join":
		if err := model.ValidateRoomName(arg); err != nil {
			return nil, err
		}
		return &protocol.Message{Type: protocol.TypeJoinRoom, RoomName: arg}, nil
	case "/leave":
		if err := model.ValidateRoomName(arg); err != nil {
			return nil, err
		}
		return &protocol.Message{Type: protocol.TypeLeaveRoom, RoomName: arg}, nil
	case "/quit":
		return nil, ErrQuit
	default:
		return nil, errors.New("unknown command " + cmd + "\n" + Usage)
	}
}
