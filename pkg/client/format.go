package client

import (
	"fmt"
	"sort"
	"strings"

	"github.com/NicolasHaas/chatrelay/pkg/protocol"
)

// Describe renders a server message as one line for a terminal.
func Describe(msg *protocol.Message) string {
	switch msg.Type {
	case protocol.TypePublicTextFrom:
		return fmt.Sprintf("%s: %s", msg.Username, msg.Text)
	case protocol.TypeNewStatus:
		return fmt.Sprintf("* %s is now %s", msg.Username, msg.Status)
	case protocol.TypeJoinedRoom:
		return fmt.Sprintf("* %s joined %s", msg.Username, msg.RoomName)
	case protocol.TypeLeftRoom:
		return fmt.Sprintf("* %s left %s", msg.Username, msg.RoomName)
	case protocol.TypeDisconnected:
		return fmt.Sprintf("* %s disconnected", msg.Username)
	case protocol.TypeUserList:
		names := make([]string, 0, len(msg.Users))
		for name := range msg.Users {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s (%s)", name, msg.Users[name]))
		}
		return fmt.Sprintf("users: %s", strings.Join(parts, ", "))
	case protocol.TypeResponse:
		line := fmt.Sprintf("! %s: %s", msg.Operation, msg.Result)
		if msg.RoomName != "" {
			line += " [" + msg.RoomName + "]"
		}
		if msg.Detail != "" {
			line += " - " + msg.Detail
		}
		return line
	default:
		return fmt.Sprintf("? %s", msg.Type)
	}
}
