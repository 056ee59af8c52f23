package protocol

import "github.com/NicolasHaas/chatrelay/pkg/model"

// Type names a wire message.
type Type string

// Client to server.
const (
	TypeIdentify   Type = "IDENTIFY"
	TypePublicText Type = "PUBLIC_TEXT"
	TypeStatus     Type = "STATUS"
	TypeUserList   Type = "USER_LIST" // also the server's reply
	TypeJoinRoom   Type = "JOIN_ROOM"
	TypeLeaveRoom  Type = "LEAVE_ROOM"
	TypeDisconnect Type = "DISCONNECT"
)

// Server to client.
const (
	TypeResponse       Type = "RESPONSE"
	TypePublicTextFrom Type = "PUBLIC_TEXT_FROM"
	TypeNewStatus      Type = "NEW_STATUS"
	TypeJoinedRoom     Type = "JOINED_ROOM"
	TypeLeftRoom       Type = "LEFT_ROOM"
	TypeDisconnected   Type = "DISCONNECTED"
)

// Operation values carried by RESPONSE messages.
const (
	OpIdentify  = "IDENTIFY"
	OpStatus    = "STATUS"
	OpJoinRoom  = "JOIN_ROOM"
	OpLeaveRoom = "LEAVE_ROOM"
	OpInvalid   = "INVALID"
)

// Result values carried by RESPONSE messages.
const (
	ResultSuccess           = "SUCCESS"
	ResultError             = "ERROR"
	ResultInvalidUsername   = "INVALID_USERNAME"
	ResultUserAlreadyExists = "USER_ALREADY_EXISTS"
	ResultInvalidStatus     = "INVALID_STATUS"
	ResultInvalidRoom       = "INVALID_ROOM"
	ResultAlreadyInRoom     = "ALREADY_IN_ROOM"
	ResultNotInRoom         = "NOT_IN_ROOM"
)

// Message is the flat record exchanged in both directions. Which fields are
// set depends on Type.
type Message struct {
	Type      Type                    `json:"type"`
	Username  string                  `json:"username,omitempty"`
	Text      string                  `json:"text,omitempty"`
	Status    string                  `json:"status,omitempty"`
	Operation string                  `json:"operation,omitempty"`
	Result    string                  `json:"result,omitempty"`
	Detail    string                  `json:"message,omitempty"`
	RoomName  string                  `json:"roomname,omitempty"`
	Users     map[string]model.Status `json:"users,omitempty"`
}

// Response builds a RESPONSE message.
func Response(operation, result string) *Message {
	return &Message{Type: TypeResponse, Operation: operation, Result: result}
}

// PublicTextFrom builds the broadcast form of a chat line.
func PublicTextFrom(username, text string) *Message {
	return &Message{Type: TypePublicTextFrom, Username: username, Text: text}
}

// NewStatus builds a presence change broadcast.
func NewStatus(username string, status model.Status) *Message {
	return &Message{Type: TypeNewStatus, Username: username, Status: string(status)}
}

// UserList builds the unicast reply to a USER_LIST request.
func UserList(users map[string]model.Status) *Message {
	return &Message{Type: TypeUserList, Users: users}
}

// JoinedRoom builds a room join broadcast.
func JoinedRoom(room, username string) *Message {
	return &Message{Type: TypeJoinedRoom, RoomName: room, Username: username}
}

// LeftRoom builds a room leave broadcast.
func LeftRoom(room, username string) *Message {
	return &Message{Type: TypeLeftRoom, RoomName: room, Username: username}
}

// Disconnected builds the teardown broadcast for username.
func Disconnected(username string) *Message {
	return &Message{Type: TypeDisconnected, Username: username}
}
