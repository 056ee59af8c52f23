package client

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/NicolasHaas/chatrelay/pkg/model"
	"github.com/NicolasHaas/chatrelay/pkg/protocol"
	"github.com/google/go-cmp/cmp"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    *protocol.Message
		wantErr error
	}{
		{"hello there", &protocol.Message{Type: protocol.TypePublicText, Text: "hello there"}, nil},
		{"  spaced  ", &protocol.Message{Type: protocol.TypePublicText, Text: "  spaced  "}, nil},
		{"", nil, nil},
		{"   ", nil, nil},
		{"/status away", &protocol.Message{Type: protocol.TypeStatus, Status: "AWAY"}, nil},
		{"/status BUSY", &protocol.Message{Type: protocol.TypeStatus, Status: "BUSY"}, nil},
		{"/status sleeping", nil, model.ErrInvalidStatus},
		{"/users", &protocol.Message{Type: protocol.TypeUserList}, nil},
		{"/join lobby", &protocol.Message{Type: protocol.TypeJoinRoom, RoomName: "lobby"}, nil},
		{"/join", nil, model.ErrRoomNameEmpty},
		{"/leave lobby", &protocol.Message{Type: protocol.TypeLeaveRoom, RoomName: "lobby"}, nil},
		{"/quit", nil, ErrQuit},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("message (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := ParseCommand("/dance"); err == nil {
		t.Fatal("unknown command should fail")
	}
}

func TestDescribe(t *testing.T) {
	withRoom := protocol.Response(protocol.OpJoinRoom, protocol.ResultAlreadyInRoom)
	withRoom.RoomName = "lobby"

	tests := []struct {
		msg  *protocol.Message
		want string
	}{
		{protocol.PublicTextFrom("alice", "hi"), "alice: hi"},
		{protocol.NewStatus("bob", model.StatusAway), "* bob is now AWAY"},
		{protocol.JoinedRoom("lobby", "bob"), "* bob joined lobby"},
		{protocol.LeftRoom("lobby", "bob"), "* bob left lobby"},
		{protocol.Disconnected("bob"), "* bob disconnected"},
		{
			protocol.UserList(map[string]model.Status{"bob": model.StatusBusy, "alice": model.StatusActive}),
			"users: alice (ACTIVE), bob (BUSY)",
		},
		{protocol.Response(protocol.OpStatus, protocol.ResultInvalidStatus), "! STATUS: INVALID_STATUS"},
		{withRoom, "! JOIN_ROOM: ALREADY_IN_ROOM [lobby]"},
	}
	for _, tt := range tests {
		if got := Describe(tt.msg); got != tt.want {
			t.Errorf("Describe(%s) = %q, want %q", tt.msg.Type, got, tt.want)
		}
	}
}

func TestBookmarkStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "servers.yaml")

	bs := NewBookmarkStore(path)
	if err := bs.Load(); err != nil {
		t.Fatalf("Load missing file: %v", err)
	}
	if len(bs.Bookmarks) != 0 {
		t.Fatalf("expected empty store, got %v", bs.Bookmarks)
	}

	if !bs.Add(Bookmark{Name: "home", Addr: "127.0.0.1:7000", Username: "alice"}) {
		t.Fatal("first Add should be new")
	}
	if bs.Add(Bookmark{Name: "home", Addr: "127.0.0.1:7001", Username: "alice"}) {
		t.Fatal("second Add with same name should replace")
	}
	now := time.Unix(1700000000, 0)
	if !bs.Touch("home", now) {
		t.Fatal("Touch: bookmark not found")
	}
	if bs.Touch("work", now) {
		t.Fatal("Touch: unexpected bookmark")
	}
	if err := bs.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := NewBookmarkStore(path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []Bookmark{{Name: "home", Addr: "127.0.0.1:7001", Username: "alice", LastUsed: now.Unix()}}
	if diff := cmp.Diff(want, loaded.Bookmarks); diff != "" {
		t.Fatalf("bookmarks (-want +got):\n%s", diff)
	}
	if b := loaded.Find("home"); b == nil || b.Addr != "127.0.0.1:7001" {
		t.Fatalf("Find = %+v", b)
	}
	if loaded.Find("work") != nil {
		t.Fatal("Find returned a missing bookmark")
	}
}
