package client

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/NicolasHaas/chatrelay/pkg/logging"
	"github.com/NicolasHaas/chatrelay/pkg/model"
	"github.com/NicolasHaas/chatrelay/pkg/protocol"
	"github.com/NicolasHaas/chatrelay/pkg/server"
	"github.com/google/go-cmp/cmp"
)

const testTimeout = 3 * time.Second

func startServer(t *testing.T) string {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.MetricsLogInterval = 0
	srv := server.New(cfg, logging.Discard())
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv.Addr().String()
}

// connect dials, identifies and starts receiving into a channel.
func connect(t *testing.T, addr, username string) (*Client, <-chan *protocol.Message) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	c, err := Dial(ctx, addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	c.SetLogger(logging.Discard())

	if err := c.Identify(username); err != nil {
		t.Fatalf("Identify(%s): %v", username, err)
	}
	events := make(chan *protocol.Message, 16)
	c.SetEventHandler(func(msg *protocol.Message) { events <- msg })
	c.StartReceiving()
	return c, events
}

func next(t *testing.T, events <-chan *protocol.Message) *protocol.Message {
	t.Helper()
	select {
	case msg := <-events:
		return msg
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestClientConversation(t *testing.T) {
	addr := startServer(t)
	alice, aliceEvents := connect(t, addr, "alice")
	bob, bobEvents := connect(t, addr, "bob")

	if alice.Username() != "alice" {
		t.Fatalf("Username = %q", alice.Username())
	}

	if err := alice.PublicText("hello"); err != nil {
		t.Fatalf("PublicText: %v", err)
	}
	want := protocol.PublicTextFrom("alice", "hello")
	for _, events := range []<-chan *protocol.Message{aliceEvents, bobEvents} {
		if diff := cmp.Diff(want, next(t, events)); diff != "" {
			t.Fatalf("event (-want +got):\n%s", diff)
		}
	}

	if err := bob.SetStatus(model.StatusBusy); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	want = protocol.NewStatus("bob", model.StatusBusy)
	for _, events := range []<-chan *protocol.Message{aliceEvents, bobEvents} {
		if diff := cmp.Diff(want, next(t, events)); diff != "" {
			t.Fatalf("event (-want +got):\n%s", diff)
		}
	}

	if err := bob.JoinRoom("lobby"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if diff := cmp.Diff(protocol.JoinedRoom("lobby", "bob"), next(t, aliceEvents)); diff != "" {
		t.Fatalf("event (-want +got):\n%s", diff)
	}
	next(t, bobEvents)

	if err := bob.LeaveRoom("lobby"); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}
	if diff := cmp.Diff(protocol.LeftRoom("lobby", "bob"), next(t, aliceEvents)); diff != "" {
		t.Fatalf("event (-want +got):\n%s", diff)
	}
	next(t, bobEvents)

	if err := alice.RequestUsers(); err != nil {
		t.Fatalf("RequestUsers: %v", err)
	}
	wantUsers := protocol.UserList(map[string]model.Status{
		"alice": model.StatusActive,
		"bob":   model.StatusBusy,
	})
	if diff := cmp.Diff(wantUsers, next(t, aliceEvents)); diff != "" {
		t.Fatalf("users (-want +got):\n%s", diff)
	}

	if err := bob.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if diff := cmp.Diff(protocol.Disconnected("bob"), next(t, aliceEvents)); diff != "" {
		t.Fatalf("event (-want +got):\n%s", diff)
	}
	select {
	case <-bob.Done():
	case <-time.After(testTimeout):
		t.Fatal("bob's receive loop did not stop after DISCONNECT")
	}
}

func TestClientIdentifyRejected(t *testing.T) {
	addr := startServer(t)
	connect(t, addr, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	c, err := Dial(ctx, addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	err = c.Identify("alice")
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Identify: got %v, want *RejectedError", err)
	}
	if rejected.Result != protocol.ResultUserAlreadyExists {
		t.Fatalf("result = %s, want %s", rejected.Result, protocol.ResultUserAlreadyExists)
	}
}

func TestDialRefused(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	// Port 1 on loopback is essentially never listening.
	if _, err := Dial(ctx, "127.0.0.1:1"); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestIsClosedErr(t *testing.T) {
	reset := &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"closed conn", net.ErrClosed, true},
		{"reset", reset, true},
		{"lookalike text", errors.New("connection reset by peer"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isClosedErr(tt.err); got != tt.want {
				t.Errorf("isClosedErr(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
