// Package client implements the chat relay client connection.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"syscall"

	"github.com/NicolasHaas/chatrelay/pkg/model"
	"github.com/NicolasHaas/chatrelay/pkg/protocol"
)

// EventHandler is a callback for messages pushed by the server.
type EventHandler func(msg *protocol.Message)

// RejectedError is returned when the server answers a request with a
// non-SUCCESS RESPONSE.
type RejectedError struct {
	Operation string
	Result    string
	Detail    string
}

func (e *RejectedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s rejected: %s (%s)", e.Operation, e.Result, e.Detail)
	}
	return fmt.Sprintf("%s rejected: %s", e.Operation, e.Result)
}

// Client is one connection to a chat relay server.
type Client struct {
	conn     net.Conn
	mu       sync.Mutex
	handler  EventHandler
	done     chan struct{}
	username string
	log      *slog.Logger
}

// Dial connects to the relay at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: connect: %w", err)
	}
	return &Client{
		conn: conn,
		done: make(chan struct{}),
		log:  slog.Default(),
	}, nil
}

// SetLogger replaces the default logger.
func (c *Client) SetLogger(log *slog.Logger) {
	c.log = log
}

// SetEventHandler sets the callback for incoming messages. Call it before
// StartReceiving.
func (c *Client) SetEventHandler(handler EventHandler) {
	c.handler = handler
}

// Username returns the name accepted by Identify.
func (c *Client) Username() string {
	return c.username
}

// Send sends a message to the server.
func (c *Client) Send(msg *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.WriteMessage(c.conn, msg)
}

// Identify performs the handshake. It must be the first call after Dial and
// must precede StartReceiving, since it reads the response synchronously.
// A rejection is returned as *RejectedError; the server closes the
// connection afterwards.
func (c *Client) Identify(username string) error {
	payload, err := protocol.EncodeIdentify(username)
	if err != nil {
		return err
	}
	c.mu.Lock()
	err = protocol.WriteFrame(c.conn, payload)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("client: send identify: %w", err)
	}

	msg, err := protocol.ReadMessage(c.conn)
	if err != nil {
		return fmt.Errorf("client: read identify response: %w", err)
	}
	if msg.Type != protocol.TypeResponse {
		return fmt.Errorf("client: unexpected %s during handshake", msg.Type)
	}
	if msg.Result != protocol.ResultSuccess {
		return &RejectedError{Operation: msg.Operation, Result: msg.Result, Detail: msg.Detail}
	}

	c.username = username
	return nil
}

// PublicText sends a chat line to everyone.
func (c *Client) PublicText(text string) error {
	return c.Send(&protocol.Message{Type: protocol.TypePublicText, Text: text})
}

// SetStatus asks the server to change this client's presence.
func (c *Client) SetStatus(status model.Status) error {
	return c.Send(&protocol.Message{Type: protocol.TypeStatus, Status: string(status)})
}

// RequestUsers asks for the user list. The reply arrives as a USER_LIST
// event.
func (c *Client) RequestUsers() error {
	return c.Send(&protocol.Message{Type: protocol.TypeUserList})
}

// JoinRoom asks to join room.
func (c *Client) JoinRoom(room string) error {
	return c.Send(&protocol.Message{Type: protocol.TypeJoinRoom, RoomName: room})
}

// LeaveRoom asks to leave room.
func (c *Client) LeaveRoom(room string) error {
	return c.Send(&protocol.Message{Type: protocol.TypeLeaveRoom, RoomName: room})
}

// Disconnect announces a graceful departure. The server closes the
// connection once its teardown is done.
func (c *Client) Disconnect() error {
	return c.Send(&protocol.Message{Type: protocol.TypeDisconnect})
}

// StartReceiving starts a goroutine that reads incoming messages and
// dispatches them to the event handler.
func (c *Client) StartReceiving() {
	go func() {
		defer close(c.done)
		for {
			msg, err := protocol.ReadMessage(c.conn)
			if err != nil {
				if protocol.IsDecodeError(err) {
					c.log.Warn("dropping malformed message", "err", err)
					continue
				}
				if isClosedErr(err) {
					c.log.Debug("connection closed")
					return
				}
				c.log.Error("read error", "err", err)
				return
			}
			if c.handler != nil {
				c.handler(msg)
			}
		}
	}()
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Done returns a channel that's closed when the connection is lost.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func isClosedErr(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET)
}
