package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/NicolasHaas/chatrelay/pkg/protocol"
	"github.com/google/uuid"
)

var errPeerClosed = errors.New("server: peer closed")

// Transport is one accepted bidirectional message stream.
type Transport interface {
	// ReadPayload blocks for the next encoded message. Any error ends the
	// connection; decoding is left to the caller.
	ReadPayload() ([]byte, error)
	// WritePayload writes one encoded message, failing after deadline.
	WritePayload(payload []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}

// Peer is the connection handle the registry hands to the broadcaster.
// Writes are serialized so concurrent broadcasts never interleave frames.
type Peer struct {
	id           string
	transport    Transport
	writeTimeout time.Duration

	writeMu sync.Mutex
	closed  atomic.Bool
}

func newPeer(t Transport, writeTimeout time.Duration) *Peer {
	return &Peer{
		id:           uuid.NewString(),
		transport:    t,
		writeTimeout: writeTimeout,
	}
}

// ID returns the connection id used in logs.
func (p *Peer) ID() string { return p.id }

// RemoteAddr returns the peer's network address.
func (p *Peer) RemoteAddr() string { return p.transport.RemoteAddr() }

// Send writes an encoded message. A failed write leaves the stream in an
// unknown state, so the peer is closed and its session tears down.
func (p *Peer) Send(payload []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.sendLocked(payload)
}

// SendMessage encodes and writes msg.
func (p *Peer) SendMessage(msg *protocol.Message) error {
	payload, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return p.Send(payload)
}

// exclusive runs fn with the write lock held. fn's send callback writes
// without re-locking, so nothing else can reach the peer in between.
func (p *Peer) exclusive(fn func(send func(*protocol.Message) error) error) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return fn(func(msg *protocol.Message) error {
		payload, err := protocol.Encode(msg)
		if err != nil {
			return err
		}
		return p.sendLocked(payload)
	})
}

func (p *Peer) sendLocked(payload []byte) error {
	if p.closed.Load() {
		return errPeerClosed
	}
	if err := p.transport.WritePayload(payload, time.Now().Add(p.writeTimeout)); err != nil {
		_ = p.Close()
		return err
	}
	return nil
}

// Read blocks for the next encoded message from the peer.
func (p *Peer) Read() ([]byte, error) {
	return p.transport.ReadPayload()
}

// SetReadDeadline bounds the next Read. A zero time clears it.
func (p *Peer) SetReadDeadline(t time.Time) error {
	return p.transport.SetReadDeadline(t)
}

// Close closes the underlying transport. Safe to call more than once.
func (p *Peer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.transport.Close()
}

// Closed reports whether Close has been called.
func (p *Peer) Closed() bool { return p.closed.Load() }

// tcpTransport frames messages over a stream connection with the protocol
// length prefix.
type tcpTransport struct {
	conn net.Conn
}

func newTCPTransport(conn net.Conn) *tcpTransport {
	return &tcpTransport{conn: conn}
}

func (t *tcpTransport) ReadPayload() ([]byte, error) {
	return protocol.ReadFrame(t.conn)
}

func (t *tcpTransport) WritePayload(payload []byte, deadline time.Time) error {
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("server: set write deadline: %w", err)
	}
	return protocol.WriteFrame(t.conn, payload)
}

func (t *tcpTransport) SetReadDeadline(d time.Time) error {
	return t.conn.SetReadDeadline(d)
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

// isClosedErr reports errors that mean the peer went away rather than
// something worth logging loudly.
func isClosedErr(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, errPeerClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
