// Package protocol defines the chat relay wire messages and their framing.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is the byte size of the frame length prefix.
	HeaderSize = 4

	// MaxFrameSize is the maximum JSON payload size (64KB).
	MaxFrameSize = 65536
)

var ErrFrameTooLarge = errors.New("protocol: frame too large")

// DecodeError reports a frame whose payload is not a valid message. The
// stream itself is still in sync, so callers may keep reading.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "protocol: decode: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err (or anything it wraps) is a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Encode marshals a message to its JSON payload.
func Encode(msg *Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal: %w", err)
	}
	if len(data) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}
	return data, nil
}

// Decode unmarshals a JSON payload. Any failure is a *DecodeError.
func Decode(data []byte) (*Message, error) {
	msg := &Message{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return msg, nil
}

// ErrNotIdentify is returned by DecodeIdentify for a well-formed message
// that is not {type: IDENTIFY, username: string}.
var ErrNotIdentify = errors.New("protocol: not an IDENTIFY message with a username")

// DecodeIdentify decodes a handshake payload and returns its username. An
// absent or null username is ErrNotIdentify; an empty string is a username.
// Malformed JSON is a *DecodeError.
func DecodeIdentify(data []byte) (string, error) {
	var aux struct {
		Type     Type    `json:"type"`
		Username *string `json:"username"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return "", &DecodeError{Err: err}
	}
	if aux.Type != TypeIdentify || aux.Username == nil {
		return "", ErrNotIdentify
	}
	return *aux.Username, nil
}

// EncodeIdentify builds a handshake payload. Unlike Encode it always
// carries the username field, so an empty username survives the trip.
func EncodeIdentify(username string) ([]byte, error) {
	data, err := json.Marshal(struct {
		Type     Type   `json:"type"`
		Username string `json:"username"`
	}{TypeIdentify, username})
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal: %w", err)
	}
	return data, nil
}

// WriteFrame writes an already encoded payload with its length prefix.
// Format: [4-byte big-endian length][JSON payload]
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload))) //nolint:gosec // length already bounds-checked above
	copy(buf[HeaderSize:], payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("protocol: write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed payload. Errors here leave the stream
// unusable.
func ReadFrame(r io.Reader) ([]byte, error) {
	lenBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("protocol: read length: %w", err)
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("protocol: read payload: %w", err)
	}
	return data, nil
}

// WriteMessage encodes and writes one framed message.
func WriteMessage(w io.Writer, msg *Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	return WriteFrame(w, data)
}

// ReadMessage reads one framed message. A well-framed but malformed payload
// yields a *DecodeError; anything else is a transport error. A clean close
// between frames yields io.EOF.
func ReadMessage(r io.Reader) (*Message, error) {
	data, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
