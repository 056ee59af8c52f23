// Package model defines the core domain types for the chat relay.
package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Status is a client's self-reported availability.
type Status string

const (
	StatusActive Status = "ACTIVE" // Default on successful identification
	StatusAway   Status = "AWAY"
	StatusBusy   Status = "BUSY"
)

var ErrInvalidStatus = errors.New("status must be one of ACTIVE, AWAY, BUSY")

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusAway, StatusBusy:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a wire value to a Status. Matching is exact: "away" is
// not a valid status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

const MaxRoomNameLength = 16

var ErrRoomNameEmpty = errors.New("room name must not be empty")
var ErrRoomNameTooLong = fmt.Errorf("room name must not exceed %d characters", MaxRoomNameLength)
var ErrRoomNameUnprintable = errors.New("room name must contain only printable characters")

// ValidateRoomName checks that a room name is 1-16 printable characters.
func ValidateRoomName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrRoomNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLength {
		return ErrRoomNameTooLong
	}
	if strings.IndexFunc(name, func(r rune) bool { return !unicode.IsPrint(r) }) >= 0 {
		return ErrRoomNameUnprintable
	}
	return nil
}
