package model

import "fmt"

// MaxUsernameLength is measured in bytes of the UTF-8 encoding.
const MaxUsernameLength = 8

var ErrUsernameTooLong = fmt.Errorf("username must not exceed %d bytes", MaxUsernameLength)

// ValidateUsername checks that a username fits in 8 bytes. Any shorter
// string is accepted, the empty one included.
func ValidateUsername(name string) error {
	if len(name) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	return nil
}

// Session is the in-memory view of one identified client.
type Session struct {
	Username string
	Status   Status
	Rooms    []string
}
