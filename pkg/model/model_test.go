package model

import (
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid simple", "alice", nil},
		{"valid with numbers", "user123", nil},
		{"valid max length", strings.Repeat("a", MaxUsernameLength), nil},
		{"valid with space", "a b", nil},
		{"multibyte at limit", "ñoño", nil},
		{"empty", "", nil},
		{"too long", strings.Repeat("a", MaxUsernameLength+1), ErrUsernameTooLong},
		{"way too long", strings.Repeat("x", 65), ErrUsernameTooLong},
		{"five runes ten bytes", "ééééé", ErrUsernameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.input)
			if err != tt.wantErr {
				t.Errorf("ValidateUsername(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestStatusValid(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusActive, true},
		{StatusAway, true},
		{StatusBusy, true},
		{Status("away"), false},
		{Status(""), false},
		{Status("OFFLINE"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("Status(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    Status
		wantErr error
	}{
		{"ACTIVE", StatusActive, nil},
		{"AWAY", StatusAway, nil},
		{"BUSY", StatusBusy, nil},
		{"busy", "", ErrInvalidStatus},
		{"", "", ErrInvalidStatus},
		{"SLEEPING", "", ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if err != tt.wantErr {
				t.Fatalf("ParseStatus(%q) err = %v, want %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateRoomName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid", "lobby", nil},
		{"valid max length", strings.Repeat("r", MaxRoomNameLength), nil},
		{"empty", "", ErrRoomNameEmpty},
		{"blank", "   ", ErrRoomNameEmpty},
		{"too long", strings.Repeat("r", MaxRoomNameLength+1), ErrRoomNameTooLong},
		{"multibyte at limit", strings.Repeat("é", MaxRoomNameLength), nil},
		{"control character", "lob\x00by", ErrRoomNameUnprintable},
		{"newline", "lob\nby", ErrRoomNameUnprintable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateRoomName(tt.input); err != tt.wantErr {
				t.Errorf("ValidateRoomName(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
