package address

import (
	"errors"
	"testing"
)

func TestParseMailbox(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"user@example.com", "user@example.com", false},
		{"first.last@sub.example.com", "first.last@sub.example.com", false},
		{"x+tag@example.com", "x+tag@example.com", false},
		{"", "", true},
		{"no-at-sign", "", true},
		{"@example.com", "", true},
		{"user@", "", true},
		{".user@example.com", "", true},
		{"user.@example.com", "", true},
		{"us..er@example.com", "", true},
		{"user@-bad.com", "", true},
		{"user@bad..com", "", true},
		{"us er@example.com", "", true},
	}

	for _, tt := range tests {
		m, err := ParseMailbox(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMailbox(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && m.String() != tt.want {
			t.Errorf("ParseMailbox(%q) = %q, want %q", tt.in, m.String(), tt.want)
		}
	}
}

func TestParsePath(t *testing.T) {
	m, err := ParsePath("<test@example.com>")
	if err != nil {
		t.Fatalf("ParsePath error = %v", err)
	}
	if m.String() != "test@example.com" {
		t.Errorf("ParsePath(<test@example.com>) = %q", m.String())
	}

	// Null path is valid and empty.
	m, err = ParsePath("<>")
	if err != nil {
		t.Fatalf("ParsePath(<>) error = %v", err)
	}
	if !m.IsZero() {
		t.Errorf("ParsePath(<>) = %q, want zero mailbox", m.String())
	}

	if _, err := ParsePath("<--->"); !errors.Is(err, ErrMissingAt) {
		t.Errorf("ParsePath(<--->) error = %v, want ErrMissingAt", err)
	}
}

func TestLocalPartLength(t *testing.T) {
	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	_, err := ParseMailbox(string(long) + "@example.com")
	if !errors.Is(err, ErrLocalTooLong) {
		t.Errorf("error = %v, want ErrLocalTooLong", err)
	}
}
