// Package address provides the minimal RFC 5321 mailbox syntax checks the
// sender mutator relies on.
package address

import (
	"errors"
	"strings"
)

// Mailbox is an email address split into local-part and domain.
type Mailbox struct {
	LocalPart string
	Domain    string
}

// String returns the mailbox as "local-part@domain".
func (m Mailbox) String() string {
	if m.LocalPart == "" && m.Domain == "" {
		return ""
	}
	return m.LocalPart + "@" + m.Domain
}

// IsZero reports whether the mailbox is empty.
func (m Mailbox) IsZero() bool {
	return m.LocalPart == "" && m.Domain == ""
}

// Parse errors.
var (
	ErrEmptyAddress  = errors.New("address: empty address")
	ErrMissingAt     = errors.New("address: missing @")
	ErrBadLocalPart  = errors.New("address: invalid local-part")
	ErrBadDomain     = errors.New("address: invalid domain")
	ErrLocalTooLong  = errors.New("address: local-part exceeds 64 octets")
	ErrDomainTooLong = errors.New("address: domain exceeds 255 octets")
)

// ParseMailbox parses "local-part@domain". Angle brackets are not accepted
// here; use ParsePath for bracketed forms.
func ParseMailbox(s string) (Mailbox, error) {
	if s == "" {
		return Mailbox{}, ErrEmptyAddress
	}

	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return Mailbox{}, ErrMissingAt
	}

	local, domain := s[:at], s[at+1:]
	if err := checkLocalPart(local); err != nil {
		return Mailbox{}, err
	}
	if err := checkDomain(domain); err != nil {
		return Mailbox{}, err
	}

	return Mailbox{LocalPart: local, Domain: domain}, nil
}

// ParsePath parses a forward or reverse path: "<a@b>", "a@b", or "<>".
// The null path "<>" parses to a zero Mailbox with no error; it is how a
// plugin sets the null sender.
func ParsePath(s string) (Mailbox, error) {
	s = strings.TrimSpace(s)
	if s == "<>" || s == "" {
		return Mailbox{}, nil
	}
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		s = s[1 : len(s)-1]
	}
	return ParseMailbox(s)
}

func checkLocalPart(local string) error {
	if len(local) > 64 {
		return ErrLocalTooLong
	}
	if local[0] == '.' || local[len(local)-1] == '.' || strings.Contains(local, "..") {
		return ErrBadLocalPart
	}
	for _, r := range local {
		if !isAtext(r) && r != '.' {
			return ErrBadLocalPart
		}
	}
	return nil
}

func checkDomain(domain string) error {
	if len(domain) > 255 {
		return ErrDomainTooLong
	}
	for _, label := range strings.Split(domain, ".") {
		if label == "" {
			return ErrBadDomain
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return ErrBadDomain
		}
		for _, r := range label {
			if !isAlnum(r) && r != '-' {
				return ErrBadDomain
			}
		}
	}
	return nil
}

// isAtext reports whether r is an RFC 5321 atext character.
func isAtext(r rune) bool {
	if isAlnum(r) {
		return true
	}
	switch r {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '/', '=', '?', '^', '_', '`', '{', '|', '}', '~':
		return true
	}
	return false
}

func isAlnum(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}
