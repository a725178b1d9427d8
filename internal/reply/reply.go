// Package reply models SMTP reply codes and the replies plugins may set on a
// transaction.
package reply

import (
	"errors"
	"fmt"
)

// Code is a three-digit SMTP reply code (RFC 5321 §4.2).
type Code int

// Reply codes used by the dispatcher and the built-in module. Plugins may set
// any code in the valid [200, 599] range.
const (
	CodeSystemStatus    Code = 211
	CodeServiceReady    Code = 220
	CodeServiceClosing  Code = 221
	CodeOK              Code = 250
	CodeStartMailInput  Code = 354
	CodeUnavailable     Code = 421
	CodeLocalError      Code = 451
	CodeBadSequence     Code = 503
	CodeActionNotTaken  Code = 550
	CodeExceededStorage Code = 552
	CodeTransactionFail Code = 554
)

// ErrCodeOutOfRange is returned when a plugin sets a reply code outside the
// valid SMTP range.
var ErrCodeOutOfRange = errors.New("reply: code outside valid range [200, 599]")

// Valid reports whether the code is inside the range the protocol allows for
// a reply.
func (c Code) Valid() bool {
	return c >= 200 && c <= 599
}

// Class returns the first digit of the code: 2, 3, 4, or 5 for valid codes.
func (c Code) Class() int {
	return int(c) / 100
}

// IsPositive reports whether the code signals success (2xx).
func (c Code) IsPositive() bool {
	return c.Class() == 2
}

// IsTransient reports whether the code signals a transient failure (4xx).
func (c Code) IsTransient() bool {
	return c.Class() == 4
}

// IsPermanent reports whether the code signals a permanent failure (5xx).
func (c Code) IsPermanent() bool {
	return c.Class() == 5
}

// Reply is a status line surfaced to the remote peer: a code and its text.
type Reply struct {
	Code Code
	Text string
}

// New builds a Reply, validating the code range.
func New(code Code, text string) (Reply, error) {
	if !code.Valid() {
		return Reply{}, fmt.Errorf("%w: %d", ErrCodeOutOfRange, code)
	}
	return Reply{Code: code, Text: text}, nil
}

// String formats the reply the way it appears on the wire, e.g.
// "421 shutting down".
func (r Reply) String() string {
	return fmt.Sprintf("%d %s", r.Code, r.Text)
}

// IsZero reports whether the reply is unset.
func (r Reply) IsZero() bool {
	return r.Code == 0 && r.Text == ""
}
