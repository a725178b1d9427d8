package session

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dshills/mailhook/internal/address"
	"github.com/dshills/mailhook/internal/boundary"
	"github.com/dshills/mailhook/internal/reply"
)

// Mutator errors. These report validation failures back to the plugin; they
// never abort the transaction by themselves.
var (
	ErrInvalidSender = errors.New("session: sender failed mailbox validation")
	ErrEmptyKey      = errors.New("session: store key must not be empty")
)

// TLSInfo describes an encrypted connection. It is absent if and only if the
// connection is unencrypted.
type TLSInfo struct {
	Protocol string
	Cipher   string
}

// Delivery describes an outbound delivery attempt. The engine attaches it
// before emitting delivery lifecycle events.
type Delivery struct {
	MessageID string
	Domain    string
	Server    string
	Error     string
	Attempts  uint32
}

// Context is the mutable state of one SMTP transaction.
type Context struct {
	id         string
	sender     address.Mailbox
	recipients []string
	data       []byte
	dataPhase  bool
	tls        *TLSInfo
	response   *reply.Reply
	store      map[string]string
	delivery   *Delivery

	tracker *boundary.Tracker
	closed  bool
}

// New creates a Context for a fresh transaction.
func New() *Context {
	return &Context{
		store:   make(map[string]string),
		tracker: boundary.NewTracker(),
	}
}

// Tracker returns the allocation tracker for this transaction's boundary
// values.
func (c *Context) Tracker() *boundary.Tracker {
	return c.tracker
}

func (c *Context) live() {
	if c.closed {
		panic("session: Context used after Close")
	}
}

// ID returns the transaction identifier, assigning a random 32-character hex
// token on first call if none exists yet. This assignment is the one mutating
// side effect among the getters; afterwards ID is idempotent.
//
// Ownership: the returned String is owned by the caller and must be released
// exactly once.
func (c *Context) ID() *boundary.String {
	c.live()
	if c.id == "" {
		u := uuid.New()
		c.id = hex.EncodeToString(u[:])
	}
	return boundary.NewString(c.tracker, c.id)
}

// Sender returns the current sender, or an empty String for the null sender.
//
// Ownership: the returned String is owned by the caller.
func (c *Context) Sender() *boundary.String {
	c.live()
	return boundary.NewString(c.tracker, c.sender.String())
}

// SetSender replaces the sender. The text is borrowed for the duration of the
// call and copied. "<>" or the empty string set the null sender; anything else
// must pass mailbox-syntax validation or the prior sender is retained and
// ErrInvalidSender is returned.
func (c *Context) SetSender(text string) error {
	c.live()
	mailbox, err := address.ParsePath(text)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSender, err)
	}
	c.sender = mailbox
	return nil
}

// Recipients returns a snapshot of the current recipients. Recipients are
// append-only from the engine's side and read-only to plugins.
//
// Ownership: the returned StringList is owned by the caller.
func (c *Context) Recipients() *boundary.StringList {
	c.live()
	return boundary.NewStringList(c.tracker, c.recipients)
}

// Data returns the raw message body, or an empty String if the DATA phase has
// not begun.
//
// Ownership: the returned String is owned by the caller. Use InDataPhase to
// distinguish an empty body from an absent one.
func (c *Context) Data() *boundary.String {
	c.live()
	if !c.dataPhase {
		return boundary.NewString(c.tracker, "")
	}
	return boundary.NewString(c.tracker, string(c.data))
}

// InDataPhase reports whether the DATA phase has begun.
func (c *Context) InDataPhase() bool {
	c.live()
	return c.dataPhase
}

// IsTLS reports whether the connection is encrypted.
func (c *Context) IsTLS() bool {
	c.live()
	return c.tls != nil
}

// TLSProtocol returns the negotiated protocol name, empty when IsTLS is false.
//
// Ownership: the returned String is owned by the caller.
func (c *Context) TLSProtocol() *boundary.String {
	c.live()
	if c.tls == nil {
		return boundary.NewString(c.tracker, "")
	}
	return boundary.NewString(c.tracker, c.tls.Protocol)
}

// TLSCipher returns the negotiated cipher name, empty when IsTLS is false.
//
// Ownership: the returned String is owned by the caller.
func (c *Context) TLSCipher() *boundary.String {
	c.live()
	if c.tls == nil {
		return boundary.NewString(c.tracker, "")
	}
	return boundary.NewString(c.tracker, c.tls.Cipher)
}

// Exists reports whether key is present in the auxiliary store.
func (c *Context) Exists(key string) bool {
	c.live()
	_, ok := c.store[key]
	return ok
}

// Get returns the value for key, or an empty String for a missing key.
// Callers consult Exists first to distinguish "absent" from "empty".
//
// Ownership: the returned String is owned by the caller.
func (c *Context) Get(key string) *boundary.String {
	c.live()
	return boundary.NewString(c.tracker, c.store[key])
}

// Set stores a key/value pair in the auxiliary store, replacing any existing
// value. The arguments are borrowed and copied. The store is scoped to this
// transaction and shared by every module operating on it.
func (c *Context) Set(key, value string) error {
	c.live()
	if key == "" {
		return ErrEmptyKey
	}
	c.store[key] = value
	return nil
}

// SetResponse overrides the default reply for the checkpoint currently
// executing. The text is borrowed and copied. Last writer wins. Fails when
// code is outside the valid reply range, leaving any prior response in place.
func (c *Context) SetResponse(code reply.Code, text string) error {
	c.live()
	r, err := reply.New(code, text)
	if err != nil {
		return err
	}
	c.response = &r
	return nil
}

// SetDataResponse overrides the DATA-phase reply with the default success
// code.
func (c *Context) SetDataResponse(text string) error {
	return c.SetResponse(reply.CodeOK, text)
}

// Response returns the active response override, if any.
func (c *Context) Response() (reply.Reply, bool) {
	c.live()
	if c.response == nil {
		return reply.Reply{}, false
	}
	return *c.response, true
}

// TakeResponse returns and clears the active response override. The
// dispatcher consumes the override once per checkpoint.
func (c *Context) TakeResponse() (reply.Reply, bool) {
	c.live()
	if c.response == nil {
		return reply.Reply{}, false
	}
	r := *c.response
	c.response = nil
	return r, true
}

// HasDelivery reports whether a delivery descriptor is attached.
func (c *Context) HasDelivery() bool {
	c.live()
	return c.delivery != nil
}

// DeliveryMessageID returns the spooled message id, empty without a delivery
// descriptor.
//
// Ownership: the returned String is owned by the caller.
func (c *Context) DeliveryMessageID() *boundary.String {
	return c.deliveryField(func(d *Delivery) string { return d.MessageID })
}

// DeliveryDomain returns the recipient domain being delivered to.
//
// Ownership: the returned String is owned by the caller.
func (c *Context) DeliveryDomain() *boundary.String {
	return c.deliveryField(func(d *Delivery) string { return d.Domain })
}

// DeliveryServer returns the resolved mail server, empty until one is chosen.
//
// Ownership: the returned String is owned by the caller.
func (c *Context) DeliveryServer() *boundary.String {
	return c.deliveryField(func(d *Delivery) string { return d.Server })
}

// DeliveryError returns the last delivery error, empty on success.
//
// Ownership: the returned String is owned by the caller.
func (c *Context) DeliveryError() *boundary.String {
	return c.deliveryField(func(d *Delivery) string { return d.Error })
}

// DeliveryAttempts returns the attempt count, 0 without a delivery descriptor.
func (c *Context) DeliveryAttempts() uint32 {
	c.live()
	if c.delivery == nil {
		return 0
	}
	return c.delivery.Attempts
}

func (c *Context) deliveryField(get func(*Delivery) string) *boundary.String {
	c.live()
	if c.delivery == nil {
		return boundary.NewString(c.tracker, "")
	}
	return boundary.NewString(c.tracker, get(c.delivery))
}

// AddRecipient appends a recipient. Engine-side only; the address must parse.
func (c *Context) AddRecipient(text string) error {
	c.live()
	mailbox, err := address.ParsePath(text)
	if err != nil {
		return err
	}
	if mailbox.IsZero() {
		return address.ErrEmptyAddress
	}
	c.recipients = append(c.recipients, mailbox.String())
	return nil
}

// BeginData marks the start of the DATA phase and attaches the raw body.
// Engine-side only.
func (c *Context) BeginData(data []byte) {
	c.live()
	c.dataPhase = true
	c.data = append(c.data[:0], data...)
}

// UpgradeTLS attaches the TLS descriptor after a successful STARTTLS.
// Engine-side only.
func (c *Context) UpgradeTLS(protocol, cipher string) {
	c.live()
	c.tls = &TLSInfo{Protocol: protocol, Cipher: cipher}
}

// SetDelivery attaches the delivery descriptor before delivery events.
// Engine-side only.
func (c *Context) SetDelivery(d Delivery) {
	c.live()
	c.delivery = &d
}

// Close concludes the transaction and releases the Context's owned state.
// Boundary values still live at Close are a plugin defect; Close reports how
// many leaked.
func (c *Context) Close() int {
	c.live()
	c.closed = true
	c.store = nil
	c.data = nil
	c.recipients = nil
	return c.tracker.Live()
}
