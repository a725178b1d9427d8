package module

import (
	"errors"
	"fmt"

	"github.com/dshills/mailhook/internal/session"
)

// Kind tags the two module variants.
type Kind int

const (
	// KindValidation modules veto or alter a transaction at checkpoints.
	KindValidation Kind = iota
	// KindEvent modules observe lifecycle events; they cannot veto.
	KindEvent
)

// String returns the kind name used in manifests and logs.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// ParseKind parses a manifest kind string.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "validation":
		return KindValidation, nil
	case "event":
		return KindEvent, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Checkpoint is a fixed point in the transaction lifecycle where validation
// modules may inspect and reject.
type Checkpoint int

const (
	CheckpointConnect Checkpoint = iota
	CheckpointStartTLS
	CheckpointMailFrom
	CheckpointData
)

// String returns the checkpoint name used in manifests and logs.
func (c Checkpoint) String() string {
	switch c {
	case CheckpointConnect:
		return "connect"
	case CheckpointStartTLS:
		return "starttls"
	case CheckpointMailFrom:
		return "mailfrom"
	case CheckpointData:
		return "data"
	default:
		return "unknown"
	}
}

// Event is a lifecycle event kind. The enumeration is closed: the dispatcher
// handles every kind explicitly and there is no unknown-event fallback.
type Event int

const (
	EventConnectionOpened Event = iota
	EventConnectionClosed
	EventDeliveryAttempt
	EventDeliverySuccess
	EventDeliveryFailure
)

// String returns the event name used in logs and Lua emit handlers.
func (e Event) String() string {
	switch e {
	case EventConnectionOpened:
		return "connection_opened"
	case EventConnectionClosed:
		return "connection_closed"
	case EventDeliveryAttempt:
		return "delivery_attempt"
	case EventDeliverySuccess:
		return "delivery_success"
	case EventDeliveryFailure:
		return "delivery_failure"
	default:
		return "unknown"
	}
}

// Events lists every lifecycle event kind in a stable order.
func Events() []Event {
	return []Event{
		EventConnectionOpened,
		EventConnectionClosed,
		EventDeliveryAttempt,
		EventDeliverySuccess,
		EventDeliveryFailure,
	}
}

// InitFunc is a module's initialization entry point. It receives the ordered
// configuration arguments supplied for the module and runs exactly once per
// process lifetime, before any checkpoint or event call. A nonzero return
// aborts loading of that module only.
type InitFunc func(args []string) int

// CheckpointFunc is a validation entry point: 0 = pass, nonzero = reject.
type CheckpointFunc func(ctx *session.Context) int

// EmitFunc is an event module's emission entry point. Its return value is
// observed for diagnostics only.
type EmitFunc func(ev Event, ctx *session.Context) int

// Checkpoints holds a validation module's entry points. Unimplemented
// checkpoints are nil and treated as automatic pass.
type Checkpoints struct {
	Connect  CheckpointFunc
	StartTLS CheckpointFunc
	MailFrom CheckpointFunc
	Data     CheckpointFunc
}

// For returns the entry point for a checkpoint, or nil when unimplemented.
func (c Checkpoints) For(cp Checkpoint) CheckpointFunc {
	switch cp {
	case CheckpointConnect:
		return c.Connect
	case CheckpointStartTLS:
		return c.StartTLS
	case CheckpointMailFrom:
		return c.MailFrom
	case CheckpointData:
		return c.Data
	default:
		return nil
	}
}

// Descriptor errors.
var (
	ErrUnknownKind    = errors.New("module: unknown kind")
	ErrMissingName    = errors.New("module: name is required")
	ErrMissingEmit    = errors.New("module: event module requires an emit entry point")
	ErrEmitOnNonEvent = errors.New("module: validation module must not declare emit")
)

// Descriptor is the fixed-shape declaration a module exports. Exactly one of
// the two variants applies: validation descriptors carry Checkpoints, event
// descriptors carry Emit.
type Descriptor struct {
	Kind Kind
	Name string
	Init InitFunc

	// Validation variant.
	Checkpoints Checkpoints

	// Event variant.
	Emit EmitFunc
}

// Validate checks the descriptor's shape against its variant.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return ErrMissingName
	}
	switch d.Kind {
	case KindValidation:
		if d.Emit != nil {
			return fmt.Errorf("%w: %s", ErrEmitOnNonEvent, d.Name)
		}
	case KindEvent:
		if d.Emit == nil {
			return fmt.Errorf("%w: %s", ErrMissingEmit, d.Name)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, d.Kind)
	}
	return nil
}
