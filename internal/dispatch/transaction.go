package dispatch

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/dshills/mailhook/internal/module"
	"github.com/dshills/mailhook/internal/reply"
	"github.com/dshills/mailhook/internal/session"
)

// State is the dispatch state of one transaction.
type State int

const (
	// StateConnect - awaiting the connect checkpoint.
	StateConnect State = iota

	// StateStartTLS - connect passed; STARTTLS may run or be skipped.
	StateStartTLS

	// StateMailFrom - awaiting MAIL FROM; may be skipped.
	StateMailFrom

	// StateData - awaiting the DATA checkpoint.
	StateData

	// StateComplete - every checkpoint passed. Terminal.
	StateComplete

	// StateRejected - a module rejected. Terminal.
	StateRejected
)

// String returns a state name for logs.
func (s State) String() string {
	switch s {
	case StateConnect:
		return "connect"
	case StateStartTLS:
		return "starttls"
	case StateMailFrom:
		return "mailfrom"
	case StateData:
		return "data"
	case StateComplete:
		return "complete"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state accepts no further checkpoints.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateRejected
}

// Dispatch errors. These indicate a protocol-engine defect, not a plugin
// outcome: the engine owns checkpoint ordering.
var (
	ErrTerminal   = errors.New("dispatch: transaction already terminal")
	ErrOutOfOrder = errors.New("dispatch: checkpoint out of order")
)

// Result is the outcome of one checkpoint evaluation.
type Result struct {
	// Pass is true when every module passed.
	Pass bool

	// Reply is the status line the engine surfaces for this checkpoint: the
	// rejecting module's response, a passing module's override, or the
	// checkpoint default.
	Reply reply.Reply

	// RejectedBy names the module that rejected, empty on pass.
	RejectedBy string
}

// Transaction dispatches one SMTP transaction through the loaded modules.
// It is driven by the protocol engine strictly sequentially; it holds no
// locks.
type Transaction struct {
	reg   *module.Registry
	ctx   *session.Context
	state State
	log   *logrus.Logger
}

// Option configures a Transaction.
type Option func(*Transaction)

// WithLogger sets the diagnostics logger.
func WithLogger(log *logrus.Logger) Option {
	return func(t *Transaction) {
		t.log = log
	}
}

// NewTransaction creates a dispatcher over ctx for the modules in reg.
func NewTransaction(reg *module.Registry, ctx *session.Context, opts ...Option) *Transaction {
	t := &Transaction{
		reg:   reg,
		ctx:   ctx,
		state: StateConnect,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the current dispatch state.
func (t *Transaction) State() State {
	return t.state
}

// Context returns the transaction's Context.
func (t *Transaction) Context() *session.Context {
	return t.ctx
}

// checkpoint ordinals; a checkpoint may be skipped but never revisited.
func ordinal(cp module.Checkpoint) int {
	return int(cp)
}

func pending(s State) int {
	return int(s)
}

func next(cp module.Checkpoint) State {
	if cp == module.CheckpointData {
		return StateComplete
	}
	return State(ordinal(cp) + 1)
}

// Checkpoint evaluates every active validation module registered for cp, in
// registration order, short-circuiting on the first rejection. Modules that
// do not implement cp pass automatically. Any response override set on the
// Context is consumed here, so at most one response is active per checkpoint.
//
// On rejection, Context mutations made by modules that already ran persist.
func (t *Transaction) Checkpoint(cp module.Checkpoint) (Result, error) {
	if t.state.Terminal() {
		return Result{}, ErrTerminal
	}
	if ordinal(cp) < pending(t.state) {
		return Result{}, ErrOutOfOrder
	}

	for _, v := range t.reg.Validators() {
		fn := v.Checkpoints.For(cp)
		if fn == nil {
			continue
		}

		rc := t.invoke(v.Name, cp, fn)
		t.log.WithFields(logrus.Fields{
			"module":     v.Name,
			"checkpoint": cp.String(),
			"code":       rc,
		}).Debug("checkpoint evaluated")

		if rc != 0 {
			t.state = StateRejected
			r, ok := t.ctx.TakeResponse()
			if !ok {
				r = defaultRejection(cp)
			}
			t.log.WithFields(logrus.Fields{
				"module":     v.Name,
				"checkpoint": cp.String(),
				"reply":      r.String(),
			}).Info("transaction rejected")
			return Result{Pass: false, Reply: r, RejectedBy: v.Name}, nil
		}
	}

	t.state = next(cp)
	r, ok := t.ctx.TakeResponse()
	if !ok {
		r = defaultSuccess(cp)
	}
	return Result{Pass: true, Reply: r}, nil
}

// invoke runs one checkpoint entry point with panic isolation. A panicking
// module rejects the transaction rather than crashing the server.
func (t *Transaction) invoke(name string, cp module.Checkpoint, fn module.CheckpointFunc) (rc int) {
	defer func() {
		if rec := recover(); rec != nil {
			t.log.WithFields(logrus.Fields{
				"module":     name,
				"checkpoint": cp.String(),
				"panic":      rec,
			}).Error("validation module panicked")
			rc = -1
		}
	}()
	return fn(t.ctx)
}

// Emit delivers a lifecycle event to every active event module in
// registration order. Delivery is fire-and-forget: return values are logged
// only, a panicking module is isolated, and the transaction outcome is never
// affected.
func (t *Transaction) Emit(ev module.Event) {
	for _, l := range t.reg.Listeners() {
		rc := t.emitOne(l, ev)
		if rc != 0 {
			t.log.WithFields(logrus.Fields{
				"module": l.Name,
				"event":  ev.String(),
				"code":   rc,
			}).Debug("event module returned nonzero")
		}
	}
}

func (t *Transaction) emitOne(l module.Descriptor, ev module.Event) (rc int) {
	defer func() {
		if rec := recover(); rec != nil {
			t.log.WithFields(logrus.Fields{
				"module": l.Name,
				"event":  ev.String(),
				"panic":  rec,
			}).Error("event module panicked")
			rc = -1
		}
	}()
	return l.Emit(ev, t.ctx)
}

// defaultRejection is the checkpoint-specific reply used when the rejecting
// module set none.
func defaultRejection(cp module.Checkpoint) reply.Reply {
	if cp == module.CheckpointStartTLS {
		return reply.Reply{Code: reply.CodeActionNotTaken, Text: "STARTTLS failed"}
	}
	return reply.Reply{Code: reply.CodeUnavailable, Text: "Unavailable"}
}

// defaultSuccess is the reply surfaced for an all-pass checkpoint with no
// override.
func defaultSuccess(cp module.Checkpoint) reply.Reply {
	switch cp {
	case module.CheckpointConnect:
		return reply.Reply{Code: reply.CodeServiceReady, Text: "Service ready"}
	case module.CheckpointStartTLS:
		return reply.Reply{Code: reply.CodeServiceReady, Text: "Ready to begin TLS"}
	case module.CheckpointData:
		return reply.Reply{Code: reply.CodeOK, Text: "Ok: queued"}
	default:
		return reply.Reply{Code: reply.CodeOK, Text: "Ok"}
	}
}
