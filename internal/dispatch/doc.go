// Package dispatch sequences checkpoint and event calls into loaded modules.
//
// A Transaction is a state machine over one SMTP transaction:
//
//	Connect → (optional StartTLS) → (optional MailFrom) → Data → Complete
//
// with an absorbing Rejected state reachable from any checkpoint. At each
// checkpoint every active validation module's entry point runs in registration
// order; the first nonzero return short-circuits the checkpoint, moves the
// transaction to Rejected, and surfaces the rejecting module's response (or
// the checkpoint default). Mutations made by modules that ran before the
// rejection are not rolled back.
//
// Lifecycle events fan out to every event module in registration order.
// Event modules cannot veto; their return values are logged and otherwise
// ignored, and a panicking module is isolated. Every call is plain and
// synchronous so a host can wrap it in a timeout at its discretion.
package dispatch
