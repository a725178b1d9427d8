// Package session holds the per-transaction Context passed to every hook.
//
// A Context represents one SMTP transaction: one connection, one message
// attempt. The protocol engine creates it when the transaction begins, passes
// it by reference to every hook invoked during the transaction, and closes it
// when the transaction concludes. A Context is never shared across
// transactions, and the engine guarantees hooks for one transaction run
// strictly sequentially, so the Context holds no locks.
//
// Plugin-facing accessors return owned boundary values; the ownership
// contract is documented per operation. Engine-facing mutators (AddRecipient,
// BeginData, UpgradeTLS, SetDelivery) use plain Go values and are not part of
// the plugin surface.
package session
