// Package boundary defines the owned values that cross the plugin boundary.
//
// Every accessor on a transaction Context that returns textual or list data to
// a plugin allocates a fresh String or StringList. The receiver owns the value
// and must call Release on it exactly once before it goes out of scope.
// Passing data into the boundary uses plain Go strings whose lifetime is the
// duration of the call; the callee copies anything it retains.
//
// Violating the ownership contract (releasing twice, reading after release)
// is a caller defect, not a recoverable condition. Both panic immediately so
// the defect surfaces at the violation site instead of corrupting state later.
//
// Allocations are accounted against a Tracker. Tracker.Live reports the
// allocation/release balance, which is how hosts (and the tests in this repo)
// verify that plugin code does not leak boundary values.
package boundary
